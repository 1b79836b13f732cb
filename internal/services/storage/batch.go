package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/phambaophuc/image-compressor/internal/models"
)

const uploadWorkers = 5

// UploadMultiple uploads images concurrently. urls[i] is empty for nil images and
// for failed uploads; the returned error lists every failure.
func (s *StorageService) UploadMultiple(ctx context.Context, images []*models.CompressedImage) ([]string, error) {
	urls := make([]string, len(images))
	if len(images) == 0 {
		return urls, nil
	}

	errs := make([]error, len(images))
	jobs := make(chan int, len(images))
	numWorkers := min(uploadWorkers, len(images))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if images[i] == nil {
					continue
				}
				urls[i], errs[i] = s.Upload(ctx, images[i].Data, images[i].Filename, images[i].MIMEType)
			}
		}()
	}

	for i := range images {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var failedUploads []string
	for i, err := range errs {
		if err != nil {
			failedUploads = append(failedUploads, fmt.Sprintf("file %d: %v", i, err))
		}
	}

	if len(failedUploads) > 0 {
		return urls, fmt.Errorf("failed to upload %d files: %s",
			len(failedUploads), strings.Join(failedUploads, "; "))
	}

	return urls, nil
}
