package compressor

import (
	"sync"

	"github.com/phambaophuc/image-compressor/internal/models"
	"go.uber.org/zap"
)

// CompressBatch compresses sources concurrently. Results keep the input order and
// failures are reported per item.
func (c *Compressor) CompressBatch(sources []*models.SourceImage, constraints models.Constraints) []models.BatchItem {
	results := make([]models.BatchItem, len(sources))
	if len(sources) == 0 {
		return results
	}

	jobs := make(chan int, len(sources))

	numWorkers := min(c.batchWorkers, len(sources))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = c.compressItem(sources[i], constraints)
			}
		}()
	}

	for i := range sources {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (c *Compressor) compressItem(src *models.SourceImage, constraints models.Constraints) models.BatchItem {
	item := models.BatchItem{}
	if src != nil {
		item.Filename = src.Filename
	}

	img, err := c.Compress(src, constraints)
	if err != nil {
		c.logger.Warn("Batch item failed", zap.String("filename", item.Filename), zap.Error(err))
		item.Error = err
		return item
	}

	item.Image = img
	return item
}
