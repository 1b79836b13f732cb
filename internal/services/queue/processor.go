package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/phambaophuc/image-compressor/internal/services/storage"
	"github.com/phambaophuc/image-compressor/pkg/utils"
	"go.uber.org/zap"
)

func (q *QueueService) processJob(ctx context.Context, job *models.ProcessingJob) (*models.ProcessedImage, error) {
	imageData, contentType, err := utils.DownloadImage(ctx, q.httpClient, job.ImageURL, q.maxDownloadSize)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}

	filename := job.Filename
	if filename == "" {
		filename = utils.FilenameFromURL(job.ImageURL, job.ID+utils.ExtensionForMIME(contentType))
	}

	src := &models.SourceImage{
		Data:     imageData,
		MIMEType: contentType,
		Filename: filename,
	}
	constraints := job.Constraints.Merge(q.defaults)

	cacheKey := storage.GenerateCacheKey(src, constraints)
	compressed, err := q.store.GetCompressed(ctx, cacheKey)
	if err != nil {
		q.logger.Warn("Failed to read cached result", zap.String("job_id", job.ID), zap.Error(err))
	}

	if compressed == nil {
		compressed, err = q.compressor.Compress(src, constraints)
		if err != nil {
			return nil, fmt.Errorf("failed to compress image: %w", err)
		}

		if err := q.store.SetCompressed(ctx, cacheKey, compressed); err != nil {
			q.logger.Warn("Failed to cache result", zap.String("job_id", job.ID), zap.Error(err))
		}
	} else {
		q.logger.Info("Cache hit", zap.String("job_id", job.ID))
		compressed.Filename = src.Filename
	}

	url, err := q.store.Upload(ctx, compressed.Data, compressed.Filename, compressed.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("failed to save compressed image: %w", err)
	}

	return &models.ProcessedImage{
		ID:           job.ID,
		OriginalURL:  job.ImageURL,
		ProcessedAt:  time.Now().UTC(),
		URL:          url,
		MIMEType:     compressed.MIMEType,
		FileSize:     compressed.Size(),
		OriginalSize: compressed.OriginalSize,
		Width:        compressed.Width,
		Height:       compressed.Height,
		Attempts:     compressed.Attempts,
	}, nil
}
