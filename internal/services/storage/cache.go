package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	CacheKeyPrefix = "img_cache:"
)

func (s *StorageService) GetFromCache(ctx context.Context, cacheKey string) ([]byte, error) {
	data, err := s.redisClient.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("cache get error: %w", err)
	}
	return data, nil
}

func (s *StorageService) SetCache(ctx context.Context, cacheKey string, data []byte) error {
	return s.redisClient.Set(ctx, cacheKey, data, s.cacheDuration).Err()
}

// GetCompressed returns a cached compression result, or nil on a miss.
func (s *StorageService) GetCompressed(ctx context.Context, cacheKey string) (*models.CompressedImage, error) {
	data, err := s.GetFromCache(ctx, cacheKey)
	if err != nil || data == nil {
		return nil, err
	}

	var img models.CompressedImage
	if err := json.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached image: %w", err)
	}
	return &img, nil
}

func (s *StorageService) SetCompressed(ctx context.Context, cacheKey string, img *models.CompressedImage) error {
	data, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("failed to marshal image: %w", err)
	}
	return s.SetCache(ctx, cacheKey, data)
}

// GenerateCacheKey derives a key from the source content and the effective constraints,
// so identical uploads under different filenames share a result.
func GenerateCacheKey(src *models.SourceImage, constraints models.Constraints) string {
	constraints = constraints.WithDefaults()

	keyParts := []string{
		strings.ToLower(src.MIMEType),
		fmt.Sprintf("max_%g_%d_%d", constraints.MaxSizeKB, constraints.MaxWidth, constraints.MaxHeight),
	}

	hash := sha256.New()
	hash.Write(src.Data)
	hash.Write([]byte(strings.Join(keyParts, "_")))

	return fmt.Sprintf("%s%x", CacheKeyPrefix, hash.Sum(nil))
}

func (s *StorageService) GetCacheStats(ctx context.Context) (map[string]interface{}, error) {
	pipeline := s.redisClient.Pipeline()

	infoCmd := pipeline.Info(ctx, "memory")
	dbSizeCmd := pipeline.DBSize(ctx)

	if _, err := pipeline.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipeline error: %w", err)
	}

	stats := map[string]interface{}{
		"db_keys": dbSizeCmd.Val(),
		"info":    infoCmd.Val(),
	}

	return stats, nil
}
