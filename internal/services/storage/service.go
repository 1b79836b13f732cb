package storage

import (
	"time"

	"github.com/phambaophuc/image-compressor/internal/config"
	"github.com/redis/go-redis/v9"
	storage_go "github.com/supabase-community/storage-go"
)

type StorageService struct {
	sbClient      *storage_go.Client
	redisClient   *redis.Client
	bucket        string
	keyPrefix     string
	cacheDuration time.Duration
}

type ServiceOptions struct {
	MaxRetries int
	Timeout    time.Duration
}

var DefaultOptions = ServiceOptions{
	MaxRetries: 3,
	Timeout:    5 * time.Second,
}

func NewStorageService(cfg *config.Config, opts ...ServiceOptions) (*StorageService, error) {
	options := DefaultOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	var sbClient *storage_go.Client
	if cfg.SupabaseConfigured() {
		sbClient = storage_go.NewClient(cfg.Supabase.URL+"/storage/v1", cfg.Supabase.KEY, nil)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   options.MaxRetries,
		DialTimeout:  options.Timeout,
		ReadTimeout:  options.Timeout,
		WriteTimeout: options.Timeout,
	})

	cacheDuration := cfg.Storage.CacheDuration
	if cacheDuration <= 0 {
		cacheDuration = 24 * time.Hour
	}

	return &StorageService{
		sbClient:      sbClient,
		redisClient:   redisClient,
		bucket:        cfg.Supabase.BUCKET,
		keyPrefix:     cfg.Storage.StorageKeyPrefix,
		cacheDuration: cacheDuration,
	}, nil
}

// Close releases the Redis connection pool.
func (s *StorageService) Close() error {
	return s.redisClient.Close()
}
