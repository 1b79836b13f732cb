package queue

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phambaophuc/image-compressor/internal/config"
	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// ImageCompressor is the part of the compressor the workers need.
type ImageCompressor interface {
	Compress(src *models.SourceImage, constraints models.Constraints) (*models.CompressedImage, error)
}

// Store persists job state, cached results and compressed outputs.
type Store interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
	GetCompressed(ctx context.Context, cacheKey string) (*models.CompressedImage, error)
	SetCompressed(ctx context.Context, cacheKey string, img *models.CompressedImage) error
	SaveJob(ctx context.Context, job *models.ProcessingJob) error
}

type QueueService struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *zap.Logger
	queueName  string
	compressor ImageCompressor
	store      Store
	httpClient *http.Client

	defaults        models.Constraints
	maxDownloadSize int64
	jobTimeout      time.Duration
	activeWorkers   atomic.Int32
	workers         sync.WaitGroup
}

func NewQueueService(
	cfg *config.Config,
	compressor ImageCompressor,
	store Store,
	logger *zap.Logger,
) (*QueueService, error) {
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queueName := cfg.RabbitMQ.Queue

	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	// One unacked compression per consumer; jobs are CPU bound.
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	q := newQueueService(cfg, compressor, store, logger)
	q.conn = conn
	q.channel = channel
	q.queueName = queueName
	return q, nil
}

func newQueueService(cfg *config.Config, compressor ImageCompressor, store Store, logger *zap.Logger) *QueueService {
	return &QueueService{
		logger:     logger,
		queueName:  cfg.RabbitMQ.Queue,
		compressor: compressor,
		store:      store,
		httpClient: &http.Client{Timeout: cfg.Storage.DownloadTimeout},
		defaults: models.Constraints{
			MaxSizeKB: cfg.Compression.MaxSizeKB,
			MaxWidth:  cfg.Compression.MaxWidth,
			MaxHeight: cfg.Compression.MaxHeight,
		},
		maxDownloadSize: cfg.Storage.MaxDownloadSize,
		jobTimeout:      cfg.RabbitMQ.JobTimeout,
	}
}

// Wait blocks until every consumer started by StartWorker has returned.
func (q *QueueService) Wait() {
	q.workers.Wait()
}

// Close closes the queue connection
func (q *QueueService) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
