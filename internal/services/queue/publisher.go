package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// NewJob builds a pending job for req.
func NewJob(req *models.CompressionJobRequest) *models.ProcessingJob {
	now := time.Now().UTC()
	return &models.ProcessingJob{
		ID:          uuid.New().String(),
		ImageURL:    req.ImageURL,
		Filename:    req.Filename,
		Constraints: req.Constraints,
		Status:      models.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PublishJob records job as pending and hands it to the workers.
func (q *QueueService) PublishJob(ctx context.Context, job *models.ProcessingJob) error {
	if err := q.store.SaveJob(ctx, job); err != nil {
		return err
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.channel.Publish(
		"",          // exchange
		q.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         jobBytes,
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	q.logger.Info("Job published to queue", zap.String("job_id", job.ID))
	return nil
}
