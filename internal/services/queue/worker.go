package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// storeTimeout bounds job state writes, which outlive the worker context on shutdown.
const storeTimeout = 5 * time.Second

// StartWorker registers a consumer and handles its deliveries in a goroutine until ctx
// is cancelled or the channel closes.
func (q *QueueService) StartWorker(ctx context.Context, workerID int) error {
	consumer := fmt.Sprintf("compressor-worker-%d", workerID)
	deliveries, err := q.channel.Consume(
		q.queueName, // queue
		consumer,    // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.activeWorkers.Add(1)
	q.workers.Add(1)
	q.logger.Info("Worker started", zap.Int("worker_id", workerID))

	go q.consume(ctx, workerID, deliveries)
	return nil
}

func (q *QueueService) consume(ctx context.Context, workerID int, deliveries <-chan amqp.Delivery) {
	defer q.workers.Done()
	defer q.activeWorkers.Add(-1)

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("Worker stopping", zap.Int("worker_id", workerID))
			return
		case msg, ok := <-deliveries:
			if !ok {
				q.logger.Warn("Delivery channel closed", zap.Int("worker_id", workerID))
				return
			}
			q.processMessage(ctx, msg, workerID)
		}
	}
}

// processMessage runs one delivery to completion. Every well-formed job is acked once its
// final state is stored; failures are recorded on the job instead of being redelivered.
// A job cut short by worker shutdown is put back to pending and requeued.
func (q *QueueService) processMessage(ctx context.Context, msg amqp.Delivery, workerID int) {
	var job models.ProcessingJob
	if err := json.Unmarshal(msg.Body, &job); err != nil || job.ID == "" {
		q.logger.Error("Dropping malformed job message",
			zap.Error(err),
			zap.String("message_id", msg.MessageId),
			zap.Int("worker_id", workerID))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			q.logger.Error("Failed to nack message", zap.Error(nackErr))
		}
		return
	}

	logger := q.logger.With(zap.String("job_id", job.ID), zap.Int("worker_id", workerID))
	logger.Info("Processing job", zap.Bool("redelivered", msg.Redelivered))

	job.Status = models.StatusProcessing
	q.storeJobResult(ctx, &job)

	start := time.Now()
	result, err := q.runJob(ctx, &job)
	if err != nil && ctx.Err() != nil {
		job.Status = models.StatusPending
		job.Error = ""
		q.storeJobResult(ctx, &job)

		logger.Warn("Job interrupted by shutdown, requeueing", zap.Error(err))
		if nackErr := msg.Nack(false, true); nackErr != nil {
			logger.Error("Failed to requeue message", zap.Error(nackErr))
		}
		return
	}
	if err != nil {
		job.Status = models.StatusFailed
		job.Error = err.Error()
		logger.Error("Job failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	} else {
		job.Status = models.StatusCompleted
		job.Result = result
		logger.Info("Job completed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Int64("file_size", result.FileSize),
			zap.Int("attempts", result.Attempts))
	}

	q.storeJobResult(ctx, &job)

	if err := msg.Ack(false); err != nil {
		logger.Error("Failed to ack message", zap.Error(err))
	}
}

// runJob bounds processJob by the job timeout and turns a panic into a job failure,
// so one hostile image cannot take the worker down.
func (q *QueueService) runJob(ctx context.Context, job *models.ProcessingJob) (result *models.ProcessedImage, err error) {
	if q.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return q.processJob(ctx, job)
}

func (q *QueueService) storeJobResult(ctx context.Context, job *models.ProcessingJob) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	job.UpdatedAt = time.Now().UTC()
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.logger.Error("Failed to store job state",
			zap.String("job_id", job.ID),
			zap.String("status", job.Status),
			zap.Error(err))
	}
}
