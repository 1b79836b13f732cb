package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phambaophuc/image-compressor/internal/config"
	"github.com/phambaophuc/image-compressor/internal/http/handlers"
	"github.com/phambaophuc/image-compressor/internal/http/routes"
	"github.com/phambaophuc/image-compressor/internal/services/compressor"
	"github.com/phambaophuc/image-compressor/internal/services/queue"
	"github.com/phambaophuc/image-compressor/internal/services/storage"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Initialize services
	imageCompressor := compressor.New(
		compressor.WithLogger(logger.Named("compressor")),
		compressor.WithBatchWorkers(cfg.Compression.BatchWorkers),
	)

	storageService, err := storage.NewStorageService(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage service", zap.Error(err))
	}
	defer storageService.Close()

	if !cfg.SupabaseConfigured() {
		logger.Warn("Supabase not configured, uploads are disabled")
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// The handler's queue stays a nil interface when RabbitMQ is down.
	var jobQueue handlers.JobQueue
	queueService, err := queue.NewQueueService(cfg, imageCompressor, storageService, logger.Named("queue"))
	if err != nil {
		logger.Warn("Failed to initialize queue service", zap.Error(err))
		// Continue without queue service for basic functionality
	} else {
		defer queueService.Close()
		jobQueue = queueService

		for i := 1; i <= cfg.RabbitMQ.Workers; i++ {
			if err := queueService.StartWorker(workerCtx, i); err != nil {
				logger.Error("Failed to start worker", zap.Int("worker_id", i), zap.Error(err))
			}
		}
	}

	// Initialize handlers
	imageHandler := handlers.NewImageHandler(imageCompressor, storageService, jobQueue, logger, cfg)

	router := routes.NewRouter(imageHandler, logger, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Handler:      router.SetupRoutes(),
	}

	// Start server
	go func() {
		logger.Info("Starting server",
			zap.String("addr", server.Addr),
			zap.Float64("max_size_kb", cfg.Compression.MaxSizeKB),
			zap.Int("max_width", cfg.Compression.MaxWidth),
			zap.Int("max_height", cfg.Compression.MaxHeight))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopWorkers()
	if queueService != nil {
		// In-flight jobs requeue themselves; wait for them before the deferred closes run.
		queueService.Wait()
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
