package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-compressor/internal/config"
	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/phambaophuc/image-compressor/pkg/utils"
	"go.uber.org/zap"
)

const (
	maxCacheAge    = 3600
	maxBatchFiles  = 20
	imageParamKey  = "image"
	imagesParamKey = "images"
)

// Compressor runs the adaptive quality search.
type Compressor interface {
	Compress(src *models.SourceImage, constraints models.Constraints) (*models.CompressedImage, error)
	CompressBatch(sources []*models.SourceImage, constraints models.Constraints) []models.BatchItem
}

// Storage holds compressed outputs, cached results and job records.
type Storage interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
	UploadMultiple(ctx context.Context, images []*models.CompressedImage) ([]string, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	GetCompressed(ctx context.Context, cacheKey string) (*models.CompressedImage, error)
	SetCompressed(ctx context.Context, cacheKey string, img *models.CompressedImage) error
	GetJob(ctx context.Context, id string) (*models.ProcessingJob, error)
	GetCacheStats(ctx context.Context) (map[string]interface{}, error)
	HealthCheck(ctx context.Context) map[string]string
}

// JobQueue accepts asynchronous compression jobs.
type JobQueue interface {
	PublishJob(ctx context.Context, job *models.ProcessingJob) error
	GetQueueStats() (map[string]interface{}, error)
	HealthCheck() string
}

type ImageHandler struct {
	compressor Compressor
	storage    Storage
	queue      JobQueue
	logger     *zap.Logger
	config     *config.Config
	startTime  time.Time
}

// NewImageHandler wires the handler. queue may be nil when RabbitMQ is unavailable;
// the job endpoints then answer 503.
func NewImageHandler(
	compressor Compressor,
	storage Storage,
	queue JobQueue,
	logger *zap.Logger,
	config *config.Config,
) *ImageHandler {
	return &ImageHandler{
		compressor: compressor,
		storage:    storage,
		queue:      queue,
		logger:     logger,
		config:     config,
		startTime:  time.Now(),
	}
}

// === MAIN API ENDPOINTS ===

// CompressImage compresses one uploaded image. The compressed bytes are returned
// directly unless return_url=true, in which case they are uploaded and the URL returned.
func (h *ImageHandler) CompressImage(c *gin.Context) {
	file, header, err := h.getUploadedFile(c, imageParamKey)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "No image file provided")
		return
	}
	defer file.Close()

	constraints, err := h.parseConstraints(c)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	returnURL, err := h.parseBool(c.Query("return_url"), "return_url")
	if err != nil {
		h.respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	src, err := h.readSource(file, header)
	if err != nil {
		h.logger.Error("Failed to read upload", zap.Error(err))
		h.respondError(c, http.StatusInternalServerError, "Internal file error")
		return
	}

	compressed, err := h.compressCached(c.Request.Context(), src, constraints)
	if err != nil {
		h.respondCompressionError(c, src.Filename, err)
		return
	}

	if !returnURL {
		h.respondWithImage(c, compressed)
		return
	}

	url, err := h.storage.Upload(c.Request.Context(), compressed.Data, compressed.Filename, compressed.MIMEType)
	if err != nil {
		h.logger.Error("Failed to upload compressed image",
			zap.String("filename", compressed.Filename),
			zap.Error(err))
		h.respondError(c, statusForError(err), "Failed to upload image")
		return
	}

	response := h.imageResponse(compressed)
	response.URL = url
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    response,
	})
}

// BatchCompress compresses every file of the images field and uploads the successes.
// Per-file failures are reported in the response, not as a request error.
func (h *ImageHandler) BatchCompress(c *gin.Context) {
	files, err := h.parseMultipartFiles(c)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	constraints, err := h.parseConstraints(c)
	if err != nil {
		h.respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	sources, rejected, err := h.readSources(files)
	if err != nil {
		h.logger.Error("Failed to read uploads", zap.Error(err))
		h.respondError(c, http.StatusInternalServerError, "Failed to open files: "+err.Error())
		return
	}

	items := h.compressor.CompressBatch(sources, constraints)
	response := h.buildBatchResponse(c.Request.Context(), items, rejected)

	c.JSON(http.StatusOK, models.APIResponse{
		Success: response.Failed == 0,
		Data:    response,
	})
}

// GetImage serves a stored object by its bucket path.
func (h *ImageHandler) GetImage(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		h.respondError(c, http.StatusBadRequest, "path is required")
		return
	}

	data, err := h.storage.Download(c.Request.Context(), path)
	if err != nil {
		h.logger.Error("Failed to download image", zap.String("path", path), zap.Error(err))
		h.respondError(c, statusForError(err), "Failed to download image")
		return
	}

	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxCacheAge))
	c.Data(http.StatusOK, utils.DetectContentType(data, ""), data)
}

// DeleteImage removes a stored object by its bucket path.
func (h *ImageHandler) DeleteImage(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	if path == "" {
		h.respondError(c, http.StatusBadRequest, "path is required")
		return
	}

	if err := h.storage.Delete(c.Request.Context(), path); err != nil {
		h.logger.Error("Failed to delete image", zap.String("path", path), zap.Error(err))
		h.respondError(c, statusForError(err), "Failed to delete image")
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    gin.H{"path": path},
	})
}

// HealthCheck
func (h *ImageHandler) HealthCheck(c *gin.Context) {
	services := h.storage.HealthCheck(c.Request.Context())
	if h.queue != nil {
		services["rabbitmq"] = h.queue.HealthCheck()
	} else {
		services["rabbitmq"] = models.HealthNotConfigured
	}
	overall := h.calculateOverallHealth(services)

	statusCode := http.StatusOK
	if overall == models.HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, models.APIResponse{
		Success: overall == models.HealthHealthy,
		Data: models.HealthCheck{
			Status:    overall,
			Timestamp: time.Now(),
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			Services:  services,
		},
	})
}

func (h *ImageHandler) GetStats(c *gin.Context) {
	cacheStats, err := h.storage.GetCacheStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get cache stats", zap.Error(err))
	}

	var queueStats map[string]interface{}
	if h.queue != nil {
		if queueStats, err = h.queue.GetQueueStats(); err != nil {
			h.logger.Error("Failed to get queue stats", zap.Error(err))
		}
	}

	stats := map[string]interface{}{
		"cache":     cacheStats,
		"queue":     queueStats,
		"defaults":  h.defaultConstraints(),
		"timestamp": time.Now(),
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    stats,
	})
}
