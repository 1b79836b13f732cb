package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/phambaophuc/image-compressor/internal/services/compressor"
	"github.com/phambaophuc/image-compressor/internal/services/storage"
	"github.com/phambaophuc/image-compressor/pkg/utils"
	"go.uber.org/zap"
)

// === REQUEST PARSING ===

// parseConstraints reads the optional bounds from the form. Missing fields fall back
// to the configured defaults.
func (h *ImageHandler) parseConstraints(c *gin.Context) (models.Constraints, error) {
	var constraints models.Constraints

	if value := c.PostForm("max_size_kb"); value != "" {
		sizeKB, err := strconv.ParseFloat(value, 64)
		if err != nil || sizeKB <= 0 {
			return constraints, fmt.Errorf("invalid max_size_kb: must be a positive number")
		}
		constraints.MaxSizeKB = sizeKB
	}

	width, err := h.parseOptionalPositiveInt(c.PostForm("max_width"), "max_width")
	if err != nil {
		return constraints, err
	}
	constraints.MaxWidth = width

	height, err := h.parseOptionalPositiveInt(c.PostForm("max_height"), "max_height")
	if err != nil {
		return constraints, err
	}
	constraints.MaxHeight = height

	return constraints.Merge(h.defaultConstraints()), nil
}

func (h *ImageHandler) parseOptionalPositiveInt(value, fieldName string) (int, error) {
	if value == "" {
		return 0, nil
	}

	num, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a number", fieldName)
	}

	if num <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", fieldName)
	}

	return num, nil
}

func (h *ImageHandler) parseBool(value, fieldName string) (bool, error) {
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", fieldName)
	}
	return b, nil
}

func (h *ImageHandler) parseMultipartFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("failed to parse form data: %v", err)
	}

	files := form.File[imagesParamKey]
	if len(files) == 0 {
		return nil, fmt.Errorf("no images provided")
	}

	if len(files) > maxBatchFiles {
		return nil, fmt.Errorf("too many images: at most %d per request", maxBatchFiles)
	}

	return files, nil
}

func (h *ImageHandler) defaultConstraints() models.Constraints {
	return models.Constraints{
		MaxSizeKB: h.config.Compression.MaxSizeKB,
		MaxWidth:  h.config.Compression.MaxWidth,
		MaxHeight: h.config.Compression.MaxHeight,
	}
}

// === FILE OPERATIONS ===

func (h *ImageHandler) getUploadedFile(c *gin.Context, paramKey string) (multipart.File, *multipart.FileHeader, error) {
	return c.Request.FormFile(paramKey)
}

// readSource loads an uploaded part. The declared part type wins unless it is missing
// or generic, in which case the type is sniffed from the bytes.
func (h *ImageHandler) readSource(file multipart.File, header *multipart.FileHeader) (*models.SourceImage, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &models.SourceImage{
		Data:     data,
		MIMEType: utils.DetectContentType(data, header.Header.Get("Content-Type")),
		Filename: header.Filename,
	}, nil
}

// readSources opens every part. Parts failing the upload limits are returned in rejected,
// keyed by their position, and are not handed to the compressor.
func (h *ImageHandler) readSources(files []*multipart.FileHeader) ([]*models.SourceImage, map[int]models.ImageResponse, error) {
	sources := make([]*models.SourceImage, 0, len(files))
	rejected := make(map[int]models.ImageResponse)

	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, err
		}

		src, err := h.readSource(f, fh)
		f.Close()
		if err != nil {
			return nil, nil, err
		}

		if err := compressor.Validate(src, h.config.Storage.MaxFileSize); err != nil {
			rejected[i] = models.ImageResponse{
				Filename:    fh.Filename,
				ProcessedAt: time.Now(),
				Error:       err.Error(),
			}
			continue
		}
		sources = append(sources, src)
	}

	return sources, rejected, nil
}

// === PROCESSING LOGIC ===

// compressCached validates src and compresses it, reusing a cached result for identical
// content and constraints. Cache failures are logged and never fail the request.
func (h *ImageHandler) compressCached(ctx context.Context, src *models.SourceImage, constraints models.Constraints) (*models.CompressedImage, error) {
	if err := compressor.Validate(src, h.config.Storage.MaxFileSize); err != nil {
		return nil, err
	}

	cacheKey := storage.GenerateCacheKey(src, constraints)
	cached, err := h.storage.GetCompressed(ctx, cacheKey)
	if err != nil {
		h.logger.Warn("Failed to read cached result", zap.String("cache_key", cacheKey), zap.Error(err))
	}
	if cached != nil {
		h.logger.Info("Cache hit", zap.String("cache_key", cacheKey))
		cached.Filename = src.Filename
		return cached, nil
	}

	compressed, err := h.compressor.Compress(src, constraints)
	if err != nil {
		return nil, err
	}

	if err := h.storage.SetCompressed(ctx, cacheKey, compressed); err != nil {
		h.logger.Warn("Failed to cache result", zap.String("cache_key", cacheKey), zap.Error(err))
	}

	return compressed, nil
}

// === RESPONSE HANDLING ===

func (h *ImageHandler) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

func (h *ImageHandler) respondCompressionError(c *gin.Context, filename string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Compression failed", zap.String("filename", filename), zap.Error(err))
	} else {
		h.logger.Info("Compression rejected", zap.String("filename", filename), zap.Error(err))
	}
	h.respondError(c, status, err.Error())
}

func (h *ImageHandler) respondWithImage(c *gin.Context, img *models.CompressedImage) {
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", img.Filename))
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxCacheAge))
	c.Header("X-Compression-Original-Size", strconv.FormatInt(img.OriginalSize, 10))
	c.Header("X-Compression-Size", strconv.FormatInt(img.Size(), 10))
	c.Header("X-Compression-Width", strconv.Itoa(img.Width))
	c.Header("X-Compression-Height", strconv.Itoa(img.Height))
	c.Header("X-Compression-Attempts", strconv.Itoa(img.Attempts))
	c.Data(http.StatusOK, img.MIMEType, img.Data)
}

func (h *ImageHandler) imageResponse(img *models.CompressedImage) models.ImageResponse {
	return models.ImageResponse{
		Filename:     img.Filename,
		FileSize:     img.Size(),
		OriginalSize: img.OriginalSize,
		Width:        img.Width,
		Height:       img.Height,
		Attempts:     img.Attempts,
		ProcessedAt:  time.Now(),
	}
}

// buildBatchResponse merges compressed items back with the rejected parts in upload order
// and uploads every success.
func (h *ImageHandler) buildBatchResponse(ctx context.Context, items []models.BatchItem, rejected map[int]models.ImageResponse) models.BatchResponse {
	images := make([]*models.CompressedImage, len(items))
	for i, item := range items {
		images[i] = item.Image
	}

	urls, err := h.storage.UploadMultiple(ctx, images)
	if err != nil {
		h.logger.Warn("Failed to upload to Storage", zap.Error(err))
	}

	response := models.BatchResponse{
		Images: make([]models.ImageResponse, 0, len(items)+len(rejected)),
	}

	next := 0
	for i := 0; i < len(items)+len(rejected); i++ {
		if r, ok := rejected[i]; ok {
			response.Images = append(response.Images, r)
			response.Failed++
			continue
		}

		item := items[next]
		url := urls[next]
		next++

		if item.Error != nil {
			response.Images = append(response.Images, models.ImageResponse{
				Filename:    item.Filename,
				ProcessedAt: time.Now(),
				Error:       item.Error.Error(),
			})
			response.Failed++
			continue
		}

		entry := h.imageResponse(item.Image)
		entry.URL = url
		response.Images = append(response.Images, entry)
		response.Succeeded++
	}

	return response
}

// === UTILITY METHODS ===

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, compressor.ErrInvalidInput):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, compressor.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, compressor.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrStorageNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *ImageHandler) calculateOverallHealth(services map[string]string) string {
	for _, status := range services {
		if status != models.HealthHealthy && status != models.HealthNotConfigured {
			return models.HealthUnhealthy
		}
	}
	return models.HealthHealthy
}
