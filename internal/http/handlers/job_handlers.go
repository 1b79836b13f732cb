package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-compressor/internal/models"
	"github.com/phambaophuc/image-compressor/internal/services/queue"
	"go.uber.org/zap"
)

// CreateJob queues a compression of a remote image and answers 202 with the pending job.
func (h *ImageHandler) CreateJob(c *gin.Context) {
	if h.queue == nil {
		h.respondError(c, http.StatusServiceUnavailable, "Job queue unavailable")
		return
	}

	var req models.CompressionJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "Invalid job request: "+err.Error())
		return
	}

	job := queue.NewJob(&req)
	if err := h.queue.PublishJob(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to publish job", zap.String("job_id", job.ID), zap.Error(err))
		h.respondError(c, http.StatusInternalServerError, "Failed to queue job")
		return
	}

	c.JSON(http.StatusAccepted, models.APIResponse{
		Success: true,
		Data:    job,
	})
}

func (h *ImageHandler) GetJob(c *gin.Context) {
	job, err := h.storage.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := statusForError(err)
		if status != http.StatusNotFound {
			h.logger.Error("Failed to load job", zap.String("job_id", c.Param("id")), zap.Error(err))
			h.respondError(c, status, "Failed to load job")
			return
		}
		h.respondError(c, status, err.Error())
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    job,
	})
}
