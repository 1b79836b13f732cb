package models

import "time"

type CompressionJobRequest struct {
	ImageURL    string      `json:"image_url" binding:"required,url"`
	Filename    string      `json:"filename,omitempty"`
	Constraints Constraints `json:"constraints"`
}

type ProcessingJob struct {
	ID          string          `json:"id"`
	ImageURL    string          `json:"image_url"`
	Filename    string          `json:"filename,omitempty"`
	Constraints Constraints     `json:"constraints"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Result      *ProcessedImage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
