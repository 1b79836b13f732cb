package models

import "time"

// BatchItem is the outcome of one image in a batch call.
type BatchItem struct {
	Filename string
	Image    *CompressedImage
	Error    error
}

type ImageResponse struct {
	Filename     string    `json:"filename"`
	URL          string    `json:"url,omitempty"`
	FileSize     int64     `json:"file_size,omitempty"`
	OriginalSize int64     `json:"original_size,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	Attempts     int       `json:"attempts,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
	Error        string    `json:"error,omitempty"`
}

type BatchResponse struct {
	Images    []ImageResponse `json:"images"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}
