package models

import "time"

type ProcessedImage struct {
	ID           string    `json:"id"`
	OriginalURL  string    `json:"original_url"`
	ProcessedAt  time.Time `json:"processed_at"`
	URL          string    `json:"url"`
	MIMEType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	OriginalSize int64     `json:"original_size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Attempts     int       `json:"attempts"`
}
