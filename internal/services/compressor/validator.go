package compressor

import (
	"fmt"

	"github.com/phambaophuc/image-compressor/internal/models"
)

// Validate checks the upload limits that apply before compression starts.
func Validate(src *models.SourceImage, maxFileSize int64) error {
	if src == nil || len(src.Data) == 0 {
		return fmt.Errorf("%w: empty image data", ErrInvalidInput)
	}

	if size := int64(len(src.Data)); maxFileSize > 0 && size > maxFileSize {
		return fmt.Errorf("%w: file size %d exceeds maximum allowed size %d", ErrFileTooLarge, size, maxFileSize)
	}

	if !IsImageMIME(src.MIMEType) {
		return fmt.Errorf("%w: %q is not an image type", ErrInvalidInput, src.MIMEType)
	}

	return nil
}
