package compressor

import (
	"fmt"
	"mime"
	"strings"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

var mimeFormats = map[string]Format{
	"image/jpeg":     FormatJPEG,
	"image/jpg":      FormatJPEG,
	"image/pjpeg":    FormatJPEG,
	"image/png":      FormatPNG,
	"image/gif":      FormatGIF,
	"image/webp":     FormatWebP,
	"image/bmp":      FormatBMP,
	"image/x-ms-bmp": FormatBMP,
	"image/tiff":     FormatTIFF,
}

// IsImageMIME reports whether mimeType belongs to the image/* family.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(baseMIME(mimeType), "image/")
}

// FormatFromMIME maps an image MIME type to the encoder format used for it.
func FormatFromMIME(mimeType string) (Format, error) {
	if f, ok := mimeFormats[baseMIME(mimeType)]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
}

// baseMIME strips parameters and normalises case: "Image/PNG; q=1" -> "image/png".
func baseMIME(mimeType string) string {
	mimeType = strings.TrimSpace(mimeType)
	if mediaType, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mediaType
	}
	return strings.ToLower(mimeType)
}
