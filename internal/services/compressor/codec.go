package compressor

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Codec is the decode/resize/encode capability the compressor drives.
type Codec interface {
	Decode(data []byte) (image.Image, error)
	Resize(img image.Image, width, height int) image.Image
	Encode(img image.Image, format Format, quality float64) ([]byte, error)
}

// ImagingCodec implements Codec on top of disintegration/imaging.
type ImagingCodec struct{}

func NewImagingCodec() *ImagingCodec {
	return &ImagingCodec{}
}

func (c *ImagingCodec) Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Resize scales img to exactly width x height using Lanczos resampling.
func (c *ImagingCodec) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, max(1, width), max(1, height), imaging.Lanczos)
}
