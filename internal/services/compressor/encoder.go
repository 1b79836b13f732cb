package compressor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Encode writes img in format at quality (0..1). Lossless formats map quality onto whatever
// knob they have: PNG deflate level, GIF palette size. BMP and TIFF ignore it.
func (c *ImagingCodec) Encode(img image.Image, format Format, quality float64) ([]byte, error) {
	buffer := &bytes.Buffer{}
	if err := c.encodeImage(buffer, img, format, quality); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (c *ImagingCodec) encodeImage(buffer *bytes.Buffer, img image.Image, format Format, quality float64) error {
	quality = math.Min(1, math.Max(0, quality))

	switch format {
	case FormatJPEG:
		return imaging.Encode(buffer, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality)))
	case FormatPNG:
		return imaging.Encode(buffer, img, imaging.PNG, imaging.PNGCompressionLevel(pngLevel(quality)))
	case FormatGIF:
		return imaging.Encode(buffer, img, imaging.GIF, imaging.GIFNumColors(gifColors(quality)))
	case FormatBMP:
		return imaging.Encode(buffer, img, imaging.BMP)
	case FormatTIFF:
		return imaging.Encode(buffer, img, imaging.TIFF)
	case FormatWebP:
		return webp.Encode(buffer, img, &webp.Options{Quality: float32(quality * 100)})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func jpegQuality(quality float64) int {
	return min(100, max(1, int(math.Round(quality*100))))
}

func pngLevel(quality float64) png.CompressionLevel {
	if quality >= 0.6 {
		return png.DefaultCompression
	}
	return png.BestCompression
}

func gifColors(quality float64) int {
	return min(256, max(2, int(math.Round(quality*256))))
}
