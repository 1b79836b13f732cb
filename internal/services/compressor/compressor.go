package compressor

import (
	"fmt"
	"math"

	"github.com/phambaophuc/image-compressor/internal/models"
	"go.uber.org/zap"
)

const (
	// Quality schedule in percent: 90, 85, ..., 10.
	startQualityPercent = 90
	floorQualityPercent = 10
	qualityStepPercent  = 5

	// MaxAttempts is the length of the quality schedule.
	MaxAttempts = (startQualityPercent-floorQualityPercent)/qualityStepPercent + 1

	DefaultBatchWorkers = 5
)

type Compressor struct {
	codec        Codec
	logger       *zap.Logger
	batchWorkers int
}

type Option func(*Compressor)

func WithCodec(codec Codec) Option {
	return func(c *Compressor) {
		c.codec = codec
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Compressor) {
		c.logger = logger
	}
}

func WithBatchWorkers(n int) Option {
	return func(c *Compressor) {
		if n > 0 {
			c.batchWorkers = n
		}
	}
}

func New(opts ...Option) *Compressor {
	c := &Compressor{
		codec:        NewImagingCodec(),
		logger:       zap.NewNop(),
		batchWorkers: DefaultBatchWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compress re-encodes src so that it fits within constraints. The image is downscaled
// (never upscaled) to the width/height ceilings, then encoded at decreasing quality until
// the output is within MaxSizeKB or the quality floor is reached. At the floor the last
// encoding is returned even if it is still over budget.
func (c *Compressor) Compress(src *models.SourceImage, constraints models.Constraints) (*models.CompressedImage, error) {
	if src == nil || !IsImageMIME(src.MIMEType) {
		mimeType := ""
		if src != nil {
			mimeType = src.MIMEType
		}
		return nil, fmt.Errorf("%w: %q is not an image type", ErrInvalidInput, mimeType)
	}
	constraints = constraints.WithDefaults()

	img, err := c.codec.Decode(src.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	bounds := img.Bounds()
	width, height := FitDimensions(bounds.Dx(), bounds.Dy(), constraints.MaxWidth, constraints.MaxHeight)
	if width != bounds.Dx() || height != bounds.Dy() {
		img = c.codec.Resize(img, width, height)
	}

	format, err := FormatFromMIME(src.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	maxBytes := constraints.MaxBytes()
	var (
		data     []byte
		attempts int
	)
	for percent := startQualityPercent; percent >= floorQualityPercent; percent -= qualityStepPercent {
		quality := float64(percent) / 100
		attempts++

		data, err = c.codec.Encode(img, format, quality)
		if err != nil {
			return nil, fmt.Errorf("%w: quality %.2f: %w", ErrEncode, quality, err)
		}

		c.logger.Debug("Compression attempt",
			zap.String("filename", src.Filename),
			zap.Float64("quality", quality),
			zap.Int("size", len(data)))

		if float64(len(data)) <= maxBytes {
			break
		}
	}

	if float64(len(data)) > maxBytes {
		c.logger.Warn("Size budget not met at quality floor",
			zap.String("filename", src.Filename),
			zap.Int("size", len(data)),
			zap.Float64("max_size_kb", constraints.MaxSizeKB))
	}

	return &models.CompressedImage{
		Data:         data,
		MIMEType:     src.MIMEType,
		Filename:     src.Filename,
		Width:        width,
		Height:       height,
		OriginalSize: int64(len(src.Data)),
		Attempts:     attempts,
	}, nil
}

// FitDimensions scales width x height uniformly so that it fits maxWidth x maxHeight.
// The ratio is capped at 1, so images already inside the box keep their size.
// Scaled sides round to the nearest pixel and are then clamped to [1, max].
func FitDimensions(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= 0 || height <= 0 {
		return width, height
	}

	ratio := math.Min(1, math.Min(float64(maxWidth)/float64(width), float64(maxHeight)/float64(height)))
	if ratio >= 1 {
		return width, height
	}

	w := int(math.Round(float64(width) * ratio))
	h := int(math.Round(float64(height) * ratio))
	return min(maxWidth, max(1, w)), min(maxHeight, max(1, h))
}
