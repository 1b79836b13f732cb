package models

const (
	DefaultMaxSizeKB = 200
	DefaultMaxWidth  = 1024
	DefaultMaxHeight = 1024
)

// SourceImage is an encoded image handed to the compressor.
type SourceImage struct {
	Data     []byte
	MIMEType string
	Filename string
}

// Constraints bounds the compressed output. Zero values fall back to the defaults.
type Constraints struct {
	MaxSizeKB float64 `json:"max_size_kb,omitempty" binding:"omitempty,gt=0"`
	MaxWidth  int     `json:"max_width,omitempty" binding:"omitempty,min=1"`
	MaxHeight int     `json:"max_height,omitempty" binding:"omitempty,min=1"`
}

// WithDefaults returns a copy where every unset or non-positive bound is replaced by its default.
func (c Constraints) WithDefaults() Constraints {
	if c.MaxSizeKB <= 0 {
		c.MaxSizeKB = DefaultMaxSizeKB
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = DefaultMaxHeight
	}
	return c
}

// MaxBytes is the size budget in bytes (KiB based).
func (c Constraints) MaxBytes() float64 {
	return c.MaxSizeKB * 1024
}

// CompressedImage is the re-encoded output. MIMEType and Filename always match the source.
type CompressedImage struct {
	Data         []byte `json:"data"`
	MIMEType     string `json:"mime_type"`
	Filename     string `json:"filename"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	OriginalSize int64  `json:"original_size"`
	Attempts     int    `json:"attempts"`
}

// Size returns the encoded size in bytes.
func (c *CompressedImage) Size() int64 {
	return int64(len(c.Data))
}

// SizeKB returns the encoded size in KiB.
func (c *CompressedImage) SizeKB() float64 {
	return float64(len(c.Data)) / 1024
}

// Merge fills every unset bound of c from defaults.
func (c Constraints) Merge(defaults Constraints) Constraints {
	if c.MaxSizeKB <= 0 {
		c.MaxSizeKB = defaults.MaxSizeKB
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = defaults.MaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = defaults.MaxHeight
	}
	return c
}
