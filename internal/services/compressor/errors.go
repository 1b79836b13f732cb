package compressor

import "errors"

var (
	// ErrInvalidInput is returned when the declared MIME type is not an image type.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDecode is returned when the source bytes cannot be decoded into pixels.
	ErrDecode = errors.New("decode failed")
	// ErrEncode is returned when the encoder cannot produce bytes at an attempted quality.
	ErrEncode = errors.New("encode failed")

	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrFileTooLarge      = errors.New("file too large")
)
