package domain

import "errors"

var (
	ErrConfigWriteRejected     = errors.New("configuration change rejected")
	ErrNameResolutionExhausted = errors.New("no free file name found")
	ErrIOFailure               = errors.New("storage i/o failure")
	ErrUnsupportedImageFormat  = errors.New("unsupported image format")
	ErrInvalidFilename         = errors.New("invalid file name")
	ErrNotConfigured           = errors.New("images directory is not configured")
)
