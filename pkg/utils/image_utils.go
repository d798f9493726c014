package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// DefaultBound is used for a thumbnail dimension that is unset or not positive.
const DefaultBound = 2000

// DefaultMaxPixels caps the declared width*height of a source image when no
// limit is configured.
const DefaultMaxPixels = 50_000_000

// ErrUnsupportedFormat is returned when the source cannot be decoded or
// re-encoded in its own format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Thumb describes an encoded thumbnail.
type Thumb struct {
	Format    string
	Width     int
	Height    int
	SrcWidth  int
	SrcHeight int
}

type ImageProcessor struct {
	log        *zap.Logger
	quality    int
	autoOrient bool
	maxPixels  int64
}

// NewImageProcessor refuses sources declaring more than maxPixels pixels.
// A maxPixels of zero or less means DefaultMaxPixels.
func NewImageProcessor(log *zap.Logger, quality int, autoOrient bool, maxPixels int64) *ImageProcessor {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &ImageProcessor{log: log, quality: quality, autoOrient: autoOrient, maxPixels: maxPixels}
}

// Bounds applies DefaultBound to unset dimensions.
func Bounds(maxWidth, maxHeight int) (int, int) {
	if maxWidth <= 0 {
		maxWidth = DefaultBound
	}
	if maxHeight <= 0 {
		maxHeight = DefaultBound
	}
	return maxWidth, maxHeight
}

// Thumbnail decodes src, scales it down to fit inside maxWidth x maxHeight
// keeping the aspect ratio, and writes it to dst in the source's format.
// Images already inside the box are re-encoded at their own size.
func (p *ImageProcessor) Thumbnail(src io.Reader, dst io.Writer, maxWidth, maxHeight int) (*Thumb, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	cfg, formatName, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	// The header is checked before decoding allocates the full bitmap.
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > p.maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedFormat, cfg.Width, cfg.Height, p.maxPixels)
	}
	format, err := imaging.FormatFromExtension(formatName)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot encode %s", ErrUnsupportedFormat, formatName)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(p.autoOrient))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	maxWidth, maxHeight = Bounds(maxWidth, maxHeight)
	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, format, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	if _, err := dst.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write thumbnail: %w", err)
	}

	thumb := &Thumb{
		Format:    formatName,
		Width:     fitted.Bounds().Dx(),
		Height:    fitted.Bounds().Dy(),
		SrcWidth:  img.Bounds().Dx(),
		SrcHeight: img.Bounds().Dy(),
	}

	p.log.Debug("Thumbnail generated",
		zap.String("format", thumb.Format),
		zap.Int("src_width", thumb.SrcWidth),
		zap.Int("src_height", thumb.SrcHeight),
		zap.Int("width", thumb.Width),
		zap.Int("height", thumb.Height),
		zap.Int("size", buf.Len()))

	return thumb, nil
}
