// Package imaging resizes uploaded photos into a bounding box and encodes
// them for embedding in a page.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"github.com/nfnt/resize"
)

const (
	DefaultMaxWidth  = 640
	DefaultMaxHeight = 480
	DefaultQuality   = 90
	// DefaultMaxPixels bounds the decoded size of an upload, about 160 MB
	// of RGBA.
	DefaultMaxPixels = 40_000_000
)

var (
	ErrDecode = errors.New("image could not be decoded")
	ErrEncode = errors.New("image could not be encoded")
)

// Options controls a Normalizer.
type Options struct {
	MaxWidth  int
	MaxHeight int
	// Quality is the JPEG quality, 1-100.
	Quality int
	// Upscale lets images smaller than the box grow to fill it. When false
	// they keep their original dimensions.
	Upscale bool
	// MaxPixels rejects uploads whose header declares more than this many
	// pixels before any pixel data is decoded.
	MaxPixels int64
}

// Image is a normalized photo ready to embed.
type Image struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	JPEG   []byte `json:"-"`
}

// DataURI renders the encoded bytes as an inline data URI.
func (img *Image) DataURI() string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img.JPEG)
}

// Normalizer holds a fixed bounding box. It keeps no per-call state and may
// be shared between goroutines.
type Normalizer struct {
	opts Options
}

// NewNormalizer fills unset or out-of-range options with the package defaults.
func NewNormalizer(opts Options) *Normalizer {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = DefaultMaxHeight
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Normalizer{opts: opts}
}

// Options returns the effective options after defaults were applied.
func (n *Normalizer) Options() Options {
	return n.opts
}

// Normalize decodes data, resizes it into the bounding box with a bicubic
// filter and re-encodes it as JPEG. data is not modified.
func (n *Normalizer) Normalize(data []byte) (*Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrDecode, cfg.Width, cfg.Height)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > n.opts.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit", ErrDecode, cfg.Width, cfg.Height, n.opts.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrDecode, bounds.Dx(), bounds.Dy())
	}

	width, height := FitDimensions(bounds.Dx(), bounds.Dy(), n.opts.MaxWidth, n.opts.MaxHeight, n.opts.Upscale)

	out := src
	if width != bounds.Dx() || height != bounds.Dy() {
		out = resize.Resize(uint(width), uint(height), src, resize.Bicubic)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: n.opts.Quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	return &Image{
		Width:  out.Bounds().Dx(),
		Height: out.Bounds().Dy(),
		JPEG:   buf.Bytes(),
	}, nil
}

// FitDimensions scales (width, height) by min(maxWidth/width, maxHeight/height)
// and rounds to whole pixels. Without upscale the ratio is capped at 1.
// Each side is at least one pixel.
func FitDimensions(width, height, maxWidth, maxHeight int, upscale bool) (int, int) {
	ratioX := float64(maxWidth) / float64(width)
	ratioY := float64(maxHeight) / float64(height)
	ratio := math.Min(ratioX, ratioY)

	if ratio >= 1 && !upscale {
		return width, height
	}

	w := int(math.Round(float64(width) * ratio))
	h := int(math.Round(float64(height) * ratio))

	return max(1, min(w, maxWidth)), max(1, min(h, maxHeight))
}
