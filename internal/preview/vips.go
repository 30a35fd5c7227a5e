package preview

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/h2non/bimg"
)

// RasterEngine converts raster bytes in-process. It exists as an interface so
// the facade can be exercised without a libvips installation.
type RasterEngine interface {
	// Name identifies the engine implementation for logging and results.
	Name() string
	// Convert decodes the input and returns final encoded bytes plus the
	// target format they were encoded to.
	Convert(ctx context.Context, data []byte, token FormatToken) ([]byte, TargetFormat, error)
}

// Operation cache bounds for libvips. The cache trades memory for repeat
// decode speed; previews are one-shot so a small cache is enough.
const (
	vipsCacheMaxMem = 64 * 1024 * 1024
	vipsCacheMaxOps = 500
)

// VipsEngine is the native conversion tier. libvips decodes in tiles and
// streams through its pipeline, so memory use tracks tile size rather than
// full decoded frame size, and it parallelizes across cores on its own.
type VipsEngine struct {
	limits       ResourceLimits
	encode       EncodeOptions
	maxDimension int
	logger       *slog.Logger
}

// NewVipsEngine creates the native engine and bounds the libvips operation
// cache for the life of the process.
func NewVipsEngine(limits ResourceLimits, encode EncodeOptions, maxDimension int, logger *slog.Logger) *VipsEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	bimg.VipsCacheSetMaxMem(vipsCacheMaxMem)
	bimg.VipsCacheSetMax(vipsCacheMaxOps)
	return &VipsEngine{
		limits:       limits,
		encode:       encode,
		maxDimension: maxDimension,
		logger:       logger.With(slog.String("component", "vips")),
	}
}

// Name implements RasterEngine.
func (e *VipsEngine) Name() string { return "vips" }

// VipsVersion reports the linked libvips version for diagnostics.
func VipsVersion() string { return bimg.VipsVersion }

// Convert decodes the buffer with libvips and re-encodes it browser-ready.
// Unloadable types return ErrUnsupportedFormat so the caller can retry via
// the preprocessor registry; corrupt data returns ErrConversionFailed.
func (e *VipsEngine) Convert(ctx context.Context, data []byte, token FormatToken) ([]byte, TargetFormat, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", timeoutErr("conversion cancelled", "", err)
	}
	if len(data) == 0 {
		return nil, "", invalidInputErr("empty input data")
	}
	if int64(len(data)) > e.limits.MaxInputSize {
		return nil, "", invalidInputErr(
			fmt.Sprintf("input too large: %d bytes (max %d)", len(data), e.limits.MaxInputSize))
	}

	imgType := bimg.DetermineImageType(data)
	if imgType == bimg.UNKNOWN || !bimg.IsTypeSupported(imgType) {
		return nil, "", unsupportedErr(
			fmt.Sprintf("libvips build cannot load format %q", token), nil)
	}

	meta, err := bimg.Metadata(data)
	if err != nil {
		return nil, "", conversionFailedErr("corrupt or unreadable image", err.Error(), err)
	}
	area := int64(meta.Size.Width) * int64(meta.Size.Height)
	if area > e.limits.MaxPixelArea {
		return nil, "", conversionFailedErr(
			fmt.Sprintf("image too large: %d pixels (max %d)", area, e.limits.MaxPixelArea), "", nil)
	}

	// Icons keep PNG only when they actually carry alpha; opaque sources
	// always take the smaller JPEG encoding.
	target := targetFor(token)
	if target == TargetPNG && !meta.Alpha {
		target = TargetJPEG
	}

	opts := bimg.Options{
		StripMetadata: e.encode.StripMetadata,
		Enlarge:       false,
	}
	if target == TargetPNG {
		opts.Type = bimg.PNG
		opts.Compression = e.encode.PNGCompression
	} else {
		opts.Type = bimg.JPEG
		opts.Quality = e.encode.JPEGQuality
		if meta.Alpha {
			// JPEG has no alpha channel; flatten onto white.
			opts.Background = bimg.Color{R: 255, G: 255, B: 255}
		}
	}
	if w, h, scaled := fitWithin(meta.Size.Width, meta.Size.Height, e.maxDimension); scaled {
		opts.Width = w
		opts.Height = h
	}

	start := time.Now()
	out, err := bimg.NewImage(data).Process(opts)
	if err != nil {
		return nil, "", conversionFailedErr("image conversion failed", err.Error(), err)
	}
	if len(out) == 0 {
		return nil, "", conversionFailedErr("libvips produced no output", "", nil)
	}

	e.logger.Debug("converted via libvips",
		slog.String("format", string(token)),
		slog.String("target", string(target)),
		slog.Int("width", meta.Size.Width),
		slog.Int("height", meta.Size.Height),
		slog.Int("input_bytes", len(data)),
		slog.Int("output_bytes", len(out)),
		slog.Duration("duration", time.Since(start)),
	)
	return out, target, nil
}

// fitWithin scales (w, h) down to fit inside a max-by-max square while
// preserving aspect ratio. scaled is false when the source already fits.
func fitWithin(w, h, max int) (int, int, bool) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h, false
	}
	if w >= h {
		scaled := h * max / w
		if scaled < 1 {
			scaled = 1
		}
		return max, scaled, true
	}
	scaled := w * max / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, max, true
}

var _ RasterEngine = (*VipsEngine)(nil)
