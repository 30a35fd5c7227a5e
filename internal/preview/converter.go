package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Options configures a Converter. Zero values fall back to the package
// defaults.
type Options struct {
	Limits       ResourceLimits
	Encode       EncodeOptions
	MaxDimension int
	// Prefer pins preprocessing to one tool ("imagemagick",
	// "graphicsmagick"); "" selects automatically.
	Prefer string
	Logger *slog.Logger
}

// Result is a successful conversion. Bytes is always a complete encoded
// image; partial output never escapes the pipeline.
type Result struct {
	Bytes    []byte
	MIME     string
	Engine   string
	Duration time.Duration
}

// Converter is the pipeline facade and the single error-translation
// boundary: every failure it returns matches exactly one of ErrInvalidInput,
// ErrUnsupportedFormat, ErrConversionFailed or ErrTimeout via errors.Is.
type Converter struct {
	engine   RasterEngine
	registry *Registry
	limits   ResourceLimits
	logger   *slog.Logger
}

// New builds a Converter with the libvips engine and the default
// preprocessor registry.
func New(opts Options) *Converter {
	if opts.Limits == (ResourceLimits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.Encode == (EncodeOptions{}) {
		opts.Encode = DefaultEncodeOptions()
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return NewWith(
		NewVipsEngine(opts.Limits, opts.Encode, opts.MaxDimension, opts.Logger),
		NewDefaultRegistry(opts.Limits, opts.Encode, opts.Prefer, opts.Logger),
		opts.Limits,
		opts.Logger,
	)
}

// NewWith wires a Converter from explicit parts.
func NewWith(engine RasterEngine, registry *Registry, limits ResourceLimits, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		engine:   engine,
		registry: registry,
		limits:   limits,
		logger:   logger.With(slog.String("component", "converter")),
	}
}

// PreprocessorStatus probes the registered external tools for diagnostics.
func (c *Converter) PreprocessorStatus(ctx context.Context) []ToolStatus {
	return c.registry.Status(ctx)
}

// NeedsConversion reports whether Convert should be called for the filename.
func (c *Converter) NeedsConversion(filename string) bool {
	return NeedsConversion(filename)
}

// Convert normalizes one image to browser-ready bytes. Routing follows the
// filename token: preprocess-only formats go straight to the registry;
// native-pipeline formats run through libvips first and fall back to the
// registry once if the local libvips build cannot load them.
func (c *Converter) Convert(ctx context.Context, data []byte, filename string) (*Result, error) {
	start := time.Now()

	token := Token(filename)
	policy := classifyToken(token)

	if len(data) == 0 {
		return nil, c.fail(filename, start, invalidInputErr("empty input data"))
	}
	if int64(len(data)) > c.limits.MaxInputSize {
		return nil, c.fail(filename, start, invalidInputErr(
			fmt.Sprintf("input too large: %d bytes (max %d)", len(data), c.limits.MaxInputSize)))
	}
	if policy == PassThrough {
		return nil, c.fail(filename, start, invalidInputErr(
			fmt.Sprintf("format %q does not require conversion", token)))
	}

	var (
		out    []byte
		target TargetFormat
		engine string
		err    error
	)
	switch policy {
	case RequiresPreprocessing:
		out, target, engine, err = c.preprocess(ctx, data, filename, token)
	default:
		out, target, err = c.engine.Convert(ctx, data, token)
		engine = c.engine.Name()
		if err != nil && errors.Is(err, ErrUnsupportedFormat) {
			c.logger.Debug("native engine declined format, trying preprocessors",
				slog.String("file", filename),
				slog.String("format", string(token)))
			out, target, engine, err = c.preprocess(ctx, data, filename, token)
		}
	}
	if err != nil {
		return nil, c.fail(filename, start, err)
	}

	duration := time.Since(start)
	c.logger.Info("image converted",
		slog.String("file", filename),
		slog.String("engine", engine),
		slog.String("target", string(target)),
		slog.Int("input_bytes", len(data)),
		slog.Int("output_bytes", len(out)),
		slog.Duration("duration", duration),
	)
	return &Result{
		Bytes:    out,
		MIME:     target.MIME(),
		Engine:   engine,
		Duration: duration,
	}, nil
}

// preprocess resolves and runs an external tool. The native engine is never
// consulted afterwards: external tools emit final bytes or the conversion
// fails.
func (c *Converter) preprocess(ctx context.Context, data []byte, filename string, token FormatToken) ([]byte, TargetFormat, string, error) {
	p, err := c.registry.Resolve(ctx, token)
	if err != nil {
		return nil, "", "", err
	}
	target := targetFor(token)
	out, err := p.Convert(ctx, data, filename, target)
	if err != nil {
		return nil, "", p.Name(), err
	}
	return out, target, p.Name(), nil
}

// fail logs the failure with its internal detail and returns the error
// normalized to the public taxonomy. Detail (tool stderr, engine messages)
// stays in the log; the returned error carries the safe message only.
func (c *Converter) fail(filename string, start time.Time, err error) error {
	err = normalizeErr(err)

	attrs := []any{
		slog.String("file", filename),
		slog.String("error", err.Error()),
		slog.Duration("duration", time.Since(start)),
	}
	var convErr *ConvertError
	if errors.As(err, &convErr) && convErr.Detail() != "" {
		attrs = append(attrs, slog.String("detail", convErr.Detail()))
	}
	c.logger.Warn("image conversion failed", attrs...)
	return err
}

// normalizeErr maps internal errors onto the four public kinds. The registry
// "installed but nothing available" case surfaces as ErrUnsupportedFormat:
// from the client's view the host simply cannot convert that format.
func normalizeErr(err error) error {
	switch {
	case errors.Is(err, ErrNoPreprocessor):
		var detail string
		var convErr *ConvertError
		if errors.As(err, &convErr) {
			detail = convErr.Detail()
		}
		return newConvertError(ErrUnsupportedFormat, err.Error(), detail, err)
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrConversionFailed),
		errors.Is(err, ErrTimeout):
		return err
	default:
		return conversionFailedErr("image conversion failed", err.Error(), err)
	}
}
