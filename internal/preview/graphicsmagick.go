package preview

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sambee/sambee/internal/util"
)

// graphicsMagickFormats is the subset GraphicsMagick handles. It lacks
// delegates for HEIC, OpenEXR, JPEG 2000 and PostScript in common builds, so
// those tokens stay with ImageMagick.
var graphicsMagickFormats = tokenSet(
	"psd", "psb",
	"tif", "tiff", "bmp", "dib", "ico", "cur",
	"pcx", "tga", "ppm", "pgm", "pbm", "pnm", "xbm", "xpm",
)

// GraphicsMagick converts via `gm convert`. It is a lighter-weight
// alternative for hosts without ImageMagick.
type GraphicsMagick struct {
	limits ResourceLimits
	encode EncodeOptions
	logger *slog.Logger

	mu        sync.Mutex
	probed    bool
	available bool
	binary    string
}

// NewGraphicsMagick creates the GraphicsMagick preprocessor.
func NewGraphicsMagick(limits ResourceLimits, encode EncodeOptions, logger *slog.Logger) *GraphicsMagick {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphicsMagick{limits: limits, encode: encode, logger: logger.With(slog.String("component", "graphicsmagick"))}
}

// Name implements Preprocessor.
func (p *GraphicsMagick) Name() string { return "graphicsmagick" }

// Supports implements Preprocessor.
func (p *GraphicsMagick) Supports(token FormatToken) bool {
	return graphicsMagickFormats[NormalizeToken(string(token))]
}

// Available probes `gm version` once and memoizes the result. The probe runs
// detached from the caller's context so a cancelled request cannot pin a
// false negative for the process lifetime.
func (p *GraphicsMagick) Available(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.probed {
		return p.available
	}
	p.probed = true

	path, err := util.FindBinary("gm", "SAMBEE_GM_BINARY")
	if err != nil {
		return false
	}
	if probeTool(context.Background(), p.limits.ProbeTimeout, path, "version") {
		p.binary = path
		p.available = true
	}
	return p.available
}

// Convert pipes the input through `gm convert` and returns final encoded
// bytes. Argument shape mirrors the ImageMagick adapter; gm takes the
// subcommand first.
func (p *GraphicsMagick) Convert(ctx context.Context, data []byte, filename string, target TargetFormat) ([]byte, error) {
	if err := validateInput(data, filename, graphicsMagickFormats, p.limits); err != nil {
		return nil, err
	}
	if !p.Available(ctx) {
		return nil, conversionFailedErr("graphicsmagick is not installed", "", nil)
	}

	token := Token(filename)
	args := []string{"convert", string(token) + ":-[0]"}
	if target == TargetPNG {
		args = append(args, "-background", "none")
	}
	args = append(args, "-flatten")
	if target == TargetPNG {
		args = append(args, "-quality", strconv.Itoa(p.encode.PNGCompression*10+2))
	} else {
		args = append(args, "-quality", strconv.Itoa(p.encode.JPEGQuality))
	}
	if p.encode.StripMetadata {
		args = append(args, "-strip")
	}
	args = append(args, string(target)+":-")

	start := time.Now()
	out, stderr, err := runTool(ctx, p.limits.SubprocessTimeout, data, p.binary, args...)
	if err != nil {
		var convErr *ConvertError
		if errors.As(err, &convErr) {
			return nil, convErr
		}
		return nil, conversionFailedErr("graphicsmagick conversion failed", stderr, err)
	}
	if len(out) == 0 {
		return nil, conversionFailedErr("graphicsmagick produced no output", stderr, nil)
	}

	p.logger.Debug("converted via graphicsmagick",
		slog.String("file", filename),
		slog.String("target", string(target)),
		slog.Int("input_bytes", len(data)),
		slog.Int("output_bytes", len(out)),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}

var _ Preprocessor = (*GraphicsMagick)(nil)
