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

// imageMagickFormats is every token the ImageMagick adapter accepts. It
// covers the preprocess-only formats plus the native-pipeline formats, since
// ImageMagick doubles as the fallback when the local libvips build lacks a
// loader (plain builds cannot read BMP, ICO, PCX and friends).
var imageMagickFormats = tokenSet(
	"psd", "psb", "eps", "ai",
	"tif", "tiff", "heic", "heif", "bmp", "dib", "ico", "cur",
	"pcx", "tga", "ppm", "pgm", "pbm", "pnm", "xbm", "xpm",
	"jp2", "j2k", "jpc", "exr", "hdr",
)

func tokenSet(tokens ...FormatToken) map[FormatToken]bool {
	set := make(map[FormatToken]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// ImageMagick converts via the `magick` (IM7) or `convert` (IM6) binary.
// It is the preferred preprocessor for Photoshop documents: its PSD delegate
// handles adjustment layers and smart objects better than GraphicsMagick.
type ImageMagick struct {
	limits ResourceLimits
	encode EncodeOptions
	logger *slog.Logger

	// Tool availability is environment-fixed at process start; probe once
	// and reuse under concurrent reads.
	mu        sync.Mutex
	probed    bool
	available bool
	binary    string
}

// NewImageMagick creates the ImageMagick preprocessor.
func NewImageMagick(limits ResourceLimits, encode EncodeOptions, logger *slog.Logger) *ImageMagick {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageMagick{limits: limits, encode: encode, logger: logger.With(slog.String("component", "imagemagick"))}
}

// Name implements Preprocessor.
func (p *ImageMagick) Name() string { return "imagemagick" }

// Supports implements Preprocessor.
func (p *ImageMagick) Supports(token FormatToken) bool {
	return imageMagickFormats[NormalizeToken(string(token))]
}

// Available probes for the IM7 `magick` binary first, then the IM6
// `convert` binary. The result is memoized for the process lifetime, so the
// probe runs detached from the caller's context: a cancelled request must
// not pin a false negative.
func (p *ImageMagick) Available(_ context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.probed {
		return p.available
	}
	p.probed = true

	for _, candidate := range []struct {
		name   string
		envVar string
	}{
		{"magick", "SAMBEE_MAGICK_BINARY"},
		{"convert", "SAMBEE_CONVERT_BINARY"},
	} {
		path, err := util.FindBinary(candidate.name, candidate.envVar)
		if err != nil {
			continue
		}
		if probeTool(context.Background(), p.limits.ProbeTimeout, path, "--version") {
			p.binary = path
			p.available = true
			break
		}
	}
	return p.available
}

// Convert pipes the input through ImageMagick and returns final encoded
// bytes. The `{token}:-[0]` input spec forces format detection from the
// token (stdin has no filename to sniff) and selects the flattened
// composite of layered documents.
func (p *ImageMagick) Convert(ctx context.Context, data []byte, filename string, target TargetFormat) ([]byte, error) {
	if err := validateInput(data, filename, imageMagickFormats, p.limits); err != nil {
		return nil, err
	}
	if !p.Available(ctx) {
		return nil, conversionFailedErr("imagemagick is not installed", "", nil)
	}

	token := Token(filename)
	args := []string{string(token) + ":-[0]"}
	// Flatten composites onto the background color. PNG keeps transparency,
	// so it flattens onto "none"; JPEG has no alpha and takes the default
	// white.
	if target == TargetPNG {
		args = append(args, "-background", "none")
	}
	args = append(args, "-flatten")
	args = append(args, p.encodeArgs(target)...)
	args = append(args, string(target)+":-")

	start := time.Now()
	out, stderr, err := runTool(ctx, p.limits.SubprocessTimeout, data, p.binary, args...)
	if err != nil {
		var convErr *ConvertError
		if errors.As(err, &convErr) {
			return nil, convErr
		}
		return nil, conversionFailedErr("imagemagick conversion failed", stderr, err)
	}
	if len(out) == 0 {
		return nil, conversionFailedErr("imagemagick produced no output", stderr, nil)
	}

	p.logger.Debug("converted via imagemagick",
		slog.String("file", filename),
		slog.String("target", string(target)),
		slog.Int("input_bytes", len(data)),
		slog.Int("output_bytes", len(out)),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// encodeArgs builds the shared quality/metadata arguments. ImageMagick
// encodes PNG "quality" as zlib level*10 + filter type.
func (p *ImageMagick) encodeArgs(target TargetFormat) []string {
	var args []string
	if target == TargetPNG {
		args = append(args, "-quality", strconv.Itoa(p.encode.PNGCompression*10+2))
	} else {
		args = append(args, "-quality", strconv.Itoa(p.encode.JPEGQuality))
	}
	if p.encode.StripMetadata {
		args = append(args, "-strip")
	}
	return args
}

var _ Preprocessor = (*ImageMagick)(nil)
