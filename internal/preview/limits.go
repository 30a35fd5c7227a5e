package preview

import (
	"fmt"
	"time"
)

// Default resource bounds. Every conversion path honors the same limits
// regardless of which engine handles the request.
const (
	// DefaultMaxInputSize bounds the accepted input buffer (100 MiB).
	DefaultMaxInputSize = 100 * 1024 * 1024
	// DefaultMaxPixelArea bounds the decoded frame before resizing
	// (100 megapixels); it caps decode cost independent of file size.
	DefaultMaxPixelArea = 100_000_000
	// DefaultSubprocessTimeout is the wall-clock bound for one external
	// preprocessor invocation.
	DefaultSubprocessTimeout = 30 * time.Second
	// DefaultProbeTimeout bounds the availability probe of an external
	// tool (a version-flag invocation).
	DefaultProbeTimeout = 5 * time.Second

	// DefaultJPEGQuality matches the web-delivery sweet spot used across
	// both engines.
	DefaultJPEGQuality = 85
	// DefaultPNGCompression is zlib level 6, balancing speed and size.
	DefaultPNGCompression = 6
	// DefaultMaxDimension caps either output dimension; larger sources
	// are downscaled preserving aspect ratio.
	DefaultMaxDimension = 4096
)

// ResourceLimits is the process-wide bounding configuration. It is read-only
// after startup and shared by every engine and preprocessor.
type ResourceLimits struct {
	MaxInputSize      int64
	MaxPixelArea      int64
	SubprocessTimeout time.Duration
	ProbeTimeout      time.Duration
}

// DefaultLimits returns the standard resource bounds.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxInputSize:      DefaultMaxInputSize,
		MaxPixelArea:      DefaultMaxPixelArea,
		SubprocessTimeout: DefaultSubprocessTimeout,
		ProbeTimeout:      DefaultProbeTimeout,
	}
}

// Validate rejects limit sets that would disable a bound entirely.
func (l ResourceLimits) Validate() error {
	if l.MaxInputSize <= 0 {
		return fmt.Errorf("max input size must be positive, got %d", l.MaxInputSize)
	}
	if l.MaxPixelArea <= 0 {
		return fmt.Errorf("max pixel area must be positive, got %d", l.MaxPixelArea)
	}
	if l.SubprocessTimeout <= 0 {
		return fmt.Errorf("subprocess timeout must be positive, got %s", l.SubprocessTimeout)
	}
	if l.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", l.ProbeTimeout)
	}
	return nil
}

// EncodeOptions carries the output encoding settings shared by the native
// engine and the external preprocessors, so both tiers produce comparable
// output for the same configuration.
type EncodeOptions struct {
	// JPEGQuality is the 1-100 JPEG quality factor.
	JPEGQuality int
	// PNGCompression is the 0-9 zlib level for PNG output.
	PNGCompression int
	// StripMetadata removes EXIF/IPTC blocks from the output.
	StripMetadata bool
}

// DefaultEncodeOptions returns the web-delivery encoding defaults.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		JPEGQuality:    DefaultJPEGQuality,
		PNGCompression: DefaultPNGCompression,
		StripMetadata:  true,
	}
}
