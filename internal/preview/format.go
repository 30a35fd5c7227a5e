// Package preview implements the image normalization pipeline: it turns
// arbitrary on-share raster files (TIFF, HEIC, BMP, ICO, PSD, ...) into
// browser-displayable JPEG or PNG bytes under strict resource bounds.
//
// The pipeline has two tiers. Formats libvips can load stream through the
// native engine (see VipsEngine); formats it cannot are handed to an external
// preprocessor (ImageMagick or GraphicsMagick) that emits final browser-ready
// bytes in a single subprocess call. Converter is the only entry point callers
// should use.
package preview

import (
	"path/filepath"
	"strings"
)

// FormatToken is a normalized file extension: lowercase, no leading dot.
// It is derived from the filename only, never from content sniffing.
type FormatToken string

// ConversionPolicy describes what the pipeline does with a format.
type ConversionPolicy int

const (
	// PassThrough means the browser renders the format natively; the
	// pipeline never touches these files. Unknown tokens classify here.
	PassThrough ConversionPolicy = iota
	// NativePipeline means the libvips engine converts the file directly.
	NativePipeline
	// RequiresPreprocessing means an external tool must produce the final
	// browser-ready bytes; the native engine is not involved.
	RequiresPreprocessing
)

// String returns the policy name for logging.
func (p ConversionPolicy) String() string {
	switch p {
	case NativePipeline:
		return "native"
	case RequiresPreprocessing:
		return "preprocess"
	default:
		return "passthrough"
	}
}

// TargetFormat is the browser-ready output encoding of a conversion.
type TargetFormat string

const (
	TargetJPEG TargetFormat = "jpeg"
	TargetPNG  TargetFormat = "png"
)

// MIME returns the MIME type for the target format.
func (t TargetFormat) MIME() string {
	if t == TargetPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// browserNative lists formats modern browsers display without conversion.
var browserNative = map[FormatToken]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"avif": "image/avif",
}

// nativePipeline lists formats the conversion pipeline owns. The libvips
// engine is tried first; formats its build cannot load fall back to the
// preprocessor registry (see Converter.Convert).
var nativePipeline = map[FormatToken]string{
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"heic": "image/heic",
	"heif": "image/heif",
	"bmp":  "image/bmp",
	"dib":  "image/bmp",
	"ico":  "image/vnd.microsoft.icon",
	"cur":  "image/x-win-bitmap",
	"pcx":  "image/x-pcx",
	"tga":  "image/x-tga",
	"ppm":  "image/x-portable-pixmap",
	"pgm":  "image/x-portable-graymap",
	"pbm":  "image/x-portable-bitmap",
	"pnm":  "image/x-portable-anymap",
	"xbm":  "image/x-xbitmap",
	"xpm":  "image/x-xpixmap",
	"jp2":  "image/jp2",
	"j2k":  "image/jp2",
	"jpc":  "image/jp2",
	"exr":  "image/x-exr",
	"hdr":  "image/vnd.radiance",
}

// preprocessOnly lists formats libvips never loads; they go straight to the
// preprocessor registry.
var preprocessOnly = map[FormatToken]string{
	"psd": "image/vnd.adobe.photoshop",
	"psb": "image/vnd.adobe.photoshop",
	"eps": "application/postscript",
	"ai":  "application/postscript",
}

// alphaTargets are formats whose converted output must stay PNG so that
// transparency survives (icons commonly carry alpha).
var alphaTargets = map[FormatToken]bool{
	"ico": true,
	"cur": true,
}

// Token extracts the FormatToken from a filename. Files without an extension
// yield the empty token.
func Token(filename string) FormatToken {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return NormalizeToken(ext)
}

// NormalizeToken lowercases a token and strips any leading dot, so "PSD",
// ".psd" and "psd" are equivalent registry keys.
func NormalizeToken(s string) FormatToken {
	return FormatToken(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
}

// Classify maps a filename to its conversion policy. It is a total function:
// it never fails, never inspects file content, and resolves unknown
// extensions to PassThrough.
func Classify(filename string) ConversionPolicy {
	return classifyToken(Token(filename))
}

func classifyToken(token FormatToken) ConversionPolicy {
	switch {
	case token == "":
		return PassThrough
	case nativePipeline[token] != "":
		return NativePipeline
	case preprocessOnly[token] != "":
		return RequiresPreprocessing
	default:
		return PassThrough
	}
}

// NeedsConversion reports whether the file must be routed through the
// pipeline before a browser can display it. Callers stream files unchanged
// when this returns false.
func NeedsConversion(filename string) bool {
	return Classify(filename) != PassThrough
}

// IsImage reports whether the filename is any image format the pipeline
// knows about, converted or not.
func IsImage(filename string) bool {
	token := Token(filename)
	if token == "" {
		return false
	}
	return browserNative[token] != "" || nativePipeline[token] != "" || preprocessOnly[token] != ""
}

// SourceMIME returns the MIME type of the unconverted file, or
// "application/octet-stream" when the extension is unknown.
func SourceMIME(filename string) string {
	token := Token(filename)
	if m := browserNative[token]; m != "" {
		return m
	}
	if m := nativePipeline[token]; m != "" {
		return m
	}
	if m := preprocessOnly[token]; m != "" {
		return m
	}
	return "application/octet-stream"
}

// targetFor returns the browser format a converted token is encoded to.
// Icon formats keep PNG so alpha survives; everything else targets JPEG.
func targetFor(token FormatToken) TargetFormat {
	if alphaTargets[token] {
		return TargetPNG
	}
	return TargetJPEG
}

// ConvertibleTokens returns all tokens the pipeline converts, sorted order
// not guaranteed. Used by the formats API and tests.
func ConvertibleTokens() []FormatToken {
	tokens := make([]FormatToken, 0, len(nativePipeline)+len(preprocessOnly))
	for t := range nativePipeline {
		tokens = append(tokens, t)
	}
	for t := range preprocessOnly {
		tokens = append(tokens, t)
	}
	return tokens
}

// BrowserNativeTokens returns all tokens browsers render without help.
func BrowserNativeTokens() []FormatToken {
	tokens := make([]FormatToken, 0, len(browserNative))
	for t := range browserNative {
		tokens = append(tokens, t)
	}
	return tokens
}
