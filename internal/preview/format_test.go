package preview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     FormatToken
	}{
		{"simple", "photo.tiff", "tiff"},
		{"uppercase", "SCAN.TIF", "tif"},
		{"mixed case", "Design.Psd", "psd"},
		{"no extension", "README", ""},
		{"trailing dot", "weird.", ""},
		{"multiple dots", "archive.tar.bmp", "bmp"},
		{"hidden file with extension", ".config.ico", "ico"},
		{"path included", "/share/photos/img.HEIC", "heic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Token(tt.filename))
		})
	}
}

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, FormatToken("psd"), NormalizeToken("PSD"))
	assert.Equal(t, FormatToken("psd"), NormalizeToken(".psd"))
	assert.Equal(t, FormatToken("psd"), NormalizeToken("  .PSD "))
	assert.Equal(t, FormatToken(""), NormalizeToken(""))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		filename string
		want     ConversionPolicy
	}{
		{"a.jpg", PassThrough},
		{"a.jpeg", PassThrough},
		{"a.png", PassThrough},
		{"a.gif", PassThrough},
		{"a.webp", PassThrough},
		{"a.svg", PassThrough},
		{"a.avif", PassThrough},

		{"a.tif", NativePipeline},
		{"a.tiff", NativePipeline},
		{"a.heic", NativePipeline},
		{"a.heif", NativePipeline},
		{"a.bmp", NativePipeline},
		{"a.ico", NativePipeline},
		{"a.cur", NativePipeline},
		{"a.pcx", NativePipeline},
		{"a.tga", NativePipeline},
		{"a.ppm", NativePipeline},
		{"a.exr", NativePipeline},
		{"a.jp2", NativePipeline},

		{"a.psd", RequiresPreprocessing},
		{"a.psb", RequiresPreprocessing},
		{"a.eps", RequiresPreprocessing},
		{"a.ai", RequiresPreprocessing},

		// Total function: anything unknown passes through untouched.
		{"a.txt", PassThrough},
		{"a.mp4", PassThrough},
		{"a.exe", PassThrough},
		{"noext", PassThrough},
		{"", PassThrough},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.filename), "filename %q", tt.filename)
		})
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, Classify("a.psd"), Classify("A.PSD"))
	assert.Equal(t, Classify("a.tiff"), Classify("a.TIFF"))
}

func TestNeedsConversion(t *testing.T) {
	assert.False(t, NeedsConversion("photo.jpg"))
	assert.False(t, NeedsConversion("notes.txt"))
	assert.True(t, NeedsConversion("scan.tiff"))
	assert.True(t, NeedsConversion("design.psd"))
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("a.png"))
	assert.True(t, IsImage("a.tiff"))
	assert.True(t, IsImage("a.psd"))
	assert.False(t, IsImage("a.txt"))
	assert.False(t, IsImage("noext"))
}

func TestSourceMIME(t *testing.T) {
	assert.Equal(t, "image/jpeg", SourceMIME("a.jpg"))
	assert.Equal(t, "image/tiff", SourceMIME("a.tiff"))
	assert.Equal(t, "image/vnd.adobe.photoshop", SourceMIME("a.psd"))
	assert.Equal(t, "application/octet-stream", SourceMIME("a.xyz"))
}

func TestTargetFor(t *testing.T) {
	assert.Equal(t, TargetPNG, targetFor("ico"))
	assert.Equal(t, TargetPNG, targetFor("cur"))
	assert.Equal(t, TargetJPEG, targetFor("tiff"))
	assert.Equal(t, TargetJPEG, targetFor("psd"))
}

func TestTargetFormatMIME(t *testing.T) {
	assert.Equal(t, "image/jpeg", TargetJPEG.MIME())
	assert.Equal(t, "image/png", TargetPNG.MIME())
}

func TestConvertibleTokensCoverBothTiers(t *testing.T) {
	tokens := ConvertibleTokens()
	require.NotEmpty(t, tokens)

	set := make(map[FormatToken]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	for _, tok := range []FormatToken{"tiff", "heic", "bmp", "ico", "psd", "eps"} {
		assert.True(t, set[tok], "expected %q in convertible tokens", tok)
	}
	for _, tok := range []FormatToken{"jpg", "png", "gif"} {
		assert.False(t, set[tok], "browser-native %q must not need conversion", tok)
	}
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "passthrough", PassThrough.String())
	assert.Equal(t, "native", NativePipeline.String())
	assert.Equal(t, "preprocess", RequiresPreprocessing.String())
}
