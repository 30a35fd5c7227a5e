package preview

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

// makeTIFF encodes a solid-color TIFF fixture.
func makeTIFF(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, nil))
	return buf.Bytes()
}

// makePNG encodes a PNG fixture; alpha below 255 keeps the alpha channel in
// the encoded file.
func makePNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestEngine(maxDimension int) *VipsEngine {
	return NewVipsEngine(DefaultLimits(), DefaultEncodeOptions(), maxDimension, nil)
}

func TestVipsEngineConvertsTIFFToJPEG(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	data := makeTIFF(t, 100, 80, color.RGBA{R: 200, G: 40, B: 40, A: 255})

	out, target, err := e.Convert(context.Background(), data, "tiff")
	require.NoError(t, err)
	assert.Equal(t, TargetJPEG, target)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestVipsEngineRepeatConversionIsByteIdentical(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	data := makeTIFF(t, 100, 80, color.RGBA{R: 200, G: 40, B: 40, A: 255})

	first, firstTarget, err := e.Convert(context.Background(), data, "tiff")
	require.NoError(t, err)
	second, secondTarget, err := e.Convert(context.Background(), data, "tiff")
	require.NoError(t, err)

	assert.Equal(t, firstTarget, secondTarget)
	assert.Equal(t, first, second)
}

func TestVipsEngineDownscalesPreservingAspect(t *testing.T) {
	e := newTestEngine(64)
	data := makeTIFF(t, 200, 100, color.RGBA{R: 10, G: 10, B: 10, A: 255})

	out, _, err := e.Convert(context.Background(), data, "tiff")
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestVipsEngineDoesNotEnlarge(t *testing.T) {
	e := newTestEngine(4096)
	data := makeTIFF(t, 20, 10, color.RGBA{A: 255})

	out, _, err := e.Convert(context.Background(), data, "tiff")
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestVipsEngineFlattensAlphaOntoWhite(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	// Fully transparent source; flattening must yield white, not black.
	data := makePNG(t, 32, 32, color.NRGBA{R: 0, G: 0, B: 0, A: 0})

	out, target, err := e.Convert(context.Background(), data, "tiff")
	require.NoError(t, err)
	require.Equal(t, TargetJPEG, target)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, g, b, _ := img.At(16, 16).RGBA()
	assert.Greater(t, r>>8, uint32(240), "red channel should be near white")
	assert.Greater(t, g>>8, uint32(240), "green channel should be near white")
	assert.Greater(t, b>>8, uint32(240), "blue channel should be near white")
}

func TestVipsEngineIconWithAlphaKeepsPNG(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	data := makePNG(t, 16, 16, color.NRGBA{R: 255, A: 128})

	out, target, err := e.Convert(context.Background(), data, "ico")
	require.NoError(t, err)
	assert.Equal(t, TargetPNG, target)

	_, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
}

func TestVipsEngineOpaqueIconDemotesToJPEG(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	// Go's png encoder drops the alpha channel for fully opaque images.
	data := makePNG(t, 16, 16, color.NRGBA{R: 255, A: 255})

	_, target, err := e.Convert(context.Background(), data, "ico")
	require.NoError(t, err)
	assert.Equal(t, TargetJPEG, target)
}

func TestVipsEngineRejectsEmptyInput(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	_, _, err := e.Convert(context.Background(), nil, "tiff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestVipsEngineRejectsOversizeInput(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxInputSize = 64
	e := NewVipsEngine(limits, DefaultEncodeOptions(), DefaultMaxDimension, nil)

	_, _, err := e.Convert(context.Background(), make([]byte, 128), "tiff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestVipsEngineRejectsExcessivePixelArea(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxPixelArea = 1000
	e := NewVipsEngine(limits, DefaultEncodeOptions(), DefaultMaxDimension, nil)

	data := makeTIFF(t, 100, 80, color.RGBA{A: 255})
	_, _, err := e.Convert(context.Background(), data, "tiff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversionFailed), "decode-bomb guard rejects before decoding")
}

func TestVipsEngineUnknownBytesAreUnsupported(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	_, _, err := e.Convert(context.Background(), []byte("this is not an image at all"), "pcx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat),
		"unloadable bytes must signal the preprocessor fallback, got %v", err)
}

func TestVipsEngineCorruptImageFailsConversion(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	// Valid little-endian TIFF magic followed by garbage.
	data := append([]byte("II*\x00"), bytes.Repeat([]byte{0xde, 0xad}, 64)...)

	_, _, err := e.Convert(context.Background(), data, "tiff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversionFailed))
}

func TestVipsEngineCancelledContext(t *testing.T) {
	e := newTestEngine(DefaultMaxDimension)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := e.Convert(ctx, makeTIFF(t, 4, 4, color.RGBA{A: 255}), "tiff")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
		wantScaled   bool
	}{
		{"already fits", 100, 80, 4096, 100, 80, false},
		{"exact fit", 4096, 4096, 4096, 4096, 4096, false},
		{"wide landscape", 6000, 4000, 4096, 4096, 2730, true},
		{"tall portrait", 4000, 6000, 4096, 2730, 4096, true},
		{"square oversize", 8192, 8192, 4096, 4096, 4096, true},
		{"extreme panorama keeps min 1", 100000, 10, 4096, 4096, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, scaled := fitWithin(tt.w, tt.h, tt.max)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantScaled, scaled)
		})
	}
}

func TestVipsVersionReported(t *testing.T) {
	assert.NotEmpty(t, VipsVersion())
}
