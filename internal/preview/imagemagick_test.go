package preview

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// makeBMP encodes a solid-color BMP fixture for the external tools.
func makeBMP(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 60, G: 120, B: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, img))
	return buf.Bytes()
}

// makeAlphaICO builds a 2x2 32-bit ICO by hand: the bottom row is opaque
// red, the top row fully transparent. The AND mask is zeroed so the alpha
// channel governs.
func makeAlphaICO(t *testing.T) []byte {
	t.Helper()
	const w, h = 2, 2
	const xorSize = w * h * 4
	const andSize = h * 4 // 1bpp rows padded to 32 bits

	var buf bytes.Buffer
	// ICONDIR: reserved, type 1 (icon), one image.
	buf.Write([]byte{0, 0, 1, 0, 1, 0})

	entry := make([]byte, 16)
	entry[0] = w
	entry[1] = h
	binary.LittleEndian.PutUint16(entry[4:], 1)  // planes
	binary.LittleEndian.PutUint16(entry[6:], 32) // bits per pixel
	binary.LittleEndian.PutUint32(entry[8:], 40+xorSize+andSize)
	binary.LittleEndian.PutUint32(entry[12:], 22) // data offset
	buf.Write(entry)

	// BITMAPINFOHEADER; height doubles to cover the XOR and AND blocks.
	hdr := make([]byte, 40)
	binary.LittleEndian.PutUint32(hdr[0:], 40)
	binary.LittleEndian.PutUint32(hdr[4:], w)
	binary.LittleEndian.PutUint32(hdr[8:], h*2)
	binary.LittleEndian.PutUint16(hdr[12:], 1)
	binary.LittleEndian.PutUint16(hdr[14:], 32)
	binary.LittleEndian.PutUint32(hdr[20:], xorSize+andSize)
	buf.Write(hdr)

	// XOR block, BGRA rows bottom-up.
	buf.Write([]byte{
		0, 0, 255, 255, 0, 0, 255, 255,
		0, 0, 0, 0, 0, 0, 0, 0,
	})
	buf.Write(make([]byte, andSize))
	return buf.Bytes()
}

// hasTransparentPixel reports whether any pixel is not fully opaque.
func hasTransparentPixel(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0xffff {
				return true
			}
		}
	}
	return false
}

// skipIfNoImageMagick skips when neither magick nor convert probes available.
func skipIfNoImageMagick(t *testing.T, p *ImageMagick) {
	t.Helper()
	if !p.Available(context.Background()) {
		t.Skip("imagemagick not installed, skipping")
	}
}

func skipIfNoGraphicsMagick(t *testing.T, p *GraphicsMagick) {
	t.Helper()
	if !p.Available(context.Background()) {
		t.Skip("graphicsmagick not installed, skipping")
	}
}

func TestImageMagickSupports(t *testing.T) {
	p := NewImageMagick(DefaultLimits(), DefaultEncodeOptions(), nil)

	assert.True(t, p.Supports("psd"))
	assert.True(t, p.Supports("PSD"))
	assert.True(t, p.Supports("eps"))
	assert.True(t, p.Supports("bmp"))
	assert.True(t, p.Supports("exr"))
	assert.False(t, p.Supports("jpg"))
	assert.False(t, p.Supports("txt"))
}

func TestGraphicsMagickSupports(t *testing.T) {
	p := NewGraphicsMagick(DefaultLimits(), DefaultEncodeOptions(), nil)

	assert.True(t, p.Supports("psd"))
	assert.True(t, p.Supports("bmp"))
	assert.True(t, p.Supports("tiff"))
	// Common gm builds have no delegates for these.
	assert.False(t, p.Supports("heic"))
	assert.False(t, p.Supports("exr"))
	assert.False(t, p.Supports("eps"))
	assert.False(t, p.Supports("jpg"))
}

func TestImageMagickRejectsBadInputBeforeRunning(t *testing.T) {
	p := NewImageMagick(DefaultLimits(), DefaultEncodeOptions(), nil)

	_, err := p.Convert(context.Background(), nil, "a.psd", TargetJPEG)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = p.Convert(context.Background(), []byte("x"), "a.txt", TargetJPEG)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestImageMagickConvertsBMP(t *testing.T) {
	p := NewImageMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
	skipIfNoImageMagick(t, p)

	data := makeBMP(t, 20, 10)
	out, err := p.Convert(context.Background(), data, "pixels.bmp", TargetJPEG)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())
}

func TestImageMagickCorruptInputFails(t *testing.T) {
	p := NewImageMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
	skipIfNoImageMagick(t, p)

	_, err := p.Convert(context.Background(), []byte("garbage bytes"), "broken.bmp", TargetJPEG)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConversionFailed))
}

func TestGraphicsMagickConvertsBMP(t *testing.T) {
	p := NewGraphicsMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
	skipIfNoGraphicsMagick(t, p)

	data := makeBMP(t, 20, 10)
	out, err := p.Convert(context.Background(), data, "pixels.bmp", TargetJPEG)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestImageMagickAlphaIconStaysTransparent(t *testing.T) {
	p := NewImageMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
	skipIfNoImageMagick(t, p)

	out, err := p.Convert(context.Background(), makeAlphaICO(t), "pin.ico", TargetPNG)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	assert.True(t, hasTransparentPixel(img), "flattening must not discard the alpha channel")
}

func TestGraphicsMagickAlphaIconStaysTransparent(t *testing.T) {
	p := NewGraphicsMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
	skipIfNoGraphicsMagick(t, p)

	out, err := p.Convert(context.Background(), makeAlphaICO(t), "pin.ico", TargetPNG)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	assert.True(t, hasTransparentPixel(img), "flattening must not discard the alpha channel")
}

func TestImageMagickAvailabilityIsMemoized(t *testing.T) {
	p := NewImageMagick(DefaultLimits(), DefaultEncodeOptions(), nil)

	first := p.Available(context.Background())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.Available(context.Background()))
	}
}

func TestAvailabilityProbeIgnoresRequestCancellation(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	t.Run("imagemagick", func(t *testing.T) {
		control := NewImageMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
		want := control.Available(context.Background())

		// A cancelled request context on the first probe must not pin a
		// false negative for the process lifetime.
		fresh := NewImageMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
		assert.Equal(t, want, fresh.Available(cancelled))
		assert.Equal(t, want, fresh.Available(context.Background()))
	})

	t.Run("graphicsmagick", func(t *testing.T) {
		control := NewGraphicsMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
		want := control.Available(context.Background())

		fresh := NewGraphicsMagick(DefaultLimits(), DefaultEncodeOptions(), nil)
		assert.Equal(t, want, fresh.Available(cancelled))
		assert.Equal(t, want, fresh.Available(context.Background()))
	})
}
