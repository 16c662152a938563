package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

func TestDecodePNG(t *testing.T) {
	data := encodePNG(t, gradientImage(40, 20))

	c, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 40, c.Width())
	assert.Equal(t, 20, c.Height())
	assert.Equal(t, 40, c.RenderedWidth)
	assert.Equal(t, 20, c.RenderedHeight)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("definitivamente não é uma imagem"))
	var decodeErr *captcha.DecodeError
	require.True(t, errors.As(err, &decodeErr))

	_, err = Decode(nil)
	require.True(t, errors.As(err, &decodeErr))
	assert.ErrorIs(t, err, captcha.ErrEmptyImage)
}

func TestDecodeSourceDataURL(t *testing.T) {
	data := encodePNG(t, gradientImage(12, 8))
	src := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)

	c, err := DecodeSource(src)
	require.NoError(t, err)
	assert.Equal(t, 12, c.Width())

	c, err = DecodeSource(base64.StdEncoding.EncodeToString(data))
	require.NoError(t, err)
	assert.Equal(t, 8, c.Height())

	_, err = DecodeSource("data:image/png;base64,@@@")
	var decodeErr *captcha.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestRescaleToOwnSizeKeepsDimensions(t *testing.T) {
	c := New(gradientImage(33, 17))

	out, err := Rescale(c, c.RenderedWidth, c.RenderedHeight)
	require.NoError(t, err)
	assert.Equal(t, c.Width(), out.Width())
	assert.Equal(t, c.Height(), out.Height())
	assert.Equal(t, c.Image.Pix, out.Image.Pix)

	again, err := Rescale(out, out.RenderedWidth, out.RenderedHeight)
	require.NoError(t, err)
	assert.Equal(t, out.Width(), again.Width())
	assert.Equal(t, out.Height(), again.Height())
}

func TestRescaleChangesPixelsAndRendered(t *testing.T) {
	c := New(gradientImage(360, 140)).WithRendered(275, 107)

	out, err := Normalize(c)
	require.NoError(t, err)
	assert.Equal(t, 275, out.Width())
	assert.Equal(t, 107, out.Height())
	sx, sy := out.Scale()
	assert.Equal(t, 1.0, sx)
	assert.Equal(t, 1.0, sy)

	_, err = Rescale(c, 0, 10)
	assert.Error(t, err)
}

func TestToRendered(t *testing.T) {
	c := New(gradientImage(200, 100)).WithRendered(100, 50)
	p := c.ToRendered(80, 40)
	assert.InDelta(t, 40, p.X, 1e-9)
	assert.InDelta(t, 20, p.Y, 1e-9)
}

func TestFlattenAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})

	out := FlattenAlpha(New(img), nil)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, out.Image.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.Image.NRGBAAt(1, 0))
}

func TestCropClampsToBounds(t *testing.T) {
	c := New(gradientImage(50, 30)).WithRendered(100, 60)
	out := Crop(c, image.Rect(40, 20, 70, 45))
	assert.Equal(t, 10, out.Width())
	assert.Equal(t, 10, out.Height())
	assert.Equal(t, 20, out.RenderedWidth)
	assert.Equal(t, c.Image.NRGBAAt(40, 20), out.Image.NRGBAAt(0, 0))
}

func TestHSV(t *testing.T) {
	h, s, v := HSV(255, 0, 0)
	assert.InDelta(t, 0, h, 1e-9)
	assert.InDelta(t, 1, s, 1e-9)
	assert.InDelta(t, 1, v, 1e-9)

	h, _, _ = HSV(0, 0, 255)
	assert.InDelta(t, 240, h, 1e-9)

	h, _, _ = HSV(255, 0, 128)
	assert.InDelta(t, 329.9, h, 0.2)

	_, s, _ = HSV(120, 120, 120)
	assert.Zero(t, s)
}

func TestSobelFlatIsZero(t *testing.T) {
	p := NewPlane(5, 5)
	for i := range p.Pix {
		p.Pix[i] = 100
	}
	for _, v := range Sobel(p).Pix {
		assert.Zero(t, v)
	}
}
