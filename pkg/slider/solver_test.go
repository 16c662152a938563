package slider

import (
	"image"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockNoise gera uma textura de blocos aleatórios, parecida com a foto de fundo do captcha.
func blockNoise(w, h, block int, seed uint64) *image.NRGBA {
	rng := rand.New(rand.NewPCG(seed, seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for by := 0; by < h; by += block {
		for bx := 0; bx < w; bx += block {
			c := color.NRGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256)), A: 255}
			for y := by; y < by+block && y < h; y++ {
				for x := bx; x < bx+block && x < w; x++ {
					img.SetNRGBA(x, y, c)
				}
			}
		}
	}
	return img
}

// cutPiece recorta a peça em (x0,y0) com uma margem transparente e escurece o entalhe no fundo.
func cutPiece(bg *image.NRGBA, x0, y0, size, margin int) *image.NRGBA {
	piece := image.NewNRGBA(image.Rect(0, 0, size+2*margin, size+2*margin))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			piece.SetNRGBA(x+margin, y+margin, bg.NRGBAAt(x0+x, y0+y))
		}
	}
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			c := bg.NRGBAAt(x, y)
			bg.SetNRGBA(x, y, color.NRGBA{R: uint8(float64(c.R) * 0.55), G: uint8(float64(c.G) * 0.55), B: uint8(float64(c.B) * 0.55), A: 255})
		}
	}
	return piece
}

func TestAlignRecoversNotchPosition(t *testing.T) {
	bg := blockNoise(280, 140, 2, 7)
	piece := cutPiece(bg, 151, 47, 44, 3)

	res, err := Align(imaging.New(piece), imaging.New(bg), DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 148, res.Offset, 2, "offset=%d score=%.3f", res.Offset, res.Score)
	assert.InDelta(t, 47, res.Y, 2)
	assert.Greater(t, res.Score, 0.5)
}

func TestAlignWorksInRenderedSpace(t *testing.T) {
	bg := blockNoise(560, 280, 4, 11)
	piece := cutPiece(bg, 302, 94, 88, 6)

	bgCanvas := imaging.New(bg).WithRendered(280, 140)
	pieceCanvas := imaging.New(piece).WithRendered(50, 50)

	res, err := Align(pieceCanvas, bgCanvas, DefaultOptions())
	require.NoError(t, err)
	// 302/2 - 6/2
	assert.InDelta(t, 148, res.Offset, 2, "offset=%d score=%.3f", res.Offset, res.Score)
	assert.LessOrEqual(t, res.Offset, bgCanvas.RenderedWidth)
}

func TestAlignWithVerticalHint(t *testing.T) {
	bg := blockNoise(280, 140, 2, 23)
	piece := cutPiece(bg, 90, 60, 40, 0)

	opts := DefaultOptions()
	opts.YHint = 58
	opts.Band = 4

	res, err := Align(imaging.New(piece), imaging.New(bg), opts)
	require.NoError(t, err)
	assert.InDelta(t, 90, res.Offset, 2)
	assert.InDelta(t, 60, res.Y, 4)
}

func TestAlignFlatInputPrefersSmallestX(t *testing.T) {
	bg := image.NewNRGBA(image.Rect(0, 0, 100, 40))
	piece := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for i := range bg.Pix {
		bg.Pix[i] = 200
	}
	for i := range piece.Pix {
		piece.Pix[i] = 200
	}

	res, err := Align(imaging.New(piece), imaging.New(bg), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Offset)
}

func TestAlignRejectsOversizedPiece(t *testing.T) {
	bg := blockNoise(30, 30, 2, 1)
	piece := blockNoise(40, 20, 2, 2)

	_, err := Align(imaging.New(piece), imaging.New(bg), DefaultOptions())
	assert.ErrorIs(t, err, captcha.ErrTemplateTooLarge)
}

func TestAlignRejectsTransparentPiece(t *testing.T) {
	bg := blockNoise(60, 30, 2, 3)
	piece := image.NewNRGBA(image.Rect(0, 0, 10, 10))

	_, err := Align(imaging.New(piece), imaging.New(bg), DefaultOptions())
	assert.ErrorIs(t, err, captcha.ErrEmptyImage)
}

// peça com a altura do fundo: a linha vem da própria peça, e uma cópia exata do
// recorte em outra altura não pode ganhar do entalhe
func TestAlignFullHeightPieceSearchesNearItsRow(t *testing.T) {
	const x0, y0, size = 151, 47, 44
	bg := blockNoise(280, 140, 2, 11)

	piece := image.NewNRGBA(image.Rect(0, 0, size, bg.Rect.Dy()))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := bg.NRGBAAt(x0+x, y0+y)
			piece.SetNRGBA(x, y0+y, c)
			bg.SetNRGBA(30+x, 92+y, c)
		}
	}
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			c := bg.NRGBAAt(x, y)
			bg.SetNRGBA(x, y, color.NRGBA{R: uint8(float64(c.R) * 0.55), G: uint8(float64(c.G) * 0.55), B: uint8(float64(c.B) * 0.55), A: 255})
		}
	}

	res, err := Align(imaging.New(piece), imaging.New(bg), DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, x0, res.Offset, 2, "offset=%d score=%.3f", res.Offset, res.Score)
	assert.InDelta(t, y0, res.Y, DefaultOptions().Band)
}
