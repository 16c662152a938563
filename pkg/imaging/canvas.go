// Package imaging converte bytes de imagem em Canvas normalizados para o espaço
// renderizado do navegador. Todas as funções são puras.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/hihihi151/aujc/pkg/captcha"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Canvas é uma imagem decodificada junto com o tamanho em que ela aparece na página.
// Os pixels ficam sempre em *image.NRGBA com origem (0,0).
type Canvas struct {
	Image          *image.NRGBA
	RenderedWidth  int
	RenderedHeight int
}

// New embrulha uma imagem qualquer; o tamanho renderizado começa igual ao nativo.
func New(img image.Image) Canvas {
	n := toNRGBA(img)
	return Canvas{Image: n, RenderedWidth: n.Rect.Dx(), RenderedHeight: n.Rect.Dy()}
}

// Width é a largura nativa (pixels decodificados).
func (c Canvas) Width() int { return c.Image.Rect.Dx() }

// Height é a altura nativa (pixels decodificados).
func (c Canvas) Height() int { return c.Image.Rect.Dy() }

// WithRendered retorna uma cópia rasa com outro tamanho renderizado.
func (c Canvas) WithRendered(w, h int) Canvas {
	c.RenderedWidth, c.RenderedHeight = w, h
	return c
}

// Scale retorna rendered/native por eixo.
func (c Canvas) Scale() (sx, sy float64) {
	if c.Width() == 0 || c.Height() == 0 {
		return 1, 1
	}
	return float64(c.RenderedWidth) / float64(c.Width()), float64(c.RenderedHeight) / float64(c.Height())
}

// ToRendered converte uma coordenada nativa para o espaço renderizado.
func (c Canvas) ToRendered(x, y float64) captcha.Point {
	sx, sy := c.Scale()
	return captcha.Point{X: x * sx, Y: y * sy}
}

// Decode decodifica png, jpeg, gif, webp ou bmp.
func Decode(data []byte) (Canvas, error) {
	if len(data) == 0 {
		return Canvas{}, &captcha.DecodeError{Err: captcha.ErrEmptyImage}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Canvas{}, &captcha.DecodeError{Err: err}
	}
	if img.Bounds().Empty() {
		return Canvas{}, &captcha.DecodeError{Err: captcha.ErrEmptyImage}
	}
	return New(img), nil
}

// DecodeSource aceita o valor do atributo src de um <img>: data URL
// ("data:image/png;base64,...") ou base64 puro.
func DecodeSource(src string) (Canvas, error) {
	data, err := SourceBytes(src)
	if err != nil {
		return Canvas{}, err
	}
	return Decode(data)
}

// SourceBytes extrai os bytes de um data URL ou de uma string base64.
func SourceBytes(src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "data:image") {
		parts := strings.SplitN(src, ",", 2)
		if len(parts) != 2 {
			return nil, &captcha.DecodeError{Err: fmt.Errorf("data URL sem payload")}
		}
		src = parts[1]
	}
	data, err := base64.StdEncoding.DecodeString(src)
	if err != nil {
		return nil, &captcha.DecodeError{Err: fmt.Errorf("base64 inválido: %w", err)}
	}
	return data, nil
}

// Rescale redimensiona os pixels para w x h (Catmull-Rom) e fixa o tamanho
// renderizado no mesmo valor. Se as dimensões já batem, só copia.
func Rescale(c Canvas, w, h int) (Canvas, error) {
	if w <= 0 || h <= 0 {
		return Canvas{}, fmt.Errorf("dimensão inválida para redimensionar: %dx%d", w, h)
	}
	if c.Image == nil || c.Image.Rect.Empty() {
		return Canvas{}, captcha.ErrEmptyImage
	}
	if c.Width() == w && c.Height() == h {
		return Canvas{Image: clone(c.Image), RenderedWidth: w, RenderedHeight: h}, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Rect, c.Image, c.Image.Rect, draw.Src, nil)
	return Canvas{Image: dst, RenderedWidth: w, RenderedHeight: h}, nil
}

// Normalize leva o Canvas para o espaço renderizado (pixels == rendered).
func Normalize(c Canvas) (Canvas, error) {
	return Rescale(c, c.RenderedWidth, c.RenderedHeight)
}

// Neutral é o fundo usado para achatar o canal alfa.
var Neutral = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// FlattenAlpha compõe a imagem RGBA sobre um fundo opaco. Os classificadores
// não enxergam pixels mascarados pelo alfa.
func FlattenAlpha(c Canvas, bg color.Color) Canvas {
	if bg == nil {
		bg = Neutral
	}
	dst := image.NewNRGBA(c.Image.Rect)
	draw.Draw(dst, dst.Rect, &image.Uniform{C: bg}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Rect, c.Image, c.Image.Rect.Min, draw.Over)
	return Canvas{Image: dst, RenderedWidth: c.RenderedWidth, RenderedHeight: c.RenderedHeight}
}

// Crop recorta r (coordenadas nativas), limitado às bordas. O tamanho
// renderizado é ajustado na mesma proporção.
func Crop(c Canvas, r image.Rectangle) Canvas {
	r = r.Intersect(c.Image.Rect)
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Rect, c.Image, r.Min, draw.Src)
	sx, sy := c.Scale()
	return Canvas{
		Image:          dst,
		RenderedWidth:  int(float64(r.Dx())*sx + 0.5),
		RenderedHeight: int(float64(r.Dy())*sy + 0.5),
	}
}

func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}

func clone(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	draw.Draw(dst, dst.Rect, src, src.Rect.Min, draw.Src)
	return dst
}
