package imaging

import (
	"image"
	"math"
)

// Plane é um mapa de intensidade de um canal (float64, linha por linha).
type Plane struct {
	W, H int
	Pix  []float64
}

func NewPlane(w, h int) *Plane {
	return &Plane{W: w, H: h, Pix: make([]float64, w*h)}
}

// At lê com clamp nas bordas.
func (p *Plane) At(x, y int) float64 {
	if x < 0 {
		x = 0
	} else if x >= p.W {
		x = p.W - 1
	}
	if y < 0 {
		y = 0
	} else if y >= p.H {
		y = p.H - 1
	}
	return p.Pix[y*p.W+x]
}

func (p *Plane) Set(x, y int, v float64) {
	p.Pix[y*p.W+x] = v
}

// Luma converte para luminância (BT.601) em [0,255].
func Luma(img *image.NRGBA) *Plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	p := NewPlane(w, h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			i := x * 4
			p.Pix[y*w+x] = 0.299*float64(row[i]) + 0.587*float64(row[i+1]) + 0.114*float64(row[i+2])
		}
	}
	return p
}

// Sobel retorna a magnitude do gradiente. Suprime textura de baixa frequência
// do fundo e destaca contornos (entalhe do slider, bordas de formas).
func Sobel(p *Plane) *Plane {
	out := NewPlane(p.W, p.H)
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			gx := -p.At(x-1, y-1) - 2*p.At(x-1, y) - p.At(x-1, y+1) +
				p.At(x+1, y-1) + 2*p.At(x+1, y) + p.At(x+1, y+1)
			gy := -p.At(x-1, y-1) - 2*p.At(x, y-1) - p.At(x+1, y-1) +
				p.At(x-1, y+1) + 2*p.At(x, y+1) + p.At(x+1, y+1)
			out.Pix[y*p.W+x] = math.Hypot(gx, gy)
		}
	}
	return out
}

// AlphaMask marca os pixels com alfa acima do limiar. Imagens sem transparência
// retornam tudo true.
func AlphaMask(img *image.NRGBA, threshold uint8) []bool {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			mask[y*w+x] = row[x*4+3] > threshold
		}
	}
	return mask
}

// OpaqueBounds retorna o menor retângulo que contém pixels com alfa acima do limiar.
func OpaqueBounds(img *image.NRGBA, threshold uint8) image.Rectangle {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	minX, minY, maxX, maxY := w, h, -1, -1
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			if row[x*4+3] <= threshold {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}
