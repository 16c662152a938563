// Package slider encontra o deslocamento horizontal que encaixa a peça do
// quebra-cabeça no entalhe da imagem de fundo.
package slider

import (
	"image"
	"image/color"
	"math"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/imaging"
)

// Options controla a busca. Os valores padrão vêm de DefaultOptions.
type Options struct {
	// AlphaThreshold separa a silhueta da peça do seu fundo transparente.
	AlphaThreshold uint8
	// YHint é o topo conhecido da peça no fundo (espaço renderizado); -1 quando desconhecido.
	// Uma peça com a mesma altura do fundo vale como YHint 0.
	YHint int
	// Band limita a busca vertical a YHint±Band. Sem dica, todas as linhas são testadas.
	Band int
}

func DefaultOptions() Options {
	return Options{AlphaThreshold: 127, YHint: -1, Band: 8}
}

// Result é o resultado do alinhamento. Sempre existe, mesmo com Score baixo:
// a decisão de atualizar o desafio é do orquestrador.
type Result struct {
	Offset int     // deslocamento em pixels renderizados, arredondado
	X      float64 // posição sub-pixel antes do arredondamento
	Y      int     // linha onde o melhor encaixe foi encontrado
	Score  float64 // correlação cruzada normalizada em [-1,1]
}

// fundo neutro para a silhueta: as bordas da peça viram gradiente, assim como o contorno do entalhe
var silhouetteBackground = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

// Align compara os mapas de borda (Sobel) da peça e do fundo e devolve o x de
// maior correlação. Empates ficam com o menor x: passar do ponto é punido com
// mais rigor do que parar antes.
func Align(piece, background imaging.Canvas, opts Options) (Result, error) {
	if piece.Image == nil || background.Image == nil {
		return Result{}, captcha.ErrEmptyImage
	}
	piece, err := imaging.Normalize(piece)
	if err != nil {
		return Result{}, err
	}
	background, err = imaging.Normalize(background)
	if err != nil {
		return Result{}, err
	}

	bounds := imaging.OpaqueBounds(piece.Image, opts.AlphaThreshold)
	if bounds.Empty() {
		return Result{}, captcha.ErrEmptyImage
	}
	tw, th := bounds.Dx(), bounds.Dy()
	bw, bh := background.Width(), background.Height()
	if tw > bw || th > bh {
		return Result{}, captcha.ErrTemplateTooLarge
	}

	tmpl := newTemplate(piece, bounds, opts.AlphaThreshold)
	edges := imaging.Sobel(imaging.Luma(background.Image))

	// peça com a altura do fundo já está na linha certa: busca só em volta dela
	hint := opts.YHint
	if hint < 0 && piece.Height() == bh {
		hint = 0
	}
	yMin, yMax := 0, bh-th
	if hint >= 0 {
		yMin = clamp(hint+bounds.Min.Y-opts.Band, 0, bh-th)
		yMax = clamp(hint+bounds.Min.Y+opts.Band, 0, bh-th)
	}

	const eps = 1e-9
	best := Result{Score: math.Inf(-1)}
	bestX := 0
	for y := yMin; y <= yMax; y++ {
		for x := 0; x <= bw-tw; x++ {
			s := tmpl.ncc(edges, x, y)
			if s > best.Score+eps || (math.Abs(s-best.Score) <= eps && x < bestX) {
				best.Score, best.Y, bestX = s, y, x
			}
		}
	}

	xf := float64(bestX)
	if bestX > 0 && bestX < bw-tw {
		xf += subpixel(tmpl.ncc(edges, bestX-1, best.Y), best.Score, tmpl.ncc(edges, bestX+1, best.Y))
	}
	// a peça é arrastada pela borda do elemento, não pela silhueta
	xf -= float64(bounds.Min.X)

	best.X = xf
	best.Offset = clamp(int(math.Round(xf)), 0, background.RenderedWidth)
	return best, nil
}

type template struct {
	w, h   int
	idx    []int     // offsets (y*w+x) dos pixels da silhueta
	values []float64 // valores centrados (média zero)
	norm   float64
}

func newTemplate(piece imaging.Canvas, bounds image.Rectangle, alpha uint8) *template {
	flat := imaging.FlattenAlpha(piece, silhouetteBackground)
	edges := imaging.Sobel(imaging.Luma(flat.Image))
	mask := imaging.AlphaMask(piece.Image, alpha)

	t := &template{w: bounds.Dx(), h: bounds.Dy()}
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if !mask[y*edges.W+x] {
				continue
			}
			t.idx = append(t.idx, (y-bounds.Min.Y)*t.w+(x-bounds.Min.X))
			v := edges.Pix[y*edges.W+x]
			t.values = append(t.values, v)
			sum += v
		}
	}
	mean := sum / float64(len(t.values))
	for i := range t.values {
		t.values[i] -= mean
		t.norm += t.values[i] * t.values[i]
	}
	t.norm = math.Sqrt(t.norm)
	return t
}

// ncc calcula a correlação normalizada da silhueta posicionada em (ox, oy).
func (t *template) ncc(bg *imaging.Plane, ox, oy int) float64 {
	if t.norm == 0 {
		return 0
	}
	var sb, sbb, sbt float64
	for i, off := range t.idx {
		x := ox + off%t.w
		y := oy + off/t.w
		b := bg.Pix[y*bg.W+x]
		sb += b
		sbb += b * b
		sbt += b * t.values[i]
	}
	n := float64(len(t.idx))
	variance := sbb - sb*sb/n
	if variance <= 0 {
		return 0
	}
	return sbt / (t.norm * math.Sqrt(variance))
}

// subpixel ajusta uma parábola aos três scores vizinhos e devolve o deslocamento do pico.
func subpixel(left, center, right float64) float64 {
	denom := left - 2*center + right
	if denom >= 0 {
		return 0
	}
	d := 0.5 * (left - right) / denom
	return math.Max(-0.5, math.Min(0.5, d))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
