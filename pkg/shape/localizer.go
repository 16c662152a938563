package shape

import (
	"math"
	"sort"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/imaging"
)

// Query pede uma forma (KindShape) ou uma cor (KindColor).
type Query struct {
	Kind  captcha.Kind `json:"kind"`
	Value string       `json:"value"`
}

func ShapeQuery(value string) Query { return Query{Kind: captcha.KindShape, Value: value} }

func ColorQuery(value string) Query { return Query{Kind: captcha.KindColor, Value: value} }

// Match é o centro da região encontrada, em espaço renderizado.
type Match struct {
	Center     captcha.Point `json:"center"`
	Confidence float64       `json:"confidence"`
	Area       int           `json:"area"`
}

// Options carrega o vocabulário ativo e os limiares ajustados empiricamente.
type Options struct {
	Vocabulary Vocabulary
	// BackgroundDistance é a distância RGB mínima do fundo para um pixel contar como forma.
	BackgroundDistance float64
	// MinArea descarta regiões menores (pixels nativos).
	MinArea int
	// MinConfidence é o piso abaixo do qual a forma é considerada ausente.
	MinConfidence float64
	// MinSaturation e MinValue excluem cinzas e pretos das máscaras de cor.
	MinSaturation float64
	MinValue      float64
	// CircleTolerance é o coeficiente de variação radial que zera a confiança de círculo.
	CircleTolerance float64
	// Epsilon é a tolerância do Douglas-Peucker, como fração do perímetro.
	Epsilon float64
}

func DefaultOptions() Options {
	return Options{
		Vocabulary:         DefaultVocabulary(),
		BackgroundDistance: 60,
		MinArea:            80,
		MinConfidence:      0.6,
		MinSaturation:      0.35,
		MinValue:           0.25,
		CircleTolerance:    0.08,
		Epsilon:            0.03,
	}
}

// Localizer não guarda estado entre chamadas; pode ser usado concorrentemente.
type Localizer struct {
	opts Options
}

func NewLocalizer(opts Options) *Localizer {
	return &Localizer{opts: opts}
}

// Locate devolve o centro da região pedida ou nil quando nada passa do piso de
// confiança. Consultas fora do vocabulário falham antes de qualquer acesso aos pixels.
func (l *Localizer) Locate(c imaging.Canvas, q Query) (*Match, error) {
	switch q.Kind {
	case captcha.KindShape:
		s, err := l.opts.Vocabulary.Shape(q.Value)
		if err != nil {
			return nil, err
		}
		if c.Image == nil {
			return nil, captcha.ErrEmptyImage
		}
		return l.locateShape(imaging.FlattenAlpha(c, nil), s), nil
	case captcha.KindColor:
		band, err := l.opts.Vocabulary.Color(q.Value)
		if err != nil {
			return nil, err
		}
		if c.Image == nil {
			return nil, captcha.ErrEmptyImage
		}
		return l.locateColor(imaging.FlattenAlpha(c, nil), band), nil
	}
	return nil, &captcha.UnsupportedTargetError{Kind: q.Kind, Value: q.Value, Reason: "tipo de consulta desconhecido"}
}

func (l *Localizer) locateShape(c imaging.Canvas, s Shape) *Match {
	w, h := c.Width(), c.Height()
	mask := foregroundMask(c, l.opts.BackgroundDistance)
	lab := label(mask, w, h)

	var best *Match
	var bestFit float64
	for _, comp := range lab.comps {
		if comp.area < l.opts.MinArea {
			continue
		}
		contour := traceBoundary(lab.inside(comp.label), comp.start, 4*comp.area+8)
		if len(contour) < 8 {
			continue
		}
		cx, cy := comp.centroid()
		d := describe(contour, comp.bounds, cx, cy, l.opts.Epsilon)
		score, fit := d.score(s, l.opts), d.fit(s)
		if score < l.opts.MinConfidence || (best != nil && !better(score, fit, best.Confidence, bestFit)) {
			continue
		}
		best = &Match{Center: c.ToRendered(cx, cy), Confidence: score, Area: comp.area}
		bestFit = fit
	}
	return best
}

// better ordena candidatos pela confiança e, no empate, pelo ajuste geométrico.
func better(score, fit, bestScore, bestFit float64) bool {
	const eps = 1e-9
	if math.Abs(score-bestScore) > eps {
		return score > bestScore
	}
	return fit > bestFit+eps
}

func (l *Localizer) locateColor(c imaging.Canvas, band ColorBand) *Match {
	w, h := c.Width(), c.Height()
	img := c.Image
	mask := make([]bool, w*h)
	total := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.NRGBAAt(img.Rect.Min.X+x, img.Rect.Min.Y+y)
			hue, sat, val := imaging.HSV(p.R, p.G, p.B)
			if sat >= l.opts.MinSaturation && val >= l.opts.MinValue && band.Contains(hue) {
				mask[y*w+x] = true
				total++
			}
		}
	}
	if total == 0 || total < l.opts.MinArea {
		return nil
	}

	lab := label(mask, w, h)
	largest := lab.comps[0]
	for _, comp := range lab.comps[1:] {
		if comp.area > largest.area {
			largest = comp
		}
	}
	if largest.area < l.opts.MinArea {
		return nil
	}
	cx, cy := largest.centroid()
	return &Match{
		Center:     c.ToRendered(cx, cy),
		Confidence: float64(largest.area) / float64(total),
		Area:       largest.area,
	}
}

// foregroundMask marca os pixels distantes da cor de fundo, estimada pela
// mediana da borda do canvas.
func foregroundMask(c imaging.Canvas, threshold float64) []bool {
	img := c.Image
	w, h := c.Width(), c.Height()
	at := func(x, y int) (uint8, uint8, uint8) {
		p := img.NRGBAAt(img.Rect.Min.X+x, img.Rect.Min.Y+y)
		return p.R, p.G, p.B
	}

	var rs, gs, bs []uint8
	border := func(x, y int) {
		r, g, b := at(x, y)
		rs, gs, bs = append(rs, r), append(gs, g), append(bs, b)
	}
	for x := 0; x < w; x++ {
		border(x, 0)
		border(x, h-1)
	}
	for y := 1; y < h-1; y++ {
		border(0, y)
		border(w-1, y)
	}
	br, bg, bb := median(rs), median(gs), median(bs)

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := at(x, y)
			mask[y*w+x] = imaging.RGBDistance(r, g, b, br, bg, bb) > threshold
		}
	}
	return mask
}

func median(vs []uint8) uint8 {
	sorted := append([]uint8(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)/2]
}
