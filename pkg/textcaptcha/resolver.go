// Package textcaptcha resolve o captcha de "clique nos caracteres em ordem":
// detecta os glifos, classifica cada recorte e devolve os centros na ordem pedida.
package textcaptcha

import (
	"context"
	"fmt"
	"image"
	"unicode"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/imaging"
)

// Detector encontra as caixas dos glifos no canvas (coordenadas nativas).
type Detector interface {
	Detect(ctx context.Context, c imaging.Canvas) ([]image.Rectangle, error)
}

// Classifier reconhece o caractere de um recorte.
type Classifier interface {
	Classify(ctx context.Context, c imaging.Canvas) (string, error)
}

// Glyph é uma caixa detectada com o rótulo reconhecido.
type Glyph struct {
	Bounds image.Rectangle `json:"bounds"`
	Label  string          `json:"label"`
}

// Center é o centro da caixa em coordenadas nativas.
func (g Glyph) Center() (float64, float64) {
	return float64(g.Bounds.Min.X+g.Bounds.Max.X) / 2, float64(g.Bounds.Min.Y+g.Bounds.Max.Y) / 2
}

// ClickSequence são os pontos a clicar, em espaço renderizado, na ordem exigida.
type ClickSequence []captcha.Point

type Options struct {
	// Length é a quantidade de caracteres esperada na pergunta.
	Length int
	// Margin expande cada caixa antes do recorte para não cortar traços do glifo.
	Margin int
}

func DefaultOptions() Options {
	return Options{Length: 4, Margin: 10}
}

type Resolver struct {
	detector   Detector
	classifier Classifier
	opts       Options
}

func NewResolver(detector Detector, classifier Classifier, opts Options) *Resolver {
	return &Resolver{detector: detector, classifier: classifier, opts: opts}
}

// Resolve extrai a sequência da pergunta e resolve o canvas.
func (r *Resolver) Resolve(ctx context.Context, question string, c imaging.Canvas) (ClickSequence, error) {
	chars, err := ExtractSequence(question, r.opts.Length)
	if err != nil {
		return nil, err
	}
	return r.ResolveChars(ctx, chars, c)
}

// ResolveChars roda detecção e classificação e alinha os rótulos à sequência exigida.
func (r *Resolver) ResolveChars(ctx context.Context, chars []rune, c imaging.Canvas) (ClickSequence, error) {
	if c.Image == nil {
		return nil, captcha.ErrEmptyImage
	}
	boxes, err := r.detector.Detect(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("erro detectando caracteres: %w", err)
	}

	glyphs := make([]Glyph, 0, len(boxes))
	for _, b := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		crop := imaging.Crop(c, b.Inset(-r.opts.Margin))
		if crop.Width() == 0 || crop.Height() == 0 {
			continue
		}
		lbl, err := r.classifier.Classify(ctx, crop)
		if err != nil {
			return nil, fmt.Errorf("erro classificando caractere em %v: %w", b, err)
		}
		glyphs = append(glyphs, Glyph{Bounds: b, Label: lbl})
	}
	return Match(glyphs, chars, c)
}

// Match atribui cada glifo à primeira posição ainda livre com o mesmo caractere e
// devolve os centros na ordem da sequência. Falha com CountMismatchError quando
// alguma posição fica sem glifo.
func Match(glyphs []Glyph, chars []rune, c imaging.Canvas) (ClickSequence, error) {
	filled := make([]*Glyph, len(chars))
	count := 0
	for i := range glyphs {
		g := &glyphs[i]
		for pos, ch := range chars {
			if filled[pos] == nil && g.Label == string(ch) {
				filled[pos] = g
				count++
				break
			}
		}
	}
	if count != len(chars) {
		return nil, &captcha.CountMismatchError{Want: len(chars), Got: count}
	}

	seq := make(ClickSequence, len(chars))
	for pos, g := range filled {
		x, y := g.Center()
		seq[pos] = c.ToRendered(x, y)
	}
	return seq, nil
}

// ExtractSequence devolve o segundo trecho de caracteres chineses da pergunta,
// ex: "请依次点击【天地玄黄】" -> 天地玄黄. Um tamanho diferente de length é
// tratado como alvo não suportado (sinal de atualizar o captcha).
func ExtractSequence(question string, length int) ([]rune, error) {
	var runs [][]rune
	var cur []rune
	for _, r := range question {
		if unicode.Is(unicode.Han, r) {
			cur = append(cur, r)
			continue
		}
		if len(cur) > 0 {
			runs = append(runs, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}

	if len(runs) < 2 {
		return nil, &captcha.UnsupportedTargetError{Kind: captcha.KindSequence, Value: question, Reason: "sequência não encontrada na pergunta"}
	}
	chars := runs[1]
	if length > 0 && len(chars) != length {
		return nil, &captcha.UnsupportedTargetError{
			Kind:   captcha.KindSequence,
			Value:  string(chars),
			Reason: fmt.Sprintf("esperado %d caracteres, encontrado %d", length, len(chars)),
		}
	}
	return chars, nil
}
