// Package challenge classifica a pergunta do captcha e despacha cada desafio
// para o resolvedor correspondente.
package challenge

import (
	"strings"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/shape"
	"github.com/hihihi151/aujc/pkg/textcaptcha"
)

// Challenge é a variante produzida pela leitura da pergunta:
// ColorChallenge, ShapeChallenge ou SequenceChallenge.
type Challenge interface {
	Kind() captcha.Kind
	// Target é o valor canônico pedido (cor, forma ou sequência).
	Target() string
}

type ColorChallenge struct{ Color string }

func (ColorChallenge) Kind() captcha.Kind { return captcha.KindColor }
func (c ColorChallenge) Target() string   { return c.Color }

type ShapeChallenge struct{ Shape shape.Shape }

func (ShapeChallenge) Kind() captcha.Kind { return captcha.KindShape }
func (c ShapeChallenge) Target() string   { return string(c.Shape) }

type SequenceChallenge struct{ Chars []rune }

func (SequenceChallenge) Kind() captcha.Kind { return captcha.KindSequence }
func (c SequenceChallenge) Target() string   { return string(c.Chars) }

const (
	sequenceMarker = "依次"
	colorMarker    = "色"
	questionPrefix = "请选出图中"
	shapePrefix    = "请选出图中的"
	targetSuffix   = "的图形"
)

// Classifier transforma o texto da pergunta em uma variante validada contra o vocabulário.
type Classifier struct {
	Vocabulary     shape.Vocabulary
	SequenceLength int
}

// Classify decide o modo do captcha pelo texto da pergunta. Valores fora do
// vocabulário falham com UnsupportedTargetError, antes de qualquer trabalho com pixels.
func (c Classifier) Classify(question string) (Challenge, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, &captcha.UnsupportedTargetError{Value: question, Reason: "pergunta vazia"}
	}

	// nomes canônicos em inglês (CLI e clientes remotos)
	if band, err := c.Vocabulary.Color(q); err == nil {
		return ColorChallenge{Color: band.Name}, nil
	}
	if s, err := c.Vocabulary.Shape(q); err == nil {
		return ShapeChallenge{Shape: s}, nil
	}

	switch {
	case strings.Contains(q, sequenceMarker):
		chars, err := textcaptcha.ExtractSequence(q, c.SequenceLength)
		if err != nil {
			return nil, err
		}
		return SequenceChallenge{Chars: chars}, nil

	case strings.Contains(q, colorMarker):
		value := between(q, questionPrefix, targetSuffix)
		band, err := c.Vocabulary.Color(value)
		if err != nil {
			return nil, err
		}
		return ColorChallenge{Color: band.Name}, nil

	default:
		value := between(q, shapePrefix, targetSuffix)
		s, err := c.Vocabulary.Shape(value)
		if err != nil {
			return nil, err
		}
		return ShapeChallenge{Shape: s}, nil
	}
}

// between devolve o texto após prefix e antes de suffix; cada marcador ausente é ignorado.
func between(s, prefix, suffix string) string {
	if _, after, ok := strings.Cut(s, prefix); ok {
		s = after
	}
	if before, _, ok := strings.Cut(s, suffix); ok {
		s = before
	}
	return strings.Trim(s, " ：:，,。.？?！!【】[]")
}
