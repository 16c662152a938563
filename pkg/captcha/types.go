package captcha

import (
	"errors"
	"fmt"
	"math"
)

// Point é uma coordenada em espaço renderizado (pixels do viewport).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add desloca o ponto pela origem informada (ex: canto do canvas na página).
func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

// Dist retorna a distância euclidiana entre dois pontos.
func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Kind identifica o tipo de desafio.
type Kind string

const (
	KindSlider   Kind = "slider"
	KindColor    Kind = "color"
	KindShape    Kind = "shape"
	KindSequence Kind = "sequence"
)

var (
	// ErrEmptyImage indica um buffer de imagem vazio ou com dimensão zero
	ErrEmptyImage = errors.New("imagem vazia")
	// ErrTemplateTooLarge indica que a peça do slider é maior que o fundo
	ErrTemplateTooLarge = errors.New("peça maior que a imagem de fundo")
	// ErrModelUnavailable indica que o modelo de reconhecimento não foi carregado
	ErrModelUnavailable = errors.New("modelo de reconhecimento indisponível")
	// ErrNoMatch é usado apenas na fronteira com o orquestrador (wire/flow);
	// dentro do core a ausência de match é um resultado nil.
	ErrNoMatch = errors.New("nenhuma região encontrada")
)

// DecodeError indica bytes de imagem malformados ou formato não suportado.
// Fatal para a tentativa: o chamador precisa capturar a imagem de novo.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("erro decodificando imagem: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedTargetError indica forma, cor ou modo fora do vocabulário suportado.
type UnsupportedTargetError struct {
	Kind   Kind
	Value  string
	Reason string
}

func (e *UnsupportedTargetError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("alvo não suportado (%s=%q): %s", e.Kind, e.Value, e.Reason)
	}
	return fmt.Sprintf("alvo não suportado (%s=%q)", e.Kind, e.Value)
}

// CountMismatchError indica que a classificação preencheu um número de posições
// diferente do exigido pela sequência.
type CountMismatchError struct {
	Want int
	Got  int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("classificação incompleta: esperado %d caracteres, obtido %d", e.Want, e.Got)
}

// IsRefreshSignal diz se o erro deve ser tratado com "atualizar o captcha e tentar de novo".
func IsRefreshSignal(err error) bool {
	if err == nil {
		return false
	}
	var unsupported *UnsupportedTargetError
	var mismatch *CountMismatchError
	return errors.As(err, &unsupported) || errors.As(err, &mismatch) || errors.Is(err, ErrNoMatch)
}
