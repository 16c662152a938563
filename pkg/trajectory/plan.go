// Package trajectory transforma um deslocamento alvo em uma sequência de
// micro-movimentos do ponteiro com dinâmica de arrasto humano.
//
// O gerador só decide a magnitude dos passos. Dormir entre os passos e
// despachar os eventos é responsabilidade de quem consome o plano.
package trajectory

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Step é um micro-movimento relativo: andar (DX, DY) e esperar DT antes do próximo.
type Step struct {
	DX int           `json:"dx"`
	DY int           `json:"dy"`
	DT time.Duration `json:"dt"`
}

// Plan é gerado uma vez por tentativa, consumido em seguida e descartado.
type Plan []Step

// TotalDX é a soma dos deslocamentos horizontais; sempre igual ao alvo.
func (p Plan) TotalDX() int {
	total := 0
	for _, s := range p {
		total += s.DX
	}
	return total
}

// TotalDY é a soma dos deslocamentos verticais.
func (p Plan) TotalDY() int {
	total := 0
	for _, s := range p {
		total += s.DY
	}
	return total
}

// Duration soma os intervalos entre passos.
func (p Plan) Duration() time.Duration {
	var d time.Duration
	for _, s := range p {
		d += s.DT
	}
	return d
}

// Cumulative devolve o deslocamento horizontal acumulado após cada passo.
func (p Plan) Cumulative() []int {
	out := make([]int, len(p))
	acc := 0
	for i, s := range p {
		acc += s.DX
		out[i] = acc
	}
	return out
}

// Strategy escolhe o formato da trajetória.
type Strategy string

const (
	// StrategyLegacy usa passos fixos com intervalo uniforme.
	StrategyLegacy Strategy = "legacy"
	// StrategyEased usa uma curva lenta-rápida-lenta com ruído limitado.
	StrategyEased Strategy = "eased"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLegacy, StrategyEased:
		return Strategy(s), nil
	case "old":
		return StrategyLegacy, nil
	case "", "new":
		return StrategyEased, nil
	}
	return "", fmt.Errorf("estratégia de movimento desconhecida: %q", s)
}

// Options agrupa os limites de passo e de ruído.
type Options struct {
	Strategy Strategy

	// Steps é a quantidade de passos da curva suavizada.
	Steps int
	// JitterX limita o ruído horizontal aplicado à posição de cada passo (pixels).
	JitterX float64
	// JitterY limita o desvio vertical em relação à linha do slider (pixels).
	JitterY int
	// MinDelay e MaxDelay limitam o intervalo entre passos da curva suavizada.
	MinDelay time.Duration
	MaxDelay time.Duration

	// StepSize e StepDelay definem a estratégia legada.
	StepSize  int
	StepDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Strategy:  StrategyEased,
		Steps:     30,
		JitterX:   1.5,
		JitterY:   2,
		MinDelay:  8 * time.Millisecond,
		MaxDelay:  40 * time.Millisecond,
		StepSize:  4,
		StepDelay: 15 * time.Millisecond,
	}
}

// Generator carrega as opções e a fonte de aleatoriedade. Não é seguro para uso
// concorrente: crie um por desafio (ou por goroutine).
type Generator struct {
	opts Options
	rng  *rand.Rand
}

// NewGenerator cria um gerador. Com rng nil usa uma semente aleatória;
// testes devem passar uma fonte semeada.
func NewGenerator(opts Options, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{opts: opts, rng: rng}
}

// Plan gera o plano para o deslocamento com a estratégia configurada.
func (g *Generator) Plan(offset int) Plan {
	if g.opts.Strategy == StrategyLegacy {
		return Legacy(offset, g.opts, g.rng)
	}
	return Eased(offset, g.opts, g.rng)
}

func direction(offset int) (sign, dist int) {
	if offset < 0 {
		return -1, -offset
	}
	return 1, offset
}
