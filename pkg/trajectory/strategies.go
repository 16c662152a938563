package trajectory

import (
	"math"
	"math/rand/v2"
	"time"
)

// Legacy anda em incrementos fixos de StepSize com o mesmo intervalo entre
// passos e fecha a diferença de arredondamento com um único passo corretivo.
func Legacy(offset int, opts Options, rng *rand.Rand) Plan {
	if offset == 0 {
		return nil
	}
	sign, dist := direction(offset)
	step := opts.StepSize
	if step < 1 {
		step = 1
	}
	tr := newTremor(rng)

	plan := make(Plan, 0, dist/step+1)
	moved, y := 0, 0
	for moved+step <= dist {
		ny := tr.offset(opts.JitterY)
		plan = append(plan, Step{DX: sign * step, DY: ny - y, DT: opts.StepDelay})
		moved += step
		y = ny
	}
	if rest := dist - moved; rest != 0 || y != 0 {
		plan = append(plan, Step{DX: sign * rest, DY: -y, DT: opts.StepDelay})
	}
	return plan
}

// Eased distribui o deslocamento por uma curva lenta-rápida-lenta em Steps
// passos. Cada posição recebe ruído em ±JitterX, mas nunca recua nem passa do
// alvo; o passo final corrige o resto exatamente.
func Eased(offset int, opts Options, rng *rand.Rand) Plan {
	if offset == 0 {
		return nil
	}
	sign, dist := direction(offset)
	n := opts.Steps
	if n < 2 {
		n = 2
	}
	tr := newTremor(rng)

	plan := make(Plan, 0, n+1)
	prev, y := 0, 0
	for i := 1; i <= n; i++ {
		t := float64(i) / float64(n)
		ideal := float64(dist) * easeInOutCubic(t)
		target := int(math.Round(ideal + randomFloat(rng, -opts.JitterX, opts.JitterX)))
		if target < prev {
			target = prev
		}
		if target > dist {
			target = dist
		}
		ny := tr.offset(opts.JitterY)
		plan = append(plan, Step{DX: sign * (target - prev), DY: ny - y, DT: dragDelay(t, dist, opts, rng)})
		prev, y = target, ny
	}
	if rest := dist - prev; rest != 0 || y != 0 {
		plan = append(plan, Step{DX: sign * rest, DY: -y, DT: opts.MaxDelay})
	}
	return plan
}

// dragDelay segue o perfil de três fases do arrasto humano:
// início lento (0-20%), meio rápido com ondulação (20-80%), fim lento para precisão.
func dragDelay(t float64, dist int, opts Options, rng *rand.Rand) time.Duration {
	var factor float64
	switch {
	case t < 0.2:
		factor = easeInQuad(t / 0.2)
	case t < 0.8:
		factor = 0.5 + math.Sin((t-0.2)/0.6*math.Pi)*0.3
	default:
		factor = 1.0 - easeOutQuad((t-0.8)/0.2)
	}

	lo, hi := float64(opts.MinDelay), float64(opts.MaxDelay)
	delay := hi - factor*(hi-lo)
	if dist > 200 {
		delay *= 0.85
	}
	delay += randomFloat(rng, -0.1, 0.1) * (hi - lo)
	return time.Duration(math.Max(lo, math.Min(hi, delay)))
}

// tremor é um ruído "Perlin" simplificado (soma de senos) limitado a [-1,1].
// O estado é por plano para não vazar entre desafios.
type tremor struct {
	seed float64
	t    float64
}

func newTremor(rng *rand.Rand) *tremor {
	return &tremor{seed: rng.Float64() * 1000}
}

func (tr *tremor) next() float64 {
	tr.t += 0.1
	noise := math.Sin(tr.t*0.7+tr.seed) * 0.5
	noise += math.Sin(tr.t*1.3+tr.seed*1.5) * 0.3
	noise += math.Sin(tr.t*2.7+tr.seed*0.7) * 0.2
	return noise
}

// offset devolve o desvio vertical absoluto do passo atual, em [-amp, amp].
func (tr *tremor) offset(amp int) int {
	if amp <= 0 {
		return 0
	}
	return int(math.Round(tr.next() * float64(amp)))
}

func easeInQuad(t float64) float64 {
	return t * t
}

func easeOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

// easeInOutCubic é o perfil de velocidade em sino.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

func randomFloat(rng *rand.Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + rng.Float64()*(max-min)
}
