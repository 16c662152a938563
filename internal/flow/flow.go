package flow

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/hihihi151/aujc/pkg/config"
	"github.com/hihihi151/aujc/pkg/trajectory"
	"go.uber.org/zap"
)

// State é a etapa atual do fluxo de resolução.
type State string

const (
	StateAwaiting  State = "awaiting-challenge"
	StateSolving   State = "solving"
	StateVerifying State = "verifying"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// ErrAttemptsExhausted indica que o limite de tentativas acabou sem verificação.
var ErrAttemptsExhausted = errors.New("tentativas de captcha esgotadas")

// Capture é o desafio visível na página, já com as posições na tela.
// Exatamente um de Slider e Click é preenchido.
type Capture struct {
	Slider *challenge.SliderRequest
	Click  *challenge.ClickRequest
	// SliderStart é o centro do botão do slider.
	SliderStart captcha.Point
	// CanvasOrigin é o canto superior esquerdo do canvas de clique.
	CanvasOrigin captcha.Point
}

// Page é a camada específica do site.
type Page interface {
	// Capture devolve nil quando não há desafio na página.
	Capture(ctx context.Context) (*Capture, error)
	Refresh(ctx context.Context) error
	Verified(ctx context.Context) (bool, error)
}

// Actuator executa os movimentos do ponteiro.
type Actuator interface {
	Drag(ctx context.Context, start captcha.Point, plan trajectory.Plan) error
	Click(ctx context.Context, points []captcha.Point) error
}

// Result resume uma execução do fluxo.
type Result struct {
	State    State
	Attempts int
}

type Flow struct {
	page     Page
	actuator Actuator
	solver   challenge.Solver
	retry    config.Retry
	rng      *rand.Rand
	log      *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	onState  func(State)
	state    State
}

type Option func(*Flow)

// WithRand fixa a aleatoriedade do backoff.
func WithRand(rng *rand.Rand) Option { return func(f *Flow) { f.rng = rng } }

// WithStateHook é chamado a cada transição.
func WithStateHook(fn func(State)) Option { return func(f *Flow) { f.onState = fn } }

func New(page Page, actuator Actuator, solver challenge.Solver, retry config.Retry, logger *zap.Logger, opts ...Option) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Flow{
		page:     page,
		actuator: actuator,
		solver:   solver,
		retry:    retry,
		log:      logger.Named("flow"),
		sleep:    sleepCtx,
		state:    StateAwaiting,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return f
}

func (f *Flow) State() State { return f.state }

// Run resolve desafios até a página ficar sem captcha, verificar a solução
// ou esgotar as tentativas. Slider e clique têm orçamentos separados;
// Result.Attempts soma os dois.
func (f *Flow) Run(ctx context.Context) (Result, error) {
	attempts := 0
	used := map[bool]int{}
	for {
		f.set(StateAwaiting)
		capture, err := f.page.Capture(ctx)
		if err != nil {
			return f.fail(attempts, fmt.Errorf("erro capturando desafio: %w", err))
		}
		if capture == nil {
			f.set(StateDone)
			return Result{State: StateDone, Attempts: attempts}, nil
		}
		click := capture.Click != nil
		if used[click] >= f.limit(click) {
			return f.fail(attempts, ErrAttemptsExhausted)
		}
		used[click]++
		attempts++

		f.set(StateSolving)
		err = f.solve(ctx, capture)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return f.fail(attempts, ctx.Err())
		case isDecode(err):
			// imagem capturada pela metade: captura de novo sem atualizar
			f.log.Warn("⚠️ imagem inválida, capturando de novo", zap.Int("attempt", attempts), zap.Error(err))
			if err := f.backoff(ctx); err != nil {
				return f.fail(attempts, err)
			}
			continue
		case shouldRefresh(err):
			f.log.Info("🔄 desafio não suportado, atualizando", zap.Int("attempt", attempts), zap.Error(err))
			if err := f.refresh(ctx); err != nil {
				return f.fail(attempts, err)
			}
			continue
		default:
			return f.fail(attempts, err)
		}

		f.set(StateVerifying)
		ok, err := f.page.Verified(ctx)
		if err != nil {
			return f.fail(attempts, fmt.Errorf("erro verificando captcha: %w", err))
		}
		if ok {
			f.log.Info("✅ captcha resolvido", zap.Int("attempts", attempts))
			f.set(StateDone)
			return Result{State: StateDone, Attempts: attempts}, nil
		}
		f.log.Info("❌ solução rejeitada pelo site", zap.Int("attempt", attempts))
		if err := f.refresh(ctx); err != nil {
			return f.fail(attempts, err)
		}
	}
}

func (f *Flow) solve(ctx context.Context, c *Capture) error {
	switch {
	case c.Slider != nil:
		sol, err := f.solver.SolveSlider(ctx, *c.Slider)
		if err != nil {
			return err
		}
		f.log.Debug("arrastando slider", zap.Int("target", sol.Target), zap.Int("steps", len(sol.Plan)))
		if err := f.actuator.Drag(ctx, c.SliderStart, sol.Plan); err != nil {
			return fmt.Errorf("erro arrastando slider: %w", err)
		}
	case c.Click != nil:
		sol, err := f.solver.SolveClick(ctx, *c.Click)
		if err != nil {
			return err
		}
		points := make([]captcha.Point, len(sol.Points))
		for i, p := range sol.Points {
			points[i] = p.Add(c.CanvasOrigin)
		}
		f.log.Debug("clicando", zap.String("kind", string(sol.Kind)), zap.String("target", sol.Target), zap.Int("points", len(points)))
		if err := f.actuator.Click(ctx, points); err != nil {
			return fmt.Errorf("erro clicando: %w", err)
		}
	default:
		return fmt.Errorf("captura sem desafio")
	}
	return nil
}

func (f *Flow) limit(click bool) int {
	if click && f.retry.ClickMaxAttempts > 0 {
		return f.retry.ClickMaxAttempts
	}
	if f.retry.MaxAttempts > 0 {
		return f.retry.MaxAttempts
	}
	return 1
}

func (f *Flow) refresh(ctx context.Context) error {
	if err := f.page.Refresh(ctx); err != nil {
		return fmt.Errorf("erro atualizando captcha: %w", err)
	}
	return f.backoff(ctx)
}

// backoff espera um tempo sorteado entre BackoffMin e BackoffMax.
func (f *Flow) backoff(ctx context.Context) error {
	lo, hi := f.retry.BackoffMin(), f.retry.BackoffMax()
	d := lo
	if hi > lo {
		d += time.Duration(f.rng.Int64N(int64(hi - lo)))
	}
	return f.sleep(ctx, d)
}

func (f *Flow) set(s State) {
	if f.state == s {
		return
	}
	f.state = s
	if f.onState != nil {
		f.onState(s)
	}
}

func (f *Flow) fail(attempts int, err error) (Result, error) {
	f.set(StateFailed)
	f.log.Warn("fluxo de captcha falhou", zap.Int("attempts", attempts), zap.Error(err))
	return Result{State: StateFailed, Attempts: attempts}, err
}

// shouldRefresh inclui os erros que um desafio diferente pode evitar.
func shouldRefresh(err error) bool {
	return captcha.IsRefreshSignal(err) ||
		errors.Is(err, captcha.ErrModelUnavailable) ||
		errors.Is(err, captcha.ErrTemplateTooLarge)
}

func isDecode(err error) bool {
	var d *captcha.DecodeError
	return errors.As(err, &d) || errors.Is(err, captcha.ErrEmptyImage)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
