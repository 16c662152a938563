package browser

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/trajectory"
	"go.uber.org/zap"
)

// Mouse é o subconjunto de *rod.Mouse usado para reproduzir os planos.
type Mouse interface {
	MoveTo(p proto.Point) error
	Down(button proto.InputMouseButton, clickCount int) error
	Up(button proto.InputMouseButton, clickCount int) error
}

// Actuator reproduz TrajectoryPlan e ClickSequence no ponteiro do navegador.
type Actuator struct {
	mouse Mouse
	rng   *rand.Rand
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error
	// pausas "humanas" antes de pressionar e entre cliques
	pressPause [2]time.Duration
	clickPause [2]time.Duration
}

func NewActuator(m Mouse, rng *rand.Rand, logger *zap.Logger) *Actuator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Actuator{
		mouse:      m,
		rng:        rng,
		log:        logger.Named("mouse"),
		sleep:      sleepCtx,
		pressPause: [2]time.Duration{80 * time.Millisecond, 200 * time.Millisecond},
		clickPause: [2]time.Duration{250 * time.Millisecond, 600 * time.Millisecond},
	}
}

// ForPage usa o mouse da página rod.
func ForPage(page *rod.Page, rng *rand.Rand, logger *zap.Logger) *Actuator {
	return NewActuator(page.Mouse, rng, logger)
}

// Drag pressiona em start, percorre o plano respeitando o DT de cada passo e solta.
// O botão é sempre liberado, mesmo em erro ou cancelamento.
func (a *Actuator) Drag(ctx context.Context, start captcha.Point, plan trajectory.Plan) (err error) {
	if err := a.mouse.MoveTo(toProto(start)); err != nil {
		return fmt.Errorf("erro movendo até o slider: %w", err)
	}
	if err := a.pause(ctx, a.pressPause); err != nil {
		return err
	}
	if err := a.mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("erro ao pressionar mouse: %w", err)
	}
	defer func() {
		if upErr := a.mouse.Up(proto.InputMouseButtonLeft, 1); upErr != nil && err == nil {
			err = fmt.Errorf("erro ao soltar mouse: %w", upErr)
		}
	}()

	x, y := start.X, start.Y
	for i, step := range plan {
		x += float64(step.DX)
		y += float64(step.DY)
		if err := a.mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
			return fmt.Errorf("erro no passo %d: %w", i, err)
		}
		if err := a.sleep(ctx, step.DT); err != nil {
			return err
		}
	}
	a.log.Debug("arrasto concluído", zap.Int("dx", plan.TotalDX()), zap.Int("steps", len(plan)), zap.Duration("duration", plan.Duration()))
	return nil
}

// Click clica em cada ponto na ordem, com pausas sorteadas entre eles.
func (a *Actuator) Click(ctx context.Context, points []captcha.Point) error {
	for i, p := range points {
		if i > 0 {
			if err := a.pause(ctx, a.clickPause); err != nil {
				return err
			}
		}
		if err := a.mouse.MoveTo(toProto(p)); err != nil {
			return fmt.Errorf("erro movendo até o ponto %d: %w", i, err)
		}
		if err := a.mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("erro ao pressionar mouse: %w", err)
		}
		if err := a.pause(ctx, [2]time.Duration{40 * time.Millisecond, 110 * time.Millisecond}); err != nil {
			_ = a.mouse.Up(proto.InputMouseButtonLeft, 1)
			return err
		}
		if err := a.mouse.Up(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("erro ao soltar mouse: %w", err)
		}
	}
	a.log.Debug("cliques concluídos", zap.Int("points", len(points)))
	return nil
}

func (a *Actuator) pause(ctx context.Context, r [2]time.Duration) error {
	d := r[0]
	if r[1] > r[0] {
		d += time.Duration(a.rng.Int64N(int64(r[1] - r[0])))
	}
	return a.sleep(ctx, d)
}

func toProto(p captcha.Point) proto.Point {
	return proto.Point{X: p.X, Y: p.Y}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
