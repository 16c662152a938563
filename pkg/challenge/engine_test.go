package challenge

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/config"
	"github.com/hihihi151/aujc/pkg/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataURL(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// sliderImages gera fundo texturizado e peça recortada em (x0, y0).
func sliderImages(x0, y0, size int) (piece, bg *image.NRGBA) {
	rng := rand.New(rand.NewPCG(3, 3))
	bg = image.NewNRGBA(image.Rect(0, 0, 280, 140))
	for by := 0; by < 140; by += 2 {
		for bx := 0; bx < 280; bx += 2 {
			c := color.NRGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256)), A: 255}
			for y := by; y < by+2; y++ {
				for x := bx; x < bx+2; x++ {
					bg.SetNRGBA(x, y, c)
				}
			}
		}
	}
	piece = image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := bg.NRGBAAt(x0+x, y0+y)
			piece.SetNRGBA(x, y, c)
			bg.SetNRGBA(x0+x, y0+y, color.NRGBA{R: c.R / 2, G: c.G / 2, B: c.B / 2, A: 255})
		}
	}
	return piece, bg
}

func circleCanvas(cx, cy, r float64, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 200; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 236, G: 236, B: 236, A: 255})
			if math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) <= r {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	return img
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(config.Default().Solver, nil, opts...)
	require.NoError(t, err)
	return e
}

func TestEngineSolveSlider(t *testing.T) {
	piece, bg := sliderImages(120, 50, 40)
	cfg := config.Default().Solver
	cfg.Slider.Calibration = 3
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	sol, err := e.SolveSlider(context.Background(), SliderRequest{
		Piece:      Image{Source: dataURL(t, piece)},
		Background: Image{Source: dataURL(t, bg)},
		Seed:       7,
	})
	require.NoError(t, err)
	assert.InDelta(t, 120, sol.Offset, 2)
	assert.Equal(t, sol.Offset+3, sol.Target)
	assert.Equal(t, sol.Target, sol.Plan.TotalDX())
}

func TestEngineCalibratedTargetStaysInsideBackground(t *testing.T) {
	piece, bg := sliderImages(230, 50, 40)
	cfg := config.Default().Solver
	cfg.Slider.Calibration = 200
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	req := SliderRequest{
		Piece:      Image{Source: dataURL(t, piece)},
		Background: Image{Source: dataURL(t, bg)},
		Seed:       7,
	}
	sol, err := e.SolveSlider(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 280, sol.Target)
	assert.Equal(t, 280, sol.Plan.TotalDX())

	cfg.Slider.Calibration = -500
	e, err = NewEngine(cfg, nil)
	require.NoError(t, err)
	sol, err = e.SolveSlider(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, sol.Target)
	assert.Empty(t, sol.Plan)
}

func TestEngineSolveSliderDecodeError(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.SolveSlider(context.Background(), SliderRequest{
		Piece:      Image{Source: "data:image/png;base64,bm9wZQ=="},
		Background: Image{Source: "data:image/png;base64,bm9wZQ=="},
	})
	var decodeErr *captcha.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestEngineSolveClickColorAndShape(t *testing.T) {
	e := newTestEngine(t)
	canvas := Image{Source: dataURL(t, circleCanvas(60, 50, 25, color.NRGBA{R: 30, G: 60, B: 200, A: 255})), Width: 100, Height: 60}

	sol, err := e.SolveClick(context.Background(), ClickRequest{Canvas: canvas, Question: "请选出图中蓝色的图形"})
	require.NoError(t, err)
	assert.Equal(t, captcha.KindColor, sol.Kind)
	require.Len(t, sol.Points, 1)
	assert.InDelta(t, 30, sol.Points[0].X, 1)
	assert.InDelta(t, 25, sol.Points[0].Y, 1)

	sol, err = e.SolveClick(context.Background(), ClickRequest{Canvas: canvas, Question: "请选出图中的圆形"})
	require.NoError(t, err)
	assert.Equal(t, captcha.KindShape, sol.Kind)
	assert.Equal(t, "circle", sol.Target)

	_, err = e.SolveClick(context.Background(), ClickRequest{Canvas: canvas, Question: "请选出图中的三角形"})
	assert.ErrorIs(t, err, captcha.ErrNoMatch)
	assert.True(t, captcha.IsRefreshSignal(err))
}

type stubDetector struct{ boxes []image.Rectangle }

func (s stubDetector) Detect(context.Context, imaging.Canvas) ([]image.Rectangle, error) {
	return s.boxes, nil
}

// stubClassifier rotula cada recorte pela posição horizontal.
type stubClassifier struct{ labels map[int]string }

func (s stubClassifier) Classify(_ context.Context, c imaging.Canvas) (string, error) {
	return s.labels[c.Width()], nil
}

type stubReader struct{ text string }

func (s stubReader) Read(context.Context, imaging.Canvas) (string, error) { return s.text, nil }

func TestEngineSolveClickSequence(t *testing.T) {
	// larguras diferentes identificam cada caixa no classificador
	det := stubDetector{boxes: []image.Rectangle{
		image.Rect(20, 20, 30, 40),
		image.Rect(60, 20, 72, 40),
		image.Rect(100, 20, 114, 40),
		image.Rect(140, 20, 156, 40),
	}}
	cls := stubClassifier{labels: map[int]string{30: "地", 32: "黄", 34: "天", 36: "玄"}}
	e := newTestEngine(t, WithText(det, cls), WithQuestionReader(stubReader{text: "请依次点击【天地玄黄】"}))

	canvas := Image{Source: dataURL(t, circleCanvas(0, 0, 0, color.NRGBA{}))}
	question := Image{Source: dataURL(t, circleCanvas(0, 0, 0, color.NRGBA{}))}
	sol, err := e.SolveClick(context.Background(), ClickRequest{Canvas: canvas, QuestionImage: &question})
	require.NoError(t, err)
	assert.Equal(t, captcha.KindSequence, sol.Kind)
	assert.Equal(t, []captcha.Point{{X: 107, Y: 30}, {X: 25, Y: 30}, {X: 148, Y: 30}, {X: 66, Y: 30}}, sol.Points)
}

func TestEngineSequenceWithoutModels(t *testing.T) {
	e := newTestEngine(t)
	canvas := Image{Source: dataURL(t, circleCanvas(0, 0, 0, color.NRGBA{}))}

	_, err := e.SolveClick(context.Background(), ClickRequest{Canvas: canvas, Question: "请依次点击【天地玄黄】"})
	assert.ErrorIs(t, err, captcha.ErrModelUnavailable)

	_, err = e.SolveClick(context.Background(), ClickRequest{Canvas: canvas})
	assert.True(t, captcha.IsRefreshSignal(err))
}

func TestEnginePlanOverrides(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.Plan(90, "legacy", 5)
	require.NoError(t, err)
	b, err := e.Plan(90, "legacy", 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 90, a.TotalDX())

	_, err = e.Plan(90, "zigzag", 0)
	assert.Error(t, err)
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := config.Default().Solver
	cfg.Shape.Colors = []string{"magenta"}
	_, err := NewEngine(cfg, nil)
	assert.Error(t, err)

	cfg = config.Default().Solver
	cfg.Trajectory.Strategy = "teleporte"
	_, err = NewEngine(cfg, nil)
	assert.Error(t, err)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	done := make(chan struct{})

	for i := 0; i < 6; i++ {
		go func() {
			_, _ = Do(context.Background(), p, func() (int, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return 0, nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolDiscardsResultOnCancel(t *testing.T) {
	p := NewPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})

	errc := make(chan error, 1)
	go func() {
		_, err := Do(ctx, p, func() (int, error) {
			<-release
			return 42, nil
		})
		errc <- err
	}()
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	close(release)

	// a vaga volta para o pool depois que a função termina
	v, err := Do(context.Background(), p, func() (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}
