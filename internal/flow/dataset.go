package flow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/hihihi151/aujc/pkg/trajectory"
	"go.uber.org/zap"
)

// DatasetPage serve as amostras gravadas pelo ShadowCollector como se fossem
// desafios ao vivo: Refresh passa para a próxima e Verified é sempre falso,
// já que não há site para confirmar. Útil para medir os limiares offline.
type DatasetPage struct {
	dir     string
	samples []captcha.SampleLabel
	idx     int
}

// OpenDataset carrega os labels de dir em ordem de id (que começa pelo timestamp).
func OpenDataset(dir string) (*DatasetPage, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*_label.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	p := &DatasetPage{dir: dir}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("erro lendo label: %w", err)
		}
		var label captcha.SampleLabel
		if err := json.Unmarshal(data, &label); err != nil {
			return nil, fmt.Errorf("label inválido %s: %w", filepath.Base(path), err)
		}
		p.samples = append(p.samples, label)
	}
	return p, nil
}

func (p *DatasetPage) Len() int { return len(p.samples) }

// Current devolve a amostra em exibição.
func (p *DatasetPage) Current() (captcha.SampleLabel, bool) {
	if p.idx >= len(p.samples) {
		return captcha.SampleLabel{}, false
	}
	return p.samples[p.idx], true
}

func (p *DatasetPage) Capture(context.Context) (*Capture, error) {
	label, ok := p.Current()
	if !ok {
		return nil, nil
	}
	images := map[string]challenge.Image{}
	for _, f := range label.Files {
		name := strings.TrimSuffix(strings.TrimPrefix(f, label.ID+"_"), filepath.Ext(f))
		data, err := os.ReadFile(filepath.Join(p.dir, f))
		if err != nil {
			return nil, fmt.Errorf("erro lendo %s: %w", f, err)
		}
		img := challenge.Image{Source: base64.StdEncoding.EncodeToString(data)}
		if size, ok := label.Extra[name+"_size"].(string); ok {
			img.Width, img.Height = parseSize(size)
		}
		images[name] = img
	}

	if label.Kind == captcha.KindSlider {
		return &Capture{Slider: &challenge.SliderRequest{Piece: images["piece"], Background: images["background"]}}, nil
	}
	req := &challenge.ClickRequest{Canvas: images["canvas"], Question: label.Question}
	if q, ok := images["question"]; ok {
		req.QuestionImage = &q
	}
	return &Capture{Click: req}, nil
}

func (p *DatasetPage) Refresh(context.Context) error {
	p.idx++
	return nil
}

func (p *DatasetPage) Verified(context.Context) (bool, error) { return false, nil }

func parseSize(s string) (int, int) {
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0
	}
	width, _ := strconv.Atoi(w)
	height, _ := strconv.Atoi(h)
	return width, height
}

// LogActuator só registra os movimentos, sem navegador.
type LogActuator struct {
	log *zap.Logger
}

func NewLogActuator(logger *zap.Logger) *LogActuator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogActuator{log: logger.Named("dry-run")}
}

func (a *LogActuator) Drag(_ context.Context, start captcha.Point, plan trajectory.Plan) error {
	a.log.Info("arrasto", zap.Float64("x", start.X), zap.Float64("y", start.Y), zap.Int("dx", plan.TotalDX()), zap.Int("steps", len(plan)))
	return nil
}

func (a *LogActuator) Click(_ context.Context, points []captcha.Point) error {
	a.log.Info("cliques", zap.Int("points", len(points)))
	return nil
}

// NoBackoff desliga a espera entre tentativas (execução offline).
func NoBackoff() Option {
	return func(f *Flow) {
		f.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	}
}
