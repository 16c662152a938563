package challenge

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/config"
	"github.com/hihihi151/aujc/pkg/imaging"
	"github.com/hihihi151/aujc/pkg/shape"
	"github.com/hihihi151/aujc/pkg/slider"
	"github.com/hihihi151/aujc/pkg/textcaptcha"
	"github.com/hihihi151/aujc/pkg/trajectory"
	"go.uber.org/zap"
)

// Image é uma imagem capturada da página: o src do <img> (data URL ou base64)
// e o tamanho em que ela aparece no viewport. Width/Height zero = tamanho nativo.
type Image struct {
	Source string `json:"source"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

func (i Image) Canvas() (imaging.Canvas, error) {
	c, err := imaging.DecodeSource(i.Source)
	if err != nil {
		return imaging.Canvas{}, err
	}
	if i.Width > 0 && i.Height > 0 {
		c = c.WithRendered(i.Width, i.Height)
	}
	return c, nil
}

type SliderRequest struct {
	Piece      Image `json:"piece"`
	Background Image `json:"background"`
	// YHint é o topo conhecido da peça no fundo; nil quando desconhecido.
	YHint *int `json:"y_hint,omitempty"`
	// Strategy sobrescreve a estratégia configurada ("legacy" ou "eased").
	Strategy string `json:"strategy,omitempty"`
	// Seed fixa a aleatoriedade do plano (reprodução de testes); 0 = aleatório.
	Seed uint64 `json:"seed,omitempty"`
}

type SliderSolution struct {
	// Offset é o deslocamento encontrado; Target já inclui a calibração.
	Offset int             `json:"offset"`
	Target int             `json:"target"`
	Score  float64         `json:"score"`
	Plan   trajectory.Plan `json:"plan"`
}

type ClickRequest struct {
	Canvas   Image  `json:"canvas"`
	Question string `json:"question,omitempty"`
	// QuestionImage é usada quando o texto da pergunta não está disponível.
	QuestionImage *Image `json:"question_image,omitempty"`
}

type ClickSolution struct {
	Kind       captcha.Kind    `json:"kind"`
	Target     string          `json:"target"`
	Points     []captcha.Point `json:"points"`
	Confidence float64         `json:"confidence,omitempty"`
}

// Solver é o contrato comum do Engine local e do cliente remoto.
type Solver interface {
	SolveSlider(ctx context.Context, req SliderRequest) (SliderSolution, error)
	SolveClick(ctx context.Context, req ClickRequest) (ClickSolution, error)
}

// QuestionReader lê o texto da pergunta a partir da imagem.
type QuestionReader interface {
	Read(ctx context.Context, c imaging.Canvas) (string, error)
}

// Engine executa os resolvedores no Pool de CPU.
type Engine struct {
	log         *zap.Logger
	pool        *Pool
	slider      slider.Options
	trajectory  trajectory.Options
	calibration int
	localizer   *shape.Localizer
	classifier  Classifier
	text        *textcaptcha.Resolver
	reader      QuestionReader
	textOpts    textcaptcha.Options
}

type Option func(*Engine)

// WithText habilita o captcha de texto com as capacidades de detecção e classificação.
func WithText(det textcaptcha.Detector, cls textcaptcha.Classifier) Option {
	return func(e *Engine) { e.text = textcaptcha.NewResolver(det, cls, e.textOpts) }
}

func WithQuestionReader(r QuestionReader) Option {
	return func(e *Engine) { e.reader = r }
}

func WithPool(p *Pool) Option {
	return func(e *Engine) { e.pool = p }
}

func NewEngine(cfg config.Solver, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	traj, err := TrajectoryOptions(cfg.Trajectory)
	if err != nil {
		return nil, err
	}
	shapeOpts := ShapeOptions(cfg.Shape)
	if err := shapeOpts.Vocabulary.Validate(); err != nil {
		return nil, fmt.Errorf("vocabulário inválido: %w", err)
	}

	e := &Engine{
		log:         logger.Named("engine"),
		pool:        NewPool(cfg.Workers),
		slider:      SliderOptions(cfg.Slider),
		trajectory:  traj,
		calibration: cfg.Slider.Calibration,
		localizer:   shape.NewLocalizer(shapeOpts),
		classifier:  Classifier{Vocabulary: shapeOpts.Vocabulary, SequenceLength: cfg.Text.Length},
		textOpts:    TextOptions(cfg.Text),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Classify expõe a classificação da pergunta (usada pelo CLI e pelo worker).
func (e *Engine) Classify(question string) (Challenge, error) {
	return e.classifier.Classify(question)
}

// Plan gera um plano de movimento para um deslocamento já conhecido.
func (e *Engine) Plan(offset int, strategy string, seed uint64) (trajectory.Plan, error) {
	opts := e.trajectory
	if strategy != "" {
		s, err := trajectory.ParseStrategy(strategy)
		if err != nil {
			return nil, err
		}
		opts.Strategy = s
	}
	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	return trajectory.NewGenerator(opts, rng).Plan(offset), nil
}

// SolveSlider decodifica, alinha a peça e planeja o arrasto.
func (e *Engine) SolveSlider(ctx context.Context, req SliderRequest) (SliderSolution, error) {
	start := time.Now()
	piece, err := req.Piece.Canvas()
	if err != nil {
		return SliderSolution{}, fmt.Errorf("peça: %w", err)
	}
	background, err := req.Background.Canvas()
	if err != nil {
		return SliderSolution{}, fmt.Errorf("fundo: %w", err)
	}

	opts := e.slider
	if req.YHint != nil {
		opts.YHint = *req.YHint
	}
	res, err := Do(ctx, e.pool, func() (slider.Result, error) {
		return slider.Align(piece, background, opts)
	})
	if err != nil {
		return SliderSolution{}, err
	}

	target := min(max(res.Offset+e.calibration, 0), background.RenderedWidth)
	plan, err := e.Plan(target, req.Strategy, req.Seed)
	if err != nil {
		return SliderSolution{}, err
	}

	e.log.Debug("slider resolvido",
		zap.Int("offset", res.Offset),
		zap.Int("target", target),
		zap.Float64("score", res.Score),
		zap.Int("steps", len(plan)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return SliderSolution{Offset: res.Offset, Target: target, Score: res.Score, Plan: plan}, nil
}

// SolveClick classifica a pergunta e localiza os pontos a clicar. Ausência de
// região vira captcha.ErrNoMatch, que o orquestrador trata como "atualizar".
func (e *Engine) SolveClick(ctx context.Context, req ClickRequest) (ClickSolution, error) {
	question, err := e.question(ctx, req)
	if err != nil {
		return ClickSolution{}, err
	}
	ch, err := e.classifier.Classify(question)
	if err != nil {
		return ClickSolution{}, err
	}
	canvas, err := req.Canvas.Canvas()
	if err != nil {
		return ClickSolution{}, fmt.Errorf("canvas: %w", err)
	}

	sol := ClickSolution{Kind: ch.Kind(), Target: ch.Target()}
	switch c := ch.(type) {
	case ColorChallenge, ShapeChallenge:
		q := shape.ColorQuery(c.Target())
		if c.Kind() == captcha.KindShape {
			q = shape.ShapeQuery(c.Target())
		}
		m, err := Do(ctx, e.pool, func() (*shape.Match, error) {
			return e.localizer.Locate(canvas, q)
		})
		if err != nil {
			return ClickSolution{}, err
		}
		if m == nil {
			return ClickSolution{}, fmt.Errorf("%s %q: %w", c.Kind(), c.Target(), captcha.ErrNoMatch)
		}
		sol.Points = []captcha.Point{m.Center}
		sol.Confidence = m.Confidence

	case SequenceChallenge:
		if e.text == nil {
			return ClickSolution{}, captcha.ErrModelUnavailable
		}
		seq, err := Do(ctx, e.pool, func() (textcaptcha.ClickSequence, error) {
			return e.text.ResolveChars(ctx, c.Chars, canvas)
		})
		if err != nil {
			return ClickSolution{}, err
		}
		sol.Points = seq
	}

	e.log.Debug("clique resolvido",
		zap.String("kind", string(sol.Kind)),
		zap.String("target", sol.Target),
		zap.Int("points", len(sol.Points)),
	)
	return sol, nil
}

func (e *Engine) question(ctx context.Context, req ClickRequest) (string, error) {
	if req.Question != "" {
		return req.Question, nil
	}
	if req.QuestionImage == nil {
		return "", &captcha.UnsupportedTargetError{Reason: "pergunta ausente"}
	}
	if e.reader == nil {
		return "", captcha.ErrModelUnavailable
	}
	img, err := req.QuestionImage.Canvas()
	if err != nil {
		return "", fmt.Errorf("imagem da pergunta: %w", err)
	}
	text, err := e.reader.Read(ctx, img)
	if err != nil {
		return "", fmt.Errorf("erro lendo pergunta: %w", err)
	}
	e.log.Debug("pergunta lida", zap.String("question", text))
	return text, nil
}
