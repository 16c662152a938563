package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/hihihi151/aujc/internal/audit"
	"github.com/hihihi151/aujc/pkg/cache"
	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/hihihi151/aujc/pkg/imaging"
	"github.com/hihihi151/aujc/pkg/metrics"
	"github.com/hihihi151/aujc/pkg/trajectory"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Backend é o que o worker precisa do Engine.
type Backend interface {
	challenge.Solver
	Classify(question string) (challenge.Challenge, error)
	Plan(offset int, strategy string, seed uint64) (trajectory.Plan, error)
}

// AttemptRecorder grava cada tentativa (audit.AttemptRepository em produção).
type AttemptRecorder interface {
	Record(ctx context.Context, a audit.Attempt) (string, error)
}

// Server atende jobs.captcha.solve num queue group: vários workers dividem a fila.
type Server struct {
	backend Backend
	cache   *cache.SolutionCache
	metrics *metrics.Recorder
	audit   AttemptRecorder
	shadow  *captcha.ShadowCollector
	timeout time.Duration
	// concurrency limita quantos jobs são atendidos ao mesmo tempo
	concurrency int
	log         *zap.Logger
}

const drainTimeout = 30 * time.Second

type ServerOption func(*Server)

func WithCache(c *cache.SolutionCache) ServerOption { return func(s *Server) { s.cache = c } }

func WithMetrics(r *metrics.Recorder) ServerOption { return func(s *Server) { s.metrics = r } }

func WithAudit(a AttemptRecorder) ServerOption { return func(s *Server) { s.audit = a } }

func WithShadow(c *captcha.ShadowCollector) ServerOption { return func(s *Server) { s.shadow = c } }

// WithTimeout limita o tempo de cada job; 0 desliga.
func WithTimeout(d time.Duration) ServerOption { return func(s *Server) { s.timeout = d } }

// WithConcurrency limita os jobs simultâneos; n <= 0 usa GOMAXPROCS.
func WithConcurrency(n int) ServerOption { return func(s *Server) { s.concurrency = n } }

func NewServer(backend Backend, logger *zap.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{backend: backend, log: logger.Named("worker")}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency <= 0 {
		s.concurrency = runtime.GOMAXPROCS(0)
	}
	return s
}

// Run assina o subject no queue group e bloqueia até ctx ser cancelado. Cada
// job roda na sua goroutine, até o limite de concorrência; ao sair, a
// assinatura é drenada e os jobs em andamento terminam antes do retorno.
func (s *Server) Run(ctx context.Context, nc *nats.Conn, subject, queue string) error {
	slots := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	// jobs aceitos terminam mesmo depois do sinal de parada
	base := context.WithoutCancel(ctx)

	sub, err := nc.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		slots <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			s.serve(base, msg)
		}()
	})
	if err != nil {
		return fmt.Errorf("erro ao assinar %s: %w", subject, err)
	}
	closed := sub.StatusChanged(nats.SubscriptionClosed)
	s.log.Info("Worker rodando!", zap.String("subject", subject), zap.String("queue", queue), zap.Int("concurrency", s.concurrency))

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("erro drenando assinatura: %w", err)
	}
	select {
	case <-closed:
	case <-time.After(drainTimeout):
		s.log.Warn("⚠️ drenagem não terminou a tempo")
	}
	wg.Wait()
	return nil
}

func (s *Server) serve(ctx context.Context, msg *nats.Msg) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	reply := s.Handle(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		s.log.Warn("⚠️ erro respondendo job", zap.Error(err))
	}
}

// Handle processa um job serializado e devolve a resposta serializada.
func (s *Server) Handle(ctx context.Context, data []byte) []byte {
	var job Job
	var reply Reply
	if err := json.Unmarshal(data, &job); err != nil {
		s.log.Warn("❌ erro unmarshal job", zap.Error(err))
		reply = Reply{ErrorKind: KindInternal, Error: fmt.Sprintf("job inválido: %v", err)}
	} else {
		reply = s.handle(ctx, job)
	}
	out, err := json.Marshal(reply)
	if err != nil {
		out, _ = json.Marshal(Reply{ID: job.ID, ErrorKind: KindInternal, Error: err.Error()})
	}
	return out
}

func (s *Server) handle(ctx context.Context, job Job) Reply {
	start := time.Now()
	log := s.log.With(zap.String("job", job.ID), zap.String("mode", string(job.Mode)))

	var (
		reply Reply
		kind  captcha.Kind
		score float64
		err   error
	)
	switch {
	case job.Mode == ModeSlider && job.Slider != nil:
		kind = captcha.KindSlider
		var sol challenge.SliderSolution
		sol, reply.Cached, err = s.solveSlider(ctx, *job.Slider, job.Fresh)
		if err == nil {
			reply.Slider = &sol
			score = sol.Score
		}
	case job.Mode == ModeClick && job.Click != nil:
		var sol challenge.ClickSolution
		sol, reply.Cached, err = s.solveClick(ctx, *job.Click, job.Fresh)
		kind = s.clickKind(*job.Click, sol, err)
		if err == nil {
			reply.Click = &sol
			score = sol.Confidence
		}
	default:
		err = fmt.Errorf("job sem payload para o modo %q", job.Mode)
	}
	reply.ID = job.ID

	outcome := metrics.OutcomeSolved
	switch {
	case err != nil && captcha.IsRefreshSignal(err):
		outcome = metrics.OutcomeRefresh
	case err != nil:
		outcome = metrics.OutcomeError
	case reply.Cached:
		outcome = metrics.OutcomeCached
	}
	if err != nil {
		reply.ErrorKind, reply.Detail = encodeError(err)
		reply.Error = err.Error()
	}

	elapsed := time.Since(start)
	if err != nil {
		log.Info("⚠️ job sem solução", zap.String("kind", string(kind)), zap.String("error_kind", reply.ErrorKind), zap.Error(err), zap.Duration("elapsed", elapsed))
	} else {
		log.Info("✅ job resolvido", zap.String("kind", string(kind)), zap.Bool("cached", reply.Cached), zap.Duration("elapsed", elapsed))
	}

	s.observe(ctx, job, kind, outcome, reply, score, elapsed)
	return reply
}

type cachedSlider struct {
	Offset int     `json:"offset"`
	Target int     `json:"target"`
	Score  float64 `json:"score"`
}

// solveSlider guarda só o offset: o plano é gerado de novo em todo acerto de
// cache para nunca repetir a mesma trajetória.
func (s *Server) solveSlider(ctx context.Context, req challenge.SliderRequest, fresh bool) (challenge.SliderSolution, bool, error) {
	key := sliderKey(req)
	if s.cache != nil {
		if fresh {
			s.forget(ctx, captcha.KindSlider, key)
		} else {
			var hit cachedSlider
			ok, err := s.cache.Get(ctx, captcha.KindSlider, key, &hit)
			if err != nil {
				s.log.Warn("⚠️ erro lendo cache", zap.Error(err))
			}
			if ok {
				plan, err := s.backend.Plan(hit.Target, req.Strategy, req.Seed)
				if err != nil {
					return challenge.SliderSolution{}, false, err
				}
				return challenge.SliderSolution{Offset: hit.Offset, Target: hit.Target, Score: hit.Score, Plan: plan}, true, nil
			}
		}
	}

	sol, err := s.backend.SolveSlider(ctx, req)
	if err != nil {
		return sol, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, captcha.KindSlider, key, cachedSlider{Offset: sol.Offset, Target: sol.Target, Score: sol.Score}); err != nil {
			s.log.Warn("⚠️ erro gravando cache", zap.Error(err))
		}
	}
	return sol, false, nil
}

func (s *Server) solveClick(ctx context.Context, req challenge.ClickRequest, fresh bool) (challenge.ClickSolution, bool, error) {
	key := clickKey(req)
	// o tipo só é conhecido depois de resolver; o cache de clique usa a forma como namespace
	const ns = captcha.KindShape
	if s.cache != nil {
		if fresh {
			s.forget(ctx, ns, key)
		} else {
			var hit challenge.ClickSolution
			ok, err := s.cache.Get(ctx, ns, key, &hit)
			if err != nil {
				s.log.Warn("⚠️ erro lendo cache", zap.Error(err))
			}
			if ok {
				return hit, true, nil
			}
		}
	}

	sol, err := s.backend.SolveClick(ctx, req)
	if err != nil {
		return sol, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, ns, key, sol); err != nil {
			s.log.Warn("⚠️ erro gravando cache", zap.Error(err))
		}
	}
	return sol, false, nil
}

func (s *Server) forget(ctx context.Context, kind captcha.Kind, key string) {
	if err := s.cache.Forget(ctx, kind, key); err != nil {
		s.log.Warn("⚠️ erro apagando cache", zap.Error(err))
	}
}

// clickKind descobre o tipo do desafio para as métricas mesmo quando a resolução falhou.
func (s *Server) clickKind(req challenge.ClickRequest, sol challenge.ClickSolution, err error) captcha.Kind {
	if sol.Kind != "" {
		return sol.Kind
	}
	if req.Question != "" {
		if ch, cerr := s.backend.Classify(req.Question); cerr == nil {
			return ch.Kind()
		}
	}
	if kind, d := encodeError(err); kind == KindUnsupported && d.Kind != "" {
		return d.Kind
	}
	return captcha.KindShape
}

func (s *Server) observe(ctx context.Context, job Job, kind captcha.Kind, outcome metrics.Outcome, reply Reply, score float64, elapsed time.Duration) {
	if s.metrics != nil {
		if err := s.metrics.Inc(ctx, kind, outcome); err != nil {
			s.log.Warn("⚠️ erro incrementando métrica", zap.Error(err))
		}
	}
	if s.audit != nil {
		_, err := s.audit.Record(ctx, audit.Attempt{
			JobID:     job.ID,
			Kind:      string(kind),
			Outcome:   string(outcome),
			ErrorKind: reply.ErrorKind,
			Latency:   elapsed,
			Score:     score,
			Cached:    reply.Cached,
		})
		if err != nil {
			s.log.Warn("⚠️ erro gravando auditoria", zap.Error(err))
		}
	}
	if s.shadow != nil && outcome == metrics.OutcomeRefresh {
		s.collect(job, kind, reply)
	}
}

// collect salva as imagens do desafio que não foi resolvido.
func (s *Server) collect(job Job, kind captcha.Kind, reply Reply) {
	images := map[string][]byte{}
	label := captcha.SampleLabel{Reason: reply.ErrorKind, Extra: map[string]any{"job": job.ID, "error": reply.Error}}
	add := func(name string, img challenge.Image) {
		data, err := imaging.SourceBytes(img.Source)
		if err != nil {
			s.log.Debug("imagem ignorada na coleta", zap.String("name", name), zap.Error(err))
			return
		}
		images[name] = data
		if img.Width > 0 {
			label.Extra[name+"_size"] = strconv.Itoa(img.Width) + "x" + strconv.Itoa(img.Height)
		}
	}
	switch {
	case job.Slider != nil:
		add("piece", job.Slider.Piece)
		add("background", job.Slider.Background)
	case job.Click != nil:
		label.Question = job.Click.Question
		add("canvas", job.Click.Canvas)
		if job.Click.QuestionImage != nil {
			add("question", *job.Click.QuestionImage)
		}
	}
	if len(images) == 0 {
		return
	}
	if _, err := s.shadow.Save(kind, images, label); err != nil {
		s.log.Warn("⚠️ erro salvando amostra", zap.Error(err))
	}
}

func sliderKey(req challenge.SliderRequest) string {
	y := ""
	if req.YHint != nil {
		y = strconv.Itoa(*req.YHint)
	}
	return cache.Key(imageKey(req.Piece), imageKey(req.Background), y)
}

func clickKey(req challenge.ClickRequest) string {
	q := ""
	if req.QuestionImage != nil {
		q = imageKey(*req.QuestionImage)
	}
	return cache.Key(imageKey(req.Canvas), req.Question, q)
}

func imageKey(img challenge.Image) string {
	return fmt.Sprintf("%dx%d:%s", img.Width, img.Height, img.Source)
}
