package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MetricDef define o mapeamento entre uma chave Redis e uma métrica Prometheus.
type MetricDef struct {
	RedisKey string
	PromName string
	Help     string
	Type     string // "counter" ou "gauge"
}

// Outcome é o resultado de uma tentativa de resolução.
type Outcome string

const (
	OutcomeSolved  Outcome = "solved"
	OutcomeRefresh Outcome = "refresh"
	OutcomeError   Outcome = "error"
	OutcomeCached  Outcome = "cached"
)

var outcomes = []Outcome{OutcomeSolved, OutcomeRefresh, OutcomeError, OutcomeCached}

var kinds = []captcha.Kind{captcha.KindSlider, captcha.KindColor, captcha.KindShape, captcha.KindSequence}

func counterKey(kind captcha.Kind, outcome Outcome) string {
	return fmt.Sprintf("aujc:metrics:%s:%s", kind, outcome)
}

// Definitions lista um contador por tipo de desafio e resultado.
func Definitions() []MetricDef {
	defs := make([]MetricDef, 0, len(kinds)*len(outcomes))
	for _, k := range kinds {
		for _, o := range outcomes {
			defs = append(defs, MetricDef{
				RedisKey: counterKey(k, o),
				PromName: fmt.Sprintf("aujc_%s_%s_total", k, o),
				Help:     fmt.Sprintf("Tentativas de captcha %s com resultado %s", k, o),
				Type:     "counter",
			})
		}
	}
	return defs
}

// Recorder incrementa os contadores no Redis; vários workers somam no mesmo lugar.
type Recorder struct {
	rdb *redis.Client
}

func NewRecorder(rdb *redis.Client) *Recorder {
	return &Recorder{rdb: rdb}
}

func (r *Recorder) Inc(ctx context.Context, kind captcha.Kind, outcome Outcome) error {
	return r.rdb.Incr(ctx, counterKey(kind, outcome)).Err()
}

// Handler expõe as métricas no formato texto do Prometheus.
func Handler(rdb *redis.Client, defs []MetricDef, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		for _, m := range defs {
			val, err := rdb.Get(ctx, m.RedisKey).Result()
			if errors.Is(err, redis.Nil) {
				val = "0"
			} else if err != nil {
				logger.Warn("metrics: erro ao ler chave", zap.String("key", m.RedisKey), zap.Error(err))
				val = "0"
			}
			fmt.Fprintf(w, "# HELP %s %s\n", m.PromName, m.Help)
			fmt.Fprintf(w, "# TYPE %s %s\n", m.PromName, m.Type)
			fmt.Fprintf(w, "%s %s\n\n", m.PromName, val)
		}
	})
}

// StartMetricsServer inicia um servidor HTTP que expõe métricas no formato Prometheus.
// Bloqueia até ctx ser cancelado.
func StartMetricsServer(ctx context.Context, port string, rdb *redis.Client, metricsDefs []MetricDef, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(rdb, metricsDefs, logger))
	srv := &http.Server{Addr: port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics server ouvindo", zap.String("addr", port+"/metrics"))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: falha ao iniciar servidor: %w", err)
	}
	return nil
}
