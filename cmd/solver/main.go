package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hihihi151/aujc/internal/app"
	"github.com/hihihi151/aujc/internal/audit"
	"github.com/hihihi151/aujc/internal/worker"
	"github.com/hihihi151/aujc/pkg/cache"
	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/config"
	"github.com/hihihi151/aujc/pkg/metrics"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatal("Erro logger:", err)
	}
	defer logger.Sync()

	logger.Info("Solver Worker iniciando...", zap.String("env", cfg.App.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- Engine ---
	engine, closeEngine, err := app.NewEngine(cfg, logger)
	if err != nil {
		logger.Fatal("Erro criando engine", zap.Error(err))
	}
	defer closeEngine()

	// --- Redis ---
	rdb := app.NewRedis(cfg)
	solutions := cache.NewSolutionCache(rdb, app.SolutionTTL(cfg))
	defer solutions.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Erro Redis", zap.String("addr", cfg.Redis.Address), zap.Error(err))
	}

	opts := []worker.ServerOption{
		worker.WithCache(solutions),
		worker.WithMetrics(metrics.NewRecorder(rdb)),
		worker.WithTimeout(time.Duration(cfg.Nats.RequestTimeoutMS) * time.Millisecond),
		worker.WithConcurrency(cfg.Solver.Workers),
	}

	// --- Postgres (opcional) ---
	if cfg.Database.URL != "" {
		repo, err := audit.NewAttemptRepository(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("Erro Postgres", zap.Error(err))
		}
		defer repo.Close()
		opts = append(opts, worker.WithAudit(repo))
	}

	// --- Dataset (opcional) ---
	if cfg.Dataset.Path != "" {
		opts = append(opts, worker.WithShadow(captcha.NewShadowCollector(cfg.Dataset.Path, logger)))
		logger.Info("📸 coleta de amostras ativa", zap.String("dir", cfg.Dataset.Path))
	}

	// --- Metrics ---
	go func() {
		if err := metrics.StartMetricsServer(ctx, cfg.Metrics.Port, rdb, metrics.Definitions(), logger); err != nil {
			logger.Error("Erro no metrics server", zap.Error(err))
		}
	}()

	// --- NATS ---
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name("aujc-solver"))
	if err != nil {
		logger.Fatal("Erro NATS", zap.Error(err))
	}
	defer nc.Close()

	server := worker.NewServer(engine, logger, opts...)
	if err := server.Run(ctx, nc, cfg.Nats.Subject, cfg.Nats.Queue); err != nil {
		logger.Error("Erro no worker", zap.Error(err))
	}
	logger.Info("Sinal recebido. Encerrando Solver Worker...")
}
