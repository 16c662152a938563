// Package app monta as peças compartilhadas pelos binários.
package app

import (
	"fmt"
	"time"

	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/hihihi151/aujc/pkg/config"
	"github.com/hihihi151/aujc/pkg/recognition"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger cria o logger zap conforme app.env e app.log_level.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.App.Env == "dev" {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.App.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.App.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("log_level inválido: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zcfg.Build()
}

// NewRedis conecta no Redis configurado.
func NewRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// SolutionTTL converte redis.solution_ttl_minutes.
func SolutionTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Redis.SolutionTTLMinutes) * time.Minute
}

// NewEngine cria o Engine e, quando os modelos estão configurados, habilita o
// captcha de texto. Sem modelos o Engine responde ErrModelUnavailable para
// sequências. O close libera as sessões ONNX.
func NewEngine(cfg *config.Config, logger *zap.Logger) (*challenge.Engine, func(), error) {
	var opts []challenge.Option
	closers := []func() error{}
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.Models.Enabled() {
		ropts := challenge.RecognitionOptions(cfg.Models)
		det, err := recognition.NewDetector(ropts)
		if err != nil {
			return nil, nil, fmt.Errorf("erro carregando detector: %w", err)
		}
		closers = append(closers, det.Close)
		rec, err := recognition.NewRecognizer(ropts)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("erro carregando reconhecedor: %w", err)
		}
		closers = append(closers, rec.Close)
		opts = append(opts, challenge.WithText(det, rec), challenge.WithQuestionReader(rec))
		logger.Info("🧠 modelos de texto carregados", zap.String("detector", cfg.Models.Detector), zap.String("recognizer", cfg.Models.Recognizer))
	} else {
		logger.Info("modelos de texto não configurados: desafios de sequência serão atualizados")
	}

	engine, err := challenge.NewEngine(cfg.Solver, logger, opts...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return engine, closeAll, nil
}
