package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hihihi151/aujc/internal/app"
	"github.com/hihihi151/aujc/internal/worker"
	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/hihihi151/aujc/pkg/config"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.3.0"

var (
	configPath string
	remote     bool
	fresh      bool
	verbose    bool
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erro: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "captchactl",
	Short: "Ferramentas de linha de comando do solver de captcha",
	Long: `captchactl resolve desafios a partir de arquivos de imagem, gera planos de
movimento e reproduz arrastos num navegador real para depurar os limiares.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Caminho do config.yaml (padrão: CONFIG_PATH ou busca local)")
	rootCmd.PersistentFlags().BoolVar(&remote, "remote", false, "Resolver via worker NATS em vez do engine local")
	rootCmd.PersistentFlags().BoolVar(&fresh, "fresh", false, "Com --remote, ignora a solução em cache no worker")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Logs de debug")

	rootCmd.AddCommand(solveCmd, planCmd, classifyCmd, replayCmd, statsCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadConfig(), nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if verbose {
		cfg.App.LogLevel = "debug"
	} else if cfg.App.LogLevel == "" || cfg.App.LogLevel == "info" {
		cfg.App.LogLevel = "warn"
	}
	return app.NewLogger(cfg)
}

// session agrupa config, logger e engine local de um comando.
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	engine *challenge.Engine
	close  func()
}

func openSession() (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	engine, closeEngine, err := app.NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, log: logger, engine: engine, close: func() {
		closeEngine()
		_ = logger.Sync()
	}}, nil
}

// solver devolve o engine local ou o cliente NATS quando --remote.
func (s *session) solver() (challenge.Solver, func(), error) {
	if !remote {
		return s.engine, func() {}, nil
	}
	nc, err := nats.Connect(s.cfg.Nats.URL, nats.Name("captchactl"))
	if err != nil {
		return nil, nil, fmt.Errorf("erro conectando ao NATS: %w", err)
	}
	timeout := time.Duration(s.cfg.Nats.RequestTimeoutMS) * time.Millisecond
	client := worker.NewClient(nc, s.cfg.Nats.Subject, timeout, s.log)
	if fresh {
		client = client.Fresh()
	}
	return client, nc.Close, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
