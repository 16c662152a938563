package main

import (
	"fmt"
	"time"

	"github.com/hihihi151/aujc/internal/audit"
	"github.com/hihihi151/aujc/pkg/trajectory"
	"github.com/spf13/cobra"
)

var (
	planOffset   int
	planStrategy string
	planSeed     uint64
	planSummary  bool

	classifyQuestion string

	statsSince time.Duration
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Gera o plano de movimento para um deslocamento",
	RunE:  runPlan,
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Mostra como uma pergunta é classificada",
	RunE:  runClassify,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Resume as tentativas gravadas no Postgres",
	RunE:  runStats,
}

func init() {
	planCmd.Flags().IntVar(&planOffset, "offset", 0, "Deslocamento em pixels (negativo = para a esquerda)")
	planCmd.Flags().StringVar(&planStrategy, "strategy", "", "legacy ou eased (padrão: config)")
	planCmd.Flags().Uint64Var(&planSeed, "seed", 0, "Semente (0 = aleatória)")
	planCmd.Flags().BoolVar(&planSummary, "summary", false, "Mostra só os totais do plano")
	planCmd.MarkFlagRequired("offset")

	classifyCmd.Flags().StringVarP(&classifyQuestion, "question", "q", "", "Texto da pergunta")
	classifyCmd.MarkFlagRequired("question")

	statsCmd.Flags().DurationVar(&statsSince, "since", 24*time.Hour, "Janela de tempo")
}

type planSummaryOutput struct {
	Steps    int           `json:"steps"`
	TotalDX  int           `json:"total_dx"`
	TotalDY  int           `json:"total_dy"`
	Duration time.Duration `json:"duration_ns"`
	Path     []int         `json:"path"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	plan, err := s.engine.Plan(planOffset, planStrategy, planSeed)
	if err != nil {
		return err
	}
	if planSummary {
		return printJSON(summarize(plan))
	}
	return printJSON(plan)
}

func summarize(p trajectory.Plan) planSummaryOutput {
	return planSummaryOutput{
		Steps:    len(p),
		TotalDX:  p.TotalDX(),
		TotalDY:  p.TotalDY(),
		Duration: p.Duration(),
		Path:     p.Cumulative(),
	}
}

func runClassify(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	ch, err := s.engine.Classify(classifyQuestion)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"kind": string(ch.Kind()), "target": ch.Target()})
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url não configurado")
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	repo, err := audit.NewAttemptRepository(cmd.Context(), cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	stats, err := repo.Stats(cmd.Context(), time.Now().Add(-statsSince))
	if err != nil {
		return err
	}
	for _, st := range stats {
		fmt.Fprintf(cmd.OutOrStdout(), "%-9s %-8s %6d  média %s\n", st.Kind, st.Outcome, st.Count, st.AvgLatency.Round(time.Millisecond))
	}
	return nil
}
