package main

import (
	"context"
	"fmt"
	"io"

	"github.com/hihihi151/aujc/internal/flow"
	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/hihihi151/aujc/pkg/config"
	"github.com/spf13/cobra"
)

var datasetDir string

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Roda o fluxo completo sobre as amostras coletadas (sem navegador)",
	Long: `Lê as amostras gravadas em dataset.path e passa cada uma pelo fluxo de
resolução, com um atuador que só registra os movimentos. Mostra o resultado de
cada amostra para comparar limiares.`,
	RunE: runDataset,
}

func init() {
	datasetCmd.Flags().StringVarP(&datasetDir, "dir", "d", "", "Diretório das amostras (padrão: dataset.path)")
	rootCmd.AddCommand(datasetCmd)
}

// reportingSolver imprime o resultado de cada amostra.
type reportingSolver struct {
	next   challenge.Solver
	page   *flow.DatasetPage
	out    io.Writer
	solved int
}

func (r *reportingSolver) SolveSlider(ctx context.Context, req challenge.SliderRequest) (challenge.SliderSolution, error) {
	sol, err := r.next.SolveSlider(ctx, req)
	if err == nil {
		r.report(fmt.Sprintf("offset=%d score=%.3f", sol.Offset, sol.Score), nil)
	} else {
		r.report("", err)
	}
	return sol, skip(err)
}

func (r *reportingSolver) SolveClick(ctx context.Context, req challenge.ClickRequest) (challenge.ClickSolution, error) {
	sol, err := r.next.SolveClick(ctx, req)
	if err == nil {
		r.report(fmt.Sprintf("%s=%s pontos=%v", sol.Kind, sol.Target, sol.Points), nil)
	} else {
		r.report("", err)
	}
	return sol, skip(err)
}

// skip transforma qualquer falha em sinal de "atualizar": cada amostra é
// avaliada uma única vez e o fluxo segue para a próxima.
func skip(err error) error {
	if err == nil || captcha.IsRefreshSignal(err) {
		return err
	}
	return &captcha.UnsupportedTargetError{Reason: err.Error()}
}

func (r *reportingSolver) report(result string, err error) {
	label, _ := r.page.Current()
	if err != nil {
		fmt.Fprintf(r.out, "❌ %s [%s] %v\n", label.ID, label.Kind, err)
		return
	}
	r.solved++
	fmt.Fprintf(r.out, "✅ %s [%s] %s\n", label.ID, label.Kind, result)
}

func runDataset(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	dir := datasetDir
	if dir == "" {
		dir = s.cfg.Dataset.Path
	}
	if dir == "" {
		return fmt.Errorf("informe --dir ou dataset.path")
	}
	page, err := flow.OpenDataset(dir)
	if err != nil {
		return err
	}
	if page.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nenhuma amostra encontrada")
		return nil
	}

	solver, done, err := s.solver()
	if err != nil {
		return err
	}
	defer done()

	rep := &reportingSolver{next: solver, page: page, out: cmd.OutOrStdout()}
	retry := config.Retry{MaxAttempts: page.Len(), ClickMaxAttempts: page.Len()}
	if _, err := flow.New(page, flow.NewLogActuator(s.log), rep, retry, s.log, flow.NoBackoff()).Run(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d/%d amostras resolvidas\n", rep.solved, page.Len())
	return nil
}
