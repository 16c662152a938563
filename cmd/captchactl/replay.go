package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/hihihi151/aujc/pkg/browser"
	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	replayURL      string
	replayX        float64
	replayY        float64
	replayOffset   int
	replayStrategy string
	replaySeed     uint64
	replayHeadless bool
	replayHold     time.Duration
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Abre uma página stealth e reproduz um arrasto (depuração do movimento)",
	RunE:  runReplay,
}

func init() {
	replayCmd.Flags().StringVarP(&replayURL, "url", "u", "", "Página com o slider")
	replayCmd.Flags().Float64Var(&replayX, "x", 0, "X do botão do slider na tela")
	replayCmd.Flags().Float64Var(&replayY, "y", 0, "Y do botão do slider na tela")
	replayCmd.Flags().IntVar(&replayOffset, "offset", 0, "Deslocamento a arrastar")
	replayCmd.Flags().StringVar(&replayStrategy, "strategy", "", "legacy ou eased (padrão: config)")
	replayCmd.Flags().Uint64Var(&replaySeed, "seed", 0, "Semente (0 = aleatória)")
	replayCmd.Flags().BoolVar(&replayHeadless, "headless", false, "Navegador sem janela")
	replayCmd.Flags().DurationVar(&replayHold, "hold", 5*time.Second, "Tempo com a página aberta depois do arrasto")
	replayCmd.MarkFlagRequired("url")
	replayCmd.MarkFlagRequired("offset")
}

func runReplay(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	plan, err := s.engine.Plan(replayOffset, replayStrategy, replaySeed)
	if err != nil {
		return err
	}

	browser.SweepOrphanProfiles(os.TempDir(), browser.OrphanProfileTTL, s.log)
	profile, err := browser.NewProfileDir()
	if err != nil {
		return err
	}
	defer os.RemoveAll(profile)

	b, err := browser.Launch(browser.LaunchOptions{Headless: replayHeadless, UserDataDir: profile})
	if err != nil {
		return err
	}
	defer b.Close()

	page, err := browser.NewPage(b, replayURL, 45*time.Second)
	if err != nil {
		return err
	}
	defer page.Close()

	var rng *rand.Rand
	if replaySeed != 0 {
		rng = rand.New(rand.NewPCG(replaySeed, replaySeed))
	}
	act := browser.ForPage(page, rng, s.log)

	fmt.Fprintf(cmd.OutOrStdout(), "🖱️  arrastando %dpx em %d passos (%s)\n", plan.TotalDX(), len(plan), plan.Duration().Round(time.Millisecond))
	if err := act.Drag(cmd.Context(), captcha.Point{X: replayX, Y: replayY}, plan); err != nil {
		return err
	}
	s.log.Info("replay concluído", zap.String("url", replayURL), zap.Int("offset", replayOffset))

	select {
	case <-time.After(replayHold):
	case <-cmd.Context().Done():
	}
	return nil
}
