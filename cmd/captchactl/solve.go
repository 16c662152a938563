package main

import (
	"github.com/hihihi151/aujc/pkg/challenge"
	"github.com/spf13/cobra"
)

var (
	piecePath      string
	pieceSize      string
	backgroundPath string
	backgroundSize string
	yHint          int
	strategy       string
	seed           uint64

	canvasPath    string
	canvasSize    string
	question      string
	questionImage string
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Resolve um desafio a partir de arquivos de imagem",
}

var solveSliderCmd = &cobra.Command{
	Use:   "slider",
	Short: "Encontra o deslocamento da peça e planeja o arrasto",
	RunE:  runSolveSlider,
}

var solveClickCmd = &cobra.Command{
	Use:   "click",
	Short: "Localiza os pontos de clique (cor, forma ou sequência de caracteres)",
	RunE:  runSolveClick,
}

func init() {
	solveSliderCmd.Flags().StringVar(&piecePath, "piece", "", "Imagem da peça (arquivo ou data URL)")
	solveSliderCmd.Flags().StringVar(&pieceSize, "piece-size", "", "Tamanho renderizado da peça, LARGURAxALTURA")
	solveSliderCmd.Flags().StringVar(&backgroundPath, "background", "", "Imagem de fundo (arquivo ou data URL)")
	solveSliderCmd.Flags().StringVar(&backgroundSize, "background-size", "", "Tamanho renderizado do fundo, LARGURAxALTURA")
	solveSliderCmd.Flags().IntVar(&yHint, "y", -1, "Topo conhecido da peça no fundo (-1 = desconhecido)")
	solveSliderCmd.Flags().StringVar(&strategy, "strategy", "", "Estratégia do movimento: legacy ou eased")
	solveSliderCmd.Flags().Uint64Var(&seed, "seed", 0, "Semente do plano (0 = aleatória)")
	solveSliderCmd.MarkFlagRequired("piece")
	solveSliderCmd.MarkFlagRequired("background")

	solveClickCmd.Flags().StringVar(&canvasPath, "canvas", "", "Imagem do desafio (arquivo ou data URL)")
	solveClickCmd.Flags().StringVar(&canvasSize, "size", "", "Tamanho renderizado do canvas, LARGURAxALTURA")
	solveClickCmd.Flags().StringVarP(&question, "question", "q", "", "Texto da pergunta")
	solveClickCmd.Flags().StringVar(&questionImage, "question-image", "", "Imagem da pergunta, quando não há texto")
	solveClickCmd.MarkFlagRequired("canvas")

	solveCmd.AddCommand(solveSliderCmd, solveClickCmd)
}

func runSolveSlider(cmd *cobra.Command, args []string) error {
	piece, err := readImage(piecePath, pieceSize)
	if err != nil {
		return err
	}
	background, err := readImage(backgroundPath, backgroundSize)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()
	solver, done, err := s.solver()
	if err != nil {
		return err
	}
	defer done()

	req := challenge.SliderRequest{Piece: piece, Background: background, Strategy: strategy, Seed: seed}
	if yHint >= 0 {
		req.YHint = &yHint
	}
	sol, err := solver.SolveSlider(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(sol)
}

func runSolveClick(cmd *cobra.Command, args []string) error {
	canvas, err := readImage(canvasPath, canvasSize)
	if err != nil {
		return err
	}
	req := challenge.ClickRequest{Canvas: canvas, Question: question}
	if questionImage != "" {
		img, err := readImage(questionImage, "")
		if err != nil {
			return err
		}
		req.QuestionImage = &img
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()
	solver, done, err := s.solver()
	if err != nil {
		return err
	}
	defer done()

	sol, err := solver.SolveClick(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(sol)
}
