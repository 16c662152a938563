package recognition

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/hihihi151/aujc/pkg/imaging"
)

// Recognizer é um OCR de linha com saída CTC [1, T, C]. Serve tanto para
// classificar um glifo recortado quanto para ler a pergunta do captcha.
type Recognizer struct {
	eng     engine
	height  int
	charset []string
}

func NewRecognizer(opts Options) (*Recognizer, error) {
	charset, err := LoadCharset(opts.Charset)
	if err != nil {
		return nil, err
	}
	eng, err := newEngine(opts, opts.RecognizerModel, opts.RecognizerInput, opts.RecognizerOutput)
	if err != nil {
		return nil, err
	}
	return &Recognizer{eng: eng, height: opts.LineHeight, charset: charset}, nil
}

func (r *Recognizer) Close() error { return r.eng.Close() }

// LoadCharset lê um caractere por linha.
func LoadCharset(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("erro abrindo charset: %w", err)
	}
	defer f.Close()

	var charset []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		charset = append(charset, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("erro lendo charset: %w", err)
	}
	if len(charset) == 0 {
		return nil, fmt.Errorf("charset vazio: %s", path)
	}
	return charset, nil
}

// Classify reconhece o texto de um recorte.
func (r *Recognizer) Classify(ctx context.Context, c imaging.Canvas) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	input, w, err := r.prepare(c)
	if err != nil {
		return "", err
	}
	out, shape, err := r.eng.Run(input, []int64{1, 1, int64(r.height), int64(w)})
	if err != nil {
		return "", err
	}
	return greedyCTC(out, shape, r.charset)
}

// Read lê a pergunta a partir da imagem. A imagem da pergunta vem com alfa e
// precisa ser achatada antes.
func (r *Recognizer) Read(ctx context.Context, c imaging.Canvas) (string, error) {
	return r.Classify(ctx, imaging.FlattenAlpha(c, nil))
}

// prepare redimensiona para a altura do modelo mantendo a proporção e normaliza para [-1,1].
func (r *Recognizer) prepare(c imaging.Canvas) ([]float32, int, error) {
	w := int(math.Round(float64(c.Width()) * float64(r.height) / float64(c.Height())))
	if w < 1 {
		w = 1
	}
	scaled, err := imaging.Rescale(c, w, r.height)
	if err != nil {
		return nil, 0, err
	}
	luma := imaging.Luma(scaled.Image)
	input := make([]float32, len(luma.Pix))
	for i, v := range luma.Pix {
		input[i] = float32((v/255 - 0.5) / 0.5)
	}
	return input, w, nil
}

// greedyCTC pega o argmax de cada passo, junta repetições e remove o branco (índice 0).
func greedyCTC(out []float32, shape []int64, charset []string) (string, error) {
	if len(shape) < 2 {
		return "", fmt.Errorf("formato de saída inesperado do reconhecedor: %v", shape)
	}
	classes := int(shape[len(shape)-1])
	if classes < 2 || len(out)%classes != 0 {
		return "", fmt.Errorf("formato de saída inesperado do reconhecedor: %v", shape)
	}

	var sb strings.Builder
	prev := 0
	for t := 0; t < len(out)/classes; t++ {
		row := out[t*classes : (t+1)*classes]
		best := 0
		for k := 1; k < classes; k++ {
			if row[k] > row[best] {
				best = k
			}
		}
		if best != 0 && best != prev && best-1 < len(charset) {
			sb.WriteString(charset[best-1])
		}
		prev = best
	}
	return sb.String(), nil
}
