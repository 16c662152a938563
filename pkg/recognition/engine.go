// Package recognition expõe os modelos ONNX de detecção e reconhecimento de
// caracteres como as capacidades opacas usadas pelo resolvedor de texto.
package recognition

import (
	"os"
	"path/filepath"
	"runtime"
)

// engine roda um modelo de uma entrada e uma saída float32.
type engine interface {
	Run(input []float32, shape []int64) (out []float32, outShape []int64, err error)
	Close() error
}

// Options aponta para os arquivos dos modelos e para a biblioteca do runtime.
type Options struct {
	// RuntimeLibrary é o caminho da libonnxruntime; vazio usa o padrão da plataforma.
	RuntimeLibrary string

	DetectorModel  string
	DetectorInput  string
	DetectorOutput string
	// InputSize é o lado do quadrado de entrada do detector (letterbox).
	InputSize int
	// ScoreThreshold descarta caixas com confiança menor.
	ScoreThreshold float32

	RecognizerModel  string
	RecognizerInput  string
	RecognizerOutput string
	// LineHeight é a altura da imagem de entrada do reconhecedor.
	LineHeight int
	// Charset é um arquivo com um caractere por linha; o índice 0 da saída é o branco do CTC.
	Charset string
}

func DefaultOptions() Options {
	return Options{
		DetectorInput:    "images",
		DetectorOutput:   "output",
		InputSize:        416,
		ScoreThreshold:   0.5,
		RecognizerInput:  "input1",
		RecognizerOutput: "output",
		LineHeight:       64,
	}
}

// runtimeLibraryPath devolve o caminho configurado ou o padrão da plataforma.
func runtimeLibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	switch runtime.GOOS {
	case "darwin":
		exe, _ := os.Executable()
		return filepath.Join(filepath.Dir(exe), "..", "Frameworks", "libonnxruntime.dylib")
	case "linux":
		return "/usr/lib/libonnxruntime.so"
	case "windows":
		return "onnxruntime.dll"
	}
	return ""
}
