//go:build cgo

package recognition

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

func initRuntime(libPath string) error {
	initOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil && !ort.IsInitialized() {
			initErr = fmt.Errorf("erro inicializando ONNX runtime: %w", err)
		}
	})
	return initErr
}

type onnxEngine struct {
	session *ort.DynamicAdvancedSession
}

func newEngine(opts Options, modelPath, input, output string) (engine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("modelo não encontrado em %s: %w", modelPath, err)
	}
	if err := initRuntime(runtimeLibraryPath(opts.RuntimeLibrary)); err != nil {
		return nil, err
	}
	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{input}, []string{output}, nil)
	if err != nil {
		return nil, fmt.Errorf("erro criando sessão para %s: %w", modelPath, err)
	}
	return &onnxEngine{session: session}, nil
}

func (e *onnxEngine) Run(input []float32, shape []int64) ([]float32, []int64, error) {
	in, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, nil, fmt.Errorf("erro criando tensor de entrada: %w", err)
	}
	defer in.Destroy()

	// saída nil: o runtime aloca com o formato dinâmico do modelo
	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{in}, outputs); err != nil {
		return nil, nil, fmt.Errorf("erro executando modelo: %w", err)
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("saída do modelo não é float32")
	}
	data := append([]float32(nil), out.GetData()...)
	return data, []int64(out.GetShape()), nil
}

func (e *onnxEngine) Close() error {
	return e.session.Destroy()
}
