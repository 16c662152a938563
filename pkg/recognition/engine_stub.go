//go:build !cgo

package recognition

import "github.com/hihihi151/aujc/pkg/captcha"

// Sem cgo não há runtime ONNX: os modelos ficam indisponíveis e o desafio de
// texto é tratado como não suportado pelo chamador.
func newEngine(Options, string, string, string) (engine, error) {
	return nil, captcha.ErrModelUnavailable
}
