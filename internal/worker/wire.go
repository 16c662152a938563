package worker

import (
	"errors"
	"fmt"

	"github.com/hihihi151/aujc/pkg/captcha"
	"github.com/hihihi151/aujc/pkg/challenge"
)

// Mode diz qual resolvedor o job pede.
type Mode string

const (
	ModeSlider Mode = "slider"
	ModeClick  Mode = "click"
)

// Job é o envelope publicado em jobs.captcha.solve.
type Job struct {
	ID     string                   `json:"id"`
	Mode   Mode                     `json:"mode"`
	Slider *challenge.SliderRequest `json:"slider,omitempty"`
	Click  *challenge.ClickRequest  `json:"click,omitempty"`
	// Fresh ignora (e apaga) a solução em cache, usado quando o site rejeitou a anterior.
	Fresh bool `json:"fresh,omitempty"`
}

// Reply é a resposta do worker. ErrorKind vazio significa sucesso.
type Reply struct {
	ID        string                    `json:"id"`
	Slider    *challenge.SliderSolution `json:"slider,omitempty"`
	Click     *challenge.ClickSolution  `json:"click,omitempty"`
	Cached    bool                      `json:"cached,omitempty"`
	ErrorKind string                    `json:"error_kind,omitempty"`
	Error     string                    `json:"error,omitempty"`
	Detail    *ErrorDetail              `json:"detail,omitempty"`
}

// ErrorDetail carrega os campos dos erros tipados para o cliente reconstruí-los.
type ErrorDetail struct {
	Kind   captcha.Kind `json:"kind,omitempty"`
	Value  string       `json:"value,omitempty"`
	Reason string       `json:"reason,omitempty"`
	Want   int          `json:"want,omitempty"`
	Got    int          `json:"got,omitempty"`
}

const (
	KindDecode           = "decode"
	KindUnsupported      = "unsupported"
	KindNoMatch          = "no_match"
	KindCountMismatch    = "count_mismatch"
	KindModelUnavailable = "model_unavailable"
	KindTemplateTooLarge = "template_too_large"
	KindInternal         = "internal"
)

// encodeError classifica o erro para o fio.
func encodeError(err error) (string, *ErrorDetail) {
	var decodeErr *captcha.DecodeError
	var unsupported *captcha.UnsupportedTargetError
	var mismatch *captcha.CountMismatchError
	switch {
	case errors.As(err, &decodeErr), errors.Is(err, captcha.ErrEmptyImage):
		return KindDecode, nil
	case errors.As(err, &unsupported):
		return KindUnsupported, &ErrorDetail{Kind: unsupported.Kind, Value: unsupported.Value, Reason: unsupported.Reason}
	case errors.As(err, &mismatch):
		return KindCountMismatch, &ErrorDetail{Want: mismatch.Want, Got: mismatch.Got}
	case errors.Is(err, captcha.ErrNoMatch):
		return KindNoMatch, nil
	case errors.Is(err, captcha.ErrModelUnavailable):
		return KindModelUnavailable, nil
	case errors.Is(err, captcha.ErrTemplateTooLarge):
		return KindTemplateTooLarge, nil
	}
	return KindInternal, nil
}

// decodeError reconstrói o erro tipado a partir da resposta.
func decodeError(r *Reply) error {
	if r.ErrorKind == "" {
		return nil
	}
	d := r.Detail
	if d == nil {
		d = &ErrorDetail{}
	}
	switch r.ErrorKind {
	case KindDecode:
		return &captcha.DecodeError{Err: errors.New(r.Error)}
	case KindUnsupported:
		return &captcha.UnsupportedTargetError{Kind: d.Kind, Value: d.Value, Reason: d.Reason}
	case KindCountMismatch:
		return &captcha.CountMismatchError{Want: d.Want, Got: d.Got}
	case KindNoMatch:
		return fmt.Errorf("%s: %w", r.Error, captcha.ErrNoMatch)
	case KindModelUnavailable:
		return fmt.Errorf("worker: %w", captcha.ErrModelUnavailable)
	case KindTemplateTooLarge:
		return fmt.Errorf("worker: %w", captcha.ErrTemplateTooLarge)
	}
	return fmt.Errorf("erro no worker: %s", r.Error)
}
