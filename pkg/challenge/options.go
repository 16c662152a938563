package challenge

import (
	"time"

	"github.com/hihihi151/aujc/pkg/config"
	"github.com/hihihi151/aujc/pkg/recognition"
	"github.com/hihihi151/aujc/pkg/shape"
	"github.com/hihihi151/aujc/pkg/slider"
	"github.com/hihihi151/aujc/pkg/textcaptcha"
	"github.com/hihihi151/aujc/pkg/trajectory"
)

// As funções abaixo traduzem a configuração para as opções de cada resolvedor.

func SliderOptions(cfg config.Slider) slider.Options {
	opts := slider.DefaultOptions()
	if cfg.AlphaThreshold > 0 && cfg.AlphaThreshold < 256 {
		opts.AlphaThreshold = uint8(cfg.AlphaThreshold)
	}
	if cfg.Band > 0 {
		opts.Band = cfg.Band
	}
	return opts
}

func TrajectoryOptions(cfg config.Trajectory) (trajectory.Options, error) {
	strategy, err := trajectory.ParseStrategy(cfg.Strategy)
	if err != nil {
		return trajectory.Options{}, err
	}
	return trajectory.Options{
		Strategy:  strategy,
		Steps:     cfg.Steps,
		JitterX:   cfg.JitterX,
		JitterY:   cfg.JitterY,
		MinDelay:  time.Duration(cfg.MinDelayMS) * time.Millisecond,
		MaxDelay:  time.Duration(cfg.MaxDelayMS) * time.Millisecond,
		StepSize:  cfg.StepSize,
		StepDelay: time.Duration(cfg.StepDelayMS) * time.Millisecond,
	}, nil
}

func ShapeOptions(cfg config.Shape) shape.Options {
	return shape.Options{
		Vocabulary:         shape.Vocabulary{Shapes: cfg.Shapes, Colors: cfg.Colors},
		BackgroundDistance: cfg.BackgroundDistance,
		MinArea:            cfg.MinArea,
		MinConfidence:      cfg.MinConfidence,
		MinSaturation:      cfg.MinSaturation,
		MinValue:           cfg.MinValue,
		CircleTolerance:    cfg.CircleTolerance,
		Epsilon:            cfg.Epsilon,
	}
}

func TextOptions(cfg config.Text) textcaptcha.Options {
	return textcaptcha.Options{Length: cfg.Length, Margin: cfg.Margin}
}

func RecognitionOptions(cfg config.Models) recognition.Options {
	opts := recognition.DefaultOptions()
	opts.RuntimeLibrary = cfg.Runtime
	opts.DetectorModel = cfg.Detector
	opts.RecognizerModel = cfg.Recognizer
	opts.Charset = cfg.Charset
	if cfg.InputSize > 0 {
		opts.InputSize = cfg.InputSize
	}
	if cfg.ScoreThreshold > 0 {
		opts.ScoreThreshold = cfg.ScoreThreshold
	}
	if cfg.LineHeight > 0 {
		opts.LineHeight = cfg.LineHeight
	}
	return opts
}
