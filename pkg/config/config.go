package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config representa a estrutura completa do config.yaml
type Config struct {
	App struct {
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	// Infraestrutura Compartilhada
	Nats struct {
		URL              string `yaml:"url"`
		Subject          string `yaml:"subject"`
		Queue            string `yaml:"queue"`
		RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	} `yaml:"nats"`

	Redis struct {
		Address            string `yaml:"address"`
		Password           string `yaml:"password"`
		DB                 int    `yaml:"db"`
		SolutionTTLMinutes int    `yaml:"solution_ttl_minutes"`
	} `yaml:"redis"`

	// Opcional: sem URL as tentativas não são auditadas
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	Metrics struct {
		Port string `yaml:"port"`
	} `yaml:"metrics"`

	// Amostras de desafios que falharam, para validar os limiares
	Dataset struct {
		Path string `yaml:"path"`
	} `yaml:"dataset"`

	Models Models `yaml:"models"`
	Solver Solver `yaml:"solver"`
	Retry  Retry  `yaml:"retry"`
}

// Models aponta para os modelos ONNX do captcha de texto.
type Models struct {
	Runtime        string  `yaml:"runtime"`
	Detector       string  `yaml:"detector"`
	Recognizer     string  `yaml:"recognizer"`
	Charset        string  `yaml:"charset"`
	InputSize      int     `yaml:"input_size"`
	ScoreThreshold float32 `yaml:"score_threshold"`
	LineHeight     int     `yaml:"line_height"`
}

// Enabled diz se os dois modelos foram configurados.
func (m Models) Enabled() bool {
	return m.Detector != "" && m.Recognizer != "" && m.Charset != ""
}

// Solver agrupa os limiares ajustados empiricamente de cada resolvedor.
type Solver struct {
	Slider     Slider     `yaml:"slider"`
	Trajectory Trajectory `yaml:"trajectory"`
	Shape      Shape      `yaml:"shape"`
	Text       Text       `yaml:"text"`
	// Workers limita as chamadas de CPU simultâneas; 0 usa GOMAXPROCS.
	Workers int `yaml:"workers"`
}

type Slider struct {
	AlphaThreshold int `yaml:"alpha_threshold"`
	Band           int `yaml:"band"`
	// Calibration é somada ao offset antes de planejar o movimento.
	Calibration int `yaml:"calibration"`
}

type Trajectory struct {
	Strategy    string  `yaml:"strategy"`
	Steps       int     `yaml:"steps"`
	JitterX     float64 `yaml:"jitter_x"`
	JitterY     int     `yaml:"jitter_y"`
	MinDelayMS  int     `yaml:"min_delay_ms"`
	MaxDelayMS  int     `yaml:"max_delay_ms"`
	StepSize    int     `yaml:"step_size"`
	StepDelayMS int     `yaml:"step_delay_ms"`
}

type Shape struct {
	Shapes             []string `yaml:"shapes"`
	Colors             []string `yaml:"colors"`
	BackgroundDistance float64  `yaml:"background_distance"`
	MinArea            int      `yaml:"min_area"`
	MinConfidence      float64  `yaml:"min_confidence"`
	MinSaturation      float64  `yaml:"min_saturation"`
	MinValue           float64  `yaml:"min_value"`
	CircleTolerance    float64  `yaml:"circle_tolerance"`
	Epsilon            float64  `yaml:"epsilon"`
}

type Text struct {
	Length int `yaml:"length"`
	Margin int `yaml:"margin"`
}

// Retry é a política do orquestrador para "atualizar o captcha e tentar de novo".
type Retry struct {
	MaxAttempts      int `yaml:"max_attempts"`
	ClickMaxAttempts int `yaml:"click_max_attempts"`
	BackoffMinMS     int `yaml:"backoff_min_ms"`
	BackoffMaxMS     int `yaml:"backoff_max_ms"`
}

func (r Retry) BackoffMin() time.Duration { return time.Duration(r.BackoffMinMS) * time.Millisecond }

func (r Retry) BackoffMax() time.Duration { return time.Duration(r.BackoffMaxMS) * time.Millisecond }

// Default devolve a configuração com todos os valores padrão preenchidos.
func Default() *Config {
	var cfg Config
	cfg.App.Env = "dev"
	cfg.App.LogLevel = "info"
	cfg.Nats.URL = "nats://localhost:4222"
	cfg.Nats.Subject = "jobs.captcha.solve"
	cfg.Nats.Queue = "captcha-solvers"
	cfg.Nats.RequestTimeoutMS = 15000
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.SolutionTTLMinutes = 10
	cfg.Metrics.Port = ":9102"

	cfg.Models = Models{InputSize: 416, ScoreThreshold: 0.5, LineHeight: 64}
	cfg.Solver = Solver{
		Slider: Slider{AlphaThreshold: 127, Band: 8},
		Trajectory: Trajectory{
			Strategy:    "eased",
			Steps:       30,
			JitterX:     1.5,
			JitterY:     2,
			MinDelayMS:  8,
			MaxDelayMS:  40,
			StepSize:    4,
			StepDelayMS: 15,
		},
		Shape: Shape{
			Shapes:             []string{"triangle", "circle", "ring", "square", "pentagon", "hexagon", "star"},
			Colors:             []string{"red", "orange", "yellow", "green", "cyan", "blue", "purple", "pink"},
			BackgroundDistance: 60,
			MinArea:            80,
			MinConfidence:      0.6,
			MinSaturation:      0.35,
			MinValue:           0.25,
			CircleTolerance:    0.08,
			Epsilon:            0.03,
		},
		Text: Text{Length: 4, Margin: 10},
	}
	cfg.Retry = Retry{MaxAttempts: 5, ClickMaxAttempts: 30, BackoffMinMS: 2000, BackoffMaxMS: 4000}
	return &cfg
}

// Load lê o YAML em cima dos valores padrão: chaves ausentes mantêm o default.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("erro lendo config: %w", err)
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("erro ao decodificar YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejeita combinações que deixariam os resolvedores sem sentido.
func (c *Config) Validate() error {
	switch {
	case c.Solver.Text.Length <= 0:
		return fmt.Errorf("config inválida: solver.text.length deve ser positivo")
	case c.Solver.Trajectory.MinDelayMS > c.Solver.Trajectory.MaxDelayMS:
		return fmt.Errorf("config inválida: min_delay_ms maior que max_delay_ms")
	case c.Retry.BackoffMinMS > c.Retry.BackoffMaxMS:
		return fmt.Errorf("config inválida: backoff_min_ms maior que backoff_max_ms")
	case c.Solver.Shape.MinConfidence < 0 || c.Solver.Shape.MinConfidence > 1:
		return fmt.Errorf("config inválida: min_confidence fora de [0,1]")
	}
	return nil
}

// ResolvePath procura o arquivo de configuração; vazio quando não encontra.
func ResolvePath() string {
	// 1. Tenta pegar via Variável de Ambiente (Docker/Prod)
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	// 2. Se não tiver, tenta achar "subindo" pastas (Local Dev)
	for _, p := range []string{"config.yaml", "config/config.yaml", "../../config/config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadConfig é o atalho dos binários: sem arquivo usa os padrões, com arquivo inválido encerra.
func LoadConfig() *Config {
	configPath := ResolvePath()
	if configPath == "" {
		log.Printf("Nenhum config.yaml encontrado, usando valores padrão")
		return Default()
	}

	// Converte caminho relativo para absoluto para debug
	absPath, _ := filepath.Abs(configPath)
	log.Printf("Carregando config de: %s", absPath)

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Erro fatal lendo config: %v", err)
	}
	return cfg
}
