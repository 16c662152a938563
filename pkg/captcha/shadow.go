package captcha

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SampleLabel é o JSON salvo ao lado das imagens de cada amostra.
type SampleLabel struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Question  string         `json:"question,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
	Files     []string       `json:"files"`
	Timestamp string         `json:"timestamp"`
}

// ShadowCollector guarda amostras de desafios (imagens + label) para validar
// os limiares contra fixtures reais.
type ShadowCollector struct {
	dir string
	log *zap.Logger
}

func NewShadowCollector(dir string, logger *zap.Logger) *ShadowCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShadowCollector{dir: dir, log: logger.Named("shadow")}
}

// Save grava cada imagem como <id>_<nome>.<ext> e o label como <id>_label.json.
// Em caso de erro remove o que já tinha sido escrito.
func (s *ShadowCollector) Save(kind Kind, images map[string][]byte, label SampleLabel) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("erro criando diretório dataset '%s': %w", s.dir, err)
	}

	// BLINDAGEM CONTRA I/O RACE CONDITIONS (UUID)
	id := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])

	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		data := images[name]
		path := filepath.Join(s.dir, fmt.Sprintf("%s_%s%s", id, name, extension(data)))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			s.cleanup(written)
			return "", fmt.Errorf("erro salvando %s: %w", name, err)
		}
		written = append(written, path)
	}

	label.ID = id
	label.Kind = kind
	label.Timestamp = time.Now().UTC().Format(time.RFC3339)
	label.Files = make([]string, len(written))
	for i, p := range written {
		label.Files[i] = filepath.Base(p)
	}

	labelPath := filepath.Join(s.dir, id+"_label.json")
	labelData, err := json.MarshalIndent(label, "", "  ")
	if err != nil {
		s.cleanup(written)
		return "", fmt.Errorf("erro serializando label: %w", err)
	}
	if err := os.WriteFile(labelPath, labelData, 0o644); err != nil {
		s.cleanup(written)
		return "", fmt.Errorf("erro salvando label: %w", err)
	}

	s.log.Info("📸 amostra coletada", zap.String("id", id), zap.String("kind", string(kind)), zap.Int("images", len(written)))
	return id, nil
}

func (s *ShadowCollector) cleanup(paths []string) {
	for _, f := range paths {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			s.log.Warn("⚠️ erro removendo arquivo", zap.String("path", f), zap.Error(err))
		}
	}
}

func extension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	}
	return ".bin"
}
