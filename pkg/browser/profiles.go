package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const profilePrefix = "aujc_profile_"

// OrphanProfileTTL é a idade a partir da qual um perfil temporário é considerado abandonado.
const OrphanProfileTTL = 90 * time.Minute

// NewProfileDir cria um perfil temporário para uma sessão de replay.
// Quem chama remove o diretório ao final; se o processo cair, o sweeper limpa.
func NewProfileDir() (string, error) {
	dir, err := os.MkdirTemp("", profilePrefix)
	if err != nil {
		return "", fmt.Errorf("erro criando perfil temporário: %w", err)
	}
	return dir, nil
}

// SweepOrphanProfiles remove perfis temporários mais velhos que ttl em baseDir
// e devolve quantos foram removidos.
func SweepOrphanProfiles(baseDir string, ttl time.Duration, logger *zap.Logger) int {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("gc")

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		log.Warn("erro lendo diretório base", zap.String("dir", baseDir), zap.Error(err))
		return 0
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), profilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || now.Sub(info.ModTime()) <= ttl {
			continue
		}
		full := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(full); err != nil {
			log.Warn("erro removendo perfil órfão", zap.String("path", full), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Info("🧹 perfis órfãos removidos", zap.Int("count", removed))
	}
	return removed
}
