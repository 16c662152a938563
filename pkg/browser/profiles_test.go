package browser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOrphanProfiles(t *testing.T) {
	base := t.TempDir()
	active := filepath.Join(base, profilePrefix+"active123")
	orphan := filepath.Join(base, profilePrefix+"orphan456")
	unrelated := filepath.Join(base, "some_other_folder")
	for _, d := range []string{active, orphan, unrelated} {
		require.NoError(t, os.Mkdir(d, 0o755))
	}

	now := time.Now()
	require.NoError(t, os.Chtimes(active, now.Add(-10*time.Minute), now.Add(-10*time.Minute)))
	// pasta antiga sem o prefixo não pode ser tocada
	require.NoError(t, os.Chtimes(unrelated, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(orphan, now.Add(-2*time.Hour), now.Add(-2*time.Hour)))

	assert.Equal(t, 1, SweepOrphanProfiles(base, OrphanProfileTTL, nil))

	assert.DirExists(t, active, "o sweeper apagou um perfil recente")
	assert.DirExists(t, unrelated, "o sweeper apagou uma pasta sem o prefixo")
	assert.NoDirExists(t, orphan, "o sweeper não apagou o perfil órfão")
}

func TestNewProfileDirUsesPrefix(t *testing.T) {
	dir, err := NewProfileDir()
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	assert.True(t, strings.HasPrefix(filepath.Base(dir), profilePrefix))
}

func TestSweepMissingBaseDir(t *testing.T) {
	assert.Zero(t, SweepOrphanProfiles(filepath.Join(t.TempDir(), "nada"), time.Minute, nil))
}
