package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hihihi151/aujc/pkg/trajectory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	w, h, err := parseSize("340x212")
	require.NoError(t, err)
	assert.Equal(t, 340, w)
	assert.Equal(t, 212, h)

	w, h, err = parseSize("")
	require.NoError(t, err)
	assert.Zero(t, w+h)

	for _, bad := range []string{"340", "0x10", "ax10", "10x-1"} {
		_, _, err := parseSize(bad)
		assert.Error(t, err, bad)
	}
}

func TestReadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peca.png")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	img, err := readImage(path, "68x68")
	require.NoError(t, err)
	assert.Equal(t, "YWJj", img.Source)
	assert.Equal(t, 68, img.Width)

	img, err = readImage("data:image/png;base64,YWJj", "")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,YWJj", img.Source)

	_, err = readImage(filepath.Join(t.TempDir(), "nao-existe.png"), "")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	p := trajectory.Plan{{DX: 3, DY: 1, DT: time.Millisecond}, {DX: 4, DY: -1, DT: 2 * time.Millisecond}}
	s := summarize(p)
	assert.Equal(t, 2, s.Steps)
	assert.Equal(t, 7, s.TotalDX)
	assert.Equal(t, 0, s.TotalDY)
	assert.Equal(t, 3*time.Millisecond, s.Duration)
	assert.Equal(t, []int{3, 7}, s.Path)
}
