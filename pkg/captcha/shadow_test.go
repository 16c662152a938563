package captcha

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestShadowCollectorSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dataset")
	s := NewShadowCollector(dir, nil)

	id, err := s.Save(KindSequence, map[string][]byte{
		"canvas":   pngHeader,
		"question": []byte("texto qualquer"),
	}, SampleLabel{Question: "请依次点击【天地玄黄】", Reason: "count_mismatch"})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, id+"_canvas.png"))
	assert.FileExists(t, filepath.Join(dir, id+"_question.bin"))

	raw, err := os.ReadFile(filepath.Join(dir, id+"_label.json"))
	require.NoError(t, err)
	var label SampleLabel
	require.NoError(t, json.Unmarshal(raw, &label))
	assert.Equal(t, id, label.ID)
	assert.Equal(t, KindSequence, label.Kind)
	assert.Equal(t, "count_mismatch", label.Reason)
	assert.Equal(t, []string{id + "_canvas.png", id + "_question.bin"}, label.Files)
	assert.NotEmpty(t, label.Timestamp)
}

func TestShadowCollectorCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	s := NewShadowCollector(dir, nil)

	// "z/b" aponta para um subdiretório inexistente: a segunda escrita falha
	_, err := s.Save(KindSlider, map[string][]byte{"a": pngHeader, "z/b": pngHeader}, SampleLabel{})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "arquivos parciais deveriam ser removidos")
}
