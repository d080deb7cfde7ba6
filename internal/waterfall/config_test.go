package waterfall

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTiers(t *testing.T) {
	yaml := `
waterfall:
  vision:
    - google/gemini-2.0-flash-exp:free
    - meta-llama/llama-3.2-11b-vision-instruct:free
  text:
    - meta-llama/llama-3.2-3b-instruct:free
`
	dir := t.TempDir()
	path := filepath.Join(dir, "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	tiers, err := LoadTiers(path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"google/gemini-2.0-flash-exp:free",
		"meta-llama/llama-3.2-11b-vision-instruct:free",
	}, tiers.Vision)
	assert.Equal(t, []string{"meta-llama/llama-3.2-3b-instruct:free"}, tiers.Text)
}

func TestLoadTiers_TextOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("waterfall:\n  text: [a/b]\n"), 0644))

	tiers, err := LoadTiers(path)
	require.NoError(t, err)
	assert.Empty(t, tiers.Vision)
	assert.Equal(t, []string{"a/b"}, tiers.Text)
}

func TestLoadTiers_Empty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("waterfall: {}\n"), 0644))

	_, err := LoadTiers(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lists no models")
}

func TestLoadTiers_FileNotFound(t *testing.T) {
	_, err := LoadTiers("/nonexistent/tiers.yaml")
	assert.Error(t, err)
}

func TestLoadTiers_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("waterfall: [[[invalid"), 0644))

	_, err := LoadTiers(path)
	assert.Error(t, err)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{
		Tiers:         Tiers{Vision: []string{"v"}},
		TextTimeout:   5 * time.Second,
		ExpiredPolicy: "sometimes",
	}

	got := cfg.withDefaults()

	assert.Equal(t, DefaultVisionTimeout, got.VisionTimeout)
	assert.Equal(t, 5*time.Second, got.TextTimeout)
	assert.Equal(t, ExpiredSkipText, got.ExpiredPolicy)
	assert.Zero(t, got.Deadline)

	got.Tiers.Vision[0] = "changed"
	assert.Equal(t, "v", cfg.Tiers.Vision[0])
}

func TestExpiredPolicy_Valid(t *testing.T) {
	assert.True(t, ExpiredSkipText.Valid())
	assert.True(t, ExpiredLocalOnly.Valid())
	assert.True(t, ExpiredAll.Valid())
	assert.False(t, ExpiredPolicy("").Valid())
}
