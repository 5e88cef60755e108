package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"MEMORY_ENGINE_HOME", "MEMORY_ENGINE_CONFIG", "MEMORY_ENGINE_EMBED_PROVIDER",
		"MEMORY_ENGINE_EMBED_MODEL", "MEMORY_ENGINE_EMBED_URL", "OPENAI_API_KEY",
		"OLLAMA_HOST", "MEMORY_ENGINE_LOG_LEVEL", "ONNXRUNTIME_LIB", "MEMORY_ENGINE_EMBED_MAX_ATTEMPTS",
		"MEMORY_ENGINE_METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "onnx", cfg.Embedding.Provider)
	assert.Equal(t, 3, cfg.Embedding.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Embedding.InitialDelay)
	assert.Equal(t, 2000, cfg.Embedding.MaxInputChars)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("MEMORY_ENGINE_HOME", dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "profiles"), cfg.ProfilesDir())
	assert.Equal(t, filepath.Join(dir, "models"), cfg.ModelsDir())
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	yml := `
embedding:
  provider: ollama
  model: all-minilm
  max_attempts: 5
  initial_delay: 2s
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("MEMORY_ENGINE_HOME", dir)
	t.Setenv("MEMORY_ENGINE_CONFIG", path)
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("MEMORY_ENGINE_EMBED_MODEL", "nomic-embed-text")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, "http://gpu-box:11434", cfg.Embedding.URL)
	assert.Equal(t, 5, cfg.Embedding.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Embedding.InitialDelay)
	assert.Equal(t, 2000, cfg.Embedding.MaxInputChars)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadHomeReadsItsOwnConfig(t *testing.T) {
	clearEnv(t)
	envHome := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(envHome, "config.yaml"), []byte("log:\n  level: error\n"), 0o644))
	t.Setenv("MEMORY_ENGINE_HOME", envHome)

	home := t.TempDir()
	yml := "data_dir: /elsewhere\nlog:\n  level: debug\nmetrics_addr: 127.0.0.1:9464\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yml), 0o644))

	cfg, err := LoadHome(home)
	require.NoError(t, err)
	assert.Equal(t, home, cfg.DataDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9464", cfg.MetricsAddr)
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("MEMORY_ENGINE_HOME", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{{invalid yaml:::"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.ProfilesDir())
	assert.DirExists(t, cfg.ModelsDir())
}
