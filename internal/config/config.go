// Package config loads memory-engine settings from defaults, an optional YAML
// file and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/memory-engine/internal/logging"
)

// Embedding configures the embedding provider and its loader.
type Embedding struct {
	Provider      string        `yaml:"provider"` // onnx | ollama | openai | hash | none
	Model         string        `yaml:"model,omitempty"`
	URL           string        `yaml:"url,omitempty"`
	APIKey        string        `yaml:"api_key,omitempty"`
	Dimensions    int           `yaml:"dimensions,omitempty"`
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxInputChars int           `yaml:"max_input_chars"`

	// ONNX model artifacts, fetched once into the models directory.
	ModelURL     string `yaml:"model_url,omitempty"`
	TokenizerURL string `yaml:"tokenizer_url,omitempty"`
	ONNXLibrary  string `yaml:"onnx_library,omitempty"`
}

// Config is the resolved process configuration.
type Config struct {
	DataDir     string         `yaml:"data_dir"`
	Markers     []string       `yaml:"markers,omitempty"`
	Embedding   Embedding      `yaml:"embedding"`
	Log         logging.Config `yaml:"log"`
	MetricsAddr string         `yaml:"metrics_addr,omitempty"`
}

const (
	DefaultMaxAttempts   = 3
	DefaultInitialDelay  = 500 * time.Millisecond
	DefaultMaxInputChars = 2000

	DefaultModelURL     = "https://huggingface.co/sentence-transformers/all-MiniLM-L6-v2/resolve/main/onnx/model.onnx"
	DefaultTokenizerURL = "https://huggingface.co/sentence-transformers/all-MiniLM-L6-v2/resolve/main/tokenizer.json"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Embedding: Embedding{
			Provider:      "onnx",
			MaxAttempts:   DefaultMaxAttempts,
			InitialDelay:  DefaultInitialDelay,
			MaxInputChars: DefaultMaxInputChars,
			ModelURL:      DefaultModelURL,
			TokenizerURL:  DefaultTokenizerURL,
		},
		Log: logging.DefaultConfig(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memory-engine"
	}
	return filepath.Join(home, ".memory-engine")
}

// Load resolves the configuration. A missing config file is not an error.
func Load() (*Config, error) {
	return LoadHome("")
}

// LoadHome is Load with an explicit data directory. A non-empty home wins over
// MEMORY_ENGINE_HOME and data_dir, and its config.yaml is the one read.
func LoadHome(home string) (*Config, error) {
	cfg := Default()
	if dir := os.Getenv("MEMORY_ENGINE_HOME"); dir != "" {
		cfg.DataDir = dir
	}
	if home != "" {
		cfg.DataDir = home
	}

	path := os.Getenv("MEMORY_ENGINE_CONFIG")
	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	if home != "" {
		cfg.DataDir = home
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	// The env home wins over data_dir from the file.
	set(&c.DataDir, "MEMORY_ENGINE_HOME")
	set(&c.Embedding.Provider, "MEMORY_ENGINE_EMBED_PROVIDER")
	set(&c.Embedding.Model, "MEMORY_ENGINE_EMBED_MODEL")
	set(&c.Embedding.URL, "MEMORY_ENGINE_EMBED_URL")
	set(&c.Embedding.APIKey, "OPENAI_API_KEY")
	set(&c.Log.Level, "MEMORY_ENGINE_LOG_LEVEL")
	set(&c.Embedding.ONNXLibrary, "ONNXRUNTIME_LIB")
	set(&c.MetricsAddr, "MEMORY_ENGINE_METRICS_ADDR")

	if c.Embedding.Provider == "ollama" && c.Embedding.URL == "" {
		set(&c.Embedding.URL, "OLLAMA_HOST")
	}
	if v := os.Getenv("MEMORY_ENGINE_EMBED_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.MaxAttempts = n
		}
	}
}

func (c *Config) fillDefaults() {
	if c.Embedding.MaxAttempts <= 0 {
		c.Embedding.MaxAttempts = DefaultMaxAttempts
	}
	if c.Embedding.InitialDelay <= 0 {
		c.Embedding.InitialDelay = DefaultInitialDelay
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = DefaultMaxInputChars
	}
}

// ProfilesDir holds one database per profile.
func (c *Config) ProfilesDir() string {
	return filepath.Join(c.DataDir, "profiles")
}

// ModelsDir is the shared cache for downloaded model artifacts.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.DataDir, "models")
}

// EnsureDirectories creates the data layout.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.ProfilesDir(), c.ModelsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
