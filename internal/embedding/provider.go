package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/rcliao/memory-engine/internal/config"
)

// Loader constructs a ready Embedder. It may be slow (model download,
// runtime init) and may fail; Service retries it. Wrap an error with
// backoff.Permanent to stop retrying.
type Loader func(ctx context.Context) (Embedder, error)

// NewLoader selects the loader for the configured provider. It returns nil
// when embeddings are disabled.
func NewLoader(cfg config.Embedding, modelsDir string) Loader {
	switch strings.ToLower(cfg.Provider) {
	case "", "none", "disabled":
		return nil
	case "hash":
		return func(context.Context) (Embedder, error) {
			return NewHashEmbedder(cfg.Dimensions), nil
		}
	case "ollama":
		return probed(NewOllamaEmbedder(cfg.URL, cfg.Model))
	case "openai":
		return probed(NewOpenAIEmbedder(cfg.URL, cfg.APIKey, cfg.Model, cfg.Dimensions))
	case "onnx":
		dl := NewDownloader(modelsDir)
		return func(ctx context.Context) (Embedder, error) {
			return loadONNX(ctx, cfg, dl)
		}
	default:
		return func(context.Context) (Embedder, error) {
			return nil, backoff.Permanent(fmt.Errorf("unknown embedding provider %q", cfg.Provider))
		}
	}
}

// ProviderWarning explains why the configured provider cannot serve semantic
// search from this binary. It returns "" when the provider is usable.
func ProviderWarning(provider string) string {
	if strings.EqualFold(provider, "onnx") && !ONNXCompiled {
		return "onnx provider not compiled into this binary; search will use lexical matching. Rebuild with -tags onnx or set embedding.provider to hash, ollama or openai"
	}
	return ""
}

// probed wraps a remote embedder so loading fails until the endpoint answers.
func probed(e Embedder) Loader {
	return func(ctx context.Context) (Embedder, error) {
		if _, err := e.Embed(ctx, "ping"); err != nil {
			return nil, fmt.Errorf("probe embedder: %w", err)
		}
		return e, nil
	}
}
