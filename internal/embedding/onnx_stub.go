//go:build !onnx

package embedding

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/rcliao/memory-engine/internal/config"
)

// ONNXCompiled reports whether this binary carries the onnx provider.
const ONNXCompiled = false

func loadONNX(context.Context, config.Embedding, *Downloader) (Embedder, error) {
	return nil, backoff.Permanent(errors.New("onnx provider not compiled in; build with -tags onnx or choose another embedding.provider"))
}
