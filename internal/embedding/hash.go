package embedding

import (
	"context"
	"hash/fnv"

	"github.com/rcliao/memory-engine/internal/textutil"
)

// HashDims is the default width of the hashing embedder.
const HashDims = 384

// HashEmbedder is a deterministic bag-of-words embedder: each token is hashed
// into a bucket and the counts are L2-normalized. It needs no model and only
// captures lexical overlap, which makes it useful offline and in tests.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder returns a hashing embedder of the given width.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = HashDims
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	v := make(Vector, e.dims)
	for _, tok := range textutil.Tokens(text) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		v[h.Sum64()%uint64(e.dims)] += 1
	}
	return Normalize(v), nil
}

func (e *HashEmbedder) Dims() int { return e.dims }
