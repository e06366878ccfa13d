package embedding

import (
	"context"

	"github.com/hyperjump/eiga/pkg/utils"
)

// MockEmbedder is a deterministic feature-hashing embedder for tests and for running
// without a model. Each lowercased word adds ±1 to a hashed bucket, so texts that
// share words have positive cosine similarity. Text with no words embeds to the zero vector.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length hashed bag-of-words vector for text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, word := range SplitWords(text) {
		h := HashString(word)
		sign := float32(1)
		if h&(1<<40) != 0 {
			sign = -1
		}
		emb[h%uint64(e.dimensions)] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
