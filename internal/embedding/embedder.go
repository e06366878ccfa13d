// Package embedding turns query text into fixed-length vectors via ONNX, Gemini, or a deterministic mock.
package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/eiga/internal/config"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text. Every vector it returns has exactly Dimensions() components.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder selected by cfg.Provider and wraps it in an LRU cache when
// cfg.CacheSize > 0. If the ONNX runtime or model cannot be loaded, it logs a warning
// and falls back to the mock embedder so the server can still start.
func New(ctx context.Context, cfg *config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case config.ProviderMock:
		inner = NewMockEmbedder(cfg.Dimensions)
	case config.ProviderGemini:
		inner, err = NewGeminiEmbedder(ctx, os.Getenv(cfg.GeminiAPIKeyEnv), cfg.GeminiModel, cfg.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini embedder: %w", err)
		}
	case config.ProviderONNX, "":
		onnx, onnxErr := NewONNXEmbedder(cfg.ModelPath, cfg.ONNXLibraryPath, cfg.Dimensions, cfg.MaxTokens)
		if onnxErr != nil {
			logger.Warn("onnx embedder unavailable, falling back to mock embedder",
				zap.String("model_path", cfg.ModelPath),
				zap.Error(onnxErr))
			inner = NewMockEmbedder(cfg.Dimensions)
		} else {
			inner = onnx
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	logger.Info("embedder initialized",
		zap.String("provider", cfg.Provider),
		zap.Int("dimensions", inner.Dimensions()),
		zap.Int("cache_size", cfg.CacheSize))
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}

// checkDimensions guards the fixed-dimension contract for providers that return server-sized vectors.
func checkDimensions(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), want)
	}
	return nil
}
