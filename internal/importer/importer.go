// Package importer loads movie metadata and embeddings from files and writes them to catalog storage.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/eiga/internal/catalog"
	"github.com/hyperjump/eiga/internal/embedding"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/storage"
	"github.com/hyperjump/eiga/internal/vector"
	"go.uber.org/zap"
)

// Importer replaces the stored catalog from a metadata file and an embeddings file.
type Importer struct {
	storage  storage.Storage
	embedder embedding.Embedder // used only when no embeddings file is given
	logger   *zap.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) ImporterOption {
	return func(imp *Importer) { imp.logger = l }
}

// WithEmbedder sets the embedder used to compute movie embeddings when no .npy file is given.
func WithEmbedder(e embedding.Embedder) ImporterOption {
	return func(imp *Importer) { imp.embedder = e }
}

// NewImporter creates an importer writing to store.
func NewImporter(store storage.Storage, opts ...ImporterOption) *Importer {
	imp := &Importer{storage: store, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Options names the input files for an import.
type Options struct {
	MetadataPath   string
	EmbeddingsPath string // .npy; empty means compute with the configured embedder
}

// Result summarizes a completed import.
type Result struct {
	Movies     int           `json:"movies"`
	Dimensions int           `json:"dimensions"`
	Generated  bool          `json:"generated"`
	Duration   time.Duration `json:"duration"`
}

// Import reads, validates and stores a complete catalog. The stored catalog is only
// replaced if the inputs form a valid catalog (aligned counts, uniform finite vectors).
func (imp *Importer) Import(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()

	movies, err := ReadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	imp.logger.Info("metadata read", zap.String("path", opts.MetadataPath), zap.Int("movies", len(movies)))

	var (
		embeddings [][]float32
		generated  bool
	)
	if opts.EmbeddingsPath != "" {
		embeddings, err = vector.ReadNPYFile(opts.EmbeddingsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read embeddings: %w", err)
		}
	} else {
		embeddings, err = imp.generate(ctx, movies)
		if err != nil {
			return nil, err
		}
		generated = true
	}

	cat, err := catalog.New(movies, embeddings)
	if err != nil {
		return nil, err
	}
	if err := imp.storage.ReplaceCatalog(ctx, movies, embeddings); err != nil {
		return nil, fmt.Errorf("failed to store catalog: %w", err)
	}

	res := &Result{
		Movies:     cat.Len(),
		Dimensions: cat.Dimensions(),
		Generated:  generated,
		Duration:   time.Since(start),
	}
	imp.logger.Info("catalog imported",
		zap.Int("movies", res.Movies),
		zap.Int("dimensions", res.Dimensions),
		zap.Bool("generated", res.Generated),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (imp *Importer) generate(ctx context.Context, movies []models.Movie) ([][]float32, error) {
	if imp.embedder == nil {
		return nil, errors.New("no embeddings file given and no embedder configured")
	}
	out := make([][]float32, len(movies))
	for i, m := range movies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := imp.embedder.Embed(ctx, EmbeddingText(m.Title, m.Genres, m.Overview))
		if err != nil {
			return nil, fmt.Errorf("failed to embed movie %d (%s): %w", i, m.Title, err)
		}
		out[i] = v
		if (i+1)%500 == 0 {
			imp.logger.Debug("embedding progress", zap.Int("done", i+1), zap.Int("total", len(movies)))
		}
	}
	return out, nil
}
