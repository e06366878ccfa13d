// Package catalog holds the immutable, index-aligned movie catalog: metadata plus its embedding matrix.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/vector"
)

// ErrMisaligned is returned when metadata and embedding counts differ.
var ErrMisaligned = errors.New("catalog metadata and embeddings are misaligned")

// ErrUnknownPosition is returned for a position outside the catalog.
var ErrUnknownPosition = errors.New("no movie at position")

// Source loads a catalog's metadata and embeddings. movies[i] belongs to embeddings[i].
type Source interface {
	LoadCatalog(ctx context.Context) ([]models.Movie, [][]float32, error)
}

// Catalog is a read-only snapshot safe for concurrent use.
type Catalog struct {
	matrix *vector.Matrix
	movies []models.Movie
}

// New builds a catalog, copying movies and embeddings. Each movie's Position is set to its index.
func New(movies []models.Movie, embeddings [][]float32) (*Catalog, error) {
	if len(movies) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d movies, %d embeddings", ErrMisaligned, len(movies), len(embeddings))
	}
	m, err := vector.NewMatrix(embeddings)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog embeddings: %w", err)
	}
	ms := make([]models.Movie, len(movies))
	for i, mv := range movies {
		mv.Genres = append([]string(nil), mv.Genres...)
		mv.Position = i
		ms[i] = mv
	}
	return &Catalog{matrix: m, movies: ms}, nil
}

// Load reads a full catalog from src.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	movies, embeddings, err := src.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return New(movies, embeddings)
}

// Len returns the number of movies. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.movies)
}

// Dimensions returns the embedding dimension, or 0 for an empty catalog.
func (c *Catalog) Dimensions() int {
	if c == nil {
		return 0
	}
	return c.matrix.Dimensions()
}

// Matrix returns the embedding matrix.
func (c *Catalog) Matrix() *vector.Matrix {
	if c == nil {
		return nil
	}
	return c.matrix
}

// Movie returns a copy of the movie at index i.
func (c *Catalog) Movie(i int) (models.Movie, bool) {
	if i < 0 || i >= c.Len() {
		return models.Movie{}, false
	}
	m := c.movies[i]
	m.Genres = append([]string(nil), m.Genres...)
	return m, true
}
