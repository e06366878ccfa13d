// Package storage persists the movie catalog: metadata rows plus one embedding per movie.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/eiga/internal/models"
)

// ErrMovieNotFound is returned when no movie exists at the requested position.
var ErrMovieNotFound = errors.New("movie not found")

// Storage defines catalog persistence operations. Movies are keyed by their
// catalog position, which is also the row index of their embedding.
type Storage interface {
	// ReplaceCatalog atomically replaces the whole catalog. movies[i] is stored
	// at position i with embeddings[i].
	ReplaceCatalog(ctx context.Context, movies []models.Movie, embeddings [][]float32) error
	// LoadCatalog returns all movies and embeddings ordered by position.
	LoadCatalog(ctx context.Context) ([]models.Movie, [][]float32, error)
	GetMovie(ctx context.Context, position int) (*models.Movie, error)
	CountMovies(ctx context.Context) (int64, error)

	Close() error
}
