// Package vector provides the catalog embedding matrix and exact top-k cosine ranking.
package vector

import "errors"

var (
	// ErrDimensionMismatch is returned when a query vector's length differs from the catalog dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrEmptyCatalog is returned when ranking against a matrix with no rows.
	ErrEmptyCatalog = errors.New("empty catalog")
	// ErrInvalidK is returned when fewer than one result is requested.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrNonFinite is returned for vectors containing NaN or Inf components.
	ErrNonFinite = errors.New("vector contains non-finite values")
)

// Match is one ranked catalog entry: its row position in the matrix and its cosine similarity.
type Match struct {
	Index int     `json:"index"`
	Score float64 `json:"score"` // cosine similarity in [-1, 1]
}
