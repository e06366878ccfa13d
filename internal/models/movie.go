// Package models defines core data structures for movies, recommendation queries, and results.
package models

// Movie is one catalog metadata record. Position is its row in the catalog
// embedding matrix and is the key that aligns metadata with vectors.
type Movie struct {
	Position   int      `json:"position" db:"position"`
	ID         string   `json:"id" db:"movie_id"`
	Title      string   `json:"title" db:"title"`
	Overview   string   `json:"overview,omitempty" db:"overview"`
	Genres     []string `json:"genres,omitempty" db:"genres"`
	PosterPath string   `json:"poster_path,omitempty" db:"poster_path"`
}

// HasPoster reports whether the movie carries a poster path.
func (m *Movie) HasPoster() bool {
	return m != nil && m.PosterPath != ""
}
