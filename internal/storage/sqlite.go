package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/vector"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS movies (
		position INTEGER PRIMARY KEY,
		movie_id TEXT NOT NULL,
		title TEXT NOT NULL,
		overview TEXT,
		genres TEXT,
		poster_path TEXT,
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movies_movie_id ON movies(movie_id);

	CREATE TABLE IF NOT EXISTS catalog_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// ReplaceCatalog deletes every stored movie and inserts the new catalog in one transaction.
func (s *SQLiteStorage) ReplaceCatalog(ctx context.Context, movies []models.Movie, embeddings [][]float32) error {
	if len(movies) != len(embeddings) {
		return fmt.Errorf("catalog has %d movies but %d embeddings", len(movies), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM movies`); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO movies (position, movie_id, title, overview, genres, poster_path, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range movies {
		genresJSON, err := json.Marshal(m.Genres)
		if err != nil {
			return fmt.Errorf("failed to marshal genres: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, i, m.ID, m.Title, m.Overview, string(genresJSON), m.PosterPath,
			vector.EncodeFloat32s(embeddings[i])); err != nil {
			return fmt.Errorf("failed to insert movie %d: %w", i, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_meta (key, value) VALUES ('updated_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to record catalog update: %w", err)
	}
	return tx.Commit()
}

// LoadCatalog returns all movies and their embeddings ordered by position.
func (s *SQLiteStorage) LoadCatalog(ctx context.Context) ([]models.Movie, [][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, movie_id, title, overview, genres, poster_path, embedding
		 FROM movies ORDER BY position`,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		movies     []models.Movie
		embeddings [][]float32
	)
	for rows.Next() {
		var (
			m    models.Movie
			blob []byte
		)
		if err := scanMovie(rows, &m, &blob); err != nil {
			return nil, nil, err
		}
		if m.Position != len(movies) {
			return nil, nil, fmt.Errorf("catalog positions are not contiguous: expected %d, found %d", len(movies), m.Position)
		}
		emb, err := vector.DecodeFloat32s(blob)
		if err != nil {
			return nil, nil, fmt.Errorf("movie %d: %w", m.Position, err)
		}
		movies = append(movies, m)
		embeddings = append(embeddings, emb)
	}
	return movies, embeddings, rows.Err()
}

// GetMovie returns the movie at position, without its embedding.
func (s *SQLiteStorage) GetMovie(ctx context.Context, position int) (*models.Movie, error) {
	var (
		m    models.Movie
		blob []byte
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT position, movie_id, title, overview, genres, poster_path, embedding
		 FROM movies WHERE position = ?`, position,
	)
	err := scanMovie(row, &m, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: position %d", ErrMovieNotFound, position)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMovies returns the number of stored movies.
func (s *SQLiteStorage) CountMovies(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&count)
	return count, err
}

// UpdatedAt returns when the catalog was last replaced, or the zero time if never.
func (s *SQLiteStorage) UpdatedAt(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM catalog_meta WHERE key = 'updated_at'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovie(sc scanner, m *models.Movie, blob *[]byte) error {
	var overview, genresJSON, poster sql.NullString
	if err := sc.Scan(&m.Position, &m.ID, &m.Title, &overview, &genresJSON, &poster, blob); err != nil {
		return err
	}
	m.Overview = overview.String
	m.PosterPath = poster.String
	if genresJSON.String != "" {
		if err := json.Unmarshal([]byte(genresJSON.String), &m.Genres); err != nil {
			return fmt.Errorf("failed to unmarshal genres: %w", err)
		}
	}
	return nil
}
