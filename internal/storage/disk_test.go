package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/eiga/internal/models"
)

func TestDatabaseSize(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "catalog.db")

	write := func(path, content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := DatabaseSize(db)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("missing database: got %d bytes, want 0", got)
	}

	write(db, "hello")
	if got, _ := DatabaseSize(db); got != 5 {
		t.Errorf("database only: got %d bytes, want 5", got)
	}

	write(db+"-wal", "abc")
	write(db+"-shm", "de")
	write(db+"-journal", "f")
	if got, _ := DatabaseSize(db); got != 11 {
		t.Errorf("with side files: got %d bytes, want 11", got)
	}

	// Unrelated neighbours are not counted.
	write(filepath.Join(dir, "catalog.db.bak"), "xxxxxxxx")
	if got, _ := DatabaseSize(db); got != 11 {
		t.Errorf("with neighbour: got %d bytes, want 11", got)
	}
}

func TestDatabaseSize_Errors(t *testing.T) {
	if _, err := DatabaseSize(""); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := DatabaseSize(t.TempDir()); err == nil {
		t.Error("expected error for directory path")
	}
}

func TestSQLiteStorage_DiskUsage(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	before, err := s.DiskUsage()
	if err != nil {
		t.Fatal(err)
	}
	movies := []models.Movie{{ID: "1", Title: "Heat", Overview: "a long overview about a heist in los angeles"}}
	emb := make([]float32, 512)
	if err := s.ReplaceCatalog(context.Background(), movies, [][]float32{emb}); err != nil {
		t.Fatal(err)
	}
	after, err := s.DiskUsage()
	if err != nil {
		t.Fatal(err)
	}
	if after <= before {
		t.Errorf("disk usage did not grow after insert: before %d, after %d", before, after)
	}
}
