package storage

import (
	"errors"
	"io/fs"
	"os"
)

// sqliteSideFiles are the suffixes of files SQLite keeps beside a database.
var sqliteSideFiles = []string{"-wal", "-shm", "-journal"}

// DatabaseSize returns the bytes a SQLite database occupies on disk, including its
// WAL, shared-memory and rollback journal files. Files that don't exist count as 0.
func DatabaseSize(dbPath string) (int64, error) {
	if dbPath == "" {
		return 0, errors.New("database path is empty")
	}
	var total int64
	for _, p := range append([]string{dbPath}, sidePaths(dbPath)...) {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if info.IsDir() {
			return 0, &fs.PathError{Op: "size", Path: p, Err: errors.New("is a directory")}
		}
		total += info.Size()
	}
	return total, nil
}

func sidePaths(dbPath string) []string {
	out := make([]string, len(sqliteSideFiles))
	for i, suffix := range sqliteSideFiles {
		out[i] = dbPath + suffix
	}
	return out
}

// DiskUsage returns the on-disk size of this storage's database.
func (s *SQLiteStorage) DiskUsage() (int64, error) {
	return DatabaseSize(s.path)
}
