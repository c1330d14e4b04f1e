package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// sidecarSuffixes are the SQLite files that live next to the main file.
var sidecarSuffixes = []string{"-wal", "-shm", "-journal"}

// StoredVersion reads the schema version tag of the store at path. exists
// is false when the file is absent, empty, or has neither a version tag nor
// any table.
func StoredVersion(ctx context.Context, path string) (version int, exists bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("stat store: %w", err)
	}
	if info.Size() == 0 {
		return 0, false, nil
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return 0, false, fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, false, fmt.Errorf("read user_version: %w", err)
	}
	if version > 0 {
		return version, true, nil
	}

	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'",
	).Scan(&tables); err != nil {
		return 0, false, fmt.Errorf("inspect store tables: %w", err)
	}
	return 0, tables > 0, nil
}

// Destroy removes the store file and all of its sidecar files. Missing files
// are not an error.
func Destroy(path string) error {
	var errs []error
	for _, p := range append([]string{path}, sidecars(path)...) {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sidecars(path string) []string {
	out := make([]string, 0, len(sidecarSuffixes))
	for _, s := range sidecarSuffixes {
		out = append(out, path+s)
	}
	return out
}
