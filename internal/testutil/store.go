package testutil

import (
	"path/filepath"
	"testing"
)

// StorePath returns a path for a store file inside a per-test temp directory.
// Nothing is created on disk.
func StorePath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "todo_list.sqlite")
}
