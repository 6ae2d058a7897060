package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// BaseTime is the modification time WriteFile and Mkdir stamp by default.
var BaseTime = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

// NewMemFs returns an empty in-memory filesystem.
func NewMemFs() afero.Fs {
	return afero.NewMemMapFs()
}

// WriteFile creates path with content, mode 0644 and mtime BaseTime,
// creating parent directories as needed.
func WriteFile(t *testing.T, fsys afero.Fs, path string, content string) {
	t.Helper()
	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}
	if err := afero.WriteFile(fsys, path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	Touch(t, fsys, path, BaseTime)
}

// Mkdir creates a directory with mode 0755 and mtime BaseTime.
func Mkdir(t *testing.T, fsys afero.Fs, path string) {
	t.Helper()
	if err := fsys.MkdirAll(path, 0755); err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	Touch(t, fsys, path, BaseTime)
}

// Touch sets the modification time of path.
func Touch(t *testing.T, fsys afero.Fs, path string, mtime time.Time) {
	t.Helper()
	if err := fsys.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// Chmod changes the permission bits of path.
func Chmod(t *testing.T, fsys afero.Fs, path string, mode os.FileMode) {
	t.Helper()
	if err := fsys.Chmod(path, mode); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
}
