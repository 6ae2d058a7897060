package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// FileSystemStore stores objects as files below a root directory, one file
// per key:
//
//	<root>/
//	  <hostID>/
//	    <runID>/
//	      snapshot.csv[.age]
type FileSystemStore struct {
	name string
	root string
	fs   afero.Fs
}

var _ Store = (*FileSystemStore)(nil)

// NewFileSystemStore creates a store rooted at root, creating it if needed.
func NewFileSystemStore(name, root string, fsys afero.Fs) (*FileSystemStore, error) {
	if err := fsys.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	return &FileSystemStore{name: name, root: root, fs: fsys}, nil
}

func (s *FileSystemStore) Name() string { return s.name }

// objectPath maps a key to a file path, rejecting keys that escape the root.
func (s *FileSystemStore) objectPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+key {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes the object using a temp file and rename, so readers never see
// a partial object.
func (s *FileSystemStore) Put(_ context.Context, key string, r io.Reader, size int64) error {
	dest, err := s.objectPath(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			s.fs.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := s.fs.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

func (s *FileSystemStore) Get(_ context.Context, key string, w io.Writer) error {
	src, err := s.objectPath(key)
	if err != nil {
		return err
	}
	f, err := s.fs.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

func (s *FileSystemStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := afero.Walk(s.fs, s.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing archive: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// ValidateSetup verifies that the root exists and is a directory.
func (s *FileSystemStore) ValidateSetup(context.Context) error {
	info, err := s.fs.Stat(s.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", s.root)
	}
	return nil
}
