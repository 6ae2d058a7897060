package siv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Matcher reports whether a path, relative to the walk root, is excluded.
type Matcher interface {
	Match(relativePath string) bool
}

// WalkResult is the output of one walk.
type WalkResult struct {
	Snapshot    *Snapshot
	Files       int
	Directories int
}

// TreeWalker enumerates a directory tree into a Snapshot.
type TreeWalker struct {
	fs            afero.Fs
	fingerprinter *Fingerprinter
	extractor     *MetadataExtractor
	ignore        Matcher
	workers       int
	logger        Logger
}

// WalkerOption configures a TreeWalker.
type WalkerOption func(*TreeWalker)

// WithWorkers bounds the number of entries captured concurrently. n < 1 means runtime.NumCPU().
func WithWorkers(n int) WalkerOption {
	return func(w *TreeWalker) {
		if n < 1 {
			n = runtime.NumCPU()
		}
		w.workers = n
	}
}

// WithIgnore excludes entries matched by m. Excluded directories are not descended into.
func WithIgnore(m Matcher) WalkerOption {
	return func(w *TreeWalker) { w.ignore = m }
}

// WithLogger sets the walker's logger.
func WithLogger(l Logger) WalkerOption {
	return func(w *TreeWalker) { w.logger = l }
}

// NewTreeWalker creates a walker over fsys.
func NewTreeWalker(fsys afero.Fs, fingerprinter *Fingerprinter, extractor *MetadataExtractor, opts ...WalkerOption) *TreeWalker {
	w := &TreeWalker{
		fs:            fsys,
		fingerprinter: fingerprinter,
		extractor:     extractor,
		workers:       runtime.NumCPU(),
		logger:        NewNopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// walkTask is one entry discovered during traversal, not yet captured.
type walkTask struct {
	path  string
	isDir bool
}

// Walk traverses root top-down. Each visited directory contributes a record
// for every immediate subdirectory, then one for every other immediate entry,
// both in lexical order. The root itself is not recorded and symlinked
// directories are recorded but not followed.
//
// Any unreadable entry aborts the walk; no partial snapshot is returned.
func (w *TreeWalker) Walk(ctx context.Context, root string, algorithm Algorithm) (*WalkResult, error) {
	if _, err := algorithm.New(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := w.fs.Stat(absRoot)
	if err != nil {
		return nil, &IOError{Op: "stat", Path: absRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	result := &WalkResult{}
	var tasks []walkTask
	if err := w.enumerate(ctx, absRoot, absRoot, &tasks, result); err != nil {
		return nil, err
	}
	w.logger.Debug("tree enumerated", "root", absRoot, "files", result.Files, "directories", result.Directories)

	entries := make([]*Entry, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i, task := range tasks {
		i, task := i, task
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := w.capture(task, algorithm)
			if err != nil {
				return err
			}
			entries[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Snapshot = &Snapshot{Root: absRoot, Algorithm: algorithm, Entries: entries}
	return result, nil
}

func (w *TreeWalker) enumerate(ctx context.Context, root, dir string, tasks *[]walkTask, result *WalkResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return &IOError{Op: "readdir", Path: dir, Err: err}
	}

	var dirs, files []walkTask
	var descend []string
	for _, info := range infos {
		path := filepath.Join(dir, info.Name())
		if w.ignore != nil {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return fmt.Errorf("calculating relative path: %w", err)
			}
			if w.ignore.Match(rel) {
				continue
			}
		}

		isDir := info.IsDir()
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := w.fs.Stat(path)
			if err != nil {
				return &IOError{Op: "stat", Path: path, Err: err}
			}
			isDir = target.IsDir()
		} else if isDir {
			descend = append(descend, path)
		}

		if isDir {
			dirs = append(dirs, walkTask{path: path, isDir: true})
		} else {
			files = append(files, walkTask{path: path})
		}
	}

	result.Directories += len(dirs)
	result.Files += len(files)
	*tasks = append(*tasks, dirs...)
	*tasks = append(*tasks, files...)

	for _, sub := range descend {
		if err := w.enumerate(ctx, root, sub, tasks, result); err != nil {
			return err
		}
	}
	return nil
}

func (w *TreeWalker) capture(task walkTask, algorithm Algorithm) (*Entry, error) {
	md, err := w.extractor.Extract(task.path)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Path:    task.path,
		Kind:    KindFile,
		Owner:   md.Owner,
		Group:   md.Group,
		Mode:    md.Mode,
		ModTime: md.ModTime,
	}
	if task.isDir {
		entry.Kind = KindDirectory
		return entry, nil
	}

	entry.Size = md.Size
	if !md.Regular {
		w.logger.Debug("not hashing special file", "path", task.path)
		return entry, nil
	}
	if entry.Hash, err = w.fingerprinter.Digest(task.path, algorithm); err != nil {
		return nil, err
	}
	return entry, nil
}
