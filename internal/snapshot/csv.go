// Package snapshot persists snapshots as comma-separated rows keyed by
// absolute path.
package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"siv-go/internal/siv"
)

// Header is the first row of every snapshot file.
var Header = []string{"FULL_PATH", "FILE_SIZE", "USER", "GROUP", "MODE", "LAST_MODIFIED", "MD_OF_FILE"}

const (
	fileColumns = 7 // FULL_PATH,FILE_SIZE,USER,GROUP,MODE,LAST_MODIFIED,MD_OF_FILE
	dirColumns  = 5 // FULL_PATH,USER,GROUP,MODE,LAST_MODIFIED
)

// CSVStore reads and writes snapshot files.
type CSVStore struct {
	fs afero.Fs
}

var _ siv.SnapshotStore = (*CSVStore)(nil)

// NewCSVStore creates a store on fsys.
func NewCSVStore(fsys afero.Fs) *CSVStore {
	return &CSVStore{fs: fsys}
}

// Write serializes s to path, replacing any existing file atomically.
func (c *CSVStore) Write(s *siv.Snapshot, path string) error {
	dir := filepath.Dir(path)
	if err := c.fs.MkdirAll(dir, 0755); err != nil {
		return &siv.IOError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := afero.TempFile(c.fs, dir, ".snapshot-*")
	if err != nil {
		return &siv.IOError{Op: "create", Path: path, Err: err}
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			c.fs.Remove(tmpPath)
		}
	}()

	if err := Encode(tmp, s); err != nil {
		tmp.Close()
		return &siv.IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &siv.IOError{Op: "close", Path: path, Err: err}
	}
	if err := c.fs.Rename(tmpPath, path); err != nil {
		return &siv.IOError{Op: "rename", Path: path, Err: err}
	}

	success = true
	return nil
}

// Read loads the snapshot at path. A missing file yields siv.ErrNoBaseline.
func (c *CSVStore) Read(path string) (*siv.KeyedSnapshot, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", siv.ErrNoBaseline, path)
		}
		return nil, &siv.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	keyed, err := Decode(f)
	if err != nil {
		return nil, &siv.IOError{Op: "read", Path: path, Err: err}
	}
	return keyed, nil
}

// Encode writes the header and one row per entry, in snapshot order.
func Encode(w io.Writer, s *siv.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range s.Entries {
		if err := cw.Write(row(e)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// encodePath writes paths containing a carriage return as Go-quoted
// strings, since the CSV reader folds \r\n inside a quoted field to \n.
// Paths are absolute, so a leading quote cannot be a literal path.
func encodePath(p string) string {
	if strings.ContainsRune(p, '\r') {
		return strconv.Quote(p)
	}
	return p
}

func decodePath(field string) (string, error) {
	if !strings.HasPrefix(field, `"`) {
		return field, nil
	}
	p, err := strconv.Unquote(field)
	if err != nil {
		return "", fmt.Errorf("bad escaped path %q", field)
	}
	return p, nil
}

func row(e *siv.Entry) []string {
	modTime := siv.FormatModTime(e.ModTime)
	path := encodePath(e.Path)
	if e.IsDir() {
		return []string{path, e.Owner, e.Group, e.Mode, modTime}
	}
	return []string{path, strconv.FormatInt(e.Size, 10), e.Owner, e.Group, e.Mode, modTime, e.Hash}
}

// Decode parses snapshot rows. The header row is optional. Rows with the
// wrong number of columns or unparsable numbers are skipped and reported in
// Malformed; a path seen twice keeps its last row and is reported in
// Duplicates.
func Decode(r io.Reader) (*siv.KeyedSnapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	keyed := &siv.KeyedSnapshot{Entries: make(map[string]*siv.Entry)}
	for first := true; ; first = false {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				keyed.Malformed = append(keyed.Malformed, siv.MalformedRow{Line: parseErr.StartLine, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, err
		}
		if first && isHeader(rec) {
			continue
		}
		line, _ := cr.FieldPos(0)

		e, err := parseRow(rec)
		if err != nil {
			keyed.Malformed = append(keyed.Malformed, siv.MalformedRow{Line: line, Reason: err.Error()})
			continue
		}
		if _, dup := keyed.Entries[e.Path]; dup {
			keyed.Duplicates = append(keyed.Duplicates, e.Path)
		}
		keyed.Entries[e.Path] = e
	}
	return keyed, nil
}

func isHeader(rec []string) bool {
	if len(rec) != len(Header) {
		return false
	}
	for i := range rec {
		if rec[i] != Header[i] {
			return false
		}
	}
	return true
}

func parseRow(rec []string) (*siv.Entry, error) {
	if len(rec) == fileColumns || len(rec) == dirColumns {
		path, err := decodePath(rec[0])
		if err != nil {
			return nil, err
		}
		rec[0] = path
	}
	switch len(rec) {
	case fileColumns:
		size, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad size %q", rec[1])
		}
		modTime, err := siv.ParseModTime(rec[5])
		if err != nil {
			return nil, err
		}
		return &siv.Entry{
			Path:    rec[0],
			Kind:    siv.KindFile,
			Size:    size,
			Owner:   rec[2],
			Group:   rec[3],
			Mode:    rec[4],
			ModTime: modTime,
			Hash:    rec[6],
		}, nil
	case dirColumns:
		modTime, err := siv.ParseModTime(rec[4])
		if err != nil {
			return nil, err
		}
		return &siv.Entry{
			Path:    rec[0],
			Kind:    siv.KindDirectory,
			Owner:   rec[1],
			Group:   rec[2],
			Mode:    rec[3],
			ModTime: modTime,
		}, nil
	default:
		return nil, fmt.Errorf("expected %d or %d columns, got %d", fileColumns, dirColumns, len(rec))
	}
}
