package siv

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"
)

// Kind distinguishes file records from directory records.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Entry is the captured state of one file or directory.
// Hash and Size are only meaningful for KindFile.
type Entry struct {
	Path    string // absolute, cleaned; unique within a snapshot
	Kind    Kind
	Owner   string
	Group   string
	Mode    string // three octal digits, e.g. "644"
	ModTime time.Time
	Size    int64
	Hash    string
}

// IsDir reports whether the entry is a directory record.
func (e *Entry) IsDir() bool { return e.Kind == KindDirectory }

// Snapshot is one walk of one root, in traversal order.
type Snapshot struct {
	Root      string
	Algorithm Algorithm
	Entries   []*Entry
}

// Index returns the entries keyed by path. A later duplicate replaces an earlier one.
func (s *Snapshot) Index() map[string]*Entry {
	m := make(map[string]*Entry, len(s.Entries))
	for _, e := range s.Entries {
		m[e.Path] = e
	}
	return m
}

// FormatMode renders the nine permission bits as three digits, one per
// owner/group/other triad, each the sum of r=4, w=2, x=1. Type, setuid,
// setgid and sticky bits are ignored.
func FormatMode(mode fs.FileMode) string {
	bits := [9]fs.FileMode{0400, 0200, 0100, 0040, 0020, 0010, 0004, 0002, 0001}
	weights := [3]byte{4, 2, 1}
	var out [3]byte
	for i, bit := range bits {
		if mode&bit != 0 {
			out[i/3] += weights[i%3]
		}
	}
	for i := range out {
		out[i] += '0'
	}
	return string(out[:])
}

// FormatModTime renders a timestamp as decimal seconds since the epoch with a
// nanosecond fraction, e.g. "1700000000.250000000".
func FormatModTime(t time.Time) string {
	return fmt.Sprintf("%d.%09d", t.Unix(), t.Nanosecond())
}

// ParseModTime is the inverse of FormatModTime. A value without a fraction is
// accepted as whole seconds.
func ParseModTime(s string) (time.Time, error) {
	secPart, fracPart, hasFrac := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing modification time %q: %w", s, err)
	}
	var nsec int64
	if hasFrac {
		if len(fracPart) == 0 || len(fracPart) > 9 {
			return time.Time{}, fmt.Errorf("parsing modification time %q: bad fraction", s)
		}
		fracPart += strings.Repeat("0", 9-len(fracPart))
		nsec, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing modification time %q: %w", s, err)
		}
	}
	return time.Unix(sec, nsec), nil
}
