package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"siv-go/internal/siv"
)

// excludePattern is one parsed exclusion with its matching strategy.
type excludePattern struct {
	glob     string
	anchored bool // true = match against the root-relative path; false = basename only
}

// IgnoreMatcher excludes paths from a walk.
// Globs without '/' match any entry with that basename at any depth.
// Globs with '/' match the slash-separated path relative to the walk root.
// A leading '/' is accepted and ignored.
type IgnoreMatcher struct {
	patterns []excludePattern
}

var _ siv.Matcher = (*IgnoreMatcher)(nil)

// NewIgnoreMatcher parses raw globs. Blank lines and lines starting with '#'
// are skipped, as are globs filepath.Match would reject.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []excludePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		anchored := strings.Contains(raw, "/")
		raw = strings.TrimPrefix(raw, "/")
		if _, err := filepath.Match(raw, ""); err != nil {
			continue
		}
		patterns = append(patterns, excludePattern{glob: raw, anchored: anchored})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Len returns the number of usable patterns.
func (m *IgnoreMatcher) Len() int { return len(m.patterns) }

// Match reports whether relativePath is excluded.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 || relativePath == "" {
		return false
	}

	slashed := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)
	for _, p := range m.patterns {
		subject := base
		if p.anchored {
			subject = slashed
		}
		if ok, _ := filepath.Match(p.glob, subject); ok {
			return true
		}
	}
	return false
}

// ReadIgnoreFile returns the lines of an exclusion file. The file should live
// outside the monitored tree so the tree cannot exclude parts of itself.
// A missing file yields no patterns.
func ReadIgnoreFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
