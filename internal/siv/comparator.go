package siv

import (
	"fmt"
	"sort"
	"strconv"
)

// MalformedRow describes a snapshot row the loader could not use.
type MalformedRow struct {
	Line   int
	Reason string
}

// KeyedSnapshot is a snapshot read back from disk, keyed by path.
type KeyedSnapshot struct {
	Entries    map[string]*Entry
	Duplicates []string       // paths that appeared more than once; the last row won
	Malformed  []MalformedRow // rows that were skipped
}

// NewKeyedSnapshot indexes an in-memory snapshot.
func NewKeyedSnapshot(s *Snapshot) *KeyedSnapshot {
	return &KeyedSnapshot{Entries: s.Index()}
}

// attribute selects one comparable field of an entry.
type attribute struct {
	category string
	value    func(*Entry) string
}

// attributes is the fixed priority order of the attribute diff. Fields a
// record does not carry compare as empty strings.
var attributes = []attribute{
	{CategorySize, func(e *Entry) string {
		if e.IsDir() {
			return ""
		}
		return strconv.FormatInt(e.Size, 10)
	}},
	{CategoryHash, func(e *Entry) string {
		if e.IsDir() {
			return ""
		}
		return e.Hash
	}},
	{CategoryModTime, func(e *Entry) string { return FormatModTime(e.ModTime) }},
	{CategoryMode, func(e *Entry) string { return e.Mode }},
	{CategoryGroup, func(e *Entry) string { return e.Group }},
	{CategoryOwner, func(e *Entry) string { return e.Owner }},
}

// Compare classifies every difference between baseline and current into a
// fresh Result. Paths only in baseline are removed, paths only in current are
// added, and every path in both is checked attribute by attribute. A path
// with several changed attributes is reported once under each of them.
// Loader anomalies of either side are reported as their own categories.
func Compare(baseline, current *KeyedSnapshot) *Result {
	result := NewResult()

	var removed, added, common []string
	for path := range baseline.Entries {
		if _, ok := current.Entries[path]; ok {
			common = append(common, path)
		} else {
			removed = append(removed, path)
		}
	}
	for path := range current.Entries {
		if _, ok := baseline.Entries[path]; !ok {
			added = append(added, path)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	sort.Strings(common)

	result.Add(CategoryRemoved, removed)
	result.Add(CategoryAdded, added)

	for _, attr := range attributes {
		var changed []string
		for _, path := range common {
			if attr.value(baseline.Entries[path]) != attr.value(current.Entries[path]) {
				changed = append(changed, path)
			}
		}
		result.Add(attr.category, changed)
	}

	var malformed, duplicates []string
	malformed = append(malformed, describeMalformed("baseline", baseline.Malformed)...)
	malformed = append(malformed, describeMalformed("current", current.Malformed)...)
	duplicates = append(duplicates, describeDuplicates("baseline", baseline.Duplicates)...)
	duplicates = append(duplicates, describeDuplicates("current", current.Duplicates)...)
	result.Add(CategoryMalformed, malformed)
	result.Add(CategoryDuplicate, duplicates)
	return result
}

func describeMalformed(side string, rows []MalformedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = fmt.Sprintf("%s snapshot line %d: %s", side, r.Line, r.Reason)
	}
	return out
}

func describeDuplicates(side string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = fmt.Sprintf("%s snapshot: %s", side, p)
	}
	return out
}
