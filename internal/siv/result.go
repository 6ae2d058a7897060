package siv

import (
	"fmt"
	"sync"
)

// Warning categories, in the order Compare emits them.
const (
	CategoryRemoved   = "FILES REMOVED"
	CategoryAdded     = "FILES ADDED"
	CategorySize      = "FILE SIZE MODIFIED"
	CategoryHash      = "HASH VALUE MODIFIED"
	CategoryModTime   = "MODIFICATION TIME MODIFIED"
	CategoryMode      = "ACCESS RIGHTS MODIFIED"
	CategoryGroup     = "GROUP NAME MODIFIED"
	CategoryOwner     = "USER NAME MODIFIED"
	CategoryMalformed = "MALFORMED SNAPSHOT ROWS"
	CategoryDuplicate = "DUPLICATE SNAPSHOT ROWS"
)

// Category is one class of detected change and the paths it affects.
type Category struct {
	Name  string
	Paths []string
}

// Result accumulates the warnings of a single verify run. It is safe for
// concurrent use; construct a fresh one per run.
type Result struct {
	mu         sync.Mutex
	categories []Category
	warnings   int
}

// NewResult returns an empty Result.
func NewResult() *Result {
	return &Result{}
}

// Add records a category with one warning per path. Empty path lists are ignored.
func (r *Result) Add(name string, paths []string) {
	if len(paths) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories = append(r.categories, Category{Name: name, Paths: append([]string(nil), paths...)})
	r.warnings += len(paths)
}

// Warnings returns the total warning count.
func (r *Result) Warnings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings
}

// Categories returns a copy of the recorded categories in insertion order.
func (r *Result) Categories() []Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// Category returns the paths recorded under name, or nil.
func (r *Result) Category(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if c.Name == name {
			return append([]string(nil), c.Paths...)
		}
	}
	return nil
}

// Log flattens the result into report lines: a header per category followed
// by its paths.
func (r *Result) Log() []string {
	var lines []string
	for _, c := range r.Categories() {
		lines = append(lines, fmt.Sprintf("*************** Warning: %s ***************", c.Name))
		lines = append(lines, c.Paths...)
	}
	return lines
}
