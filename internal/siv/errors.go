package siv

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityResolution matches any *IdentityError.
	ErrIdentityResolution = errors.New("identity resolution failed")

	// ErrNoBaseline is returned when verify finds no snapshot to compare against.
	ErrNoBaseline = errors.New("no baseline snapshot found")
)

// IOError records a filesystem failure during a walk or snapshot read/write.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

// IdentityError reports a uid or gid with no name in the host's identity directory.
type IdentityError struct {
	Path string
	Kind string // "user" or "group"
	ID   int64
	Err  error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("resolving %s id %d for %s: %v", e.Kind, e.ID, e.Path, e.Err)
}

func (e *IdentityError) Unwrap() error { return e.Err }

func (e *IdentityError) Is(target error) bool { return target == ErrIdentityResolution }
