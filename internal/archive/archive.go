// Package archive keeps off-tree copies of snapshots so a baseline can be
// recovered when the local copy has been tampered with.
package archive

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("archive object not found")

// Store is a flat object store addressed by slash-separated keys.
type Store interface {
	// Name identifies the store in logs and listings.
	Name() string

	// Put stores size bytes read from r under key, replacing any previous object.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the object stored under key to w. Returns an error matching
	// ErrNotFound when the key does not exist.
	Get(ctx context.Context, key string, w io.Writer) error

	// List returns all keys with the given prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// ValidateSetup checks that the store is reachable and usable.
	ValidateSetup(ctx context.Context) error
}

// Encryptor encrypts archived snapshots with a public key and unlocks the
// matching private key with a passphrase for recovery.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key. Returns an error for a wrong passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether a key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
