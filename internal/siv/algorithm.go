package siv

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// ErrUnsupportedAlgorithm is returned for any digest name other than md5, sha1 or sha256.
var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// Algorithm names a content digest.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

// ParseAlgorithm validates a configured algorithm name. Matching is case-insensitive.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(name))); a {
	case MD5, SHA1, SHA256:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q (want md5, sha1 or sha256)", ErrUnsupportedAlgorithm, name)
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

func (a Algorithm) String() string { return string(a) }
