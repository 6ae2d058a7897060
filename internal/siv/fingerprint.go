package siv

import (
	"encoding/hex"
	"io"

	"github.com/spf13/afero"
)

// ChunkSize is the read size used while hashing. Memory use per file is
// bounded by it regardless of file size.
const ChunkSize = 64 * 1024

// Fingerprinter streams file content through a digest.
type Fingerprinter struct {
	fs afero.Fs
}

// NewFingerprinter creates a Fingerprinter reading from fsys.
func NewFingerprinter(fsys afero.Fs) *Fingerprinter {
	return &Fingerprinter{fs: fsys}
}

// Digest returns the lowercase hex digest of the file at path.
func (f *Fingerprinter) Digest(path string, algorithm Algorithm) (string, error) {
	h, err := algorithm.New()
	if err != nil {
		return "", err
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return "", &IOError{Op: "open", Path: path, Err: err}
	}
	defer file.Close()

	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(onlyWriter{h}, onlyReader{file}, buf); err != nil {
		return "", &IOError{Op: "read", Path: path, Err: err}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// onlyReader and onlyWriter hide ReaderFrom/WriterTo so io.CopyBuffer always
// goes through the fixed-size buffer.
type onlyReader struct{ r io.Reader }

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

type onlyWriter struct{ w io.Writer }

func (o onlyWriter) Write(p []byte) (int, error) { return o.w.Write(p) }
