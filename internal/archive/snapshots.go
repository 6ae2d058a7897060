package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"siv-go/internal/siv"
)

const (
	snapshotObject = "snapshot.csv"
	encryptedExt   = ".age"
)

// ErrEncrypted is returned by Fetch when an encrypted snapshot is fetched
// without an unlocked key.
var ErrEncrypted = errors.New("archived snapshot is encrypted")

// ArchivedSnapshot is one snapshot copy in the archive.
type ArchivedSnapshot struct {
	RunID     string
	Key       string
	Encrypted bool
}

// SnapshotArchiver copies freshly written snapshots into a Store under
// <hostID>/<runID>/snapshot.csv, or snapshot.csv.age when an Encryptor is set.
type SnapshotArchiver struct {
	store     Store
	fs        afero.Fs
	hostID    string
	encryptor Encryptor
	logger    siv.Logger
}

var _ siv.Archiver = (*SnapshotArchiver)(nil)

// NewSnapshotArchiver creates an archiver. encryptor may be nil for
// plaintext copies.
func NewSnapshotArchiver(store Store, fsys afero.Fs, hostID string, encryptor Encryptor, logger siv.Logger) *SnapshotArchiver {
	if logger == nil {
		logger = siv.NewNopLogger()
	}
	return &SnapshotArchiver{
		store:     store,
		fs:        fsys,
		hostID:    hostID,
		encryptor: encryptor,
		logger:    logger,
	}
}

// Key returns the archive key for a run's snapshot.
func (a *SnapshotArchiver) Key(runID string, encrypted bool) string {
	key := a.hostID + "/" + runID + "/" + snapshotObject
	if encrypted {
		key += encryptedExt
	}
	return key
}

// ArchiveSnapshot uploads the snapshot at snapshotPath for runID.
func (a *SnapshotArchiver) ArchiveSnapshot(ctx context.Context, runID string, snapshotPath string) error {
	data, err := afero.ReadFile(a.fs, snapshotPath)
	if err != nil {
		return &siv.IOError{Op: "read", Path: snapshotPath, Err: err}
	}

	encrypted := a.encryptor != nil
	if encrypted {
		var buf bytes.Buffer
		if err := a.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
		data = buf.Bytes()
	}

	key := a.Key(runID, encrypted)
	if err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("storing %s in %s: %w", key, a.store.Name(), err)
	}
	a.logger.Info("snapshot archived", "run", runID, "archive", a.store.Name(), "key", key, "encrypted", encrypted)
	return nil
}

// List returns this host's archived snapshots ordered by run id.
func (a *SnapshotArchiver) List(ctx context.Context) ([]*ArchivedSnapshot, error) {
	keys, err := a.store.List(ctx, a.hostID+"/")
	if err != nil {
		return nil, err
	}

	var out []*ArchivedSnapshot
	for _, key := range keys {
		if snap := a.parseKey(key); snap != nil {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Lookup finds the archived snapshot of runID.
func (a *SnapshotArchiver) Lookup(ctx context.Context, runID string) (*ArchivedSnapshot, error) {
	keys, err := a.store.List(ctx, a.hostID+"/"+runID+"/")
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if snap := a.parseKey(key); snap != nil && snap.RunID == runID {
			return snap, nil
		}
	}
	return nil, fmt.Errorf("%w: no snapshot for run %s", ErrNotFound, runID)
}

// Fetch writes the archived snapshot to dest, decrypting it with dec when
// it was stored encrypted. dest is replaced atomically.
func (a *SnapshotArchiver) Fetch(ctx context.Context, snap *ArchivedSnapshot, dest string, dec DecryptionContext) error {
	if snap.Encrypted && dec == nil {
		return ErrEncrypted
	}

	var buf bytes.Buffer
	if err := a.store.Get(ctx, snap.Key, &buf); err != nil {
		return err
	}

	data := buf.Bytes()
	if snap.Encrypted {
		var plain bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return fmt.Errorf("decrypting snapshot: %w", err)
		}
		data = plain.Bytes()
	}

	dir := filepath.Dir(dest)
	if err := a.fs.MkdirAll(dir, 0755); err != nil {
		return &siv.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	tmp, err := afero.TempFile(a.fs, dir, ".fetch-*")
	if err != nil {
		return &siv.IOError{Op: "create", Path: dest, Err: err}
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		a.fs.Remove(tmpPath)
		return &siv.IOError{Op: "write", Path: dest, Err: err}
	}
	if err := tmp.Close(); err != nil {
		a.fs.Remove(tmpPath)
		return &siv.IOError{Op: "close", Path: dest, Err: err}
	}
	if err := a.fs.Rename(tmpPath, dest); err != nil {
		a.fs.Remove(tmpPath)
		return &siv.IOError{Op: "rename", Path: dest, Err: err}
	}

	a.logger.Info("snapshot fetched", "run", snap.RunID, "key", snap.Key, "dest", dest)
	return nil
}

// parseKey recognizes <hostID>/<runID>/snapshot.csv[.age].
func (a *SnapshotArchiver) parseKey(key string) *ArchivedSnapshot {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != a.hostID || parts[1] == "" {
		return nil
	}
	switch parts[2] {
	case snapshotObject:
		return &ArchivedSnapshot{RunID: parts[1], Key: key}
	case snapshotObject + encryptedExt:
		return &ArchivedSnapshot{RunID: parts[1], Key: key, Encrypted: true}
	}
	return nil
}
