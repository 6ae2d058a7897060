package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"siv-go/internal/archive"
	"siv-go/internal/config"
	"siv-go/internal/database"
	"siv-go/internal/encryption"
	"siv-go/internal/fs"
	"siv-go/internal/model"
	"siv-go/internal/report"
	"siv-go/internal/siv"
	"siv-go/internal/snapshot"
)

var (
	// ErrNoReport is returned by Verify when no report exists yet, meaning
	// the tree was never initialized.
	ErrNoReport = errors.New("no report found: run init before verify")

	// ErrNoArchive is returned by archive operations when none is configured.
	ErrNoArchive = errors.New("no archive configured")

	// ErrKeysNotConfigured is returned when encrypted archiving is enabled
	// but no key pair exists.
	ErrKeysNotConfigured = errors.New("archive encryption enabled but no key pair exists: run 'siv keys init'")
)

// Options tune how NewSIVApp wires its dependencies.
type Options struct {
	// Fs is the filesystem for trees, snapshots and reports. Defaults to the OS.
	Fs afero.Fs

	// Resolver maps file ownership to names. Defaults to the OS user database.
	Resolver siv.IdentityResolver

	// StderrLevel is the minimum level echoed to stderr. Defaults to Info.
	StderrLevel slog.Level
}

// SIVApp is the application layer between the CLI and SIVService. It builds
// every dependency from config and releases them on Close.
type SIVApp struct {
	cfg       *config.Config
	fs        afero.Fs
	db        *database.SQLiteDatabase
	reporter  *report.TextReporter
	archiver  *archive.SnapshotArchiver
	encryptor archive.Encryptor
	service   *siv.SIVService
	logger    *slog.Logger
	logFile   *os.File
}

// NewSIVApp creates a fully wired SIVApp from cfg. The caller must call Close.
func NewSIVApp(ctx context.Context, cfg *config.Config, opts Options) (*SIVApp, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Resolver == nil {
		opts.Resolver = fs.NewOSIdentityResolver()
	}

	policy, err := siv.ParseIdentityPolicy(cfg.Verify.IdentityPolicy)
	if err != nil {
		return nil, err
	}

	patterns := append([]string(nil), cfg.Filesystem.Ignore...)
	filePatterns, err := fs.ReadIgnoreFile(cfg.Filesystem.IgnoreFile)
	if err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	patterns = append(patterns, filePatterns...)

	invocation := uuid.New().String()[:8]
	logger, logFile, err := newLogger(cfg.LogDir, invocation, opts.StderrLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	a := &SIVApp{
		cfg:      cfg,
		fs:       opts.Fs,
		reporter: report.NewTextReporter(opts.Fs),
		logger:   logger,
		logFile:  logFile,
	}

	a.db, err = database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := a.db.CheckMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption, afero.NewOsFs())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	store, err := archive.NewStoreFromConfig(ctx, cfg.Archive, afero.NewOsFs())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	if store != nil {
		if err := store.ValidateSetup(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("validating archive %s: %w", store.Name(), err)
		}
		var enc archive.Encryptor
		if cfg.Archive.Encrypt {
			if !a.encryptor.IsConfigured() {
				a.Close()
				return nil, ErrKeysNotConfigured
			}
			enc = a.encryptor
		}
		a.archiver = archive.NewSnapshotArchiver(store, opts.Fs, cfg.HostID, enc, adapter)
	}

	extractor := siv.NewMetadataExtractor(opts.Fs, opts.Resolver, policy)
	walker := siv.NewTreeWalker(opts.Fs, siv.NewFingerprinter(opts.Fs), extractor,
		siv.WithWorkers(cfg.Walker.Workers),
		siv.WithIgnore(fs.NewIgnoreMatcher(patterns)),
		siv.WithLogger(adapter),
	)

	// A nil *SnapshotArchiver must not reach the service as a non-nil interface.
	var archiver siv.Archiver
	if a.archiver != nil {
		archiver = a.archiver
	}

	a.service = siv.NewSIVService(walker, snapshot.NewCSVStore(opts.Fs), a.reporter, a.db, archiver,
		adapter, siv.RealClock{}, siv.UUIDGenerator{})
	return a, nil
}

// algorithm resolves the algorithm name, falling back to the configured one.
func (a *SIVApp) algorithm(name string) (siv.Algorithm, error) {
	if name == "" {
		name = a.cfg.Verify.Algorithm
	}
	if name == "" {
		return siv.SHA256, nil
	}
	return siv.ParseAlgorithm(name)
}

func (a *SIVApp) request(dir, snapshotPath, reportPath, algorithm string) (siv.RunRequest, error) {
	alg, err := a.algorithm(algorithm)
	if err != nil {
		return siv.RunRequest{}, err
	}
	rep, err := filepath.Abs(reportPath)
	if err != nil {
		return siv.RunRequest{}, fmt.Errorf("resolving report path: %w", err)
	}
	return siv.RunRequest{
		Directory:    dir,
		SnapshotPath: snapshotPath,
		ReportPath:   rep,
		Algorithm:    alg,
	}, nil
}

// Initialize records a baseline snapshot of dir. An empty algorithm selects
// the configured default.
func (a *SIVApp) Initialize(ctx context.Context, dir, snapshotPath, reportPath, algorithm string) (*siv.Run, error) {
	req, err := a.request(dir, snapshotPath, reportPath, algorithm)
	if err != nil {
		return nil, err
	}
	return a.service.Initialize(ctx, req)
}

// Verify compares dir against its baseline. It refuses to run when the
// report at reportPath does not exist.
func (a *SIVApp) Verify(ctx context.Context, dir, snapshotPath, reportPath, algorithm string) (*siv.Run, error) {
	req, err := a.request(dir, snapshotPath, reportPath, algorithm)
	if err != nil {
		return nil, err
	}
	exists, err := a.reporter.Exists(req.ReportPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w at %s", ErrNoReport, req.ReportPath)
	}
	return a.service.Verify(ctx, req)
}

// History returns the most recent runs, newest first.
func (a *SIVApp) History(limit int) ([]*model.Run, error) {
	return a.db.ListRuns(limit)
}

// RunDetails returns a run and its warnings.
func (a *SIVApp) RunDetails(id string) (*model.Run, []*model.Warning, error) {
	run, err := a.db.GetRun(id)
	if err != nil {
		return nil, nil, err
	}
	if run == nil {
		return nil, nil, fmt.Errorf("run %s not found", id)
	}
	warnings, err := a.db.RunWarnings(id)
	if err != nil {
		return nil, nil, err
	}
	return run, warnings, nil
}

// ArchivedSnapshots lists this host's archived snapshots.
func (a *SIVApp) ArchivedSnapshots(ctx context.Context) ([]*archive.ArchivedSnapshot, error) {
	if a.archiver == nil {
		return nil, ErrNoArchive
	}
	return a.archiver.List(ctx)
}

// FetchSnapshot restores the archived snapshot of runID to dest. passphrase
// is only called when the snapshot is encrypted.
func (a *SIVApp) FetchSnapshot(ctx context.Context, runID, dest string, passphrase func() (string, error)) error {
	if a.archiver == nil {
		return ErrNoArchive
	}
	snap, err := a.archiver.Lookup(ctx, runID)
	if err != nil {
		return err
	}

	var dec archive.DecryptionContext
	if snap.Encrypted {
		pass, err := passphrase()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if dec, err = a.encryptor.Unlock(pass); err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving destination: %w", err)
	}
	return a.archiver.Fetch(ctx, snap, abs, dec)
}

// Close releases the database and the log file.
func (a *SIVApp) Close() error {
	var firstErr error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// SetupKeys generates the archive encryption key pair described by cfg.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption, afero.NewOsFs())
	if err != nil {
		return err
	}
	return enc.Setup(passphrase)
}
