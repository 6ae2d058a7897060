package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"siv-go/internal/config"
	"siv-go/internal/siv"
	"siv-go/internal/testutil"
)

// slogQuiet keeps test runs off stderr.
const slogQuiet = slog.LevelError + 4

const (
	treeDir      = "/srv/data"
	snapshotPath = "/var/siv/snapshot.csv"
	reportPath   = "/var/siv/report.txt"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig("host-1", t.TempDir())
	cfg.Database.Type = "memory"
	cfg.Archive.Type = "memory"
	cfg.Archive.Encrypt = true
	cfg.Encryption.Type = "test"
	cfg.Walker.Workers = 2
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) (*SIVApp, afero.Fs) {
	t.Helper()
	fsys := testutil.NewMemFs()
	testutil.WriteFile(t, fsys, treeDir+"/a.txt", "alpha")
	testutil.WriteFile(t, fsys, treeDir+"/b.txt", "bravo")
	testutil.WriteFile(t, fsys, treeDir+"/sub/c.txt", "charlie")
	testutil.Mkdir(t, fsys, treeDir+"/sub")
	testutil.Mkdir(t, fsys, treeDir)

	a, err := NewSIVApp(context.Background(), cfg, Options{
		Fs:          fsys,
		Resolver:    testutil.NewStaticIdentityResolver(),
		StderrLevel: slogQuiet,
	})
	if err != nil {
		t.Fatalf("NewSIVApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a, fsys
}

func TestSIVApp_InitializeAndVerify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, fsys := newTestApp(t, newTestConfig(t))

	initRun, err := a.Initialize(ctx, treeDir, snapshotPath, reportPath, "")
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if initRun.Algorithm != siv.SHA256 {
		t.Errorf("Initialize() algorithm = %s, want configured default sha256", initRun.Algorithm)
	}
	if initRun.Files != 3 || initRun.Directories != 1 {
		t.Errorf("Initialize() counted %d files, %d dirs; want 3, 1", initRun.Files, initRun.Directories)
	}

	clean, err := a.Verify(ctx, treeDir, snapshotPath, reportPath, "")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if clean.Warnings() != 0 {
		t.Errorf("Verify() on unchanged tree = %d warnings, want 0", clean.Warnings())
	}

	testutil.WriteFile(t, fsys, treeDir+"/a.txt", "ALPHA")
	changed, err := a.Verify(ctx, treeDir, snapshotPath, reportPath, "")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if changed.Warnings() != 1 {
		t.Errorf("Verify() after content change = %d warnings, want 1", changed.Warnings())
	}

	runs, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("History() returned %d runs, want 3", len(runs))
	}
	if runs[0].ID != changed.ID {
		t.Errorf("History()[0] = %s, want newest run %s", runs[0].ID, changed.ID)
	}

	run, warnings, err := a.RunDetails(changed.ID)
	if err != nil {
		t.Fatalf("RunDetails() error = %v", err)
	}
	if run.Warnings != 1 || len(warnings) != 1 {
		t.Fatalf("RunDetails() = %d warnings, %d rows; want 1, 1", run.Warnings, len(warnings))
	}
	if warnings[0].Category != "HASH VALUE MODIFIED" || warnings[0].Path != treeDir+"/a.txt" {
		t.Errorf("RunDetails() warning = %+v", warnings[0])
	}

	report, err := afero.ReadFile(fsys, reportPath)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if got := strings.Count(string(report), "\t\tVERIFICATION"); got != 2 {
		t.Errorf("report has %d verification sections, want 2", got)
	}
}

func TestSIVApp_VerifyWithoutReport(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, newTestConfig(t))

	_, err := a.Verify(context.Background(), treeDir, snapshotPath, reportPath, "")
	if !errors.Is(err, ErrNoReport) {
		t.Errorf("Verify() error = %v, want ErrNoReport", err)
	}
}

func TestSIVApp_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()
	a, _ := newTestApp(t, newTestConfig(t))

	_, err := a.Initialize(context.Background(), treeDir, snapshotPath, reportPath, "crc32")
	if !errors.Is(err, siv.ErrUnsupportedAlgorithm) {
		t.Errorf("Initialize() error = %v, want ErrUnsupportedAlgorithm", err)
	}
}

func TestSIVApp_ArchiveRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, fsys := newTestApp(t, newTestConfig(t))

	run, err := a.Initialize(ctx, treeDir, snapshotPath, reportPath, "md5")
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	snaps, err := a.ArchivedSnapshots(ctx)
	if err != nil {
		t.Fatalf("ArchivedSnapshots() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].RunID != run.ID || !snaps[0].Encrypted {
		t.Fatalf("ArchivedSnapshots() = %+v, want one encrypted snapshot of %s", snaps, run.ID)
	}

	prompted := false
	passphrase := func() (string, error) {
		prompted = true
		return "secret", nil
	}
	if err := a.FetchSnapshot(ctx, run.ID, "/restore/snapshot.csv", passphrase); err != nil {
		t.Fatalf("FetchSnapshot() error = %v", err)
	}
	if !prompted {
		t.Error("FetchSnapshot() did not ask for a passphrase for an encrypted snapshot")
	}

	want, _ := afero.ReadFile(fsys, snapshotPath)
	got, err := afero.ReadFile(fsys, "/restore/snapshot.csv")
	if err != nil {
		t.Fatalf("reading fetched snapshot: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("fetched snapshot differs from local copy:\n%s\nwant:\n%s", got, want)
	}

	if err := a.FetchSnapshot(ctx, "missing", "/restore/x.csv", passphrase); err == nil {
		t.Error("FetchSnapshot() of unknown run succeeded, want error")
	}
}

func TestSIVApp_ArchiveDisabled(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)
	cfg.Archive.Type = "none"
	a, _ := newTestApp(t, cfg)

	if _, err := a.Initialize(context.Background(), treeDir, snapshotPath, reportPath, ""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := a.ArchivedSnapshots(context.Background()); !errors.Is(err, ErrNoArchive) {
		t.Errorf("ArchivedSnapshots() error = %v, want ErrNoArchive", err)
	}
}

func TestNewSIVApp_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"identity policy", func(c *config.Config) { c.Verify.IdentityPolicy = "lenient" }},
		{"database type", func(c *config.Config) { c.Database.Type = "postgres" }},
		{"archive type", func(c *config.Config) { c.Archive.Type = "tape" }},
		{"encryption type", func(c *config.Config) { c.Encryption.Type = "rot13" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := newTestConfig(t)
			tt.modify(cfg)
			a, err := NewSIVApp(context.Background(), cfg, Options{
				Fs:          testutil.NewMemFs(),
				Resolver:    testutil.NewStaticIdentityResolver(),
				StderrLevel: slogQuiet,
			})
			if err == nil {
				a.Close()
				t.Fatal("NewSIVApp() succeeded, want error")
			}
		})
	}
}
