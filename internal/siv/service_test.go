package siv_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"siv-go/internal/report"
	"siv-go/internal/siv"
	"siv-go/internal/snapshot"
	"siv-go/internal/testutil"
)

const (
	snapshotPath = "/var/siv/snapshot.csv"
	reportPath   = "/var/siv/report.txt"
)

type recordingHistory struct {
	runs []*siv.Run
}

func (h *recordingHistory) RecordRun(run *siv.Run) error {
	h.runs = append(h.runs, run)
	return nil
}

type recordingArchiver struct {
	err      error
	archived []string
}

func (a *recordingArchiver) ArchiveSnapshot(_ context.Context, runID, path string) error {
	if a.err != nil {
		return a.err
	}
	a.archived = append(a.archived, runID+":"+path)
	return nil
}

type serviceFixture struct {
	fs       afero.Fs
	service  *siv.SIVService
	history  *recordingHistory
	archiver *recordingArchiver
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	fsys := testutil.NewMemFs()
	buildTree(t, fsys)

	f := &serviceFixture{
		fs:       fsys,
		history:  &recordingHistory{},
		archiver: &recordingArchiver{},
	}
	f.service = siv.NewSIVService(
		newWalker(fsys),
		snapshot.NewCSVStore(fsys),
		report.NewTextReporter(fsys),
		f.history,
		f.archiver,
		siv.NewNopLogger(),
		testutil.NewSteppingClock(testutil.BaseTime, 1500*time.Millisecond),
		testutil.NewStubIDGenerator(),
	)
	return f
}

func request(alg siv.Algorithm) siv.RunRequest {
	return siv.RunRequest{
		Directory:    "/tree",
		SnapshotPath: snapshotPath,
		ReportPath:   reportPath,
		Algorithm:    alg,
	}
}

func (f *serviceFixture) readReport(t *testing.T) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, reportPath)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	return string(data)
}

func TestSIVService_Initialize(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	run, err := f.service.Initialize(ctx, request(siv.SHA1))
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if run.ID != "run-1" || run.Mode != siv.ModeInitialize || run.Status != siv.StatusSuccess {
		t.Errorf("run = %+v", run)
	}
	if run.Files != 3 || run.Directories != 3 {
		t.Errorf("counts = %d files, %d dirs, want 3 and 3", run.Files, run.Directories)
	}
	if run.Elapsed() != 1500*time.Millisecond {
		t.Errorf("Elapsed() = %v", run.Elapsed())
	}

	loaded, err := snapshot.NewCSVStore(f.fs).Read(snapshotPath)
	if err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if len(loaded.Entries) != 6 {
		t.Errorf("snapshot has %d entries, want 6", len(loaded.Entries))
	}

	out := f.readReport(t)
	for _, want := range []string{
		"\t\tINITIALIZATION",
		"Monitored directory /tree",
		"Verification file " + snapshotPath,
		"Number of iterated files are : 3",
		"Number of iterated Directories are : 3",
		"Time to finish INITIALIZATION 1.500 seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Number of warnings") {
		t.Error("initialization report should not carry a warning count")
	}

	if len(f.history.runs) != 1 {
		t.Errorf("recorded %d runs, want 1", len(f.history.runs))
	}
	if len(f.archiver.archived) != 1 || f.archiver.archived[0] != "run-1:"+snapshotPath {
		t.Errorf("archived = %v", f.archiver.archived)
	}
}

func TestSIVService_InitializeResetsReport(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	testutil.WriteFile(t, f.fs, reportPath, "stale report\n")

	if _, err := f.service.Initialize(ctx, request(siv.SHA256)); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if out := f.readReport(t); strings.Contains(out, "stale report") {
		t.Errorf("old report content survived:\n%s", out)
	}
}

func TestSIVService_VerifyUnchanged(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.Initialize(ctx, request(siv.MD5)); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	run, err := f.service.Verify(ctx, request(siv.MD5))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if run.Warnings() != 0 {
		t.Errorf("Warnings() = %d, want 0: %v", run.Warnings(), run.Result.Log())
	}

	out := f.readReport(t)
	if !strings.Contains(out, "\t\tINITIALIZATION") || !strings.Contains(out, "\t\tVERIFICATION") {
		t.Errorf("report should hold both runs:\n%s", out)
	}
	if !strings.Contains(out, "Number of warnings 0") {
		t.Errorf("report missing warning count:\n%s", out)
	}
}

func TestSIVService_VerifyDetectsChanges(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.Initialize(ctx, request(siv.SHA256)); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	if err := f.fs.Remove("/tree/b.txt"); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, f.fs, "/tree/c.txt", "charlie")
	// Same length, different content, same mtime.
	testutil.WriteFile(t, f.fs, "/tree/a.txt", "ALPHA")
	testutil.Chmod(t, f.fs, "/tree/sub/c.txt", 0600)

	run, err := f.service.Verify(ctx, request(siv.SHA256))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	want := map[string][]string{
		siv.CategoryRemoved: {"/tree/b.txt"},
		siv.CategoryAdded:   {"/tree/c.txt"},
		siv.CategoryHash:    {"/tree/a.txt"},
		siv.CategoryMode:    {"/tree/sub/c.txt"},
	}
	cats := run.Result.Categories()
	if len(cats) != len(want) {
		t.Fatalf("categories = %+v, want %d", cats, len(want))
	}
	for _, c := range cats {
		if strings.Join(c.Paths, ",") != strings.Join(want[c.Name], ",") {
			t.Errorf("%s = %v, want %v", c.Name, c.Paths, want[c.Name])
		}
	}
	if run.Warnings() != 4 {
		t.Errorf("Warnings() = %d, want 4", run.Warnings())
	}

	out := f.readReport(t)
	for _, line := range []string{
		"Number of warnings 4",
		"*************** Warning: FILES REMOVED ***************",
		"/tree/b.txt",
		"*************** Warning: ACCESS RIGHTS MODIFIED ***************",
	} {
		if !strings.Contains(out, line) {
			t.Errorf("report missing %q", line)
		}
	}

	// The fresh walk replaced the baseline, so a second verify is clean.
	again, err := f.service.Verify(ctx, request(siv.SHA256))
	if err != nil {
		t.Fatalf("second Verify() error = %v", err)
	}
	if again.Warnings() != 0 {
		t.Errorf("second Verify() warnings = %d, want 0", again.Warnings())
	}
}

func TestSIVService_VerifyWithoutBaseline(t *testing.T) {
	f := newServiceFixture(t)

	run, err := f.service.Verify(context.Background(), request(siv.SHA256))
	if !errors.Is(err, siv.ErrNoBaseline) {
		t.Fatalf("Verify() error = %v, want ErrNoBaseline", err)
	}
	if run.Status != siv.StatusError || run.Error == "" {
		t.Errorf("run = %+v, want error status", run)
	}
	if len(f.history.runs) != 1 {
		t.Errorf("failed run should be recorded, got %d runs", len(f.history.runs))
	}
	if len(f.archiver.archived) != 0 {
		t.Errorf("failed run should not be archived: %v", f.archiver.archived)
	}
	if exists, _ := afero.Exists(f.fs, snapshotPath); exists {
		t.Error("no snapshot should be written when the baseline is missing")
	}
}

func TestSIVService_UnsupportedAlgorithm(t *testing.T) {
	f := newServiceFixture(t)

	run, err := f.service.Initialize(context.Background(), request(siv.Algorithm("crc32")))
	if !errors.Is(err, siv.ErrUnsupportedAlgorithm) {
		t.Fatalf("Initialize() error = %v, want ErrUnsupportedAlgorithm", err)
	}
	if run != nil {
		t.Errorf("run = %+v, want nil", run)
	}
	if len(f.history.runs) != 0 {
		t.Error("configuration errors should not reach history")
	}
}

func TestSIVService_ArchiveFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.archiver.err = errors.New("bucket unavailable")

	run, err := f.service.Initialize(context.Background(), request(siv.SHA256))
	if err == nil || !strings.Contains(err.Error(), "bucket unavailable") {
		t.Fatalf("Initialize() error = %v", err)
	}
	if run.Status != siv.StatusError {
		t.Errorf("Status = %s, want %s", run.Status, siv.StatusError)
	}
	if len(f.history.runs) != 1 {
		t.Errorf("recorded %d runs, want 1", len(f.history.runs))
	}
}

func TestSIVService_WithoutOptionalCollaborators(t *testing.T) {
	fsys := testutil.NewMemFs()
	buildTree(t, fsys)
	service := siv.NewSIVService(
		newWalker(fsys),
		snapshot.NewCSVStore(fsys),
		report.NewTextReporter(fsys),
		nil, nil,
		siv.NewNopLogger(),
		testutil.FixedClock(),
		testutil.NewStubIDGenerator(),
	)

	if _, err := service.Initialize(context.Background(), request(siv.SHA256)); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if _, err := service.Verify(context.Background(), request(siv.SHA256)); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
}
