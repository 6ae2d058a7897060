package siv

import (
	"context"
	"fmt"
	"path/filepath"
)

// SIVService orchestrates the two entry points, initialize and verify, over
// the walker, snapshot store, reporter, run history and optional archive.
type SIVService struct {
	walker   *TreeWalker
	store    SnapshotStore
	reporter Reporter
	history  RunHistory
	archiver Archiver
	logger   Logger
	clock    Clock
	idgen    IDGenerator
}

// NewSIVService creates a service. history and archiver may be nil.
func NewSIVService(walker *TreeWalker, store SnapshotStore, reporter Reporter, history RunHistory, archiver Archiver, logger Logger, clock Clock, idgen IDGenerator) *SIVService {
	return &SIVService{
		walker:   walker,
		store:    store,
		reporter: reporter,
		history:  history,
		archiver: archiver,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}
}

// Initialize takes a baseline snapshot of req.Directory, writes it to
// req.SnapshotPath and starts a new report at req.ReportPath.
func (s *SIVService) Initialize(ctx context.Context, req RunRequest) (*Run, error) {
	run, err := s.newRun(ModeInitialize, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("initialize started", "run", run.ID, "directory", run.Directory, "algorithm", req.Algorithm)

	err = s.initialize(ctx, run, req)
	return s.finish(ctx, run, req, err)
}

func (s *SIVService) initialize(ctx context.Context, run *Run, req RunRequest) error {
	if err := s.reporter.Reset(req.ReportPath); err != nil {
		return fmt.Errorf("resetting report: %w", err)
	}

	walked, err := s.walker.Walk(ctx, run.Directory, req.Algorithm)
	if err != nil {
		return fmt.Errorf("walking %s: %w", run.Directory, err)
	}
	run.Files, run.Directories = walked.Files, walked.Directories

	if err := s.store.Write(walked.Snapshot, run.SnapshotPath); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// Verify loads the baseline at req.SnapshotPath, re-walks req.Directory,
// overwrites the snapshot with the fresh walk and compares the two. The
// returned run carries the comparison Result.
func (s *SIVService) Verify(ctx context.Context, req RunRequest) (*Run, error) {
	run, err := s.newRun(ModeVerify, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("verify started", "run", run.ID, "directory", run.Directory, "algorithm", req.Algorithm)

	err = s.verify(ctx, run, req)
	return s.finish(ctx, run, req, err)
}

func (s *SIVService) verify(ctx context.Context, run *Run, req RunRequest) error {
	// The baseline must be in memory before the fresh walk overwrites it.
	baseline, err := s.store.Read(run.SnapshotPath)
	if err != nil {
		return fmt.Errorf("loading baseline: %w", err)
	}

	walked, err := s.walker.Walk(ctx, run.Directory, req.Algorithm)
	if err != nil {
		return fmt.Errorf("walking %s: %w", run.Directory, err)
	}
	run.Files, run.Directories = walked.Files, walked.Directories

	if err := s.store.Write(walked.Snapshot, run.SnapshotPath); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	// Compare what was persisted, not the in-memory walk, so both sides went
	// through the same serialization.
	current, err := s.store.Read(run.SnapshotPath)
	if err != nil {
		return fmt.Errorf("reloading snapshot: %w", err)
	}

	run.Result = Compare(baseline, current)
	if n := run.Result.Warnings(); n > 0 {
		s.logger.Warn("changes detected", "run", run.ID, "warnings", n)
	}
	return nil
}

func (s *SIVService) newRun(mode Mode, req RunRequest) (*Run, error) {
	if _, err := req.Algorithm.New(); err != nil {
		return nil, err
	}
	dir, err := filepath.Abs(req.Directory)
	if err != nil {
		return nil, fmt.Errorf("resolving directory: %w", err)
	}
	snap, err := filepath.Abs(req.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("resolving snapshot path: %w", err)
	}
	return &Run{
		ID:           s.idgen.New(),
		Mode:         mode,
		Directory:    dir,
		SnapshotPath: snap,
		Algorithm:    req.Algorithm,
		StartedAt:    s.clock.Now(),
		Status:       StatusSuccess,
	}, nil
}

// finish stamps the run, writes the report on success, and records the run
// in history whether or not it failed.
func (s *SIVService) finish(ctx context.Context, run *Run, req RunRequest, runErr error) (*Run, error) {
	run.FinishedAt = s.clock.Now()

	if runErr == nil {
		if err := s.reporter.Append(req.ReportPath, run); err != nil {
			runErr = fmt.Errorf("writing report: %w", err)
		}
	}
	if runErr == nil && s.archiver != nil {
		if err := s.archiver.ArchiveSnapshot(ctx, run.ID, run.SnapshotPath); err != nil {
			runErr = fmt.Errorf("archiving snapshot: %w", err)
		}
	}

	if runErr != nil {
		run.Status = StatusError
		run.Error = runErr.Error()
		s.logger.Error("run failed", "run", run.ID, "mode", run.Mode, "error", runErr)
	} else {
		s.logger.Info("run finished", "run", run.ID, "mode", run.Mode,
			"files", run.Files, "directories", run.Directories,
			"warnings", run.Warnings(), "elapsed", run.Elapsed())
	}

	if s.history != nil {
		if err := s.history.RecordRun(run); err != nil {
			s.logger.Error("recording run", "run", run.ID, "error", err)
			if runErr == nil {
				runErr = fmt.Errorf("recording run: %w", err)
			}
		}
	}

	if runErr != nil {
		return run, runErr
	}
	return run, nil
}
