package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"siv-go/internal/database/migrations"
	"siv-go/internal/model"
	"siv-go/internal/siv"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase stores run history in SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ siv.RunHistory = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase opens a database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Run operations

const insertRun = `
INSERT INTO runs (id, mode, directory, snapshot_path, algorithm, started_at, finished_at,
                  files, directories, warnings, status, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertWarning = `
INSERT INTO run_warnings (run_id, position, category, path) VALUES (?, ?, ?, ?)`

// RecordRun stores run and, for verify runs, every warning path in log order.
func (s *SQLiteDatabase) RecordRun(run *siv.Run) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertRun,
		run.ID, string(run.Mode), run.Directory, run.SnapshotPath, run.Algorithm.String(),
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Files, run.Directories, run.Warnings(), run.Status, run.Error)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	if run.Result != nil {
		stmt, err := tx.PrepareContext(ctx, insertWarning)
		if err != nil {
			return fmt.Errorf("preparing warning insert: %w", err)
		}
		defer stmt.Close()

		position := 0
		for _, c := range run.Result.Categories() {
			for _, p := range c.Paths {
				if _, err := stmt.ExecContext(ctx, run.ID, position, c.Name, p); err != nil {
					return fmt.Errorf("inserting warning for run %s: %w", run.ID, err)
				}
				position++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return nil
}

const selectRun = `
SELECT id, mode, directory, snapshot_path, algorithm, started_at, finished_at,
       files, directories, warnings, status, error
FROM runs`

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteDatabase) ListRuns(limit int) ([]*model.Run, error) {
	rows, err := s.db.Query(selectRun+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("listing runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given id, or nil if there is none.
func (s *SQLiteDatabase) GetRun(id string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRow(selectRun+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding run %s: %w", id, err)
	}
	return r, nil
}

// RunWarnings returns the warnings of a run in log order.
func (s *SQLiteDatabase) RunWarnings(runID string) ([]*model.Warning, error) {
	rows, err := s.db.Query(`
		SELECT run_id, position, category, path
		FROM run_warnings
		WHERE run_id = ?
		ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing warnings for run %s: %w", runID, err)
	}
	defer rows.Close()

	var warnings []*model.Warning
	for rows.Next() {
		var w model.Warning
		if err := rows.Scan(&w.RunID, &w.Position, &w.Category, &w.Path); err != nil {
			return nil, fmt.Errorf("scanning warning: %w", err)
		}
		warnings = append(warnings, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing warnings for run %s: %w", runID, err)
	}
	return warnings, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var (
		r                 model.Run
		started, finished time.Time
	)
	err := row.Scan(&r.ID, &r.Mode, &r.Directory, &r.SnapshotPath, &r.Algorithm,
		&started, &finished, &r.Files, &r.Directories, &r.Warnings, &r.Status, &r.Error)
	if err != nil {
		return nil, err
	}
	r.StartedAt, r.FinishedAt = started.UTC(), finished.UTC()
	return &r, nil
}

func (s *SQLiteDatabase) Path() string {
	return s.path
}

func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
