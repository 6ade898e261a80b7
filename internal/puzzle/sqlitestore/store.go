// Package sqlitestore implements puzzle.Store on SQLite using the pure-Go
// modernc.org/sqlite driver.
//
// Records live in a single puzzle_progress table keyed by user id. Update is
// an optimistic read-modify-write: the row carries a version counter and the
// write only lands if the version is unchanged, otherwise the closure is
// re-run against the fresh row.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forthefews/fews/internal/puzzle"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DBFile is the database file name inside the data dir.
const DBFile = "progress.db"

// maxAttempts bounds the optimistic retry loop in Update.
const maxAttempts = 16

// ErrConflict is returned when Update keeps losing the version race.
var ErrConflict = errors.New("sqlitestore: too many concurrent updates")

// Store is a SQLite-backed puzzle.Store.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database under dataDir and runs migrations.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("sqlitestore: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dataDir, DBFile))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open database: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them applied.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS puzzle_progress (
			user_id         TEXT    PRIMARY KEY,
			completed_steps TEXT    NOT NULL DEFAULT '[]',
			current_step    INTEGER NOT NULL DEFAULT 1,
			last_updated    TEXT    NOT NULL,
			version         INTEGER NOT NULL DEFAULT 1
		);
	`)
	return err
}

// Get reads a user's record.
func (s *Store) Get(ctx context.Context, userID string) (*puzzle.ProgressRecord, error) {
	rec, _, err := s.load(ctx, userID)
	return rec, err
}

// Set overwrites a user's record and bumps its version.
func (s *Store) Set(ctx context.Context, rec puzzle.ProgressRecord) error {
	steps, updated, err := encode(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO puzzle_progress (user_id, completed_steps, current_step, last_updated, version)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(user_id) DO UPDATE SET
			completed_steps = excluded.completed_steps,
			current_step    = excluded.current_step,
			last_updated    = excluded.last_updated,
			version         = puzzle_progress.version + 1`,
		rec.UserID, steps, rec.CurrentStep, updated)
	if err != nil {
		return fmt.Errorf("sqlitestore: writing progress: %w", err)
	}
	return nil
}

// Update applies fn with compare-and-swap on the row version.
func (s *Store) Update(ctx context.Context, userID string, fn puzzle.UpdateFunc) (*puzzle.ProgressRecord, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, version, err := s.load(ctx, userID)
		if err != nil && !errors.Is(err, puzzle.ErrNotFound) {
			return nil, err
		}

		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}
		rec := next.Clone()
		rec.UserID = userID

		ok, err := s.swap(ctx, rec, current == nil, version)
		if err != nil {
			return nil, err
		}
		if ok {
			return &rec, nil
		}
	}
	return nil, ErrConflict
}

// swap writes rec if the row is still at version (or still absent when
// insert is set) and reports whether the write landed.
func (s *Store) swap(ctx context.Context, rec puzzle.ProgressRecord, insert bool, version int64) (bool, error) {
	steps, updated, err := encode(rec)
	if err != nil {
		return false, err
	}

	var res sql.Result
	if insert {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO puzzle_progress (user_id, completed_steps, current_step, last_updated, version)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT(user_id) DO NOTHING`,
			rec.UserID, steps, rec.CurrentStep, updated)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE puzzle_progress
			SET completed_steps = ?, current_step = ?, last_updated = ?, version = version + 1
			WHERE user_id = ? AND version = ?`,
			steps, rec.CurrentStep, updated, rec.UserID, version)
	}
	if err != nil {
		return false, fmt.Errorf("sqlitestore: writing progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlitestore: rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *Store) load(ctx context.Context, userID string) (*puzzle.ProgressRecord, int64, error) {
	var (
		steps   string
		current int
		updated string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT completed_steps, current_step, last_updated, version FROM puzzle_progress WHERE user_id = ?`,
		userID).Scan(&steps, &current, &updated, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("progress for %q: %w", userID, puzzle.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("sqlitestore: reading progress: %w", err)
	}

	rec := puzzle.ProgressRecord{UserID: userID, CurrentStep: current}
	if err := json.Unmarshal([]byte(steps), &rec.CompletedSteps); err != nil {
		return nil, 0, fmt.Errorf("sqlitestore: parsing completed steps for %q: %w", userID, err)
	}
	if rec.LastUpdated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, 0, fmt.Errorf("sqlitestore: parsing last_updated for %q: %w", userID, err)
	}
	return &rec, version, nil
}

func encode(rec puzzle.ProgressRecord) (steps, updated string, err error) {
	completed := rec.CompletedSteps
	if completed == nil {
		completed = []int{}
	}
	b, err := json.Marshal(completed)
	if err != nil {
		return "", "", fmt.Errorf("sqlitestore: encoding completed steps: %w", err)
	}
	return string(b), rec.LastUpdated.UTC().Format(time.RFC3339Nano), nil
}

var _ puzzle.Store = (*Store)(nil)
