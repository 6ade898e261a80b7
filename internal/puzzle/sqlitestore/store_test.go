package sqlitestore_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/forthefews/fews/internal/puzzle"
	"github.com/forthefews/fews/internal/puzzle/sqlitestore"
	"github.com/forthefews/fews/internal/puzzle/storetest"
)

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) puzzle.Store { return newTestStore(t) })
}

// ─── New / Initialization ───────────────────────────────────────────────────

func TestNew_CreatesDBFile(t *testing.T) {
	dir := t.TempDir()
	s, err := sqlitestore.New(dir)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(filepath.Join(dir, sqlitestore.DBFile)); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestNew_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := sqlitestore.New(dir)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s1.Set(ctx, puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1, 2}, CurrentStep: 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s1.Close()

	s2, err := sqlitestore.New(dir)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()
	got, err := s2.Get(ctx, "alice")
	if err != nil || got.CurrentStep != 3 {
		t.Errorf("after reopen: %+v, %v", got, err)
	}
}

func TestNew_OpenFailure(t *testing.T) {
	restore := sqlitestore.SetOpenDB(func(string, string) (*sql.DB, error) {
		return nil, errors.New("disk on fire")
	})
	defer restore()

	if _, err := sqlitestore.New(t.TempDir()); err == nil {
		t.Fatal("expected error from failing opener")
	}
}

// ─── Versioning ─────────────────────────────────────────────────────────────

func version(t *testing.T, s *sqlitestore.Store, userID string) int64 {
	t.Helper()
	var v int64
	if err := s.DB().QueryRow(`SELECT version FROM puzzle_progress WHERE user_id = ?`, userID).Scan(&v); err != nil {
		t.Fatalf("reading version: %v", err)
	}
	return v
}

func TestUpdate_BumpsVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	g := puzzle.NewGate(s)

	_, _ = g.CompleteStep(ctx, "alice", 1)
	if v := version(t, s, "alice"); v != 1 {
		t.Errorf("version after insert = %d, want 1", v)
	}
	_, _ = g.CompleteStep(ctx, "alice", 2)
	if v := version(t, s, "alice"); v != 2 {
		t.Errorf("version after update = %d, want 2", v)
	}
	// Re-completing skips the write.
	_, _ = g.CompleteStep(ctx, "alice", 2)
	if v := version(t, s, "alice"); v != 2 {
		t.Errorf("version after no-op = %d, want 2", v)
	}
}

func TestUpdate_RetriesOnStaleVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Set(ctx, puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1}, CurrentStep: 2})

	calls := 0
	saved, err := s.Update(ctx, "alice", func(cur *puzzle.ProgressRecord) (*puzzle.ProgressRecord, error) {
		calls++
		if calls == 1 {
			// A competing writer lands between our read and our write.
			if _, err := s.DB().Exec(`UPDATE puzzle_progress SET completed_steps = '[1,2]', current_step = 3, version = version + 1 WHERE user_id = 'alice'`); err != nil {
				t.Fatal(err)
			}
		}
		next := cur.Clone()
		next.CompletedSteps = append(next.CompletedSteps, 3)
		next = puzzle.Normalize(next)
		return &next, nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
	if len(saved.CompletedSteps) != 3 {
		t.Errorf("competing write lost: %v", saved.CompletedSteps)
	}
}

func TestGet_CorruptSteps(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.DB().Exec(`INSERT INTO puzzle_progress (user_id, completed_steps, current_step, last_updated) VALUES ('alice', 'oops', 1, '2026-01-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}
	_, err := s.Get(context.Background(), "alice")
	if err == nil || errors.Is(err, puzzle.ErrNotFound) {
		t.Errorf("err = %v, want parse error", err)
	}
}
