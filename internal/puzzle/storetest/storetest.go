// Package storetest holds the conformance suite every puzzle.Store
// implementation runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forthefews/fews/internal/puzzle"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) puzzle.Store

var stamp = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// Run exercises the Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "nobody")
		if !errors.Is(err, puzzle.ErrNotFound) {
			t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("SetThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		rec := puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1, 2}, CurrentStep: 3, LastUpdated: stamp}
		if err := s.Set(ctx, rec); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.UserID != "alice" || got.CurrentStep != 3 || !slices.Equal(got.CompletedSteps, []int{1, 2}) {
			t.Errorf("Get = %+v", got)
		}
		if !got.LastUpdated.Equal(stamp) {
			t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, stamp)
		}
	})

	t.Run("SetOverwritesWholeRecord", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Set(ctx, puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1, 2, 3}, CurrentStep: 4, LastUpdated: stamp})
		if err := s.Set(ctx, puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{}, CurrentStep: 1, LastUpdated: stamp}); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if len(got.CompletedSteps) != 0 || got.CurrentStep != 1 {
			t.Errorf("after overwrite: %+v", got)
		}
	})

	t.Run("UsersAreIsolated", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Set(ctx, puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1}, CurrentStep: 2, LastUpdated: stamp})
		if _, err := s.Get(ctx, "bob"); !errors.Is(err, puzzle.ErrNotFound) {
			t.Errorf("bob: err = %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateCreates", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		saved, err := s.Update(ctx, "alice", func(cur *puzzle.ProgressRecord) (*puzzle.ProgressRecord, error) {
			if cur != nil {
				t.Errorf("current = %+v, want nil", cur)
			}
			return &puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1}, CurrentStep: 2, LastUpdated: stamp}, nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if saved == nil || !slices.Equal(saved.CompletedSteps, []int{1}) {
			t.Errorf("saved = %+v", saved)
		}
		got, err := s.Get(ctx, "alice")
		if err != nil || got.CurrentStep != 2 {
			t.Errorf("Get after Update = %+v, %v", got, err)
		}
	})

	t.Run("UpdateSkipWrite", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		saved, err := s.Update(ctx, "alice", func(cur *puzzle.ProgressRecord) (*puzzle.ProgressRecord, error) {
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if saved != nil {
			t.Errorf("saved = %+v, want nil", saved)
		}
		if _, err := s.Get(ctx, "alice"); !errors.Is(err, puzzle.ErrNotFound) {
			t.Errorf("skip must not create a record: %v", err)
		}
	})

	t.Run("UpdateSkipKeepsExisting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Set(ctx, puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1}, CurrentStep: 2, LastUpdated: stamp})
		saved, err := s.Update(ctx, "alice", func(cur *puzzle.ProgressRecord) (*puzzle.ProgressRecord, error) {
			return nil, nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if saved == nil || saved.UserID != "alice" || !slices.Equal(saved.CompletedSteps, []int{1}) {
			t.Errorf("saved = %+v, want the existing record", saved)
		}
	})

	t.Run("LongUserID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		id := strings.Repeat("u", 400)
		g := puzzle.NewGate(s)
		if ok, err := g.CompleteStep(ctx, id, 1); !ok || err != nil {
			t.Fatalf("CompleteStep = %v, %v", ok, err)
		}
		got, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.UserID != id || !slices.Equal(got.CompletedSteps, []int{1}) {
			t.Errorf("Get = %+v", got)
		}
	})

	t.Run("UpdateErrorAborts", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_ = s.Set(ctx, puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1}, CurrentStep: 2, LastUpdated: stamp})
		boom := errors.New("boom")
		_, err := s.Update(ctx, "alice", func(cur *puzzle.ProgressRecord) (*puzzle.ProgressRecord, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
		got, _ := s.Get(ctx, "alice")
		if !slices.Equal(got.CompletedSteps, []int{1}) {
			t.Errorf("record changed after aborted update: %+v", got)
		}
	})

	t.Run("ConcurrentUpdatesNotLost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, puzzle.TotalSteps)
		for step := 1; step <= puzzle.TotalSteps; step++ {
			wg.Add(1)
			go func(step int) {
				defer wg.Done()
				_, err := s.Update(ctx, "alice", func(cur *puzzle.ProgressRecord) (*puzzle.ProgressRecord, error) {
					next := puzzle.DefaultProgress("alice")
					if cur != nil {
						next = cur.Clone()
					}
					next.CompletedSteps = append(next.CompletedSteps, step)
					next = puzzle.Normalize(next)
					next.LastUpdated = stamp
					return &next, nil
				})
				errs <- err
			}(step)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
		}
		got, err := s.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !slices.Equal(got.CompletedSteps, []int{1, 2, 3, 4, 5, 6}) {
			t.Errorf("CompletedSteps = %v, updates were lost", got.CompletedSteps)
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := s.Get(ctx, "alice"); err == nil || errors.Is(err, puzzle.ErrNotFound) {
			t.Errorf("Get with canceled ctx: err = %v", err)
		}
	})

	t.Run("WorksWithGate", func(t *testing.T) {
		s := newStore(t)
		g := puzzle.NewGate(s)
		ctx := context.Background()
		for step := 1; step <= 3; step++ {
			if ok, err := g.CompleteStep(ctx, "alice", step); !ok || err != nil {
				t.Fatalf("CompleteStep(%d) = %v, %v", step, ok, err)
			}
		}
		if ok, err := g.CompleteStep(ctx, "alice", 2); !ok || err != nil {
			t.Fatalf("re-complete: %v, %v", ok, err)
		}
		p, err := g.GetProgress(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(p.CompletedSteps, []int{1, 2, 3}) || p.CurrentStep != 4 {
			t.Errorf("progress = %+v", p)
		}
		if rec, err := g.ResetProgress(ctx, "alice"); err != nil || rec == nil {
			t.Fatalf("ResetProgress: %v", err)
		}
		p, _ = g.GetProgress(ctx, "alice")
		if len(p.CompletedSteps) != 0 || puzzle.IsStepUnlocked(p, 2) {
			t.Errorf("after reset: %+v", p)
		}
	})
}
