package puzzle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

// --- Helpers ---

// failingStore fails every operation after the configured switches flip.
type failingStore struct {
	*MemStore
	failGet, failSet, failUpdate bool
	sets, updates                atomic.Int32
}

var errBoom = errors.New("network unreachable")

func (f *failingStore) Get(ctx context.Context, userID string) (*ProgressRecord, error) {
	if f.failGet {
		return nil, errBoom
	}
	return f.MemStore.Get(ctx, userID)
}

func (f *failingStore) Set(ctx context.Context, rec ProgressRecord) error {
	f.sets.Add(1)
	if f.failSet {
		return errBoom
	}
	return f.MemStore.Set(ctx, rec)
}

func (f *failingStore) Update(ctx context.Context, userID string, fn UpdateFunc) (*ProgressRecord, error) {
	f.updates.Add(1)
	if f.failUpdate {
		return nil, errBoom
	}
	return f.MemStore.Update(ctx, userID, fn)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(t *testing.T, opts ...Option) (*Gate, *failingStore) {
	t.Helper()
	store := &failingStore{MemStore: NewMemStore()}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewGate(store, opts...), store
}

type recordingPublisher struct {
	mu   sync.Mutex
	recs []ProgressRecord
}

func (r *recordingPublisher) Publish(rec ProgressRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

// --- GetProgress ---

func TestGetProgress_MissingReturnsDefaultWithoutWriting(t *testing.T) {
	g, store := newTestGate(t)
	p, err := g.GetProgress(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if p.UserID != "alice" || p.CurrentStep != 1 || len(p.CompletedSteps) != 0 {
		t.Errorf("unexpected default: %+v", p)
	}
	if store.Len() != 0 {
		t.Error("default record must not be persisted")
	}
}

func TestGetProgress_StoreFailurePropagates(t *testing.T) {
	g, store := newTestGate(t)
	store.failGet = true
	_, err := g.GetProgress(context.Background(), "alice")
	if !errors.Is(err, ErrStore) {
		t.Fatalf("err = %v, want ErrStore", err)
	}
	if !errors.Is(err, errBoom) {
		t.Error("underlying cause should stay in the chain")
	}
}

func TestGetProgress_RecomputesCachedStep(t *testing.T) {
	g, store := newTestGate(t)
	_ = store.MemStore.Set(context.Background(), ProgressRecord{UserID: "alice", CompletedSteps: []int{2, 1}, CurrentStep: 1})
	p, err := g.GetProgress(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if p.CurrentStep != 3 || !slices.Equal(p.CompletedSteps, []int{1, 2}) {
		t.Errorf("got %+v", p)
	}
}

// --- CompleteStep ---

func TestCompleteStep_FirstCompletionCreatesRecord(t *testing.T) {
	g, store := newTestGate(t)
	ok, err := g.CompleteStep(context.Background(), "alice", 1)
	if !ok || err != nil {
		t.Fatalf("CompleteStep = %v, %v", ok, err)
	}
	rec, err := store.MemStore.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("record not stored: %v", err)
	}
	if !slices.Equal(rec.CompletedSteps, []int{1}) || rec.CurrentStep != 2 {
		t.Errorf("stored %+v", rec)
	}
	if !rec.LastUpdated.Equal(timeNow()) {
		t.Errorf("LastUpdated = %v", rec.LastUpdated)
	}
}

func TestCompleteStep_Idempotent(t *testing.T) {
	g, store := newTestGate(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := g.CompleteStep(ctx, "alice", 1)
		if !ok || err != nil {
			t.Fatalf("call %d: CompleteStep = %v, %v", i, ok, err)
		}
	}
	rec, _ := store.MemStore.Get(ctx, "alice")
	if !slices.Equal(rec.CompletedSteps, []int{1}) {
		t.Errorf("CompletedSteps = %v, want [1]", rec.CompletedSteps)
	}
}

func TestCompleteStep_RecompletionSkipsPublish(t *testing.T) {
	pub := &recordingPublisher{}
	g, _ := newTestGate(t, WithPublisher(pub))
	ctx := context.Background()
	_, _ = g.CompleteStep(ctx, "alice", 1)
	_, _ = g.CompleteStep(ctx, "alice", 1)
	if len(pub.recs) != 1 {
		t.Errorf("published %d records, want 1", len(pub.recs))
	}
}

func TestCompleteStep_InvalidStepNoIO(t *testing.T) {
	g, store := newTestGate(t)
	for _, step := range []int{0, 7} {
		ok, err := g.CompleteStep(context.Background(), "alice", step)
		if ok {
			t.Errorf("step %d: expected failure", step)
		}
		if !errors.Is(err, ErrInvalidStep) {
			t.Errorf("step %d: err = %v, want ErrInvalidStep", step, err)
		}
	}
	if store.updates.Load() != 0 || store.sets.Load() != 0 {
		t.Error("invalid step must be rejected before any I/O")
	}
}

func TestCompleteStep_LockedStepRejected(t *testing.T) {
	g, store := newTestGate(t)
	ok, err := g.CompleteStep(context.Background(), "alice", 3)
	if ok {
		t.Fatal("locked step must not complete")
	}
	if !errors.Is(err, ErrStepLocked) {
		t.Errorf("err = %v, want ErrStepLocked", err)
	}
	if store.Len() != 0 {
		t.Error("nothing should be written")
	}
}

func TestCompleteStep_TrustedCallerSkipsGate(t *testing.T) {
	g, store := newTestGate(t, WithTrustedCaller())
	ok, err := g.CompleteStep(context.Background(), "alice", 3)
	if !ok || err != nil {
		t.Fatalf("CompleteStep = %v, %v", ok, err)
	}
	rec, _ := store.MemStore.Get(context.Background(), "alice")
	if !slices.Equal(rec.CompletedSteps, []int{3}) || rec.CurrentStep != 4 {
		t.Errorf("stored %+v", rec)
	}
}

func TestCompleteStep_StoreFailureReturnsFalse(t *testing.T) {
	g, store := newTestGate(t)
	store.failUpdate = true
	ok, err := g.CompleteStep(context.Background(), "alice", 1)
	if ok {
		t.Fatal("expected false on store failure")
	}
	if !errors.Is(err, ErrStore) || !errors.Is(err, errBoom) {
		t.Errorf("err = %v", err)
	}
	store.failUpdate = false
	p, _ := g.GetProgress(context.Background(), "alice")
	if IsStepCompleted(p, 1) {
		t.Error("failed completion must leave the step not completed")
	}
}

func TestCompleteStep_FullRun(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	for step := 1; step <= TotalSteps; step++ {
		p, _ := g.GetProgress(ctx, "alice")
		if !IsStepUnlocked(p, step) {
			t.Fatalf("step %d should be unlocked before completing it", step)
		}
		if step < TotalSteps && IsStepUnlocked(p, step+1) {
			t.Fatalf("step %d should still be locked", step+1)
		}
		if ok, err := g.CompleteStep(ctx, "alice", step); !ok || err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
	p, _ := g.GetProgress(ctx, "alice")
	if !p.AllCompleted() || p.CurrentStep != TotalSteps {
		t.Errorf("final record %+v", p)
	}
}

func TestCompleteStep_ConcurrentCompletionsNotLost(t *testing.T) {
	g, _ := newTestGate(t, WithTrustedCaller())
	ctx := context.Background()
	var wg sync.WaitGroup
	for step := 1; step <= TotalSteps; step++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			_, _ = g.CompleteStep(ctx, "alice", s)
		}(step)
	}
	wg.Wait()
	p, _ := g.GetProgress(ctx, "alice")
	if !slices.Equal(p.CompletedSteps, []int{1, 2, 3, 4, 5, 6}) {
		t.Errorf("CompletedSteps = %v, some completions were lost", p.CompletedSteps)
	}
}

func TestCompleteStep_MonotonicUntilReset(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()
	prev := 0
	for _, step := range []int{1, 1, 2, 4, 3, 2, 4} {
		_, _ = g.CompleteStep(ctx, "alice", step)
		p, _ := g.GetProgress(ctx, "alice")
		if len(p.CompletedSteps) < prev {
			t.Fatalf("completed set shrank after step %d", step)
		}
		prev = len(p.CompletedSteps)
	}
}

// --- ResetProgress ---

func TestResetProgress_ClearsEverything(t *testing.T) {
	pub := &recordingPublisher{}
	g, _ := newTestGate(t, WithPublisher(pub))
	ctx := context.Background()
	for step := 1; step <= 3; step++ {
		_, _ = g.CompleteStep(ctx, "alice", step)
	}

	rec, err := g.ResetProgress(ctx, "alice")
	if err != nil || rec == nil {
		t.Fatalf("ResetProgress = %v, %v", rec, err)
	}
	if len(rec.CompletedSteps) != 0 || rec.CurrentStep != 1 {
		t.Errorf("reset record %+v", rec)
	}

	p, _ := g.GetProgress(ctx, "alice")
	for k := 2; k <= TotalSteps; k++ {
		if IsStepUnlocked(p, k) {
			t.Errorf("step %d should be locked after reset", k)
		}
	}
	last := pub.recs[len(pub.recs)-1]
	if len(last.CompletedSteps) != 0 {
		t.Error("reset should be published")
	}
}

func TestResetProgress_FailureKeepsPriorProgress(t *testing.T) {
	g, store := newTestGate(t)
	ctx := context.Background()
	_, _ = g.CompleteStep(ctx, "alice", 1)
	store.failSet = true

	rec, err := g.ResetProgress(ctx, "alice")
	if rec != nil {
		t.Error("expected nil record on failure")
	}
	if !errors.Is(err, ErrStore) {
		t.Errorf("err = %v", err)
	}
	p, _ := g.GetProgress(ctx, "alice")
	if !IsStepCompleted(p, 1) {
		t.Error("prior progress must remain intact")
	}
}

// --- CheckAccess ---

func TestCheckAccess(t *testing.T) {
	g, _ := newTestGate(t)
	ctx := context.Background()

	if _, err := g.CheckAccess(ctx, "", 1); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("empty user: err = %v", err)
	}
	if _, err := g.CheckAccess(ctx, "alice", 1); err != nil {
		t.Errorf("step 1: err = %v", err)
	}
	if _, err := g.CheckAccess(ctx, "alice", 2); !errors.Is(err, ErrStepLocked) {
		t.Errorf("step 2: err = %v, want ErrStepLocked", err)
	}
	if _, err := g.CheckAccess(ctx, "alice", 8); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("step 8: err = %v, want ErrInvalidStep", err)
	}
	_, _ = g.CompleteStep(ctx, "alice", 1)
	if _, err := g.CheckAccess(ctx, "alice", 2); err != nil {
		t.Errorf("step 2 after completing 1: err = %v", err)
	}
}
