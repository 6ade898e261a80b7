package puzzle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Gate reads and mutates progress records through a Store. It holds no
// per-user state of its own, so one Gate serves every user.
type Gate struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	trusted   bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithPublisher sends every persisted record to p.
func WithPublisher(p Publisher) Option {
	return func(g *Gate) { g.publisher = p }
}

// WithLogger sets the logger failures are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTrustedCaller disables the unlock check inside CompleteStep. The
// caller then carries sole responsibility for never completing a locked
// step, which a web client typically does with route guards.
func WithTrustedCaller() Option {
	return func(g *Gate) { g.trusted = true }
}

// NewGate creates a Gate backed by store.
func NewGate(store Store, opts ...Option) *Gate {
	g := &Gate{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GetProgress returns the user's record, or the default record if none is
// stored. The default is not written. A store failure is returned wrapped
// in ErrStore.
func (g *Gate) GetProgress(ctx context.Context, userID string) (ProgressRecord, error) {
	rec, err := g.store.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return DefaultProgress(userID), nil
	}
	if err != nil {
		return ProgressRecord{}, fmt.Errorf("%w: reading progress for %q: %w", ErrStore, userID, err)
	}
	p := Normalize(*rec)
	p.UserID = userID
	return p, nil
}

// CompleteStep marks step as completed for userID.
//
// The boolean is the success flag: true once the step is recorded as
// completed (including when it already was), false otherwise. A false
// result always comes with the reason in err, and store failures are also
// logged. Callers that only need to know whether to show "completed" may
// ignore err.
func (g *Gate) CompleteStep(ctx context.Context, userID string, step int) (bool, error) {
	if err := ValidateStep(step); err != nil {
		return false, err
	}

	var changed bool
	saved, err := g.store.Update(ctx, userID, func(current *ProgressRecord) (*ProgressRecord, error) {
		changed = false
		p := DefaultProgress(userID)
		if current != nil {
			p = Normalize(*current)
			p.UserID = userID
		}
		if IsStepCompleted(p, step) {
			return nil, nil
		}
		if !g.trusted && !IsStepUnlocked(p, step) {
			return nil, fmt.Errorf("%w: step %d requires step %d", ErrStepLocked, step, step-1)
		}
		next, _ := withCompleted(p, step, timeNow())
		changed = true
		return &next, nil
	})
	if err != nil {
		if errors.Is(err, ErrStepLocked) {
			g.logger.Warn("puzzle: completion of locked step rejected", "user", userID, "step", step)
			return false, err
		}
		g.logger.Warn("puzzle: completing step failed", "user", userID, "step", step, "error", err)
		return false, fmt.Errorf("%w: completing step %d: %w", ErrStore, step, err)
	}

	if changed && saved != nil {
		g.publish(*saved)
	}
	return true, nil
}

// ResetProgress overwrites the user's record with the empty record and
// returns it. On failure it returns nil and the previous record is left
// as it was.
func (g *Gate) ResetProgress(ctx context.Context, userID string) (*ProgressRecord, error) {
	rec := resetRecord(userID, timeNow())
	if err := g.store.Set(ctx, rec); err != nil {
		g.logger.Warn("puzzle: resetting progress failed", "user", userID, "error", err)
		return nil, fmt.Errorf("%w: resetting progress: %w", ErrStore, err)
	}
	g.publish(rec)
	out := rec.Clone()
	return &out, nil
}

// CheckAccess is the route guard for a step page. It fails with
// ErrUnauthenticated when userID is empty and with ErrStepLocked when
// step's predecessor is not completed. The record it evaluated is returned
// whenever it could be read.
func (g *Gate) CheckAccess(ctx context.Context, userID string, step int) (ProgressRecord, error) {
	if userID == "" {
		return ProgressRecord{}, ErrUnauthenticated
	}
	if err := ValidateStep(step); err != nil {
		return ProgressRecord{}, err
	}
	p, err := g.GetProgress(ctx, userID)
	if err != nil {
		return ProgressRecord{}, err
	}
	if !IsStepUnlocked(p, step) {
		g.logger.Warn("puzzle: unauthorized access attempt", "user", userID, "step", step)
		return p, fmt.Errorf("%w: step %d", ErrStepLocked, step)
	}
	return p, nil
}

func (g *Gate) publish(rec ProgressRecord) {
	if g.publisher != nil {
		g.publisher.Publish(rec)
	}
}
