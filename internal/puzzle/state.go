package puzzle

import (
	"slices"
	"time"
)

// --- Pure gate predicates ---
//
// Gating decisions are derived solely from CompletedSteps. CurrentStep is a
// cached value for display and is recomputed on every mutation and read.

// DefaultProgress is the record a user has before their first completion.
// It is synthesized on read and never written on its own.
func DefaultProgress(userID string) ProgressRecord {
	return ProgressRecord{
		UserID:         userID,
		CompletedSteps: []int{},
		CurrentStep:    FirstStep,
	}
}

// DeriveCurrentStep returns min(TotalSteps, max(completed ∪ {0}) + 1).
func DeriveCurrentStep(completed []int) int {
	highest := 0
	for _, s := range completed {
		if s > highest {
			highest = s
		}
	}
	return min(TotalSteps, highest+1)
}

// IsStepUnlocked reports whether step may be attempted.
func IsStepUnlocked(p ProgressRecord, step int) bool {
	if step == FirstStep {
		return true
	}
	return slices.Contains(p.CompletedSteps, step-1)
}

// IsStepCompleted reports whether step has been completed.
func IsStepCompleted(p ProgressRecord, step int) bool {
	return slices.Contains(p.CompletedSteps, step)
}

// StateOf returns the per-step state. Completed wins over unlocked.
func StateOf(p ProgressRecord, step int) StepState {
	switch {
	case IsStepCompleted(p, step):
		return StepCompleted
	case IsStepUnlocked(p, step):
		return StepUnlocked
	default:
		return StepLocked
	}
}

// StepStatus pairs a catalog entry with its state for a given record.
type StepStatus struct {
	StepInfo
	State StepState `json:"-"`
	Label string    `json:"state"`
}

// Overview lists every step with its state, in order.
func Overview(p ProgressRecord) []StepStatus {
	out := make([]StepStatus, 0, TotalSteps)
	for _, info := range catalog {
		st := StateOf(p, info.ID)
		out = append(out, StepStatus{StepInfo: info, State: st, Label: st.String()})
	}
	return out
}

// Normalize returns p with CompletedSteps deduplicated, sorted ascending and
// restricted to valid step ids, and CurrentStep recomputed. Records read
// from storage pass through here so a legacy or hand-edited document cannot
// break gating.
func Normalize(p ProgressRecord) ProgressRecord {
	steps := make([]int, 0, len(p.CompletedSteps))
	for _, s := range p.CompletedSteps {
		if ValidateStep(s) != nil || slices.Contains(steps, s) {
			continue
		}
		steps = append(steps, s)
	}
	slices.Sort(steps)
	p.CompletedSteps = steps
	p.CurrentStep = DeriveCurrentStep(steps)
	return p
}

// withCompleted applies the "complete step" transition to a copy of p. The
// second return value is false when step was already completed, in which
// case the record is returned unchanged.
func withCompleted(p ProgressRecord, step int, now time.Time) (ProgressRecord, bool) {
	if IsStepCompleted(p, step) {
		return p, false
	}
	next := p.Clone()
	next.CompletedSteps = append(next.CompletedSteps, step)
	slices.Sort(next.CompletedSteps)
	next.CurrentStep = DeriveCurrentStep(next.CompletedSteps)
	next.LastUpdated = now
	return next, true
}

// resetRecord is the record written by a full reset.
func resetRecord(userID string, now time.Time) ProgressRecord {
	p := DefaultProgress(userID)
	p.LastUpdated = now
	return p
}
