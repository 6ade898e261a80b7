// Package puzzle owns the step-unlock state machine of the puzzle challenge.
//
// A player works through a fixed sequence of steps. Step 1 is always
// playable; every later step unlocks once its predecessor is completed.
// Completion is sticky until an explicit full reset.
//
// The package follows the same split as the rest of the codebase:
// - types.go: records, enums, the step catalog
// - state.go: pure gate predicates over a ProgressRecord
// - gate.go: the service that reads and mutates records through a Store
// - store.go: the persistence contract plus an in-memory implementation
package puzzle

import (
	"errors"
	"fmt"
	"time"
)

const (
	// FirstStep is always unlocked.
	FirstStep = 1
	// TotalSteps is the number of steps in the challenge.
	TotalSteps = 6
)

// --- Step state enum ---

// StepState is the per-step view of the state machine.
type StepState int

const (
	StepLocked StepState = iota
	StepUnlocked
	StepCompleted
)

func (s StepState) String() string {
	switch s {
	case StepLocked:
		return "locked"
	case StepUnlocked:
		return "unlocked"
	case StepCompleted:
		return "completed"
	default:
		return fmt.Sprintf("StepState(%d)", int(s))
	}
}

// --- Core data structures ---

// ProgressRecord is the persisted progress of one user. The JSON layout
// matches the document the web client has always stored ("step" holds the
// cached current step).
type ProgressRecord struct {
	UserID         string    `json:"user_id"`
	CompletedSteps []int     `json:"completed_steps"`
	CurrentStep    int       `json:"step"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Clone returns a deep copy so callers never share the CompletedSteps slice.
func (p ProgressRecord) Clone() ProgressRecord {
	out := p
	out.CompletedSteps = append([]int(nil), p.CompletedSteps...)
	return out
}

// CompletedCount is the number of distinct completed steps.
func (p ProgressRecord) CompletedCount() int {
	return len(p.CompletedSteps)
}

// AllCompleted reports whether every step has been completed.
func (p ProgressRecord) AllCompleted() bool {
	return len(p.CompletedSteps) == TotalSteps
}

// StepInfo describes one step of the challenge and the message shown once
// it is completed.
type StepInfo struct {
	ID                int    `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	CompletionTitle   string `json:"completion_title"`
	CompletionMessage string `json:"completion_message"`
}

var catalog = [TotalSteps]StepInfo{
	{
		ID:                1,
		Title:             "Hidden in Plain Sight",
		Description:       "Find the hidden button to continue.",
		CompletionTitle:   "Great Job!",
		CompletionMessage: "You found the hidden button! Sometimes the best solutions are hiding in plain sight.",
	},
	{
		ID:                2,
		Title:             "The Key to Success",
		Description:       "Unlock the secret with persistence.",
		CompletionTitle:   "Excellent Work!",
		CompletionMessage: "You discovered the key to success! Persistence really does pay off.",
	},
	{
		ID:                3,
		Title:             "Button Chase",
		Description:       "Catch the elusive button.",
		CompletionTitle:   "Amazing!",
		CompletionMessage: "You caught the elusive button! Quick thinking and creativity are your strengths.",
	},
	{
		ID:                4,
		Title:             "Quick Clicks",
		Description:       "Click the buttons before time runs out.",
		CompletionTitle:   "Fantastic!",
		CompletionMessage: "You completed the quick clicks challenge! Your focus and speed are impressive.",
	},
	{
		ID:                5,
		Title:             "The Pattern",
		Description:       "Match the pattern to win.",
		CompletionTitle:   "Outstanding!",
		CompletionMessage: "You solved the pattern puzzle! Your attention to detail is remarkable.",
	},
	{
		ID:                6,
		Title:             "Secret Message",
		Description:       "Decipher the secret message.",
		CompletionTitle:   "Incredible!",
		CompletionMessage: "You deciphered the message! You've proven yourself as a true puzzle master.",
	},
}

// Steps returns the step catalog in order.
func Steps() []StepInfo {
	out := make([]StepInfo, len(catalog))
	copy(out, catalog[:])
	return out
}

// Step returns the catalog entry for a step id.
func Step(step int) (StepInfo, error) {
	if err := ValidateStep(step); err != nil {
		return StepInfo{}, err
	}
	return catalog[step-1], nil
}

// --- Errors ---

var (
	// ErrInvalidStep matches any *InvalidStepError.
	ErrInvalidStep = errors.New("invalid step")
	// ErrNotFound is returned by a Store when no record exists for a user.
	ErrNotFound = errors.New("progress record not found")
	// ErrStepLocked is returned when a step's predecessor is not completed.
	ErrStepLocked = errors.New("step is locked")
	// ErrUnauthenticated is returned when no user id is available.
	ErrUnauthenticated = errors.New("no authenticated user")
	// ErrStore wraps every persistence failure surfaced by the Gate.
	ErrStore = errors.New("progress store failure")
)

// InvalidStepError reports a step id outside [1, TotalSteps].
type InvalidStepError struct {
	Step int
}

func (e *InvalidStepError) Error() string {
	return fmt.Sprintf("invalid step %d: must be between %d and %d", e.Step, FirstStep, TotalSteps)
}

// Is makes errors.Is(err, ErrInvalidStep) hold.
func (e *InvalidStepError) Is(target error) bool {
	return target == ErrInvalidStep
}

// ValidateStep returns an *InvalidStepError if step is out of range.
func ValidateStep(step int) error {
	if step < FirstStep || step > TotalSteps {
		return &InvalidStepError{Step: step}
	}
	return nil
}
