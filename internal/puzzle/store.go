package puzzle

import (
	"context"
	"sync"
)

// UpdateFunc computes the next record from the current one. current is nil
// when the user has no stored record. Returning a nil record skips the
// write; returning an error aborts the update and is passed through.
type UpdateFunc func(current *ProgressRecord) (*ProgressRecord, error)

// Store defines the persistence interface for progress records, one per user.
// Every write persists the complete record, never a delta.
type Store interface {
	// Get returns the stored record or ErrNotFound.
	Get(ctx context.Context, userID string) (*ProgressRecord, error)
	// Set overwrites the user's record.
	Set(ctx context.Context, rec ProgressRecord) error
	// Update performs an atomic read-modify-write. No concurrent Update or
	// Set for the same user may be lost. It returns the record that is
	// stored once it finishes (nil if none exists and fn skipped the write).
	Update(ctx context.Context, userID string, fn UpdateFunc) (*ProgressRecord, error)
}

// MemStore is an in-process Store. It backs tests and the "memory" store
// kind; records do not survive a restart.
type MemStore struct {
	mu      sync.Mutex
	records map[string]ProgressRecord
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]ProgressRecord)}
}

// Get implements Store.
func (m *MemStore) Get(ctx context.Context, userID string) (*ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

// Set implements Store.
func (m *MemStore) Set(ctx context.Context, rec ProgressRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[rec.UserID] = rec.Clone()
	return nil
}

// Update implements Store. The whole cycle runs under the store mutex.
func (m *MemStore) Update(ctx context.Context, userID string, fn UpdateFunc) (*ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var current *ProgressRecord
	if rec, ok := m.records[userID]; ok {
		c := rec.Clone()
		current = &c
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return current, nil
	}

	m.records[userID] = next.Clone()
	out := next.Clone()
	return &out, nil
}

// Len returns the number of stored records.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
