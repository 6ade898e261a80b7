// Package boltstore implements puzzle.Store on BoltDB.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/forthefews/fews/internal/puzzle"
)

const progressBucket = "progress"

// Store provides a BoltDB-backed progress store. Bolt serializes write
// transactions, so Update is a plain read-modify-write inside one.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get fetches a user's record.
func (s *Store) Get(ctx context.Context, userID string) (*puzzle.ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec *puzzle.ProgressRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = load(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("progress for %q: %w", userID, puzzle.ErrNotFound)
	}
	return rec, nil
}

// Set persists a user's record.
func (s *Store) Set(ctx context.Context, rec puzzle.ProgressRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return put(tx, rec)
	})
}

// Update runs fn inside a single write transaction.
func (s *Store) Update(ctx context.Context, userID string, fn puzzle.UpdateFunc) (*puzzle.ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var saved *puzzle.ProgressRecord
	err := s.db.Update(func(tx *bbolt.Tx) error {
		current, err := load(tx, userID)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			saved = current
			return nil
		}
		rec := next.Clone()
		rec.UserID = userID
		if err := put(tx, rec); err != nil {
			return err
		}
		saved = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(progressBucket)); err != nil {
			return fmt.Errorf("create progress bucket: %w", err)
		}
		return nil
	})
}

// load returns nil, nil when the user has no record.
func load(tx *bbolt.Tx, userID string) (*puzzle.ProgressRecord, error) {
	bucket := tx.Bucket([]byte(progressBucket))
	if bucket == nil {
		return nil, fmt.Errorf("progress bucket is missing")
	}
	payload := bucket.Get(progressKey(userID))
	if payload == nil {
		return nil, nil
	}
	var rec puzzle.ProgressRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal progress: %w", err)
	}
	return &rec, nil
}

func put(tx *bbolt.Tx, rec puzzle.ProgressRecord) error {
	if rec.CompletedSteps == nil {
		rec.CompletedSteps = []int{}
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	bucket := tx.Bucket([]byte(progressBucket))
	if bucket == nil {
		return fmt.Errorf("progress bucket is missing")
	}
	return bucket.Put(progressKey(rec.UserID), payload)
}

func progressKey(userID string) []byte {
	return []byte("user/" + userID)
}

var _ puzzle.Store = (*Store)(nil)
