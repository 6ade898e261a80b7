// Package filestore implements puzzle.Store with one JSON file per user.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/forthefews/fews/internal/puzzle"
)

const (
	// ProgressDir is the subdirectory under the data dir holding records.
	ProgressDir = "progress"
	fileExt     = ".json"
)

// FileStore persists each user's record at <root>/progress/<sha256(user)>.json.
// Writes go through a temp file and a rename so readers never observe a
// partially written record.
type FileStore struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a file-backed store rooted at dataDir.
func New(dataDir string) (*FileStore, error) {
	dir := filepath.Join(dataDir, ProgressDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: creating progress directory: %w", err)
	}
	return &FileStore{root: dataDir, locks: make(map[string]*sync.Mutex)}, nil
}

// RecordPath returns the file a user's record lives in. The name is the
// hex SHA-256 of the user id, so ids of any length or alphabet map to a
// fixed-length file name. The id itself is kept inside the document.
func (fs *FileStore) RecordPath(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(fs.root, ProgressDir, hex.EncodeToString(sum[:])+fileExt)
}

// Get reads a user's record.
func (fs *FileStore) Get(ctx context.Context, userID string) (*puzzle.ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fs.read(userID)
}

// Set overwrites a user's record.
func (fs *FileStore) Set(ctx context.Context, rec puzzle.ProgressRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := fs.lockFor(rec.UserID)
	l.Lock()
	defer l.Unlock()
	return fs.write(rec)
}

// Update runs fn under the user's lock. Only one process may use a data
// directory at a time.
func (fs *FileStore) Update(ctx context.Context, userID string, fn puzzle.UpdateFunc) (*puzzle.ProgressRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := fs.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	current, err := fs.read(userID)
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
	if err := fs.write(rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (fs *FileStore) lockFor(userID string) *sync.Mutex {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	l, ok := fs.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		fs.locks[userID] = l
	}
	return l
}

func (fs *FileStore) read(userID string) (*puzzle.ProgressRecord, error) {
	data, err := os.ReadFile(fs.RecordPath(userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("progress for %q: %w", userID, puzzle.ErrNotFound)
		}
		return nil, fmt.Errorf("filestore: reading progress: %w", err)
	}

	var rec puzzle.ProgressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("filestore: parsing progress for %q: %w", userID, err)
	}
	return &rec, nil
}

func (fs *FileStore) write(rec puzzle.ProgressRecord) error {
	if rec.CompletedSteps == nil {
		rec.CompletedSteps = []int{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshaling progress: %w", err)
	}

	path := fs.RecordPath(rec.UserID)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".progress-*")
	if err != nil {
		return fmt.Errorf("filestore: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore: writing progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("filestore: replacing progress file: %w", err)
	}
	return nil
}

var _ puzzle.Store = (*FileStore)(nil)
