package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forthefews/fews/internal/puzzle"
	"github.com/forthefews/fews/internal/puzzle/storetest"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fs
}

func TestFileStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) puzzle.Store { return newTestStore(t) })
}

func TestFileStore_RecordPathIsSafe(t *testing.T) {
	fs := newTestStore(t)
	path := fs.RecordPath("../../etc/passwd")
	if filepath.Dir(path) != filepath.Join(fs.root, ProgressDir) {
		t.Errorf("path escaped progress dir: %s", path)
	}
	if strings.Contains(filepath.Base(path), "/") {
		t.Errorf("unexpected base name %q", filepath.Base(path))
	}
}

func TestFileStore_RecordPathFixedLength(t *testing.T) {
	fs := newTestStore(t)
	short := filepath.Base(fs.RecordPath("a"))
	long := filepath.Base(fs.RecordPath(strings.Repeat("u", 1000)))
	if len(short) != len(long) || len(long) > 255 {
		t.Errorf("base names %d and %d bytes, want equal and at most 255", len(short), len(long))
	}
	if fs.RecordPath("alice") == fs.RecordPath("bob") {
		t.Error("distinct users share a file")
	}
}

func TestFileStore_WritesReadableJSON(t *testing.T) {
	fs := newTestStore(t)
	rec := puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1}, CurrentStep: 2}
	if err := fs.Set(context.Background(), rec); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, err := os.ReadFile(fs.RecordPath("alice"))
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if raw["user_id"] != "alice" || raw["step"] != float64(2) {
		t.Errorf("raw = %v", raw)
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	fs := newTestStore(t)
	for i := 0; i < 3; i++ {
		_ = fs.Set(context.Background(), puzzle.ProgressRecord{UserID: "alice", CurrentStep: 1})
	}
	entries, err := os.ReadDir(filepath.Join(fs.root, ProgressDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected one file, found %d", len(entries))
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	fs := newTestStore(t)
	if err := os.WriteFile(fs.RecordPath("alice"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := fs.Get(context.Background(), "alice")
	if err == nil || errors.Is(err, puzzle.ErrNotFound) {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestFileStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	fs1, _ := New(dir)
	_ = fs1.Set(context.Background(), puzzle.ProgressRecord{UserID: "alice", CompletedSteps: []int{1, 2}, CurrentStep: 3})

	fs2, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := fs2.Get(context.Background(), "alice")
	if err != nil || got.CurrentStep != 3 {
		t.Errorf("Get after reopen = %+v, %v", got, err)
	}
}
