package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/identity"
	"github.com/forthefews/fews/internal/puzzle"
)

func init() {
	timeNow = func() time.Time {
		return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)
	}
}

// --- Helpers ---

// isErrorResult checks if a CallToolResult represents an error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func newRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func newTestGate() *puzzle.Gate {
	return puzzle.NewGate(puzzle.NewMemStore(), puzzle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

// brokenGate fails every store operation.
type brokenGate struct{}

var errDown = errors.New("store down")

func (brokenGate) GetProgress(context.Context, string) (puzzle.ProgressRecord, error) {
	return puzzle.ProgressRecord{}, errors.Join(puzzle.ErrStore, errDown)
}

func (brokenGate) CompleteStep(context.Context, string, int) (bool, error) {
	return false, errors.Join(puzzle.ErrStore, errDown)
}

func (brokenGate) ResetProgress(context.Context, string) (*puzzle.ProgressRecord, error) {
	return nil, errors.Join(puzzle.ErrStore, errDown)
}

func (brokenGate) CheckAccess(context.Context, string, int) (puzzle.ProgressRecord, error) {
	return puzzle.ProgressRecord{}, errors.Join(puzzle.ErrStore, errDown)
}

var alice = identity.Static("alice")

// --- intArg / boolArg ---

func TestIntArg(t *testing.T) {
	req := newRequest(map[string]interface{}{"n": float64(4), "s": "x"})
	if intArg(req, "n", 0) != 4 {
		t.Error("expected 4")
	}
	if intArg(req, "s", -1) != -1 || intArg(req, "missing", 7) != 7 {
		t.Error("expected defaults")
	}
}

func TestBoolArg(t *testing.T) {
	req := newRequest(map[string]interface{}{"b": true, "s": "true"})
	if !boolArg(req, "b", false) {
		t.Error("expected true")
	}
	if boolArg(req, "s", false) {
		t.Error("string must not count as bool")
	}
}

// --- ProgressTool ---

func TestProgressTool_Definition(t *testing.T) {
	def := NewProgressTool(newTestGate(), alice).Definition()
	if def.Name != "puzzle_progress" {
		t.Errorf("name = %q", def.Name)
	}
}

func TestProgressTool_Handle_NewUser(t *testing.T) {
	tool := NewProgressTool(newTestGate(), alice)
	result, err := tool.Handle(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", getResultText(result))
	}
	text := getResultText(result)
	for _, want := range []string{"Puzzle Progress", "`alice`", "0/6", "never", "🔓 1", "🔒 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestProgressTool_Handle_ShowsRelativeTime(t *testing.T) {
	gate := newTestGate()
	_, _ = gate.CompleteStep(context.Background(), "alice", 1)
	timeNow = func() time.Time { return time.Now().Add(3 * time.Hour) }
	defer func() {
		timeNow = func() time.Time { return time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC) }
	}()

	result, _ := NewProgressTool(gate, alice).Handle(context.Background(), newRequest(nil))
	if text := getResultText(result); !strings.Contains(text, "ago") || !strings.Contains(text, "1/6") {
		t.Errorf("unexpected text:\n%s", text)
	}
}

func TestProgressTool_Handle_NoUser(t *testing.T) {
	result, _ := NewProgressTool(newTestGate(), identity.Static("")).Handle(context.Background(), newRequest(nil))
	if !isErrorResult(result) {
		t.Fatal("expected error result without identity")
	}
}

func TestProgressTool_Handle_StoreDown(t *testing.T) {
	result, err := NewProgressTool(brokenGate{}, alice).Handle(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("store failures are tool errors, got %v", err)
	}
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "try again") {
		t.Errorf("result = %s", getResultText(result))
	}
}

// --- CompleteStepTool ---

func TestCompleteStepTool_Handle_Success(t *testing.T) {
	gate := newTestGate()
	tool := NewCompleteStepTool(gate, alice)
	result, err := tool.Handle(context.Background(), newRequest(map[string]interface{}{"step": float64(1)}))
	if err != nil || isErrorResult(result) {
		t.Fatalf("Handle = %s, %v", getResultText(result), err)
	}
	text := getResultText(result)
	if !strings.Contains(text, "Great Job!") || !strings.Contains(text, "Step 2 (The Key to Success) is now unlocked") {
		t.Errorf("unexpected text:\n%s", text)
	}
	p, _ := gate.GetProgress(context.Background(), "alice")
	if !puzzle.IsStepCompleted(p, 1) {
		t.Error("step 1 not stored")
	}
}

func TestCompleteStepTool_Handle_Locked(t *testing.T) {
	tool := NewCompleteStepTool(newTestGate(), alice)
	result, _ := tool.Handle(context.Background(), newRequest(map[string]interface{}{"step": float64(3)}))
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "Complete step 2 first") {
		t.Errorf("result = %s", getResultText(result))
	}
}

func TestCompleteStepTool_Handle_InvalidStep(t *testing.T) {
	tool := NewCompleteStepTool(brokenGate{}, alice)
	for _, args := range []map[string]interface{}{{"step": float64(0)}, {"step": float64(7)}, {}} {
		result, _ := tool.Handle(context.Background(), newRequest(args))
		if !isErrorResult(result) || !strings.Contains(getResultText(result), "Invalid step") {
			t.Errorf("%v: result = %s", args, getResultText(result))
		}
	}
}

func TestCompleteStepTool_Handle_StoreDown(t *testing.T) {
	result, _ := NewCompleteStepTool(brokenGate{}, alice).Handle(context.Background(), newRequest(map[string]interface{}{"step": float64(1)}))
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "try again") {
		t.Errorf("result = %s", getResultText(result))
	}
}

func TestCompleteStepTool_Handle_FinalStep(t *testing.T) {
	gate := newTestGate()
	ctx := context.Background()
	for s := 1; s < puzzle.TotalSteps; s++ {
		_, _ = gate.CompleteStep(ctx, "alice", s)
	}
	result, _ := NewCompleteStepTool(gate, alice).Handle(ctx, newRequest(map[string]interface{}{"step": float64(6)}))
	if text := getResultText(result); !strings.Contains(text, "puzzle master") || !strings.Contains(text, "6/6") {
		t.Errorf("unexpected text:\n%s", text)
	}
}

// --- ResetTool ---

func TestResetTool_RequiresConfirm(t *testing.T) {
	gate := newTestGate()
	_, _ = gate.CompleteStep(context.Background(), "alice", 1)
	result, _ := NewResetTool(gate, alice).Handle(context.Background(), newRequest(map[string]interface{}{"confirm": false}))
	if !isErrorResult(result) {
		t.Fatal("expected refusal without confirm")
	}
	p, _ := gate.GetProgress(context.Background(), "alice")
	if !puzzle.IsStepCompleted(p, 1) {
		t.Error("progress must be untouched")
	}
}

func TestResetTool_Handle_Success(t *testing.T) {
	gate := newTestGate()
	_, _ = gate.CompleteStep(context.Background(), "alice", 1)
	result, _ := NewResetTool(gate, alice).Handle(context.Background(), newRequest(map[string]interface{}{"confirm": true}))
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", getResultText(result))
	}
	p, _ := gate.GetProgress(context.Background(), "alice")
	if p.CompletedCount() != 0 {
		t.Error("progress not cleared")
	}
}

func TestResetTool_Handle_StoreDown(t *testing.T) {
	result, _ := NewResetTool(brokenGate{}, alice).Handle(context.Background(), newRequest(map[string]interface{}{"confirm": true}))
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "unchanged") {
		t.Errorf("result = %s", getResultText(result))
	}
}

// --- CheckAccessTool ---

func TestCheckAccessTool_Handle(t *testing.T) {
	gate := newTestGate()
	tool := NewCheckAccessTool(gate, alice)
	ctx := context.Background()

	result, _ := tool.Handle(ctx, newRequest(map[string]interface{}{"step": float64(1)}))
	if isErrorResult(result) || !strings.Contains(getResultText(result), "Hidden in Plain Sight") {
		t.Errorf("step 1: %s", getResultText(result))
	}

	result, _ = tool.Handle(ctx, newRequest(map[string]interface{}{"step": float64(2)}))
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "locked") {
		t.Errorf("step 2: %s", getResultText(result))
	}

	_, _ = gate.CompleteStep(ctx, "alice", 1)
	result, _ = tool.Handle(ctx, newRequest(map[string]interface{}{"step": float64(1)}))
	if !strings.Contains(getResultText(result), "completed") {
		t.Errorf("replay: %s", getResultText(result))
	}
}

func TestCheckAccessTool_Handle_NoUser(t *testing.T) {
	tool := NewCheckAccessTool(newTestGate(), identity.Static(""))
	result, _ := tool.Handle(context.Background(), newRequest(map[string]interface{}{"step": float64(1)}))
	if !isErrorResult(result) || !strings.Contains(getResultText(result), "No authenticated user") {
		t.Errorf("result = %s", getResultText(result))
	}
}

func TestCheckAccessTool_Handle_ContextUser(t *testing.T) {
	gate := newTestGate()
	_, _ = gate.CompleteStep(context.Background(), "bob", 1)
	ctx := identity.WithUser(context.Background(), "bob")
	result, _ := NewCheckAccessTool(gate, alice).Handle(ctx, newRequest(map[string]interface{}{"step": float64(2)}))
	if isErrorResult(result) {
		t.Errorf("bob has step 1 done: %s", getResultText(result))
	}
}
