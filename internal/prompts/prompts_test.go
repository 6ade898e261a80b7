package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func promptText(t *testing.T, result *mcp.GetPromptResult) string {
	t.Helper()
	if len(result.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(result.Messages))
	}
	tc, ok := result.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Messages[0].Content)
	}
	return tc.Text
}

// --- StatusPrompt ---

func TestStatusPrompt_Definition(t *testing.T) {
	if got := NewStatusPrompt().Definition().Name; got != "fews-status" {
		t.Errorf("name = %q", got)
	}
}

func TestStatusPrompt_Handle(t *testing.T) {
	result, err := NewStatusPrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	text := promptText(t, result)
	for _, want := range []string{"puzzle_progress", "puzzle_check_access"} {
		if !strings.Contains(text, want) {
			t.Errorf("prompt should mention %s", want)
		}
	}
}

// --- PlayPrompt ---

func TestPlayPrompt_Handle_DefaultDifficulty(t *testing.T) {
	result, err := NewPlayPrompt().Handle(context.Background(), mcp.GetPromptRequest{})
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !strings.Contains(promptText(t, result), "difficulty='medium'") {
		t.Error("expected medium by default")
	}
}

func TestPlayPrompt_Handle_Hard(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"difficulty": "HARD"}
	result, err := NewPlayPrompt().Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.Description != "Tic-tac-toe (hard)" {
		t.Errorf("description = %q", result.Description)
	}
}

func TestPlayPrompt_Handle_BadDifficulty(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"difficulty": "nightmare"}
	if _, err := NewPlayPrompt().Handle(context.Background(), req); err == nil {
		t.Error("expected error")
	}
}
