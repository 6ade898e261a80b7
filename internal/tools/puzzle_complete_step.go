package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/identity"
	"github.com/forthefews/fews/internal/puzzle"
)

// CompleteStepTool handles the puzzle_complete_step MCP tool.
type CompleteStepTool struct {
	gate ProgressService
	ids  identity.Provider
}

// NewCompleteStepTool creates a CompleteStepTool.
func NewCompleteStepTool(gate ProgressService, ids identity.Provider) *CompleteStepTool {
	return &CompleteStepTool{gate: gate, ids: ids}
}

// Definition returns the MCP tool definition for registration.
func (t *CompleteStepTool) Definition() mcp.Tool {
	return mcp.NewTool("puzzle_complete_step",
		mcp.WithDescription(
			"Mark a puzzle step as completed once the user has solved it. "+
				"Completing a step unlocks the next one. Completing an already completed "+
				"step is harmless. A locked step cannot be completed.",
		),
		mcp.WithNumber("step",
			mcp.Required(),
			mcp.Description("Step number, 1 to 6"),
		),
	)
}

// Handle processes the puzzle_complete_step tool call.
func (t *CompleteStepTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	step := intArg(req, "step", 0)
	if err := puzzle.ValidateStep(step); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid step %d: choose a step from 1 to %d.", step, puzzle.TotalSteps)), nil
	}

	userID, denied := resolveUser(ctx, t.ids)
	if denied != nil {
		return denied, nil
	}

	ok, err := t.gate.CompleteStep(ctx, userID, step)
	if !ok {
		if errors.Is(err, puzzle.ErrStepLocked) {
			return mcp.NewToolResultError(fmt.Sprintf(
				"Step %d is locked. Complete step %d first.", step, step-1)), nil
		}
		return storeFailure(fmt.Sprintf("save step %d", step), err), nil
	}

	info, _ := puzzle.Step(step)
	var sb strings.Builder
	fmt.Fprintf(&sb, "## 🎉 %s\n\n%s\n\n", info.CompletionTitle, info.CompletionMessage)

	p, err := t.gate.GetProgress(ctx, userID)
	if err != nil {
		// The completion itself succeeded; only the summary is missing.
		fmt.Fprintf(&sb, "Step %d is completed.\n", step)
		return mcp.NewToolResultText(sb.String()), nil
	}
	switch {
	case p.AllCompleted():
		sb.WriteString("All steps completed. You are a true puzzle master!\n")
	case step < puzzle.TotalSteps && puzzle.IsStepUnlocked(p, step+1):
		next, _ := puzzle.Step(step + 1)
		fmt.Fprintf(&sb, "Step %d (%s) is now unlocked: %s\n", next.ID, next.Title, next.Description)
	}
	fmt.Fprintf(&sb, "\nProgress: %d/%d steps completed.\n", p.CompletedCount(), puzzle.TotalSteps)
	return mcp.NewToolResultText(sb.String()), nil
}
