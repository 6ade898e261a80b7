package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/identity"
	"github.com/forthefews/fews/internal/puzzle"
)

// CheckAccessTool handles the puzzle_check_access MCP tool: the route
// guard a client consults before showing a step.
type CheckAccessTool struct {
	gate ProgressService
	ids  identity.Provider
}

// NewCheckAccessTool creates a CheckAccessTool.
func NewCheckAccessTool(gate ProgressService, ids identity.Provider) *CheckAccessTool {
	return &CheckAccessTool{gate: gate, ids: ids}
}

// Definition returns the MCP tool definition for registration.
func (t *CheckAccessTool) Definition() mcp.Tool {
	return mcp.NewTool("puzzle_check_access",
		mcp.WithDescription(
			"Check whether the user may open a puzzle step. Returns the step's title and "+
				"goal when it is unlocked, or explains which step must be completed first.",
		),
		mcp.WithNumber("step",
			mcp.Required(),
			mcp.Description("Step number, 1 to 6"),
		),
	)
}

// Handle processes the puzzle_check_access tool call.
func (t *CheckAccessTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	step := intArg(req, "step", 0)
	userID, _ := identity.Resolve(ctx, t.ids, "")

	p, err := t.gate.CheckAccess(ctx, userID, step)
	switch {
	case errors.Is(err, puzzle.ErrUnauthenticated):
		return mcp.NewToolResultError("No authenticated user. Sign in to play the puzzle challenge."), nil
	case errors.Is(err, puzzle.ErrInvalidStep):
		return mcp.NewToolResultError(fmt.Sprintf("Invalid step %d: choose a step from 1 to %d.", step, puzzle.TotalSteps)), nil
	case errors.Is(err, puzzle.ErrStepLocked):
		return mcp.NewToolResultError(fmt.Sprintf(
			"🔒 Step %d is locked. Complete step %d first (currently on step %d).", step, step-1, p.CurrentStep)), nil
	case err != nil:
		return storeFailure("check access", err), nil
	}

	info, _ := puzzle.Step(step)
	state := "unlocked"
	if puzzle.IsStepCompleted(p, step) {
		state = "completed, replay any time"
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"## Step %d: %s\n\n%s\n\nAccess granted (%s).\n", info.ID, info.Title, info.Description, state)), nil
}
