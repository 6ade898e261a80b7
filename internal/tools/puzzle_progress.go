package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/identity"
)

// ProgressTool handles the puzzle_progress MCP tool.
// It shows which steps are completed, unlocked and locked.
type ProgressTool struct {
	gate ProgressService
	ids  identity.Provider
}

// NewProgressTool creates a ProgressTool.
func NewProgressTool(gate ProgressService, ids identity.Provider) *ProgressTool {
	return &ProgressTool{gate: gate, ids: ids}
}

// Definition returns the MCP tool definition for registration.
func (t *ProgressTool) Definition() mcp.Tool {
	return mcp.NewTool("puzzle_progress",
		mcp.WithDescription(
			"Show the user's puzzle challenge progress: completed steps out of 6, "+
				"the current step, and whether each step is completed, unlocked or locked. "+
				"A step unlocks once the step before it is completed.",
		),
	)
}

// Handle processes the puzzle_progress tool call.
func (t *ProgressTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, denied := resolveUser(ctx, t.ids)
	if denied != nil {
		return denied, nil
	}

	p, err := t.gate.GetProgress(ctx, userID)
	if err != nil {
		return storeFailure("load your progress", err), nil
	}
	return mcp.NewToolResultText(renderProgress(p)), nil
}
