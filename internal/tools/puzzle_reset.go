package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/identity"
)

// ResetTool handles the puzzle_reset MCP tool. It wipes all progress, so
// it requires an explicit confirmation argument.
type ResetTool struct {
	gate ProgressService
	ids  identity.Provider
}

// NewResetTool creates a ResetTool.
func NewResetTool(gate ProgressService, ids identity.Provider) *ResetTool {
	return &ResetTool{gate: gate, ids: ids}
}

// Definition returns the MCP tool definition for registration.
func (t *ResetTool) Definition() mcp.Tool {
	return mcp.NewTool("puzzle_reset",
		mcp.WithDescription(
			"Reset the user's puzzle progress: every completed step is cleared and only "+
				"step 1 stays unlocked. This cannot be undone. Ask the user before calling "+
				"and pass confirm=true.",
		),
		mcp.WithBoolean("confirm",
			mcp.Required(),
			mcp.Description("Must be true to actually reset"),
		),
	)
}

// Handle processes the puzzle_reset tool call.
func (t *ResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !boolArg(req, "confirm", false) {
		return mcp.NewToolResultError("Reset not performed: pass confirm=true once the user has agreed to lose all progress."), nil
	}

	userID, denied := resolveUser(ctx, t.ids)
	if denied != nil {
		return denied, nil
	}

	rec, err := t.gate.ResetProgress(ctx, userID)
	if rec == nil {
		return mcp.NewToolResultError("Reset failed, and your previous progress is unchanged. Please try again. (" + errText(err) + ")"), nil
	}
	return mcp.NewToolResultText("Progress reset. Every step is cleared and step 1 is ready to play.\n\n" + renderProgress(*rec)), nil
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
