// Package tools implements the MCP tool handlers for the puzzle challenge
// and the tic-tac-toe game.
//
// Each tool is a struct that receives its dependencies through its
// constructor and exposes Definition() for registration and Handle() for
// calls. User-facing failures (locked step, occupied cell, store outage)
// come back as tool error results so the model can relay them; returned Go
// errors are reserved for faults the host should see.
package tools

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/identity"
	"github.com/forthefews/fews/internal/puzzle"
)

// ProgressService is what the puzzle tools need from a puzzle.Gate.
type ProgressService interface {
	GetProgress(ctx context.Context, userID string) (puzzle.ProgressRecord, error)
	CompleteStep(ctx context.Context, userID string, step int) (bool, error)
	ResetProgress(ctx context.Context, userID string) (*puzzle.ProgressRecord, error)
	CheckAccess(ctx context.Context, userID string, step int) (puzzle.ProgressRecord, error)
}

var timeNow = time.Now

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// resolveUser returns the caller's id, or a tool error result when there
// is no authenticated user.
func resolveUser(ctx context.Context, ids identity.Provider) (string, *mcp.CallToolResult) {
	userID, err := identity.Resolve(ctx, ids, "")
	if err != nil {
		return "", mcp.NewToolResultError("No authenticated user, so no puzzle progress is available. Configure FEWS_USER_ID or sign in.")
	}
	return userID, nil
}

// storeFailure renders a store outage as a retryable tool error.
func storeFailure(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, puzzle.ErrStore) {
		return mcp.NewToolResultError("Could not " + action + " right now. Please try again.")
	}
	return mcp.NewToolResultError("Could not " + action + ": " + err.Error())
}
