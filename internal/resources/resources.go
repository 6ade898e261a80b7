// Package resources implements MCP resource handlers.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (fews://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/identity"
	"github.com/forthefews/fews/internal/puzzle"
)

// ProgressURI addresses the caller's puzzle progress.
const ProgressURI = "fews://puzzle/progress"

// ProgressReader is the read side of a puzzle.Gate.
type ProgressReader interface {
	GetProgress(ctx context.Context, userID string) (puzzle.ProgressRecord, error)
}

// Handler manages resource endpoints.
type Handler struct {
	gate ProgressReader
	ids  identity.Provider
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(gate ProgressReader, ids identity.Provider) *Handler {
	return &Handler{gate: gate, ids: ids}
}

// ProgressDocument is the JSON body of the progress resource.
type ProgressDocument struct {
	Progress  puzzle.ProgressRecord `json:"progress"`
	Completed int                   `json:"completed"`
	Total     int                   `json:"total"`
	Steps     []puzzle.StepStatus   `json:"steps"`
}

// ProgressResource returns the MCP resource definition for puzzle progress.
func (h *Handler) ProgressResource() mcp.Resource {
	return mcp.NewResource(
		ProgressURI,
		"Puzzle Progress",
		mcp.WithResourceDescription("Completed steps, current step and per-step state for the current user"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleProgress returns the caller's progress as JSON.
func (h *Handler) HandleProgress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	userID, err := identity.Resolve(ctx, h.ids, "")
	if err != nil {
		return errorResource(req.Params.URI, "no authenticated user"), nil
	}

	p, err := h.gate.GetProgress(ctx, userID)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(ProgressDocument{
		Progress:  p,
		Completed: p.CompletedCount(),
		Total:     puzzle.TotalSteps,
		Steps:     puzzle.Overview(p),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling progress: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
