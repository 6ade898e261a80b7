package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the fews-status MCP prompt.
// It instructs the AI to read and present the user's puzzle progress.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("fews-status",
		mcp.WithPromptDescription(
			"Check your puzzle challenge progress: which steps are done, "+
				"which one is next, and what it asks of you.",
		),
	)
}

// Handle processes the fews-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Puzzle Progress",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Show me where I am in the puzzle challenge.\n\n" +
						"1. Run `puzzle_progress` and summarize it: completed count, current step, and what's still locked\n" +
						"2. Run `puzzle_check_access` for the current step and describe its goal\n" +
						"3. If every step is completed, congratulate me and mention `puzzle_reset` in case I want to replay\n\n" +
						"Keep it short. Never mark a step completed unless I've actually solved it.",
				),
			},
		},
	}, nil
}
