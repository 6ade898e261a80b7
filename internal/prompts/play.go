// Package prompts implements MCP prompt handlers.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to run a sequence of tool calls. Unlike tools, which the
// AI calls, prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/tictactoe"
)

// PlayPrompt handles the fews-play MCP prompt. It starts a tic-tac-toe game
// and has the AI act as the board for the user.
type PlayPrompt struct{}

// NewPlayPrompt creates a PlayPrompt.
func NewPlayPrompt() *PlayPrompt {
	return &PlayPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *PlayPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("fews-play",
		mcp.WithPromptDescription("Play a game of tic-tac-toe against the computer."),
		mcp.WithArgument("difficulty",
			mcp.ArgumentDescription("easy, medium or hard. Default: medium"),
		),
	)
}

// Handle processes the fews-play prompt request.
func (p *PlayPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var raw string
	if args := req.Params.Arguments; args != nil {
		raw = args["difficulty"]
	}
	d, err := tictactoe.ParseDifficulty(raw)
	if err != nil {
		return nil, fmt.Errorf("fews-play: %w", err)
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Tic-tac-toe (%s)", d),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Let's play tic-tac-toe on %s difficulty. I am X and I move first.\n\n"+
						"1. Run `tictactoe_new` with difficulty='%s' and show me the board\n"+
						"2. Each time I name a cell (0-8), run `tictactoe_move` with it and show the result\n"+
						"3. When the game ends, tell me who won and offer a rematch with `tictactoe_reset`\n\n"+
						"Don't suggest moves unless I ask. If I ask for a hint, use `tictactoe_best_move`.",
					d, d,
				)),
			},
		},
	}, nil
}
