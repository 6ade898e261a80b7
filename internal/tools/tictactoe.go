package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/forthefews/fews/internal/identity"
	"github.com/forthefews/fews/internal/tictactoe"
)

// GameRegistry is what the tic-tac-toe tools need from tictactoe.Sessions.
type GameRegistry interface {
	Create(owner string, d tictactoe.Difficulty) tictactoe.Session
	Get(owner, id string) (tictactoe.Session, error)
	Do(owner, id string, fn func(*tictactoe.Game) error) (tictactoe.Session, error)
}

func difficultyNames() []string {
	var names []string
	for _, d := range tictactoe.Difficulties() {
		names = append(names, string(d))
	}
	return names
}

// gameError turns registry and rule errors into tool results.
func gameError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, tictactoe.ErrSessionNotFound):
		return mcp.NewToolResultError("Game not found. It may have expired; start a new one with `tictactoe_new`.")
	case errors.Is(err, tictactoe.ErrGameOver):
		return mcp.NewToolResultError("This game is over. Use `tictactoe_reset` to play again.")
	case errors.Is(err, tictactoe.ErrCellOccupied), errors.Is(err, tictactoe.ErrCellOutOfRange):
		return mcp.NewToolResultError(fmt.Sprintf("Illegal move: %v. Pick an empty cell from 0 to 8.", err))
	}
	return mcp.NewToolResultError(err.Error())
}

// --- tictactoe_new ---

// NewGameTool handles the tictactoe_new MCP tool.
type NewGameTool struct {
	games GameRegistry
	ids   identity.Provider
}

// NewNewGameTool creates a NewGameTool.
func NewNewGameTool(games GameRegistry, ids identity.Provider) *NewGameTool {
	return &NewGameTool{games: games, ids: ids}
}

// Definition returns the MCP tool definition for registration.
func (t *NewGameTool) Definition() mcp.Tool {
	return mcp.NewTool("tictactoe_new",
		mcp.WithDescription(
			"Start a tic-tac-toe game against the computer. The user plays X and moves first. "+
				"Difficulty sets how often the computer plays a random move instead of the best one: "+
				"easy 80%, medium 40%, hard never.",
		),
		mcp.WithString("difficulty",
			mcp.Description("Computer strength (default: medium)"),
			mcp.Enum(difficultyNames()...),
		),
	)
}

// Handle processes the tictactoe_new tool call.
func (t *NewGameTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := tictactoe.ParseDifficulty(req.GetString("difficulty", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	owner, denied := resolveUser(ctx, t.ids)
	if denied != nil {
		return denied, nil
	}
	return mcp.NewToolResultText(renderGame(t.games.Create(owner, d))), nil
}

// --- tictactoe_move ---

// MoveTool handles the tictactoe_move MCP tool: the user's move followed
// by the computer's reply.
type MoveTool struct {
	games GameRegistry
	ai    *tictactoe.AI
	ids   identity.Provider
}

// NewMoveTool creates a MoveTool.
func NewMoveTool(games GameRegistry, ai *tictactoe.AI, ids identity.Provider) *MoveTool {
	return &MoveTool{games: games, ai: ai, ids: ids}
}

// Definition returns the MCP tool definition for registration.
func (t *MoveTool) Definition() mcp.Tool {
	return mcp.NewTool("tictactoe_move",
		mcp.WithDescription(
			"Place the user's X on a cell, then let the computer answer with O. "+
				"Cells are numbered 0-8 left to right, top to bottom.",
		),
		mcp.WithString("game_id",
			mcp.Required(),
			mcp.Description("Game ID returned by tictactoe_new"),
		),
		mcp.WithNumber("cell",
			mcp.Required(),
			mcp.Description("Cell index, 0 to 8"),
		),
	)
}

// Handle processes the tictactoe_move tool call.
func (t *MoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("game_id", "")
	if id == "" {
		return mcp.NewToolResultError("game_id is required"), nil
	}
	cell := intArg(req, "cell", -1)
	owner, denied := resolveUser(ctx, t.ids)
	if denied != nil {
		return denied, nil
	}

	reply := -1
	sess, err := t.games.Do(owner, id, func(g *tictactoe.Game) error {
		if err := g.Play(cell); err != nil {
			return err
		}
		if g.Over() {
			return nil
		}
		var err error
		reply, err = g.RespondAI(t.ai)
		return err
	})
	if err != nil {
		return gameError(err), nil
	}

	text := renderGame(sess)
	if reply >= 0 {
		text = fmt.Sprintf("You played %d. The computer played %d.\n\n", cell, reply) + text
	}
	return mcp.NewToolResultText(text), nil
}

// --- tictactoe_state ---

// StateTool handles the tictactoe_state MCP tool.
type StateTool struct {
	games GameRegistry
	ids   identity.Provider
}

// NewStateTool creates a StateTool.
func NewStateTool(games GameRegistry, ids identity.Provider) *StateTool {
	return &StateTool{games: games, ids: ids}
}

// Definition returns the MCP tool definition for registration.
func (t *StateTool) Definition() mcp.Tool {
	return mcp.NewTool("tictactoe_state",
		mcp.WithDescription("Show the board and status of a tic-tac-toe game."),
		mcp.WithString("game_id",
			mcp.Required(),
			mcp.Description("Game ID returned by tictactoe_new"),
		),
	)
}

// Handle processes the tictactoe_state tool call.
func (t *StateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, denied := resolveUser(ctx, t.ids)
	if denied != nil {
		return denied, nil
	}
	sess, err := t.games.Get(owner, req.GetString("game_id", ""))
	if err != nil {
		return gameError(err), nil
	}
	return mcp.NewToolResultText(renderGame(sess)), nil
}

// --- tictactoe_reset ---

// ResetGameTool handles the tictactoe_reset MCP tool.
type ResetGameTool struct {
	games GameRegistry
	ids   identity.Provider
}

// NewResetGameTool creates a ResetGameTool.
func NewResetGameTool(games GameRegistry, ids identity.Provider) *ResetGameTool {
	return &ResetGameTool{games: games, ids: ids}
}

// Definition returns the MCP tool definition for registration.
func (t *ResetGameTool) Definition() mcp.Tool {
	return mcp.NewTool("tictactoe_reset",
		mcp.WithDescription("Clear the board of a tic-tac-toe game and start over with the same difficulty, or a new one."),
		mcp.WithString("game_id",
			mcp.Required(),
			mcp.Description("Game ID returned by tictactoe_new"),
		),
		mcp.WithString("difficulty",
			mcp.Description("Optional new difficulty"),
			mcp.Enum(difficultyNames()...),
		),
	)
}

// Handle processes the tictactoe_reset tool call.
func (t *ResetGameTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var d tictactoe.Difficulty
	if raw := req.GetString("difficulty", ""); raw != "" {
		var err error
		if d, err = tictactoe.ParseDifficulty(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	owner, denied := resolveUser(ctx, t.ids)
	if denied != nil {
		return denied, nil
	}
	sess, err := t.games.Do(owner, req.GetString("game_id", ""), func(g *tictactoe.Game) error {
		if d != "" {
			g.Difficulty = d
		}
		g.Reset()
		return nil
	})
	if err != nil {
		return gameError(err), nil
	}
	return mcp.NewToolResultText(renderGame(sess)), nil
}

// --- tictactoe_best_move ---

// BestMoveTool handles the tictactoe_best_move MCP tool. It analyses a
// board without touching any game.
type BestMoveTool struct{}

// NewBestMoveTool creates a BestMoveTool.
func NewBestMoveTool() *BestMoveTool {
	return &BestMoveTool{}
}

// Definition returns the MCP tool definition for registration.
func (t *BestMoveTool) Definition() mcp.Tool {
	return mcp.NewTool("tictactoe_best_move",
		mcp.WithDescription(
			"Compute O's optimal move on any board with minimax. The board is 9 characters, "+
				"row by row, using X, O and '.' for empty (e.g. \"XX.O.....\").",
		),
		mcp.WithString("board",
			mcp.Required(),
			mcp.Description("9-character board"),
		),
	)
}

// Handle processes the tictactoe_best_move tool call.
func (t *BestMoveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	b, err := tictactoe.ParseBoard(req.GetString("board", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if w := tictactoe.CheckWinner(b); w != tictactoe.Empty {
		l, _ := tictactoe.WinningLine(b)
		return mcp.NewToolResultText(fmt.Sprintf("The game is already over: %s wins on %s.\n\n%s", w, l.Name(), renderBoard(b))), nil
	}
	move := tictactoe.BestMove(b)
	if move < 0 {
		return mcp.NewToolResultText("The board is full: it's a draw.\n\n" + renderBoard(b)), nil
	}
	score := tictactoe.Minimax(placed(b, move), 0, false)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Best move for O: **%d** (%s).\n\n%s", move, outlook(score), renderBoard(b))), nil
}

func placed(b tictactoe.Board, cell int) tictactoe.Board {
	b[cell] = tictactoe.Opponent
	return b
}

func outlook(score int) string {
	switch {
	case score > 0:
		return "O forces a win"
	case score < 0:
		return "X can still win"
	}
	return "best play leads to a draw"
}
