// Package server wires all components and creates the MCP server instance.
//
// This is the composition root: it opens the configured progress store,
// builds the gate, the game registry and the identity provider, and injects
// them into the tools, prompts and resources that depend on abstractions.
// No business logic lives here, only wiring.
package server

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/forthefews/fews/internal/config"
	"github.com/forthefews/fews/internal/identity"
	"github.com/forthefews/fews/internal/prompts"
	"github.com/forthefews/fews/internal/puzzle"
	"github.com/forthefews/fews/internal/puzzle/boltstore"
	"github.com/forthefews/fews/internal/puzzle/filestore"
	"github.com/forthefews/fews/internal/puzzle/sqlitestore"
	"github.com/forthefews/fews/internal/resources"
	"github.com/forthefews/fews/internal/tictactoe"
	"github.com/forthefews/fews/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// BoltFile is the bbolt database name inside the data directory.
const BoltFile = "progress.bolt"

// brokerBuffer is how many undelivered records a slow subscriber may lag.
const brokerBuffer = 8

// Components are the shared dependencies every driver needs.
type Components struct {
	Gate     *puzzle.Gate
	Broker   *puzzle.Broker
	Games    *tictactoe.Sessions
	AI       *tictactoe.AI
	Identity identity.Config
	Logger   *slog.Logger
}

// Build resolves every dependency from cfg. The returned cleanup function
// closes the progress store and must be called on shutdown. It is always
// non-nil and safe to call even when Build fails.
func Build(cfg config.Config, logger *slog.Logger) (*Components, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, noop, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	ids, err := identity.LoadConfigFromEnv(nil)
	if err != nil {
		return nil, noop, fmt.Errorf("loading identity config: %w", err)
	}
	if !ids.Authenticated() {
		logger.Warn("authentication disabled, every caller acts as one user",
			"user", ids.UserID, "hint", "set FEWS_AUTH_SECRET to require bearer tokens")
	}

	store, cleanup, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, noop, fmt.Errorf("opening %s progress store: %w", cfg.Store, err)
	}

	broker := puzzle.NewBroker(brokerBuffer)
	opts := []puzzle.Option{puzzle.WithPublisher(broker), puzzle.WithLogger(logger)}
	if cfg.TrustCaller {
		logger.Warn("step gating disabled, any step can be completed out of order")
		opts = append(opts, puzzle.WithTrustedCaller())
	}

	return &Components{
		Gate:     puzzle.NewGate(store, opts...),
		Broker:   broker,
		Games:    tictactoe.NewSessions(),
		AI:       tictactoe.NewSeededAI(),
		Identity: ids,
		Logger:   logger,
	}, cleanup, nil
}

// OpenStore opens the progress store selected by cfg.Store.
func OpenStore(cfg config.Config, logger *slog.Logger) (puzzle.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return puzzle.NewMemStore(), noop, nil

	case config.StoreFile:
		fs, err := filestore.New(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil

	case config.StoreSQLite:
		s, err := sqlitestore.New(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return s, closer(s.Close, "sqlite", logger), nil

	case config.StoreBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, noop, fmt.Errorf("creating data dir: %w", err)
		}
		s, err := boltstore.Open(filepath.Join(cfg.DataDir, BoltFile))
		if err != nil {
			return nil, noop, err
		}
		return s, closer(s.Close, "bolt", logger), nil
	}
	return nil, noop, fmt.Errorf("unknown store %q", cfg.Store)
}

// New creates the MCP server with all tools, prompts and resources
// registered.
//
// Over stdio there is no credential to verify, so the MCP surface always
// acts as the configured local user.
func New(c *Components) *server.MCPServer {
	s := server.NewMCPServer(
		"fews",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	ids := identity.Static(c.Identity.UserID)

	// --- Puzzle tools ---

	progressTool := tools.NewProgressTool(c.Gate, ids)
	s.AddTool(progressTool.Definition(), progressTool.Handle)

	completeTool := tools.NewCompleteStepTool(c.Gate, ids)
	s.AddTool(completeTool.Definition(), completeTool.Handle)

	resetTool := tools.NewResetTool(c.Gate, ids)
	s.AddTool(resetTool.Definition(), resetTool.Handle)

	accessTool := tools.NewCheckAccessTool(c.Gate, ids)
	s.AddTool(accessTool.Definition(), accessTool.Handle)

	// --- Tic-tac-toe tools ---

	newGame := tools.NewNewGameTool(c.Games, ids)
	s.AddTool(newGame.Definition(), newGame.Handle)

	moveTool := tools.NewMoveTool(c.Games, c.AI, ids)
	s.AddTool(moveTool.Definition(), moveTool.Handle)

	stateTool := tools.NewStateTool(c.Games, ids)
	s.AddTool(stateTool.Definition(), stateTool.Handle)

	resetGame := tools.NewResetGameTool(c.Games, ids)
	s.AddTool(resetGame.Definition(), resetGame.Handle)

	bestMove := tools.NewBestMoveTool()
	s.AddTool(bestMove.Definition(), bestMove.Handle)

	// --- Prompts ---

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	playPrompt := prompts.NewPlayPrompt()
	s.AddPrompt(playPrompt.Definition(), playPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(c.Gate, ids)
	s.AddResource(resourceHandler.ProgressResource(), resourceHandler.HandleProgress)

	return s
}

// noop is the cleanup for stores that hold nothing open.
func noop() {}

func closer(closeFn func() error, name string, logger *slog.Logger) func() {
	return func() {
		if err := closeFn(); err != nil {
			logger.Warn("progress store close", "store", name, "err", err)
		}
	}
}

// serverInstructions tells the AI how to use fews.
func serverInstructions() string {
	return `You have access to fews, a puzzle challenge and a tic-tac-toe opponent.

## Puzzle challenge

Six steps must be solved in order. Step 1 is always open; each completed
step unlocks the next. Completed steps stay open for replay.

- puzzle_progress: show which steps are completed, unlocked or locked
- puzzle_check_access: check a step is open before presenting it
- puzzle_complete_step: record a step once the user has actually solved it
- puzzle_reset: wipe all progress. Ask the user first and pass confirm=true

Never complete a step on the user's behalf, and never skip ahead: a locked
step is rejected.

## Tic-tac-toe

The user plays X and moves first; the computer plays O.

- tictactoe_new: start a game (difficulty easy, medium or hard)
- tictactoe_move: play the user's cell (0-8); the computer answers in the same call
- tictactoe_state: show a game
- tictactoe_reset: clear the board for a rematch
- tictactoe_best_move: analyse any board string for O's optimal move

Cells are numbered 0-8, left to right, top to bottom.`
}
