package tools

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/forthefews/fews/internal/puzzle"
	"github.com/forthefews/fews/internal/tictactoe"
)

func stateMarker(s puzzle.StepState) string {
	switch s {
	case puzzle.StepCompleted:
		return "✅"
	case puzzle.StepUnlocked:
		return "🔓"
	}
	return "🔒"
}

// renderProgress formats a record as the progress overview.
func renderProgress(p puzzle.ProgressRecord) string {
	var sb strings.Builder
	sb.WriteString("# Puzzle Progress\n\n")
	fmt.Fprintf(&sb, "**User:** `%s`\n", p.UserID)
	fmt.Fprintf(&sb, "**Completed:** %d/%d\n", p.CompletedCount(), puzzle.TotalSteps)
	if info, err := puzzle.Step(p.CurrentStep); err == nil {
		fmt.Fprintf(&sb, "**Current step:** %d (%s)\n", info.ID, info.Title)
	}
	updated := "never"
	if !p.LastUpdated.IsZero() {
		updated = humanize.RelTime(p.LastUpdated, timeNow(), "ago", "from now")
	}
	fmt.Fprintf(&sb, "**Updated:** %s\n\n", updated)

	sb.WriteString("| Step | Title | State |\n")
	sb.WriteString("|------|-------|-------|\n")
	for _, s := range puzzle.Overview(p) {
		fmt.Fprintf(&sb, "| %s %d | %s | %s |\n", stateMarker(s.State), s.ID, s.Title, s.Label)
	}
	if p.AllCompleted() {
		sb.WriteString("\nAll steps completed. You are a true puzzle master!\n")
	}
	return sb.String()
}

// renderBoard draws the grid with empty cells numbered so they can be
// picked by index.
func renderBoard(b tictactoe.Board) string {
	var sb strings.Builder
	sb.WriteString("```\n")
	for row := 0; row < 3; row++ {
		if row > 0 {
			sb.WriteString("---+---+---\n")
		}
		for col := 0; col < 3; col++ {
			i := row*3 + col
			if col > 0 {
				sb.WriteString("|")
			}
			cell := string(b[i])
			if b[i] == tictactoe.Empty {
				cell = fmt.Sprint(i)
			}
			fmt.Fprintf(&sb, " %s ", cell)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")
	return sb.String()
}

func describeStatus(g tictactoe.Game) string {
	switch g.Status {
	case tictactoe.StatusWon:
		who := "You win!"
		if g.Winner == tictactoe.Opponent {
			who = "The computer wins."
		}
		return fmt.Sprintf("%s (%s wins on %s)", who, g.Winner, g.Line)
	case tictactoe.StatusDraw:
		return "It's a draw."
	}
	return fmt.Sprintf("playing, %s to move", g.Turn)
}

// renderGame formats a game session.
func renderGame(s tictactoe.Session) string {
	var sb strings.Builder
	sb.WriteString("# Tic-Tac-Toe\n\n")
	fmt.Fprintf(&sb, "**Game:** `%s`\n", s.ID)
	fmt.Fprintf(&sb, "**Difficulty:** %s\n", s.Game.Difficulty)
	fmt.Fprintf(&sb, "**Status:** %s\n\n", describeStatus(s.Game))
	sb.WriteString(renderBoard(s.Game.Board))
	if !s.Game.Over() {
		sb.WriteString("\nYou are X. Pick an empty cell (0-8) with `tictactoe_move`.\n")
	}
	return sb.String()
}
