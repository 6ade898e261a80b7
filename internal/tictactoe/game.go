package tictactoe

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusDraw    Status = "draw"
)

var (
	ErrGameOver       = errors.New("game is over")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrCellOccupied   = errors.New("cell is occupied")
	ErrCellOutOfRange = errors.New("cell out of range")
)

// Game is one match. The zero value is not usable; call NewGame.
type Game struct {
	Board      Board      `json:"board"`
	Turn       Mark       `json:"turn"`
	Status     Status     `json:"status"`
	Winner     Mark       `json:"winner,omitempty"`
	Line       string     `json:"winning_line,omitempty"`
	Difficulty Difficulty `json:"difficulty"`
	Moves      int        `json:"moves"`
}

// NewGame returns an empty board with X to move.
func NewGame(d Difficulty) *Game {
	if d == "" {
		d = DefaultDifficulty
	}
	return &Game{Board: Board{}, Turn: Player, Status: StatusPlaying, Difficulty: d}
}

// Reset clears the board and returns to the playing state. The difficulty
// is kept.
func (g *Game) Reset() {
	*g = *NewGame(g.Difficulty)
}

// Over reports whether the game reached a terminal state.
func (g *Game) Over() bool {
	return g.Status != StatusPlaying
}

// Play places X at cell.
func (g *Game) Play(cell int) error {
	return g.place(cell, Player)
}

// RespondAI lets ai place O and returns the chosen cell.
func (g *Game) RespondAI(ai *AI) (int, error) {
	if g.Over() {
		return -1, ErrGameOver
	}
	if g.Turn != Opponent {
		return -1, ErrNotYourTurn
	}
	cell := ai.Move(g.Board, g.Difficulty)
	if err := g.place(cell, Opponent); err != nil {
		return -1, err
	}
	return cell, nil
}

func (g *Game) place(cell int, m Mark) error {
	if g.Over() {
		return ErrGameOver
	}
	if g.Turn != m {
		return ErrNotYourTurn
	}
	if cell < 0 || cell >= len(g.Board) {
		return fmt.Errorf("%w: %d", ErrCellOutOfRange, cell)
	}
	if g.Board[cell] != Empty {
		return fmt.Errorf("%w: %d", ErrCellOccupied, cell)
	}

	g.Board[cell] = m
	g.Moves++

	if l, ok := WinningLine(g.Board); ok {
		g.Status = StatusWon
		g.Winner = g.Board[l[0]]
		g.Line = l.Name()
		return nil
	}
	if IsBoardFull(g.Board) {
		g.Status = StatusDraw
		return nil
	}
	g.Turn = m.Other()
	return nil
}
