// Package tictactoe implements the 3x3 game, its minimax opponent and a
// registry of in-progress games.
//
// The human plays X and always moves first; the computer plays O. Scores
// are computed from O's point of view.
package tictactoe

import (
	"errors"
	"fmt"
	"strings"
)

// Mark is the content of a cell.
type Mark string

const (
	Empty    Mark = ""
	Player   Mark = "X"
	Opponent Mark = "O"
)

// Other returns the opposing mark.
func (m Mark) Other() Mark {
	switch m {
	case Player:
		return Opponent
	case Opponent:
		return Player
	}
	return Empty
}

// Board is the 3x3 grid in row-major order, cells 0..8.
type Board [9]Mark

// ErrInvalidBoard is returned by ParseBoard for malformed input.
var ErrInvalidBoard = errors.New("invalid board")

// ParseBoard reads a 9-character board. X and O are marks; '.', '_', '-'
// and ' ' are empty. Case is ignored.
func ParseBoard(s string) (Board, error) {
	var b Board
	if len(s) != len(b) {
		return b, fmt.Errorf("%w: want %d cells, got %d", ErrInvalidBoard, len(b), len(s))
	}
	for i, c := range strings.ToUpper(s) {
		switch c {
		case 'X':
			b[i] = Player
		case 'O':
			b[i] = Opponent
		case '.', '_', '-', ' ':
			b[i] = Empty
		default:
			return b, fmt.Errorf("%w: unexpected %q at cell %d", ErrInvalidBoard, c, i)
		}
	}
	return b, nil
}

// String renders the board in the form ParseBoard accepts.
func (b Board) String() string {
	var sb strings.Builder
	for _, m := range b {
		if m == Empty {
			sb.WriteByte('.')
		} else {
			sb.WriteString(string(m))
		}
	}
	return sb.String()
}

// Grid renders the board as three rows for display.
func (b Board) Grid() string {
	s := b.String()
	return s[0:3] + "\n" + s[3:6] + "\n" + s[6:9]
}

// Line is a winning triple of cell indexes.
type Line [3]int

var lines = [8]Line{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

var lineNames = map[Line]string{
	{0, 1, 2}: "row-1",
	{3, 4, 5}: "row-2",
	{6, 7, 8}: "row-3",
	{0, 3, 6}: "col-1",
	{1, 4, 7}: "col-2",
	{2, 5, 8}: "col-3",
	{0, 4, 8}: "diagonal-1",
	{2, 4, 6}: "diagonal-2",
}

// Lines returns the eight winning triples.
func Lines() [8]Line { return lines }

// Name is the line's position, e.g. "row-2" or "diagonal-1".
func (l Line) Name() string {
	return lineNames[l]
}

// WinningLine returns the first fully owned triple, if any.
func WinningLine(b Board) (Line, bool) {
	for _, l := range lines {
		if m := b[l[0]]; m != Empty && m == b[l[1]] && m == b[l[2]] {
			return l, true
		}
	}
	return Line{}, false
}

// CheckWinner returns the mark owning a full triple, or Empty.
func CheckWinner(b Board) Mark {
	if l, ok := WinningLine(b); ok {
		return b[l[0]]
	}
	return Empty
}

// IsBoardFull reports whether no cell is empty.
func IsBoardFull(b Board) bool {
	for _, m := range b {
		if m == Empty {
			return false
		}
	}
	return true
}

// EmptyCells lists the empty cell indexes in ascending order.
func EmptyCells(b Board) []int {
	cells := make([]int, 0, len(b))
	for i, m := range b {
		if m == Empty {
			cells = append(cells, i)
		}
	}
	return cells
}
