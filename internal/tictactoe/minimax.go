package tictactoe

import (
	"math"
	"math/rand/v2"
)

// Minimax scores b for the opponent. A win for O scores 10-depth, a win for
// X scores depth-10 and a draw scores 0, so faster wins and slower losses
// are preferred. maximizing means O is to move.
func Minimax(b Board, depth int, maximizing bool) int {
	return minimax(&b, depth, maximizing)
}

// minimax backtracks on b: every trial mark is undone before the next one.
func minimax(b *Board, depth int, maximizing bool) int {
	switch CheckWinner(*b) {
	case Opponent:
		return 10 - depth
	case Player:
		return depth - 10
	}
	if IsBoardFull(*b) {
		return 0
	}

	if maximizing {
		best := math.MinInt
		for i := range b {
			if b[i] != Empty {
				continue
			}
			b[i] = Opponent
			best = max(best, minimax(b, depth+1, false))
			b[i] = Empty
		}
		return best
	}

	best := math.MaxInt
	for i := range b {
		if b[i] != Empty {
			continue
		}
		b[i] = Player
		best = min(best, minimax(b, depth+1, true))
		b[i] = Empty
	}
	return best
}

// BestMove returns the optimal cell for O. Cells are scanned in ascending
// order and only a strictly greater score replaces the current choice, so
// ties go to the lowest index. It returns -1 when the board is full.
func BestMove(b Board) int {
	bestScore, bestMove := math.MinInt, -1
	for i := range b {
		if b[i] != Empty {
			continue
		}
		b[i] = Opponent
		score := minimax(&b, 0, false)
		b[i] = Empty
		if score > bestScore {
			bestScore, bestMove = score, i
		}
	}
	return bestMove
}

// RandomMove picks uniformly among the empty cells, or -1 if there are none.
func RandomMove(b Board, rng *rand.Rand) int {
	cells := EmptyCells(b)
	if len(cells) == 0 {
		return -1
	}
	return cells[rng.IntN(len(cells))]
}
