package tictactoe

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
)

// Difficulty controls how often the AI plays a random move instead of the
// optimal one.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// DefaultDifficulty is used when none is chosen.
const DefaultDifficulty = Medium

// ErrUnknownDifficulty is returned by ParseDifficulty.
var ErrUnknownDifficulty = errors.New("unknown difficulty")

// Difficulties lists the valid levels from weakest to strongest.
func Difficulties() []Difficulty {
	return []Difficulty{Easy, Medium, Hard}
}

// ParseDifficulty accepts easy, medium or hard in any case. An empty string
// yields DefaultDifficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DefaultDifficulty, nil
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q (use easy, medium, or hard)", ErrUnknownDifficulty, s)
}

// RandomMoveProbability is the chance the AI plays a random cell.
func (d Difficulty) RandomMoveProbability() float64 {
	switch d {
	case Easy:
		return 0.8
	case Medium:
		return 0.4
	}
	return 0
}

// AI picks opponent moves. It is safe for concurrent use.
type AI struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewAI returns an AI drawing from rng.
func NewAI(rng *rand.Rand) *AI {
	return &AI{rng: rng}
}

// NewSeededAI returns an AI whose PCG source is seeded from crypto/rand.
func NewSeededAI() *AI {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	src := rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
	return NewAI(rand.New(src))
}

// Move returns the cell O plays at difficulty d, or -1 on a full board.
func (a *AI) Move(b Board, d Difficulty) int {
	if p := d.RandomMoveProbability(); p > 0 {
		a.mu.Lock()
		random := a.rng.Float64() < p
		var cell int
		if random {
			cell = RandomMove(b, a.rng)
		}
		a.mu.Unlock()
		if random {
			return cell
		}
	}
	return BestMove(b)
}
