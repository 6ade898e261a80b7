package tictactoe

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
var ErrSessionNotFound = errors.New("game session not found")

var timeNow = time.Now

// Session is a snapshot of a registered game.
type Session struct {
	ID         string    `json:"id"`
	Owner      string    `json:"-"`
	Game       Game      `json:"game"`
	LastActive time.Time `json:"last_active"`
}

type entry struct {
	mu         sync.Mutex
	owner      string
	game       Game
	lastActive time.Time
}

// Sessions holds in-progress games keyed by id. Each game belongs to the
// owner that created it; other owners see ErrSessionNotFound.
type Sessions struct {
	mu    sync.Mutex
	games map[string]*entry
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{games: make(map[string]*entry)}
}

// Create registers a new game for owner.
func (s *Sessions) Create(owner string, d Difficulty) Session {
	e := &entry{owner: owner, game: *NewGame(d), lastActive: timeNow()}
	id := uuid.NewString()

	s.mu.Lock()
	s.games[id] = e
	s.mu.Unlock()

	return Session{ID: id, Owner: owner, Game: e.game, LastActive: e.lastActive}
}

// Get returns a snapshot of the game.
func (s *Sessions) Get(owner, id string) (Session, error) {
	return s.Do(owner, id, nil)
}

// Do runs fn against the game with exclusive access and returns the
// resulting snapshot. fn may be nil. The game is updated even when fn
// returns an error, so partial progress such as a player move followed by
// a failed AI reply is kept.
func (s *Sessions) Do(owner, id string, fn func(*Game) error) (Session, error) {
	s.mu.Lock()
	e, ok := s.games[id]
	s.mu.Unlock()
	if !ok || e.owner != owner {
		return Session{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if fn != nil {
		err = fn(&e.game)
		e.lastActive = timeNow()
	}
	return Session{ID: id, Owner: e.owner, Game: e.game, LastActive: e.lastActive}, err
}

// Delete removes a game. Deleting an unknown game is not an error.
func (s *Sessions) Delete(owner, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.games[id]; ok && e.owner == owner {
		delete(s.games, id)
	}
}

// Len returns the number of registered games.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

// Reap removes games idle for longer than idle and returns how many went.
func (s *Sessions) Reap(idle time.Duration) int {
	cutoff := timeNow().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.games {
		e.mu.Lock()
		last := e.lastActive
		e.mu.Unlock()
		if last.Before(cutoff) {
			delete(s.games, id)
			n++
		}
	}
	return n
}

// Run reaps idle games every idle/2 until ctx is done. A non-positive idle
// disables reaping.
func (s *Sessions) Run(ctx context.Context, idle time.Duration, logger *slog.Logger) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Reap(idle); n > 0 && logger != nil {
				logger.Info("tictactoe: reaped idle games", "count", n)
			}
		}
	}
}
