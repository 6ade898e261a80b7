package web

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/forthefews/fews/internal/tictactoe"
)

var errMissingCell = fmt.Errorf("%w: cell is required", errBadRequest)

type gameRequest struct {
	Difficulty string `json:"difficulty"`
}

type moveRequest struct {
	Cell *int `json:"cell"`
}

type moveResponse struct {
	Game       tictactoe.Session `json:"game"`
	PlayerMove int               `json:"player_move"`
	AIMove     *int              `json:"ai_move,omitempty"`
}

type bestMoveResponse struct {
	Board  string `json:"board"`
	Move   int    `json:"move"`
	Score  int    `json:"score"`
	Winner string `json:"winner,omitempty"`
	Line   string `json:"winning_line,omitempty"`
}

func (s *Server) serveNewGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params, userID string) {
	var req gameRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := tictactoe.ParseDifficulty(req.Difficulty)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.games.Create(userID, d))
}

func (s *Server) serveGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params, userID string) {
	sess, err := s.games.Get(userID, ps.ByName("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// serveMove plays the user's cell and, unless that ended the game, the
// computer's reply.
func (s *Server) serveMove(w http.ResponseWriter, r *http.Request, ps httprouter.Params, userID string) {
	var req moveRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Cell == nil {
		s.fail(w, r, errMissingCell)
		return
	}

	var reply *int
	sess, err := s.games.Do(userID, ps.ByName("id"), func(g *tictactoe.Game) error {
		if err := g.Play(*req.Cell); err != nil {
			return err
		}
		if g.Over() {
			return nil
		}
		cell, err := g.RespondAI(s.ai)
		if err != nil {
			return err
		}
		reply = &cell
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, moveResponse{Game: sess, PlayerMove: *req.Cell, AIMove: reply})
}

func (s *Server) serveResetGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params, userID string) {
	var req gameRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	var d tictactoe.Difficulty
	if req.Difficulty != "" {
		var err error
		if d, err = tictactoe.ParseDifficulty(req.Difficulty); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	sess, err := s.games.Do(userID, ps.ByName("id"), func(g *tictactoe.Game) error {
		if d != "" {
			g.Difficulty = d
		}
		g.Reset()
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// serveBestMove analyses ?board= for O without touching any game.
func (s *Server) serveBestMove(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	b, err := tictactoe.ParseBoard(r.URL.Query().Get("board"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := bestMoveResponse{Board: b.String(), Move: -1}
	if l, ok := tictactoe.WinningLine(b); ok {
		resp.Winner = string(b[l[0]])
		resp.Line = l.Name()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	if resp.Move = tictactoe.BestMove(b); resp.Move >= 0 {
		next := b
		next[resp.Move] = tictactoe.Opponent
		resp.Score = tictactoe.Minimax(next, 0, false)
	}
	writeJSON(w, http.StatusOK, resp)
}
