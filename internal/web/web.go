// Package web is the HTTP driver: a JSON API over the puzzle gate and the
// tic-tac-toe registry, plus a websocket that pushes a user's progress
// after every change.
package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/forthefews/fews/internal/identity"
	"github.com/forthefews/fews/internal/puzzle"
	"github.com/forthefews/fews/internal/server"
	"github.com/forthefews/fews/internal/tictactoe"
)

const (
	timeout      time.Duration = 10 * time.Second
	maxBodyBytes int64         = 4 << 10
)

// Server serves the HTTP API.
type Server struct {
	gate    *puzzle.Gate
	broker  *puzzle.Broker
	games   *tictactoe.Sessions
	ai      *tictactoe.AI
	ids     identity.Provider
	logger  *slog.Logger
	version string
}

// New creates a Server over the shared components. ids verifies the
// Authorization header of every API request.
func New(c *server.Components, ids identity.Provider) *Server {
	return &Server{
		gate:    c.Gate,
		broker:  c.Broker,
		games:   c.Games,
		ai:      c.AI,
		ids:     ids,
		logger:  c.Logger,
		version: server.Version,
	}
}

// Handler returns the routed, logged handler.
func (s *Server) Handler() http.Handler {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.logger.Error("web: panic", "method", r.Method, "path", r.URL.Path, "panic", v)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}

	mux.GET("/healthz", s.serveHealthCheck)
	mux.GET("/version", s.serveVersion)

	mux.GET("/api/puzzle/progress", s.authed(s.serveProgress))
	mux.POST("/api/puzzle/reset", s.authed(s.serveReset))
	mux.GET("/api/puzzle/steps/:step", s.authed(s.serveGuard))
	mux.POST("/api/puzzle/steps/:step/complete", s.authed(s.serveComplete))
	mux.GET("/api/puzzle/steps/:step/qr", s.serveStepQR)
	mux.GET("/api/puzzle/ws", s.serveProgressWS)

	mux.POST("/api/tictactoe/games", s.authed(s.serveNewGame))
	mux.GET("/api/tictactoe/games/:id", s.authed(s.serveGame))
	mux.POST("/api/tictactoe/games/:id/moves", s.authed(s.serveMove))
	mux.POST("/api/tictactoe/games/:id/reset", s.authed(s.serveResetGame))
	mux.GET("/api/tictactoe/best-move", s.serveBestMove)

	return s.logRequests(mux)
}

// Run listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		s.logger.Info("web: listening", "url", "http://"+addr+"/", "version", s.version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("web: listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) serveHealthCheck(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) serveVersion(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "fews v"+s.version+"\n")
}

// --- Identity ---

type userHandle func(w http.ResponseWriter, r *http.Request, ps httprouter.Params, userID string)

// authed resolves the caller from the Authorization header before calling
// next.
func (s *Server) authed(next userHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		userID, err := identity.Resolve(r.Context(), s.ids, r.Header.Get("Authorization"))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next(w, r.WithContext(identity.WithUser(r.Context(), userID)), ps, userID)
	}
}

// --- Responses ---

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, puzzle.ErrUnauthenticated), errors.Is(err, identity.ErrNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, puzzle.ErrInvalidStep),
		errors.Is(err, tictactoe.ErrUnknownDifficulty),
		errors.Is(err, tictactoe.ErrInvalidBoard),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, puzzle.ErrStepLocked):
		return http.StatusForbidden
	case errors.Is(err, tictactoe.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, tictactoe.ErrGameOver),
		errors.Is(err, tictactoe.ErrNotYourTurn),
		errors.Is(err, tictactoe.ErrCellOccupied),
		errors.Is(err, tictactoe.ErrCellOutOfRange):
		return http.StatusConflict
	case errors.Is(err, puzzle.ErrStore):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Warn("web: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = http.StatusText(status)
		if status == http.StatusServiceUnavailable {
			msg = "progress store unavailable, please try again"
		}
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="fews"`)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

var errBadRequest = errors.New("bad request")

// decodeBody reads a small JSON body into v. An empty body leaves v as is.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// --- Request logging ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("web: connection cannot be hijacked")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Info("web: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}
