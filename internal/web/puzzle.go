package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/forthefews/fews/internal/puzzle"
)

const qrSize = 320

// progressView is the JSON shape of a progress record with its overview.
type progressView struct {
	Progress  puzzle.ProgressRecord `json:"progress"`
	Completed int                   `json:"completed"`
	Total     int                   `json:"total"`
	Steps     []puzzle.StepStatus   `json:"steps"`
}

func newProgressView(p puzzle.ProgressRecord) progressView {
	p = puzzle.Normalize(p)
	return progressView{
		Progress:  p,
		Completed: p.CompletedCount(),
		Total:     puzzle.TotalSteps,
		Steps:     puzzle.Overview(p),
	}
}

type completeResponse struct {
	Completed bool            `json:"completed"`
	Step      puzzle.StepInfo `json:"step"`
	View      *progressView   `json:"view,omitempty"`
}

type guardResponse struct {
	Step  puzzle.StepInfo `json:"step"`
	State string          `json:"state"`
}

func stepParam(ps httprouter.Params) (int, error) {
	n, err := strconv.Atoi(ps.ByName("step"))
	if err != nil {
		return 0, &puzzle.InvalidStepError{Step: n}
	}
	return n, puzzle.ValidateStep(n)
}

func (s *Server) serveProgress(w http.ResponseWriter, r *http.Request, _ httprouter.Params, userID string) {
	p, err := s.gate.GetProgress(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProgressView(p))
}

func (s *Server) serveComplete(w http.ResponseWriter, r *http.Request, ps httprouter.Params, userID string) {
	step, err := stepParam(ps)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ok, err := s.gate.CompleteStep(r.Context(), userID, step); !ok {
		s.fail(w, r, err)
		return
	}

	info, _ := puzzle.Step(step)
	resp := completeResponse{Completed: true, Step: info}
	if p, err := s.gate.GetProgress(r.Context(), userID); err == nil {
		v := newProgressView(p)
		resp.View = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) serveGuard(w http.ResponseWriter, r *http.Request, ps httprouter.Params, userID string) {
	step, err := stepParam(ps)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.gate.CheckAccess(r.Context(), userID, step)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	info, _ := puzzle.Step(step)
	writeJSON(w, http.StatusOK, guardResponse{Step: info, State: puzzle.StateOf(p, step).String()})
}

func (s *Server) serveReset(w http.ResponseWriter, r *http.Request, _ httprouter.Params, userID string) {
	rec, err := s.gate.ResetProgress(r.Context(), userID)
	if rec == nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProgressView(*rec))
}

// serveStepQR renders a PNG QR code linking to a step, so a player can
// continue on another device.
func (s *Server) serveStepQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if _, err := stepParam(ps); err != nil {
		s.fail(w, r, err)
		return
	}

	url := stepLink(r)

	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

// stepLink is the page a step QR code points at. X-Forwarded-Proto is only
// honoured for http and https.
func stepLink(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	switch proto := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))); proto {
	case "http", "https":
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, strings.TrimSuffix(r.URL.Path, "/qr"))
}
