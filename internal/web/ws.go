package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/forthefews/fews/internal/identity"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: timeout,
}

// credential reads the bearer token from the Authorization header, or from
// the access_token query parameter since browsers cannot set headers on a
// websocket handshake.
func credential(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return h
	}
	return r.URL.Query().Get("access_token")
}

// serveProgressWS sends the caller's progress on connect and again after
// every change, until either side goes away.
func (s *Server) serveProgressWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := identity.Resolve(r.Context(), s.ids, credential(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("web: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Subscribe before the first read so no change slips in between.
	updates, cancel := s.broker.Subscribe(userID)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug("web: websocket read", "user", userID, "error", err)
				}
				return
			}
		}
	}()

	send := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}

	p, err := s.gate.GetProgress(r.Context(), userID)
	if err != nil {
		s.logger.Warn("web: websocket initial progress", "user", userID, "error", err)
		_ = send(errorBody{Error: "progress store unavailable"})
		return
	}
	if err := send(newProgressView(p)); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case rec, ok := <-updates:
			if !ok {
				return
			}
			if err := send(newProgressView(rec)); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
