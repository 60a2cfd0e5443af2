package network

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dayuer/onebot-bridge/internal/action"
	"github.com/dayuer/onebot-bridge/internal/onebot"
)

// Common holds the settings every adapter shares.
type Common struct {
	SelfID          int64
	Token           string
	HeartIntervalMs int
	// Status feeds heartbeat events; nil reports online and good.
	Status func() onebot.Status
	Logger zerolog.Logger
}

func (c Common) heartbeat() *onebot.HeartbeatEvent {
	status := onebot.Status{Online: true, Good: true}
	if c.Status != nil {
		status = c.Status()
	}
	return onebot.NewHeartbeat(c.SelfID, int64(c.HeartIntervalMs), status)
}

// heartbeatLoop calls beat every interval until ctx is done. A non-positive
// interval disables it.
func heartbeatLoop(ctx context.Context, intervalMs int, beat func()) {
	if intervalMs <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

// requestToken extracts the access token from the Authorization header or
// the access_token query parameter.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		for _, prefix := range []string{"Bearer ", "Token "} {
			if strings.HasPrefix(auth, prefix) {
				return strings.TrimPrefix(auth, prefix)
			}
		}
		return auth
	}
	return r.URL.Query().Get("access_token")
}

// withAuth rejects requests without a token (401) or with a wrong one (403).
func withAuth(token string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			got := requestToken(r)
			if got == "" {
				writeJSONError(w, "missing access token", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSONError(w, "invalid access token", http.StatusForbidden)
				return
			}
		}
		handler(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// wsConn wraps a websocket.Conn with a write mutex.
// gorilla/websocket does not support concurrent writes.
type wsConn struct {
	*websocket.Conn
	id string
	mu sync.Mutex
}

func (c *wsConn) WriteJSONSafe(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.Conn.WriteJSON(v)
}

func (c *wsConn) WritePing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (c *wsConn) WriteCloseSafe(code int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// actionFrame is an action call received over a WebSocket.
type actionFrame struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
	Echo   json.RawMessage `json:"echo,omitempty"`
}

// serveFrame answers one inbound frame on conn. The response carries the
// frame's echo value.
func serveFrame(ctx context.Context, conn *wsConn, data []byte, d Dispatcher, log zerolog.Logger) {
	var frame actionFrame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Action == "" {
		resp := action.Failed(action.RetCodeBadRequest, "invalid action frame")
		if err == nil {
			resp = resp.WithEcho(frame.Echo)
		}
		conn.WriteJSONSafe(resp)
		return
	}

	var resp action.Response
	if d == nil {
		resp = action.Failed(action.RetCodeFailed, "actions are not available")
	} else {
		resp = d.Dispatch(ctx, frame.Action, frame.Params)
	}
	if err := conn.WriteJSONSafe(resp.WithEcho(frame.Echo)); err != nil {
		log.Warn().Err(err).Str("conn", conn.id).Str("action", frame.Action).Msg("Failed to write action response")
	}
}
