package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dayuer/onebot-bridge/internal/onebot"
)

// connRole says what a passive WebSocket connection carries.
type connRole int

const (
	roleUniversal connRole = iota
	roleEvent
	roleAPI
)

func (r connRole) events() bool { return r != roleAPI }
func (r connRole) api() bool    { return r != roleEvent }

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSServer accepts OneBot WebSocket clients at / (universal), /event and /api.
type WSServer struct {
	Common
	host string
	port int

	mu         sync.RWMutex
	dispatcher Dispatcher
	conns      map[*wsConn]connRole
	srv        *http.Server
	ln         net.Listener
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mux        *http.ServeMux
}

// NewWSServer creates a passive WebSocket adapter listening on host:port.
func NewWSServer(host string, port int, common Common) *WSServer {
	s := &WSServer{
		Common: common,
		host:   host,
		port:   port,
		conns:  make(map[*wsConn]connRole),
		mux:    http.NewServeMux(),
	}
	s.Logger = s.Logger.With().Str("adapter", s.Name()).Logger()
	s.mux.HandleFunc("/", withAuth(s.Token, s.serveRole(roleUniversal)))
	s.mux.HandleFunc("/event", withAuth(s.Token, s.serveRole(roleEvent)))
	s.mux.HandleFunc("/api", withAuth(s.Token, s.serveRole(roleAPI)))
	return s
}

func (s *WSServer) Name() string { return fmt.Sprintf("ws_server:%d", s.port) }

func (s *WSServer) SetDispatcher(d Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// Handler exposes the WebSocket routes.
func (s *WSServer) Handler() http.Handler { return s.mux }

// Addr returns the bound address once open.
func (s *WSServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *WSServer) Open(_ context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, fmt.Sprint(s.port)))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.ln, s.srv, s.cancel = ln, srv, cancel
	s.mu.Unlock()

	s.Logger.Info().Str("addr", ln.Addr().String()).Msg("WebSocket server listening")
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.Logger.Error().Err(err).Msg("WebSocket server stopped")
		}
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		heartbeatLoop(ctx, s.HeartIntervalMs, s.broadcastHeartbeat)
	}()
	return nil
}

func (s *WSServer) Close(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.srv, s.cancel
	s.srv, s.ln, s.cancel = nil, nil, nil
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
		delete(s.conns, c)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	for _, c := range conns {
		c.WriteCloseSafe(websocket.CloseGoingAway, "server shutdown")
		c.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Deliver broadcasts ev to every event-capable connection. Connections that
// fail to write are dropped.
func (s *WSServer) Deliver(_ context.Context, ev onebot.Event) error {
	var errs []error
	for _, c := range s.eventConns() {
		if err := c.WriteJSONSafe(ev); err != nil {
			errs = append(errs, fmt.Errorf("conn %s: %w", c.id, err))
			s.drop(c)
		}
	}
	return errors.Join(errs...)
}

// ConnCount returns the number of open connections.
func (s *WSServer) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *WSServer) eventConns() []*wsConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*wsConn, 0, len(s.conns))
	for c, role := range s.conns {
		if role.events() {
			out = append(out, c)
		}
	}
	return out
}

func (s *WSServer) drop(c *wsConn) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()
	if ok {
		c.Close()
	}
}

func (s *WSServer) broadcastHeartbeat() {
	hb := s.heartbeat()
	for _, c := range s.eventConns() {
		if err := c.WritePing(); err != nil {
			s.drop(c)
			continue
		}
		if err := c.WriteJSONSafe(hb); err != nil {
			s.drop(c)
		}
	}
}

func (s *WSServer) serveRole(role connRole) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			s.Logger.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		conn := &wsConn{Conn: raw, id: uuid.NewString()}
		log := s.Logger.With().Str("conn", conn.id).Str("peer", r.RemoteAddr).Logger()

		s.mu.Lock()
		s.conns[conn] = role
		s.mu.Unlock()
		log.Info().Str("path", r.URL.Path).Msg("WebSocket client connected")

		defer func() {
			s.drop(conn)
			log.Info().Msg("WebSocket client disconnected")
		}()

		if role.events() {
			if err := conn.WriteJSONSafe(onebot.NewLifecycleConnect(s.SelfID)); err != nil {
				return
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		for {
			_, data, err := raw.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("WebSocket read failed")
				}
				return
			}
			if !role.api() {
				continue
			}
			s.mu.RLock()
			d := s.dispatcher
			s.mu.RUnlock()
			go serveFrame(ctx, conn, data, d, log)
		}
	}
}
