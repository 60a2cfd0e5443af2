package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dayuer/onebot-bridge/internal/action"
	"github.com/dayuer/onebot-bridge/internal/onebot"
)

// HTTPServer answers action calls at POST/GET /<action>. It does not push
// events.
type HTTPServer struct {
	Common
	host string
	port int

	mu         sync.RWMutex
	dispatcher Dispatcher
	srv        *http.Server
	ln         net.Listener
	mux        *http.ServeMux
}

// NewHTTPServer creates a passive HTTP adapter listening on host:port.
func NewHTTPServer(host string, port int, common Common) *HTTPServer {
	s := &HTTPServer{Common: common, host: host, port: port, mux: http.NewServeMux()}
	s.Logger = s.Logger.With().Str("adapter", s.Name()).Logger()
	s.mux.HandleFunc("/", withAuth(s.Token, s.handleAction))
	return s
}

func (s *HTTPServer) Name() string { return fmt.Sprintf("http_server:%d", s.port) }

func (s *HTTPServer) SetDispatcher(d Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// Handler exposes the action routes.
func (s *HTTPServer) Handler() http.Handler { return s.mux }

// Addr returns the bound address once open.
func (s *HTTPServer) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *HTTPServer) Open(_ context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, fmt.Sprint(s.port)))
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.ln = ln
	s.srv = srv
	s.mu.Unlock()

	s.Logger.Info().Str("addr", ln.Addr().String()).Msg("HTTP API listening")
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.Logger.Error().Err(err).Msg("HTTP API server stopped")
		}
	}()
	return nil
}

func (s *HTTPServer) Close(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *HTTPServer) Deliver(context.Context, onebot.Event) error { return nil }

func (s *HTTPServer) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.Trim(r.URL.Path, "/")
	if name == "" {
		writeJSONError(w, "action name is required", http.StatusNotFound)
		return
	}

	params, err := requestParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, action.Failed(action.RetCodeBadRequest, err.Error()))
		return
	}

	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	if d == nil {
		writeJSON(w, http.StatusServiceUnavailable, action.Failed(action.RetCodeFailed, "actions are not available"))
		return
	}

	resp := d.Dispatch(r.Context(), name, params)
	code := http.StatusOK
	if resp.RetCode == action.RetCodeUnknownAction {
		code = http.StatusNotFound
	}
	writeJSON(w, code, resp)
}

// requestParams collects params from the query string and, for POST, a JSON
// or form body. Body values win over query values.
func requestParams(r *http.Request) (json.RawMessage, error) {
	params := map[string]any{}
	mergeValues(params, r.URL.Query())

	if r.Method == http.MethodPost {
		ct := r.Header.Get("Content-Type")
		switch {
		case strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
			if err := r.ParseForm(); err != nil {
				return nil, fmt.Errorf("invalid form body: %w", err)
			}
			mergeValues(params, r.PostForm)
		default:
			body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
			if err != nil {
				return nil, err
			}
			if len(strings.TrimSpace(string(body))) > 0 {
				var fields map[string]json.RawMessage
				if err := json.Unmarshal(body, &fields); err != nil {
					return nil, fmt.Errorf("invalid JSON body: %w", err)
				}
				for k, v := range fields {
					params[k] = v
				}
			}
		}
	}
	delete(params, "access_token")
	return json.Marshal(params)
}

// mergeValues copies query or form values. "true" and "false" become booleans;
// everything else stays a string.
func mergeValues(dst map[string]any, values url.Values) {
	for k, v := range values {
		if len(v) == 0 {
			continue
		}
		switch v[0] {
		case "true":
			dst[k] = true
		case "false":
			dst[k] = false
		default:
			dst[k] = v[0]
		}
	}
}
