package network

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/onebot-bridge/internal/action"
	"github.com/dayuer/onebot-bridge/internal/onebot"
)

func testCommon(token string) Common {
	return Common{SelfID: 10000, Token: token, Logger: zerolog.Nop()}
}

func dispatcherFor(t *testing.T) Dispatcher {
	t.Helper()
	m := newTestManager(4)
	m.RegisterAllActions(action.Default())
	return m
}

func decodeResponse(t *testing.T, body io.Reader) action.Response {
	t.Helper()
	var resp action.Response
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

// --- HTTP Server Tests ---

func TestHTTPServer_Auth(t *testing.T) {
	s := NewHTTPServer("127.0.0.1", 0, testCommon("s3cret"))
	s.SetDispatcher(dispatcherFor(t))

	cases := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"missing", httptest.NewRequest("GET", "/get_login_info", nil), http.StatusUnauthorized},
		{"wrong", withHeader(httptest.NewRequest("GET", "/get_login_info", nil), "Authorization", "Bearer nope"), http.StatusForbidden},
		{"header", withHeader(httptest.NewRequest("GET", "/get_login_info", nil), "Authorization", "Bearer s3cret"), http.StatusOK},
		{"query", httptest.NewRequest("GET", "/get_login_info?access_token=s3cret", nil), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, tc.req)
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func withHeader(r *http.Request, k, v string) *http.Request {
	r.Header.Set(k, v)
	return r
}

func TestWithAuth_TokenMatching(t *testing.T) {
	h := withAuth("s3cret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	cases := map[string]int{
		"":               http.StatusUnauthorized,
		"Bearer s3cret":  http.StatusNoContent,
		"Token s3cret":   http.StatusNoContent,
		"Bearer s3cre":   http.StatusForbidden,
		"Bearer s3cretx": http.StatusForbidden,
		"Bearer S3CRET":  http.StatusForbidden,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/get_status", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h(rec, req)
		assert.Equal(t, want, rec.Code, header)
	}
}

func TestHTTPServer_ParamSources(t *testing.T) {
	s := NewHTTPServer("127.0.0.1", 0, testCommon(""))
	s.SetDispatcher(dispatcherFor(t))

	requests := []*http.Request{
		httptest.NewRequest("GET", "/get_stranger_info?user_id=6", nil),
		withHeader(httptest.NewRequest("POST", "/get_stranger_info", strings.NewReader(`{"user_id":6}`)), "Content-Type", "application/json"),
		withHeader(httptest.NewRequest("POST", "/get_stranger_info", strings.NewReader(url.Values{"user_id": {"6"}}.Encode())), "Content-Type", "application/x-www-form-urlencoded"),
	}
	for _, req := range requests {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w.Body)
		assert.Equal(t, "ok", resp.Status, resp.Message)
		data := resp.Data.(map[string]any)
		assert.Equal(t, "bob", data["nickname"])
	}
}

func TestHTTPServer_Failures(t *testing.T) {
	s := NewHTTPServer("127.0.0.1", 0, testCommon(""))
	s.SetDispatcher(dispatcherFor(t))

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/no_such_action", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, action.RetCodeUnknownAction, decodeResponse(t, w.Body).RetCode)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/get_stranger_info", strings.NewReader(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("POST", "/get_stranger_info", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, action.RetCodeBadRequest, decodeResponse(t, w.Body).RetCode)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("DELETE", "/get_status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHTTPServer_OpenClose(t *testing.T) {
	s := NewHTTPServer("127.0.0.1", 0, testCommon(""))
	s.SetDispatcher(dispatcherFor(t))
	require.NoError(t, s.Open(context.Background()))
	defer s.Close(context.Background())

	resp, err := http.Get("http://" + s.Addr() + "/get_status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "ok", decodeResponse(t, resp.Body).Status)
}

// --- HTTP Post Tests ---

func TestHTTPPost_SignsAndHeaders(t *testing.T) {
	var (
		mu      sync.Mutex
		headers http.Header
		body    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		headers = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewHTTPPost(srv.URL, "hmac-key", testCommon("tok"))
	ev := onebot.NewFriendRecallNotice(10000, 5, 42)
	require.NoError(t, p.Deliver(context.Background(), ev))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "10000", headers.Get("X-Self-ID"))
	assert.Equal(t, "Bearer tok", headers.Get("Authorization"))
	assert.Equal(t, "sha1="+Sign("hmac-key", body), headers.Get("X-Signature"))
	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "friend_recall", got["notice_type"])
}

func TestHTTPPost_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewHTTPPost(srv.URL, "", testCommon(""))
	assert.Error(t, p.Deliver(context.Background(), onebot.NewLifecycleConnect(10000)))
}

func TestHTTPPost_Heartbeat(t *testing.T) {
	beats := make(chan map[string]any, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev map[string]any
		json.NewDecoder(r.Body).Decode(&ev)
		beats <- ev
	}))
	defer srv.Close()

	common := testCommon("")
	common.HeartIntervalMs = 20
	p := NewHTTPPost(srv.URL, "", common)
	require.NoError(t, p.Open(context.Background()))
	defer p.Close(context.Background())

	select {
	case ev := <-beats:
		assert.Equal(t, "heartbeat", ev["meta_event_type"])
		assert.EqualValues(t, 20, ev["interval"])
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat posted")
	}
}

func TestSign(t *testing.T) {
	// HMAC-SHA1("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t, "de7c9b85b8b78aa6bc8a7a36f70a90701c9db4d9",
		Sign("key", []byte("The quick brown fox jumps over the lazy dog")))
}

// --- WebSocket Server Tests ---

func dialWS(t *testing.T, rawURL string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(rawURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var v map[string]any
	require.NoError(t, conn.ReadJSON(&v))
	return v
}

func TestWSServer_UniversalConnection(t *testing.T) {
	s := NewWSServer("127.0.0.1", 0, testCommon("tok"))
	s.SetDispatcher(dispatcherFor(t))
	require.NoError(t, s.Open(context.Background()))
	defer s.Close(context.Background())

	conn := dialWS(t, "ws://"+s.Addr()+"/", http.Header{"Authorization": {"Bearer tok"}})

	lifecycle := readJSON(t, conn)
	assert.Equal(t, "lifecycle", lifecycle["meta_event_type"])
	assert.Equal(t, "connect", lifecycle["sub_type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "get_login_info", "echo": map[string]any{"seq": 7}}))
	resp := readJSON(t, conn)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, map[string]any{"seq": float64(7)}, resp["echo"])

	require.Eventually(t, func() bool { return s.ConnCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, s.Deliver(context.Background(), onebot.NewFriendRecallNotice(10000, 5, 9)))
	ev := readJSON(t, conn)
	assert.Equal(t, "friend_recall", ev["notice_type"])
}

func TestWSServer_RejectsBadToken(t *testing.T) {
	s := NewWSServer("127.0.0.1", 0, testCommon("tok"))
	require.NoError(t, s.Open(context.Background()))
	defer s.Close(context.Background())

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/?access_token=wrong", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSServer_APIOnlyGetsNoEvents(t *testing.T) {
	s := NewWSServer("127.0.0.1", 0, testCommon(""))
	s.SetDispatcher(dispatcherFor(t))
	require.NoError(t, s.Open(context.Background()))
	defer s.Close(context.Background())

	conn := dialWS(t, "ws://"+s.Addr()+"/api", nil)
	require.Eventually(t, func() bool { return s.ConnCount() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, s.Deliver(context.Background(), onebot.NewFriendRecallNotice(10000, 5, 9)))

	// The first frame is the action response, not the lifecycle event or the notice.
	require.NoError(t, conn.WriteJSON(map[string]any{"action": "get_status", "echo": "x"}))
	resp := readJSON(t, conn)
	assert.Equal(t, "x", resp["echo"])
	assert.Equal(t, "ok", resp["status"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	resp = readJSON(t, conn)
	assert.EqualValues(t, action.RetCodeBadRequest, resp["retcode"])
}

// --- WebSocket Client Tests ---

func TestWSClient_ConnectsAndServesActions(t *testing.T) {
	headers := make(chan http.Header, 1)
	serverConn := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConn <- conn
	}))
	defer srv.Close()

	common := testCommon("tok")
	c := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), 50, common)
	c.SetDispatcher(dispatcherFor(t))
	require.NoError(t, c.Open(context.Background()))
	defer c.Close(context.Background())

	h := <-headers
	assert.Equal(t, "10000", h.Get("X-Self-ID"))
	assert.Equal(t, "Universal", h.Get("X-Client-Role"))
	assert.Equal(t, "Bearer tok", h.Get("Authorization"))

	conn := <-serverConn
	defer conn.Close()
	lifecycle := readJSON(t, conn)
	assert.Equal(t, "lifecycle", lifecycle["meta_event_type"])

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "get_version_info", "params": map[string]any{}, "echo": 12}))
	resp := readJSON(t, conn)
	assert.Equal(t, "ok", resp["status"])
	assert.EqualValues(t, 12, resp["echo"])

	require.Eventually(t, c.Connected, time.Second, 10*time.Millisecond)
	require.NoError(t, c.Deliver(context.Background(), onebot.NewFriendRecallNotice(10000, 5, 1)))
	assert.Equal(t, "friend_recall", readJSON(t, conn)["notice_type"])
}

func TestWSClient_ReconnectsAfterDrop(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := NewWSClient("ws"+strings.TrimPrefix(srv.URL, "http"), 20, testCommon(""))
	require.NoError(t, c.Open(context.Background()))
	defer c.Close(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSClient_DeliverWhileDisconnected(t *testing.T) {
	c := NewWSClient("ws://127.0.0.1:1/unreachable", 1000, testCommon(""))
	assert.ErrorIs(t, c.Deliver(context.Background(), onebot.NewLifecycleConnect(1)), ErrNotConnected)
}
