package network

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dayuer/onebot-bridge/internal/onebot"
)

// ErrNotConnected is returned by Deliver while a reverse connection is down.
var ErrNotConnected = errors.New("not connected")

// WSClient dials a OneBot reverse WebSocket endpoint as a universal client and
// redials every reconnect interval until closed.
type WSClient struct {
	Common
	url       string
	reconnect time.Duration
	dialer    *websocket.Dialer

	mu         sync.RWMutex
	dispatcher Dispatcher
	conn       *wsConn
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewWSClient creates a reverse WebSocket adapter.
func NewWSClient(url string, reconnectMs int, common Common) *WSClient {
	if reconnectMs <= 0 {
		reconnectMs = 5000
	}
	c := &WSClient{
		Common:    common,
		url:       url,
		reconnect: time.Duration(reconnectMs) * time.Millisecond,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	c.Logger = c.Logger.With().Str("adapter", c.Name()).Logger()
	return c
}

func (c *WSClient) Name() string { return "ws_reverse:" + c.url }

func (c *WSClient) SetDispatcher(d Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatcher = d
}

// Connected reports whether a connection is currently established.
func (c *WSClient) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Open starts the dial loop; connection failures are retried, never returned.
func (c *WSClient) Open(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

func (c *WSClient) Close(_ context.Context) error {
	c.mu.Lock()
	cancel, conn := c.cancel, c.conn
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.WriteCloseSafe(websocket.CloseNormalClosure, "")
		conn.Close()
	}
	c.wg.Wait()
	return nil
}

func (c *WSClient) Deliver(_ context.Context, ev onebot.Event) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSONSafe(ev)
}

func (c *WSClient) header() http.Header {
	h := http.Header{}
	h.Set("X-Self-ID", strconv.FormatInt(c.SelfID, 10))
	h.Set("X-Client-Role", "Universal")
	h.Set("User-Agent", "OneBot/11")
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	return h
}

func (c *WSClient) run(ctx context.Context) {
	for {
		raw, _, err := c.dialer.DialContext(ctx, c.url, c.header())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.Logger.Warn().Err(err).Dur("retry_in", c.reconnect).Msg("Reverse WebSocket dial failed")
		} else {
			c.serve(ctx, &wsConn{Conn: raw, id: uuid.NewString()})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnect):
		}
	}
}

func (c *WSClient) serve(ctx context.Context, conn *wsConn) {
	log := c.Logger.With().Str("conn", conn.id).Logger()
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	log.Info().Msg("Reverse WebSocket connected")

	connCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		log.Info().Msg("Reverse WebSocket disconnected")
	}()

	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	if err := conn.WriteJSONSafe(onebot.NewLifecycleConnect(c.SelfID)); err != nil {
		log.Warn().Err(err).Msg("Failed to send lifecycle event")
		return
	}
	go heartbeatLoop(connCtx, c.HeartIntervalMs, func() {
		if err := conn.WriteJSONSafe(c.heartbeat()); err != nil {
			log.Debug().Err(err).Msg("Heartbeat write failed")
		}
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Reverse WebSocket read failed")
			}
			return
		}
		c.mu.RLock()
		d := c.dispatcher
		c.mu.RUnlock()
		go serveFrame(connCtx, conn, data, d, log)
	}
}
