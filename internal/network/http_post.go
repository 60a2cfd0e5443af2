package network

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dayuer/onebot-bridge/internal/onebot"
)

// HTTPPost pushes every event to a URL as a JSON POST. Quick-operation
// responses are read and discarded.
type HTTPPost struct {
	Common
	url    string
	secret string
	client *http.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHTTPPost creates an active HTTP adapter. A non-empty secret signs each
// body with HMAC-SHA1 in the X-Signature header.
func NewHTTPPost(url, secret string, common Common) *HTTPPost {
	p := &HTTPPost{
		Common: common,
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	p.Logger = p.Logger.With().Str("adapter", p.Name()).Logger()
	return p
}

func (p *HTTPPost) Name() string { return "http_post:" + p.url }

func (p *HTTPPost) Open(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		heartbeatLoop(ctx, p.HeartIntervalMs, func() {
			if err := p.Deliver(ctx, p.heartbeat()); err != nil {
				p.Logger.Debug().Err(err).Msg("Heartbeat post failed")
			}
		})
	}()
	return nil
}

func (p *HTTPPost) Close(_ context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *HTTPPost) Deliver(ctx context.Context, ev onebot.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "OneBot/11")
	req.Header.Set("X-Self-ID", strconv.FormatInt(p.SelfID, 10))
	if p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}
	if p.secret != "" {
		req.Header.Set("X-Signature", "sha1="+Sign(p.secret, body))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d", p.url, resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA1 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
