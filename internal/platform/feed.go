package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Feed entry kinds, one per Listener method.
const (
	FeedRecvMsg       = "recv_msg"
	FeedMsgInfoUpdate = "msg_info_update"
	FeedBuddyReq      = "buddy_req"
	FeedInputStatus   = "input_status"
)

// FeedEntry is one JSON line of a platform event feed.
type FeedEntry struct {
	Kind        string         `json:"kind"`
	Messages    []RawMessage   `json:"messages,omitempty"`
	Requests    []BuddyRequest `json:"requests,omitempty"`
	InputStatus *InputStatus   `json:"input_status,omitempty"`
}

// RunFeed reads JSON lines from r and invokes the matching Listener method for each.
// Malformed or unknown lines are logged and skipped. Returns when r is exhausted or ctx ends.
func RunFeed(ctx context.Context, r io.Reader, l Listener, log zerolog.Logger) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry FeedEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping malformed feed line")
			continue
		}
		if err := Deliver(ctx, entry, l); err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping feed line")
		}
	}
	return sc.Err()
}

// Deliver invokes the Listener method matching entry.Kind.
func Deliver(ctx context.Context, entry FeedEntry, l Listener) error {
	switch entry.Kind {
	case FeedRecvMsg:
		l.OnRecvMsg(ctx, entry.Messages)
	case FeedMsgInfoUpdate:
		l.OnMsgInfoListUpdate(ctx, entry.Messages)
	case FeedBuddyReq:
		l.OnBuddyReqChange(ctx, entry.Requests)
	case FeedInputStatus:
		if entry.InputStatus == nil {
			return fmt.Errorf("input_status entry without payload")
		}
		l.OnInputStatusPush(ctx, *entry.InputStatus)
	default:
		return fmt.Errorf("unknown feed kind %q", entry.Kind)
	}
	return nil
}
