// Package onebot defines the OneBot 11 events the bridge reports and the
// message segment model shared by events and actions.
package onebot

import "time"

// Post types.
const (
	PostMessage     = "message"
	PostMessageSent = "message_sent"
	PostNotice      = "notice"
	PostRequest     = "request"
	PostMetaEvent   = "meta_event"
)

// Event is any OneBot event that can be delivered to adapters.
type Event interface {
	// Post returns the OneBot post_type of the event.
	Post() string
}

// Base holds the fields every OneBot event carries.
type Base struct {
	Time     int64  `json:"time"`
	SelfID   int64  `json:"self_id"`
	PostType string `json:"post_type"`
}

func (b Base) Post() string { return b.PostType }

func newBase(selfID int64, postType string) Base {
	return Base{Time: time.Now().Unix(), SelfID: selfID, PostType: postType}
}

// Sender describes the author of a MessageEvent.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Message types and sub types.
const (
	MessagePrivate = "private"
	MessageGroup   = "group"

	SubTypeFriend = "friend"
	SubTypeGroup  = "group"
	SubTypeNormal = "normal"
)

// MessageEvent reports a private or group chat message.
type MessageEvent struct {
	Base
	MessageType   string `json:"message_type"`
	SubType       string `json:"sub_type"`
	MessageID     int32  `json:"message_id"`
	MessageSeq    int32  `json:"message_seq"`
	UserID        int64  `json:"user_id"`
	GroupID       int64  `json:"group_id,omitempty"`
	TargetID      int64  `json:"target_id,omitempty"`
	Message       any    `json:"message"`
	RawMessage    string `json:"raw_message"`
	Font          int    `json:"font"`
	Sender        Sender `json:"sender"`
	MessageFormat string `json:"message_format"`
	Raw           any    `json:"raw,omitempty"`

	segments []Segment
}

// SetMessage stores segs as the event body in the given post format
// ("array" keeps segments, "string" reports CQ code).
func (e *MessageEvent) SetMessage(segs []Segment, format string) {
	e.segments = segs
	e.RawMessage = EncodeCQ(segs)
	e.MessageFormat = format
	if format == "string" {
		e.Message = e.RawMessage
	} else {
		e.Message = segs
	}
}

// Segments returns the message body as segments regardless of post format.
func (e *MessageEvent) Segments() []Segment {
	return e.segments
}

// MarkSelf turns the event into a self-sent report addressed at target.
func (e *MessageEvent) MarkSelf(target int64) {
	e.PostType = PostMessageSent
	if e.MessageType == MessagePrivate {
		e.TargetID = target
	}
}
