package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/dayuer/onebot-bridge/internal/onebot"
)

// ID is a numeric account, group or message id. Clients send it either as a
// JSON number or as a decimal string.
type ID int64

func (ID) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "integer"},
			{Type: "string", Pattern: `^-?[0-9]+$`},
		},
	}
}

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("id %s is not an integer", b)
	}
	*id = ID(n)
	return nil
}

// Int64 returns the id as an int64.
func (id ID) Int64() int64 { return int64(id) }

// ShortID returns the id as an issued message id. Registry ids are positive
// int32s, so anything outside that range was never issued.
func (id ID) ShortID() (int32, error) {
	if id < 1 || id > math.MaxInt32 {
		return 0, fmt.Errorf("%w: message id %d out of range", ErrInvalidParams, int64(id))
	}
	return int32(id), nil
}

// MessageBody is an outbound message given as a CQ-code string, a segment
// array or a single segment object.
type MessageBody struct {
	raw json.RawMessage
}

func (MessageBody) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "object"}},
			{Type: "object"},
		},
	}
}

func (m *MessageBody) UnmarshalJSON(b []byte) error {
	m.raw = append(m.raw[:0], b...)
	return nil
}

func (m MessageBody) MarshalJSON() ([]byte, error) {
	if len(m.raw) == 0 {
		return []byte("null"), nil
	}
	return m.raw, nil
}

// Text builds a plain text body.
func Text(s string) MessageBody {
	raw, _ := json.Marshal(s)
	return MessageBody{raw: raw}
}

// Segments decodes the body. A string body is parsed as CQ code unless
// autoEscape is set, in which case it is sent as literal text.
func (m MessageBody) Segments(autoEscape bool) ([]onebot.Segment, error) {
	raw := bytes.TrimSpace(m.raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("message is empty")
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if autoEscape {
			return []onebot.Segment{onebot.Text(s)}, nil
		}
		return onebot.ParseCQ(s), nil
	case '[':
		var segs []onebot.Segment
		if err := decodeSegments(raw, &segs); err != nil {
			return nil, err
		}
		return segs, nil
	case '{':
		var seg onebot.Segment
		if err := decodeSegments(raw, &seg); err != nil {
			return nil, err
		}
		return []onebot.Segment{seg}, nil
	default:
		return nil, fmt.Errorf("message must be a string, a segment or a segment array")
	}
}

func decodeSegments(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
