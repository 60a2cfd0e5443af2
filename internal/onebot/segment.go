package onebot

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Segment types.
const (
	SegText   = "text"
	SegAt     = "at"
	SegFace   = "face"
	SegImage  = "image"
	SegReply  = "reply"
	SegRecord = "record"
	SegVideo  = "video"
	SegFile   = "file"
	SegJSON   = "json"
)

// Segment is one part of a OneBot message.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Str returns data[key] rendered as a string; numbers lose their trailing ".0".
func (s Segment) Str(key string) string {
	switch v := s.Data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func Text(s string) Segment {
	return Segment{Type: SegText, Data: map[string]any{"text": s}}
}

// At mentions qq, which is a numeric account id or "all".
func At(qq string) Segment {
	return Segment{Type: SegAt, Data: map[string]any{"qq": qq}}
}

func Face(id int) Segment {
	return Segment{Type: SegFace, Data: map[string]any{"id": strconv.Itoa(id)}}
}

func Image(file, url, summary string) Segment {
	data := map[string]any{"file": file}
	if url != "" {
		data["url"] = url
	}
	if summary != "" {
		data["summary"] = summary
	}
	return Segment{Type: SegImage, Data: data}
}

func Reply(messageID int32) Segment {
	return Segment{Type: SegReply, Data: map[string]any{"id": strconv.FormatInt(int64(messageID), 10)}}
}

func Record(file string) Segment {
	return Segment{Type: SegRecord, Data: map[string]any{"file": file}}
}

func Video(file string) Segment {
	return Segment{Type: SegVideo, Data: map[string]any{"file": file}}
}

func File(name, id string, size int64) Segment {
	return Segment{Type: SegFile, Data: map[string]any{
		"file":      name,
		"file_id":   id,
		"file_size": strconv.FormatInt(size, 10),
	}}
}

func JSON(data string) Segment {
	return Segment{Type: SegJSON, Data: map[string]any{"data": data}}
}

// PlainText concatenates the text segments of segs.
func PlainText(segs []Segment) string {
	var out []byte
	for _, s := range segs {
		if s.Type == SegText {
			out = append(out, s.Str("text")...)
		}
	}
	return string(out)
}
