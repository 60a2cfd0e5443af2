package onebot

import (
	"sort"
	"strings"
)

var (
	textEscaper  = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;")
	paramEscaper = strings.NewReplacer("&", "&amp;", "[", "&#91;", "]", "&#93;", ",", "&#44;")
	cqUnescaper  = strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")
)

// EncodeCQ renders segments as a CQ code string.
func EncodeCQ(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Type == SegText {
			b.WriteString(textEscaper.Replace(s.Str("text")))
			continue
		}
		b.WriteString("[CQ:")
		b.WriteString(s.Type)
		keys := make([]string, 0, len(s.Data))
		for k := range s.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(',')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(paramEscaper.Replace(s.Str(k)))
		}
		b.WriteByte(']')
	}
	return b.String()
}

// ParseCQ splits a CQ code string into segments. Malformed codes are kept as text.
func ParseCQ(s string) []Segment {
	var segs []Segment
	appendText := func(t string) {
		if t == "" {
			return
		}
		t = cqUnescaper.Replace(t)
		if n := len(segs); n > 0 && segs[n-1].Type == SegText {
			segs[n-1].Data["text"] = segs[n-1].Str("text") + t
			return
		}
		segs = append(segs, Text(t))
	}

	for len(s) > 0 {
		start := strings.Index(s, "[CQ:")
		if start < 0 {
			appendText(s)
			break
		}
		end := strings.IndexByte(s[start:], ']')
		if end < 0 {
			appendText(s)
			break
		}
		end += start
		appendText(s[:start])

		body := s[start+len("[CQ:") : end]
		parts := strings.Split(body, ",")
		if parts[0] == "" {
			appendText(s[start : end+1])
			s = s[end+1:]
			continue
		}
		seg := Segment{Type: parts[0], Data: map[string]any{}}
		for _, p := range parts[1:] {
			k, v, ok := strings.Cut(p, "=")
			if !ok {
				continue
			}
			seg.Data[k] = cqUnescaper.Replace(v)
		}
		segs = append(segs, seg)
		s = s[end+1:]
	}
	return segs
}
