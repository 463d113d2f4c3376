package normalize

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Content is the canonical plain-text form of a processing response.
type Content struct {
	Content     string `json:"content"`
	ProcessedAt string `json:"processed_at"`
}

type Normalizer struct {
	Now func() time.Time
}

type kind int

const (
	kindEmpty kind = iota
	kindText
	kindContentObject
	kindOther
)

// shape is the decoded form of a raw response body.
type shape struct {
	kind    kind
	text    string
	content json.RawMessage
	raw     json.RawMessage
}

func decode(raw json.RawMessage) shape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return shape{kind: kindEmpty}
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return shape{kind: kindText, text: s}
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			if c, ok := obj["content"]; ok && !isNull(c) {
				return shape{kind: kindContentObject, content: c}
			}
		}
	}
	if !json.Valid(trimmed) {
		return shape{kind: kindText, text: string(raw)}
	}
	return shape{kind: kindOther, raw: trimmed}
}

// Normalize extracts the content text from a raw JSON response body. It never fails.
func (n Normalizer) Normalize(raw json.RawMessage) Content {
	s := decode(raw)
	var text string
	switch s.kind {
	case kindEmpty:
		text = "{}"
	case kindText:
		return n.NormalizeText(s.text)
	case kindContentObject:
		text = stringify(s.content)
	default:
		text = compact(s.raw)
	}
	return n.result(text)
}

// NormalizeText handles a response that arrived as text, which may itself hold JSON.
func (n Normalizer) NormalizeText(text string) Content {
	trimmed := bytes.TrimSpace([]byte(text))
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return n.result(text)
	}
	switch s := decode(trimmed); s.kind {
	case kindContentObject:
		return n.result(stringify(s.content))
	case kindText:
		return n.result(s.text)
	case kindOther:
		return n.result(compact(s.raw))
	}
	return n.result(text)
}

func (n Normalizer) result(text string) Content {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	return Content{
		Content:     strings.ReplaceAll(text, `\n`, "\n"),
		ProcessedAt: now().UTC().Format(time.RFC3339Nano),
	}
}

// stringify renders a content value as text; non-string values become JSON.
func stringify(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return compact(v)
}

func compact(v json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
