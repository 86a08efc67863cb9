/*
Package extract turns raw channel messages into candidate breach records and
maps candidates onto the persisted record shape.
*/
package extract

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/shanehull/leakwatch/internal/types"
)

// DefaultWatermarks are the channel's branding fragments, longest first so
// the composite mark is removed before its parts.
var DefaultWatermarks = []string{
	"**🔹 ****t.me/breachdetector**** 🔹**",
	"t.me/breachdetector",
	"**🔹",
	"🔹**",
}

type Extractor struct {
	watermarks []string
}

func New(watermarks []string) *Extractor {
	return &Extractor{watermarks: watermarks}
}

// Clean strips watermarks and surrounding whitespace.
func (e *Extractor) Clean(text string) string {
	for _, w := range e.watermarks {
		if w == "" {
			continue
		}
		text = strings.ReplaceAll(text, w, "")
	}
	return strings.TrimSpace(text)
}

// Extract reports whether the message body is a single serialized JSON
// object and returns its fields with the message metadata. Malformed bodies
// are not candidates; they never produce an error.
func (e *Extractor) Extract(msg types.Message) (types.Candidate, bool) {
	body := e.Clean(msg.Text)
	if body == "" {
		return types.Candidate{}, false
	}

	fields, ok := decodeObject([]byte(body))
	if !ok {
		return types.Candidate{}, false
	}

	return types.Candidate{
		Fields:    fields,
		MessageID: msg.ID,
		Author:    msg.Author,
		Date:      msg.Date,
	}, true
}

// decodeObject accepts exactly one JSON object. A JSON string is decoded once
// more, since some posts carry the object double-encoded.
func decodeObject(data []byte) (map[string]any, bool) {
	v, ok := decodeSingle(data)
	if !ok {
		return nil, false
	}

	if s, isString := v.(string); isString {
		v, ok = decodeSingle([]byte(strings.TrimSpace(s)))
		if !ok {
			return nil, false
		}
	}

	obj, isObject := v.(map[string]any)
	return obj, isObject
}

func decodeSingle(data []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}
