// Package extract recovers a single JSON document from an assistant reply.
//
// Replies either wrap the document in a fenced code block (optionally tagged
// json) surrounded by prose, or consist of the bare document. Nothing is
// repaired: text that does not parse is reported with the decoder's
// diagnostic so prompt authors can see what the model produced.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?i:json)?\\s*(.*?)\\s*```")

// MalformedOutputError reports that no well-formed JSON object or array
// could be recovered.
type MalformedOutputError struct {
	// Fenced is true when the diagnostic refers to the interior of a fenced block.
	Fenced bool
	Err    error
}

func (e *MalformedOutputError) Error() string {
	where := "response"
	if e.Fenced {
		where = "fenced block"
	}
	return fmt.Sprintf("Failed to parse JSON from assistant %s: %v", where, e.Err)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

var (
	errEmpty       = errors.New("empty input")
	errNotDocument = errors.New("top-level value must be an object or array")
	errTrailing    = errors.New("unexpected data after top-level value")
)

// JSON returns the first fenced block's interior as compact JSON, or the
// whole text when it holds no fenced block.
func JSON(raw string) (json.RawMessage, error) {
	if m := fencePattern.FindStringSubmatch(raw); m != nil && m[1] != "" {
		doc, err := parseDocument(m[1])
		if err != nil {
			return nil, &MalformedOutputError{Fenced: true, Err: err}
		}
		return doc, nil
	}
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, &MalformedOutputError{Err: err}
	}
	return doc, nil
}

// Fence wraps a document the way assistants are asked to reply.
func Fence(doc json.RawMessage) string {
	return "```json\n" + string(doc) + "\n```"
}

func parseDocument(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errEmpty
	}
	if text[0] != '{' && text[0] != '[' {
		// Let the decoder produce its diagnostic for non-JSON text; valid
		// scalars are rejected explicitly.
		if !json.Valid([]byte(text)) {
			var v any
			return nil, json.Unmarshal([]byte(text), &v)
		}
		return nil, errNotDocument
	}
	dec := json.NewDecoder(strings.NewReader(text))
	var doc json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailing
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}
