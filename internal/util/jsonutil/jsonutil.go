// Package jsonutil isolates the brittle parts of consuming JSON that was
// produced by a language model: locating the object inside surrounding prose
// and decoding it strictly once found.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
)

var ErrNoObject = errors.New("jsonutil: no JSON object found")

// ExtractObject returns the first balanced {...} span in text. Braces inside
// string literals (including escaped quotes) do not count toward balance.
// The span is returned as-is; callers decode it with json.Unmarshal.
func ExtractObject(text string) (json.RawMessage, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				return json.RawMessage(text[start : i+1]), nil
			}
		}
	}
	return nil, ErrNoObject
}

// ExtractInto extracts the first balanced object span and strictly decodes it
// into v. Truncated or garbled spans fail; the caller decides how to degrade.
func ExtractInto(text string, v any) error {
	raw, err := ExtractObject(text)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// MarshalNoEscape encodes v into JSON without escaping <, >, & into <, etc.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Remove trailing newline from json.Encoder.Encode
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
