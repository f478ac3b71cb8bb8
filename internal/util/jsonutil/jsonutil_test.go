package jsonutil

import (
	"strings"
	"testing"
)

func TestExtractObjectPlain(t *testing.T) {
	raw, err := ExtractObject(`{"a":1}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"a":1}` {
		t.Fatalf("got %s", raw)
	}
}

func TestExtractObjectInsideProse(t *testing.T) {
	text := "Sure! Here is the JSON you asked for:\n```json\n{\"rankings\":[{\"candidate\":\"A\"}]}\n```\nHope that helps."
	raw, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(raw), `{"rankings"`) || !strings.HasSuffix(string(raw), `}`) {
		t.Fatalf("bad span: %s", raw)
	}
}

func TestExtractObjectNestedAndStrings(t *testing.T) {
	text := `prefix {"note":"a } inside a string","inner":{"deep":"\"{\""}} suffix {"second":true}`
	raw, err := ExtractObject(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Note  string `json:"note"`
		Inner struct {
			Deep string `json:"deep"`
		} `json:"inner"`
	}
	if err := ExtractInto(text, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Note != "a } inside a string" {
		t.Fatalf("note=%q raw=%s", got.Note, raw)
	}
}

func TestExtractObjectTruncated(t *testing.T) {
	_, err := ExtractObject(`{"claims":[{"text":"the answer was cut off`)
	if err != ErrNoObject {
		t.Fatalf("expected ErrNoObject, got %v", err)
	}
}

func TestExtractObjectAbsent(t *testing.T) {
	_, err := ExtractObject("no json here, just an apology")
	if err != ErrNoObject {
		t.Fatalf("expected ErrNoObject, got %v", err)
	}
}

func TestExtractIntoGarbled(t *testing.T) {
	var v map[string]any
	// Balanced braces but invalid JSON between them.
	if err := ExtractInto(`{not json at all}`, &v); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestMarshalNoEscape(t *testing.T) {
	b, err := MarshalNoEscape(map[string]string{"q": "a < b && c > d"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(b), `<`) {
		t.Fatalf("html escaping leaked: %s", b)
	}
}
