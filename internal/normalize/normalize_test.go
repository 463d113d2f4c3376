package normalize

import (
	"encoding/json"
	"testing"
	"time"
)

func fixed() time.Time { return time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC) }

func TestNormalize(t *testing.T) {
	inner, err := json.Marshal(map[string]string{"content": `A\nB`})
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := json.Marshal(string(inner))
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"object with content", string(inner), "A\nB"},
		{"string holding json", string(wrapped), "A\nB"},
		{"plain string", `"not json"`, "not json"},
		{"null", `null`, "{}"},
		{"empty", ``, "{}"},
		{"object without content", `{ "peticao_inicial": {"autor": "X"} }`, `{"peticao_inicial":{"autor":"X"}}`},
		{"numeric content", `{"content": 42}`, "42"},
		{"object content", `{"content": {"a": 1}}`, `{"a":1}`},
		{"array", `[1, 2]`, `[1,2]`},
		{"null content", `{"content": null, "x": 1}`, `{"content":null,"x":1}`},
	}
	n := Normalizer{Now: fixed}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := n.Normalize(json.RawMessage(tc.raw))
			if got.Content != tc.want {
				t.Fatalf("content = %q, want %q", got.Content, tc.want)
			}
			if got.ProcessedAt != "2025-05-01T10:00:00Z" {
				t.Fatalf("processed_at = %s", got.ProcessedAt)
			}
		})
	}
}

func TestNormalizeTextFallback(t *testing.T) {
	n := Normalizer{Now: fixed}
	if got := n.NormalizeText("not json").Content; got != "not json" {
		t.Fatalf("got %q", got)
	}
	if got := n.NormalizeText(`linha 1\nlinha 2`).Content; got != "linha 1\nlinha 2" {
		t.Fatalf("escaped newline not repaired: %q", got)
	}
	if got := n.NormalizeText(`{"content":"ok"}`).Content; got != "ok" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeMalformedJSONKeepsText(t *testing.T) {
	n := Normalizer{Now: fixed}
	if got := n.Normalize(json.RawMessage(`{broken`)).Content; got != "{broken" {
		t.Fatalf("got %q", got)
	}
}
