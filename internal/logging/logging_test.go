package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestJSONFormatWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf, "debug", "json")
	logger.WithField("document_id", "doc-1").Info("processed")
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not json: %v (%s)", err, buf.String())
	}
	if line["document_id"] != "doc-1" || line["msg"] != "processed" {
		t.Fatalf("unexpected entry %v", line)
	}
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	logger := NewWithOutput(&bytes.Buffer{}, "loud", "text")
	if logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %s", logger.GetLevel())
	}
}
