package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("hidden")
	logger.Warn("shown", "room_id", "r1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record above warn level, got %d: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("expected JSON output: %v", err)
	}
	if record["msg"] != "shown" || record["room_id"] != "r1" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := New("loud", "json", nil); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := New("info", "xml", nil); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger, err := New("info", "text", &bytes.Buffer{})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected logger from context")
	}
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger for bare context")
	}
}
