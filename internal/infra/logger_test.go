package infra

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production")
	logger.Debug().Msg("hidden")
	logger.Info().Str("attempt", "a1").Msg("visible")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected exactly one log line, got %d: %s", len(lines), buf.String())
	}
	var event map[string]any
	if err := json.Unmarshal(lines[0], &event); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if event["service"] != "promptsmith" || event["attempt"] != "a1" || event["message"] != "visible" {
		t.Fatalf("unexpected event %#v", event)
	}
}

func TestNewLoggerTestEnvOnlyWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "test")
	logger.Info().Msg("quiet")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be suppressed, got %s", buf.String())
	}
	logger.Warn().Msg("loud")
	if buf.Len() == 0 {
		t.Fatal("expected warn to be written")
	}
}
