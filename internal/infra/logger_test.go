package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production")
	logger.Debug().Msg("hidden")
	logger.Info().Str("fingerprint", "abc").Msg("composed")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "composed" || entry["fingerprint"] != "abc" || entry["service"] != "companion" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewLoggerDevelopmentIsDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "development")
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %v", logger.GetLevel())
	}
}

func TestLoggerOrNop(t *testing.T) {
	l := LoggerOrNop(nil)
	if l.GetLevel() != zerolog.Disabled {
		t.Fatalf("level = %v", l.GetLevel())
	}
}
