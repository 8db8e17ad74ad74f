package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogger_SessionContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(SessionMeta{SessionID: "sess-1", Remote: "127.0.0.1:9000"}, "debug", &buf)

	l.Info("frame committed", map[string]any{"kind": "binary"})
	_ = l.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
	if entry["remote"] != "127.0.0.1:9000" {
		t.Errorf("remote = %v, want 127.0.0.1:9000", entry["remote"])
	}
	if entry["message"] != "frame committed" {
		t.Errorf("message = %v, want %q", entry["message"], "frame committed")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newLoggerWithWriter(SessionMeta{}, "warn", &buf)

	l.Debug("dropped", nil)
	l.Info("dropped", nil)
	l.Warn("kept", nil)

	out := strings.TrimSpace(buf.String())
	if strings.Count(out, "\n") != 0 {
		t.Fatalf("expected a single line, got %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn entry missing: %q", out)
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	l.Debug("x", nil)
	l.Info("x", nil)
	l.Warn("x", nil)
	l.Error("x", nil)
	if l.With(map[string]any{"a": 1}) != nil {
		t.Error("With on nil logger should return nil")
	}
	if err := l.Sync(); err != nil {
		t.Errorf("Sync on nil logger = %v, want nil", err)
	}
	l.Sugar().Infof("no panic %d", 1)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"WARN", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"", "info"},
		{"bogus", "info"},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in).String(); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
