package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-entities/internal/infrastructure/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestNew_Outputs(t *testing.T) {
	for _, out := range []string{"stdout", "stderr", ""} {
		if New(config.LoggingConfig{Output: out}, "1.0.0") == nil {
			t.Errorf("New(output=%q) returned nil", out)
		}
	}
	if Default() == nil {
		t.Error("Default() returned nil")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewWriter_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "test")

	logger.Component("entitystore").Info("entity created", "unique_id", "knx_es_01")

	entry := decodeLine(t, &buf)
	want := map[string]any{
		"msg":       "entity created",
		"service":   "graylogic-entities",
		"version":   "test",
		"component": "entitystore",
		"unique_id": "knx_es_01",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestNewWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LoggingConfig{Level: "warn", Format: "text"}, "test")

	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(output, "msg=shown") {
		t.Errorf("text output missing warn entry: %q", output)
	}
}

func TestNewWriter_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LoggingConfig{Format: "json"}, "test")

	logger.Info("login", "username", "admin", "password", "hunter2", "jwt_secret", "s3cret", "access_token", "abc")

	entry := decodeLine(t, &buf)
	for _, key := range []string{"password", "jwt_secret", "access_token"} {
		if entry[key] != redacted {
			t.Errorf("%s = %v, want %s", key, entry[key], redacted)
		}
	}
	if entry["username"] != "admin" {
		t.Errorf("username = %v, want admin", entry["username"])
	}
}

func TestLogger_WithIsIndependent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriter(&buf, config.LoggingConfig{Format: "json"}, "test")
	child := parent.With("device", "plug1")

	parent.Info("parent")
	if strings.Contains(buf.String(), "plug1") {
		t.Error("child attributes leaked into parent")
	}
	buf.Reset()
	child.Info("child")
	if entry := decodeLine(t, &buf); entry["device"] != "plug1" {
		t.Errorf("device = %v, want plug1", entry["device"])
	}
}
