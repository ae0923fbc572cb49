package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"atlas-gw/atlas/pkg/config"
)

func logLine(t *testing.T, cfg config.LoggingConfig, fn func(*slog.Logger)) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := New(cfg, &buf)
	fn(logger)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestRedact_SensitiveKey(t *testing.T) {
	entry := logLine(t, config.LoggingConfig{}, func(l *slog.Logger) {
		l.Info("endpoint added", "endpoint", "primary", "api_key", "sk-abc123def456")
	})

	got, _ := entry["api_key"].(string)
	if strings.Contains(got, "abc123def456") {
		t.Errorf("api_key = %q, credential leaked", got)
	}
	if got != "sk-a***" {
		t.Errorf("api_key = %q, want masked prefix sk-a***", got)
	}
	if entry["endpoint"] != "primary" {
		t.Errorf("endpoint = %v, non-sensitive attrs must pass through", entry["endpoint"])
	}
}

func TestRedact_EmbeddedCredential(t *testing.T) {
	entry := logLine(t, config.LoggingConfig{}, func(l *slog.Logger) {
		l.Warn("probe failed", "detail", "request with Bearer eyJhbGciOi.extra rejected")
	})

	got, _ := entry["detail"].(string)
	if strings.Contains(got, "eyJhbGciOi") {
		t.Errorf("detail = %q, bearer token leaked", got)
	}
}

func TestRedact_Disabled(t *testing.T) {
	off := false
	entry := logLine(t, config.LoggingConfig{RedactSecrets: &off}, func(l *slog.Logger) {
		l.Info("raw", "api_key", "sk-abc123def456")
	})

	if entry["api_key"] != "sk-abc123def456" {
		t.Errorf("api_key = %v, redaction should be off", entry["api_key"])
	}
}

func TestRedact_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{}, &buf)
	logger.With("token", "supersecretvalue").Info("bound attrs")

	if strings.Contains(buf.String(), "supersecretvalue") {
		t.Errorf("output = %q, bound credential leaked", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
