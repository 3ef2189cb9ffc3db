package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestTrimPathDepth(t *testing.T) {
	tests := []struct {
		path  string
		depth int
		want  string
	}{
		{"a/b/c/d.go", 3, "b/c/d.go"},
		{"c/d.go", 3, "c/d.go"},
		{"d.go", 1, "d.go"},
	}
	for _, tt := range tests {
		if got := trimPathDepth(tt.path, tt.depth); got != tt.want {
			t.Errorf("trimPathDepth(%q, %d) = %q, want %q", tt.path, tt.depth, got, tt.want)
		}
	}
}

func TestNew_AddsCaller(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelDebug)

	log.With("component", "test").Info("hello", "n", 1)

	out := buf.String()
	if !strings.Contains(out, "logger/logger_test.go:") {
		t.Errorf("caller attribute missing or wrong: %s", out)
	}
	if !strings.Contains(out, "component=test") {
		t.Errorf("WithAttrs lost: %s", out)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelWarn)

	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestNew_ProductionJSON(t *testing.T) {
	t.Setenv("ENV", "production")

	var buf bytes.Buffer
	New(&buf, slog.LevelInfo).Info("ready")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if record["msg"] != "ready" || record["caller"] == nil {
		t.Errorf("record = %v", record)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"error": slog.LevelError,
		"":      slog.LevelWarn,
		"loud":  slog.LevelWarn,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
