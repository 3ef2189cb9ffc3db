// Package logger builds the process logger. Output goes to stderr so stdout
// stays usable for machine readable results.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// callerHandler annotates every record with the file and line that logged it.
type callerHandler struct {
	slog.Handler
}

// trimPathDepth keeps only the last n segments of the given path.
// Example: trimPathDepth("a/b/c/d.go", 3) => "b/c/d.go"
func trimPathDepth(path string, depth int) string {
	parts := strings.Split(path, "/")
	if len(parts) <= depth {
		return path
	}
	return strings.Join(parts[len(parts)-depth:], "/")
}

func (h *callerHandler) Handle(ctx context.Context, r slog.Record) error {
	caller := "unknown"
	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		if frame.File != "" {
			caller = fmt.Sprintf("%s:%d", trimPathDepth(frame.File, 3), frame.Line)
		}
	}
	r.AddAttrs(slog.String("caller", caller))
	return h.Handler.Handle(ctx, r)
}

func (h *callerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &callerHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *callerHandler) WithGroup(name string) slog.Handler {
	return &callerHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLevel maps debug, info, warn and error onto slog levels. Anything else is warn.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// New initializes the default logger for the application.
// It uses text format for development and JSON when ENV=production.
func New(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if os.Getenv("ENV") == "production" {
		handler = slog.NewJSONHandler(w, opts)
	}

	// Wrap with callerHandler to inject caller info
	handler = &callerHandler{Handler: handler}
	slog.SetDefault(slog.New(handler))
	return slog.Default()
}
