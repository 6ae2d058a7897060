package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// sivHandler writes one line per record:
//
//	<timestamp>\t<level>\t<invocation>\t<message>\t<key=value ...>
//
// invocation tags every line of a single CLI command, so interleaved runs in
// siv.log can be told apart.
type sivHandler struct {
	w          io.Writer
	invocation string
	min        slog.Level
	attrs      []slog.Attr
}

func (h *sivHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.min }

func (h *sivHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	level := r.Level.String()

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, level, h.invocation, r.Message)
	if err != nil {
		return err
	}

	// Write pre-set attrs.
	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}

	// Write per-record attrs.
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *sivHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sivHandler{
		w:          h.w,
		invocation: h.invocation,
		min:        h.min,
		attrs:      append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *sivHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a logger writing to logDir/siv.log and to stderr at
// stderrLevel or above. It returns the open log file for the caller to close.
func newLogger(logDir string, invocation string, stderrLevel slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "siv.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &fanoutHandler{handlers: []slog.Handler{
		&sivHandler{w: f, invocation: invocation, min: slog.LevelDebug},
		&sivHandler{w: os.Stderr, invocation: invocation, min: stderrLevel},
	}}
	return slog.New(handler), f, nil
}

// fanoutHandler passes each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sub := range h.handlers {
		if sub.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, sub := range h.handlers {
		if !sub.Enabled(ctx, r.Level) {
			continue
		}
		if err := sub.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &fanoutHandler{handlers: make([]slog.Handler, len(h.handlers))}
	for i, sub := range h.handlers {
		out.handlers[i] = sub.WithAttrs(attrs)
	}
	return out
}

func (h *fanoutHandler) WithGroup(string) slog.Handler { return h }

// slogAdapter wraps *slog.Logger to satisfy the siv.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
