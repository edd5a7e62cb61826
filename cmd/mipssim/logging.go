package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/sarchlab/mipssim/timing/pipeline"
)

// newLogHandler builds the process log handler. Console output goes to
// stderr at warn level, or debug when verbose. A non-nil trace writer also
// receives every record down to pipeline.LevelTrace as JSON.
func newLogHandler(stderr, trace io.Writer, verbose bool) slog.Handler {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	console := slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: level,
	})
	if trace == nil {
		return console
	}

	return teeHandler{
		console,
		slog.NewJSONHandler(trace, &slog.HandlerOptions{
			Level: pipeline.LevelTrace,
		}),
	}
}

// teeHandler passes each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
