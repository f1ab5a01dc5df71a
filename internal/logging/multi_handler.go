package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
)

// Tee sends every record to each non-nil handler that accepts its level.
// Handler errors are joined so one failing sink does not hide another.
func Tee(handlers ...slog.Handler) slog.Handler {
	sinks := make(tee, 0, len(handlers))
	for _, handler := range handlers {
		if handler != nil {
			sinks = append(sinks, handler)
		}
	}
	switch len(sinks) {
	case 0:
		return slog.NewTextHandler(io.Discard, nil)
	case 1:
		return sinks[0]
	}
	return sinks
}

type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range t {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, sink := range t {
		if sink.Enabled(ctx, record.Level) {
			errs = append(errs, sink.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t tee) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t tee) each(fn func(slog.Handler) slog.Handler) tee {
	next := make(tee, len(t))
	for i, sink := range t {
		next[i] = fn(sink)
	}
	return next
}
