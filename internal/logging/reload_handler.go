package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// sinkRef holds the current handler chain of one module logger so that
// Initialize can swap sinks under loggers that packages already captured.
type sinkRef struct {
	h atomic.Pointer[slog.Handler]
}

func (r *sinkRef) store(h slog.Handler) { r.h.Store(&h) }

func (r *sinkRef) load() slog.Handler { return *r.h.Load() }

// reloadHandler resolves the module's sink chain on every record and
// replays WithAttrs/WithGroup calls on top of it.
type reloadHandler struct {
	ref   *sinkRef
	level slog.Leveler
	ops   []func(slog.Handler) slog.Handler
}

func (h *reloadHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *reloadHandler) Handle(ctx context.Context, r slog.Record) error {
	inner := h.ref.load()
	for _, op := range h.ops {
		inner = op(inner)
	}
	return inner.Handle(ctx, r)
}

func (h *reloadHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.with(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *reloadHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.with(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *reloadHandler) with(op func(slog.Handler) slog.Handler) *reloadHandler {
	ops := make([]func(slog.Handler) slog.Handler, len(h.ops), len(h.ops)+1)
	copy(ops, h.ops)
	return &reloadHandler{ref: h.ref, level: h.level, ops: append(ops, op)}
}
