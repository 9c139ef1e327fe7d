// Package slogutil attaches slog attributes to a context so nested calls can
// log with the caller's scope without threading a logger through every
// signature.
package slogutil

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// With returns a context carrying the given key-value pairs in addition to
// any already present. Records logged through a ContextHandler with this
// context include them.
func With(ctx context.Context, args ...any) context.Context {
	existing, _ := ctx.Value(ctxKey{}).([]slog.Attr)

	attrs := make([]slog.Attr, 0, len(existing)+len(args)/2)
	attrs = append(attrs, existing...)

	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return context.WithValue(ctx, ctxKey{}, attrs)
}

// ContextHandler wraps a slog.Handler and adds the attributes carried by the
// record's context.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: inner}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
