package slogutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextHandler_EmitsContextAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil)))

	ctx := With(context.Background(), "scan_id", "abc123")
	ctx = With(ctx, "segment", 7)

	log.InfoContext(ctx, "reading")

	out := buf.String()
	if !strings.Contains(out, "scan_id=abc123") {
		t.Fatalf("missing scan_id attr: %s", out)
	}
	if !strings.Contains(out, "segment=7") {
		t.Fatalf("missing segment attr: %s", out)
	}
}

func TestWith_IgnoresMalformedPairs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil)))

	ctx := With(context.Background(), 42, "not-a-key", "ok", "yes")
	log.InfoContext(ctx, "msg")

	out := buf.String()
	if !strings.Contains(out, "ok=yes") {
		t.Fatalf("missing valid attr: %s", out)
	}
}

func TestContextHandler_PlainContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil)))

	log.InfoContext(context.Background(), "msg")
	if !strings.Contains(buf.String(), "msg") {
		t.Fatalf("record lost: %s", buf.String())
	}
}
