package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanTree(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "GET /api/v1/query", "req-1")
	childCtx, child := StartChildSpan(ctx, "cache.lookup")
	child.SetAttr("hit", false)
	_, grandchild := StartChildSpan(childCtx, "index.query")
	grandchild.End()
	child.End()
	root.End()

	require.Len(t, root.Children(), 1)
	assert.Equal(t, "req-1", child.TraceID)
	assert.Equal(t, "req-1", grandchild.TraceID)
	v, ok := child.Attr("hit")
	assert.True(t, ok)
	assert.Equal(t, false, v)
	assert.Same(t, child, SpanFromContext(childCtx))
}

func TestDetachedChild(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	assert.Empty(t, span.TraceID)
	assert.Nil(t, SpanFromContext(context.Background()))
}

func TestLog(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "root", "trace-9")
	_, child := StartChildSpan(ctx, "child")
	child.End()
	root.End()

	var buf bytes.Buffer
	root.Log(ctx, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "span=root")
	assert.Contains(t, lines[1], "span=child")
	assert.Contains(t, lines[1], "trace_id=trace-9")

	buf.Reset()
	root.Log(ctx, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	assert.Empty(t, buf.String())
}
