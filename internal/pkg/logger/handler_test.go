package logger

import (
	"bytes"
	"context"
	log "log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler_AddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := log.New(&ContextHandler{log.NewJSONHandler(&buf, nil)})

	l.InfoContext(WithTraceID(context.Background(), "t-1"), "hello")
	assert.Contains(t, buf.String(), `"trace_id":"t-1"`)

	buf.Reset()
	l.InfoContext(context.Background(), "hello")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestTeeHandler_RemoteReceivesOnlyTracedOrWarn(t *testing.T) {
	var local, remote bytes.Buffer
	h := NewTeeHandler(
		log.NewJSONHandler(&local, nil),
		&RemoteFilterHandler{next: log.NewJSONHandler(&remote, nil)},
	)
	l := log.New(&ContextHandler{h})

	l.Info("untraced")
	l.InfoContext(WithTraceID(context.Background(), "t-2"), "traced")
	l.Warn("warning")

	assert.Contains(t, local.String(), "untraced")
	assert.Contains(t, local.String(), "traced")
	assert.NotContains(t, remote.String(), "untraced")
	assert.Contains(t, remote.String(), `"msg":"traced"`)
	assert.Contains(t, remote.String(), "warning")
}

func TestTeeHandler_Enabled(t *testing.T) {
	h := NewTeeHandler(
		log.NewJSONHandler(&bytes.Buffer{}, &log.HandlerOptions{Level: log.LevelError}),
		log.NewJSONHandler(&bytes.Buffer{}, &log.HandlerOptions{Level: log.LevelDebug}),
	)
	require.True(t, h.Enabled(context.Background(), log.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, log.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, log.LevelError, ParseLevel("error"))
	assert.Equal(t, log.LevelInfo, ParseLevel("nonsense"))
}
