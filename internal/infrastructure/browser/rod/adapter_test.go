package rod

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(server.Close)
	return server
}

func launchSession(t *testing.T) output.HostSession {
	t.Helper()
	if testing.Short() {
		t.Skip("launches a real browser")
	}

	host := NewHost(DefaultConfig(), logger.NewNop())
	session, err := host.Launch(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Headless)
	assert.False(t, cfg.NoSandbox, "Should be secure by default")
	assert.Equal(t, defaultNavigationTimeout, cfg.NavigationTimeout)
}

func TestNewHost_ZeroTimeout(t *testing.T) {
	host := NewHost(HostConfig{}, logger.NewNop())
	assert.Equal(t, defaultNavigationTimeout, host.cfg.NavigationTimeout)
}

func TestHost_LaunchCancelled(t *testing.T) {
	host := NewHost(DefaultConfig(), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := host.Launch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_ProxyLifecycle(t *testing.T) {
	server := serveHTML(t, StubProxyHTML)
	session := launchSession(t)
	ctx := context.Background()

	require.NotEmpty(t, session.ID())
	require.NoError(t, session.Open(ctx, server.URL))
	require.NoError(t, session.WaitFor(ctx, `() => window.webllmProxy !== undefined`, 5*time.Second))

	_, err := session.Evaluate(ctx, `async (opts) => { await window.webllmProxy.initialize(opts); return true; }`,
		map[string]any{"model": "stub-model"})
	require.NoError(t, err)
	require.NoError(t, session.WaitFor(ctx, `() => window.webllmProxy.isReady() === true`, 5*time.Second))

	raw, err := session.Evaluate(ctx, `async (op, args) => await window.webllmProxy[op](args)`,
		"generateText", map[string]any{"messages": []map[string]string{{"role": "user", "content": "hi"}}})
	require.NoError(t, err)

	var got struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "stub-model", got.Model)
	require.Len(t, got.Choices, 1)
	assert.Equal(t, "echo: hi", got.Choices[0].Message.Content)
}

func TestSession_EvaluateRejection(t *testing.T) {
	server := serveHTML(t, FailingProxyHTML)
	session := launchSession(t)
	ctx := context.Background()

	require.NoError(t, session.Open(ctx, server.URL))
	_, err := session.Evaluate(ctx, `async () => await window.webllmProxy.initialize({model: "x"})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WebGPU is not available")
}

func TestSession_WaitForTimeout(t *testing.T) {
	server := serveHTML(t, FailingProxyHTML)
	session := launchSession(t)
	ctx := context.Background()

	require.NoError(t, session.Open(ctx, server.URL))
	err := session.WaitFor(ctx, `() => window.webllmProxy.isReady() === true`, 300*time.Millisecond)
	assert.ErrorIs(t, err, output.ErrPollTimeout)
}

func TestSession_EvaluateUndefinedIsNull(t *testing.T) {
	server := serveHTML(t, BasicHTML)
	session := launchSession(t)
	ctx := context.Background()

	require.NoError(t, session.Open(ctx, server.URL))
	raw, err := session.Evaluate(ctx, `() => undefined`)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestSession_Screenshot(t *testing.T) {
	server := serveHTML(t, BasicHTML)
	session := launchSession(t)
	ctx := context.Background()

	require.NoError(t, session.Open(ctx, server.URL))
	shot, err := session.Screenshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, "jpeg", shot.Format)
	assert.NotEmpty(t, shot.Data)
	assert.Greater(t, shot.Width, 0)
	assert.Greater(t, shot.Height, 0)
}

func TestSession_Markup(t *testing.T) {
	server := serveHTML(t, StubProxyHTML)
	session := launchSession(t)
	ctx := context.Background()

	require.NoError(t, session.Open(ctx, server.URL))
	markup, err := session.Markup(ctx)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(markup, "<body"))
	assert.NotContains(t, markup, "<script")
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	session := launchSession(t)
	ctx := context.Background()

	require.NoError(t, session.Close())
	assert.NoError(t, session.Close())

	assert.ErrorIs(t, session.Open(ctx, "about:blank"), output.ErrSessionClosed)
	_, err := session.Evaluate(ctx, `() => 1`)
	assert.ErrorIs(t, err, output.ErrSessionClosed)
	assert.ErrorIs(t, session.WaitFor(ctx, `() => true`, time.Second), output.ErrSessionClosed)
}
