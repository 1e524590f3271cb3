package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:15408", cfg.Server.Addr())
	assert.Equal(t, DefaultModel, cfg.Bridge.Model)
	assert.Equal(t, 60*time.Second, cfg.Bridge.PollTimeout)
	assert.Equal(t, 5*time.Second, cfg.Bridge.ProbeTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Browser.NoSandbox)
	assert.False(t, cfg.Server.ExposeErrorDetails)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("WEBLLM_MODEL", "SmolLM-360M-Instruct-q4f16_1-MLC")
	t.Setenv("BRIDGE_POLL_TIMEOUT", "90s")
	t.Setenv("WEBLLM_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:9000", cfg.Server.Addr())
	assert.Equal(t, "SmolLM-360M-Instruct-q4f16_1-MLC", cfg.Bridge.Model)
	assert.Equal(t, 90*time.Second, cfg.Bridge.PollTimeout)
	assert.True(t, cfg.Logging.Development)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"Bad duration", "BRIDGE_INVOKE_TIMEOUT", "soon"},
		{"Zero poll timeout", "BRIDGE_POLL_TIMEOUT", "0s"},
		{"Bad bool", "BROWSER_HEADLESS", "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_RateLimitRequiresPositiveValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_RPS", "0")

	_, err := Load()
	assert.Error(t, err)
}
