package env

import (
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const DefaultModel = "Llama-3.2-1B-Instruct-q4f32_1-MLC"

// Config holds all service configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Bridge    BridgeConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host               string        `envconfig:"HOST" default:"localhost"`
	Port               string        `envconfig:"PORT" default:"15408"`
	MaxBodyBytes       int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	ExposeErrorDetails bool          `envconfig:"EXPOSE_ERROR_DETAILS" default:"false"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// BrowserConfig holds remote execution host configuration.
type BrowserConfig struct {
	Headless  bool   `envconfig:"BROWSER_HEADLESS" default:"true"`
	Bin       string `envconfig:"BROWSER_BIN"`
	NoSandbox bool   `envconfig:"BROWSER_NO_SANDBOX" default:"false"`
}

// BridgeConfig holds the engine lifecycle configuration.
type BridgeConfig struct {
	Model             string        `envconfig:"WEBLLM_MODEL" default:"Llama-3.2-1B-Instruct-q4f32_1-MLC"`
	Document          string        `envconfig:"BRIDGE_DOCUMENT"`
	PollTimeout       time.Duration `envconfig:"BRIDGE_POLL_TIMEOUT" default:"60s"`
	ProbeTimeout      time.Duration `envconfig:"BRIDGE_PROBE_TIMEOUT" default:"5s"`
	InitializeTimeout time.Duration `envconfig:"BRIDGE_INIT_TIMEOUT" default:"10m"`
	InvokeTimeout     time.Duration `envconfig:"BRIDGE_INVOKE_TIMEOUT" default:"5m"`
	RetryInitial      time.Duration `envconfig:"BRIDGE_RETRY_INITIAL" default:"5s"`
	RetryMax          time.Duration `envconfig:"BRIDGE_RETRY_MAX" default:"5m"`
	EagerInit         bool          `envconfig:"BRIDGE_EAGER_INIT" default:"false"`
	FailFast          bool          `envconfig:"BRIDGE_FAIL_FAST" default:"false"`
	DiagnosticsDir    string        `envconfig:"BRIDGE_DIAGNOSTICS_DIR"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"WEBLLM_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting for inference requests.
type RateLimitConfig struct {
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"false"`
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"20"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Bridge.Model == "" {
		return fmt.Errorf("WEBLLM_MODEL must not be empty")
	}
	if c.Bridge.PollTimeout <= 0 || c.Bridge.ProbeTimeout <= 0 {
		return fmt.Errorf("bridge poll timeouts must be positive")
	}
	if c.Bridge.InitializeTimeout <= 0 || c.Bridge.InvokeTimeout <= 0 {
		return fmt.Errorf("bridge call timeouts must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive when enabled")
	}
	return nil
}

func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}
