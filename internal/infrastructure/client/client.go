package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"webllm-bridge/internal/application/port/output"
	"webllm-bridge/internal/domain/entity"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// placeholderToken satisfies SDKs that refuse an empty key. The bridge
// ignores Authorization.
const placeholderToken = "not-needed"

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  output.LoggerPort
}

func DefaultConfig(baseURL, model string) Config {
	return Config{
		BaseURL: baseURL,
		APIKey:  placeholderToken,
		Model:   model,
		Timeout: 10 * time.Minute,
	}
}

// GenerateOptions are the optional sampling knobs shared by Chat and Generate.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

type Health struct {
	Status            string `json:"status"`
	WebLLMInitialized bool   `json:"webllm_initialized"`
	Timestamp         string `json:"timestamp"`
}

// Client talks to a running bridge the way an OpenAI SDK user would.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	chat    *openai.Client
	llm     *lcopenai.LLM
	logger  output.LoggerPort
}

type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.logger != nil {
		var bodyBytes []byte
		if req.Body != nil {
			bodyBytes, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
		}

		var requestData map[string]any
		if len(bodyBytes) > 0 {
			_ = json.Unmarshal(bodyBytes, &requestData)
		}

		t.logger.Debug("HTTP Request",
			"method", req.Method,
			"url", req.URL.String(),
			"body", requestData,
		)
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	if t.logger != nil && resp != nil {
		t.logger.Debug("HTTP Response",
			"status", resp.Status,
			"statusCode", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return resp, err
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = placeholderToken
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Logger != nil {
		httpClient.Transport = &loggingTransport{
			base:   http.DefaultTransport,
			logger: cfg.Logger,
		}
	}

	chatCfg := openai.DefaultConfig(apiKey)
	chatCfg.BaseURL = baseURL + "/v1"
	chatCfg.HTTPClient = httpClient

	llm, err := lcopenai.New(
		lcopenai.WithToken(apiKey),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithBaseURL(baseURL+"/v1"),
		lcopenai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create prompt client: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		model:   cfg.Model,
		http:    httpClient,
		chat:    openai.NewClientWithConfig(chatCfg),
		llm:     llm,
		logger:  cfg.Logger,
	}, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Models lists the catalog. The bridge returns a bare array, not the
// {"data": [...]} envelope go-openai expects, so it is fetched directly.
func (c *Client) Models(ctx context.Context) ([]entity.ModelInfo, error) {
	var models []entity.ModelInfo
	if err := c.getJSON(ctx, "/v1/models", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// Chat sends a messages-style completion and returns the first choice's text.
func (c *Client) Chat(ctx context.Context, messages []entity.Message, opts GenerateOptions) (string, error) {
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    convertMessages(messages),
		MaxTokens:   opts.MaxTokens,
		Temperature: float32(opts.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Generate sends a single prompt through the langchaingo OpenAI client.
func (c *Client) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var callOpts []llms.CallOption
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}

	text, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, callOpts...)
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}
	return text, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr openai.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != nil {
			return fmt.Errorf("GET %s: %d %s: %s", path, resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
		}
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		result = append(result, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return result
}
