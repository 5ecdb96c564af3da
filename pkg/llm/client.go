package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/apperrors"
	"github.com/ekaya-inc/sqlgate/pkg/logging"
)

// Providers accepted by NewGenerator.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds configuration for creating a generator.
type Config struct {
	Provider    string        // ProviderOpenAI (any OpenAI-compatible endpoint) or ProviderAnthropic
	Endpoint    string        // Base URL, e.g., "https://api.openai.com/v1"; empty uses the provider default
	Model       string        // Model name, e.g., "gpt-4o"
	APIKey      string        // Optional for local endpoints
	Temperature float64       // Sampling temperature
	MaxTokens   int           // Completion cap; 0 leaves it to the provider (OpenAI) or 1024 (Anthropic)
	Timeout     time.Duration // Per-request HTTP timeout; 0 means none

	// DisableThinking sends chat_template_kwargs enable_thinking=false, which
	// vLLM, Nemotron and Qwen3 honour. Other endpoints may reject the field.
	DisableThinking bool
}

func (c *Config) validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

const requestIDHeader = "X-Request-Id"

// contextAwareTransport copies the request id from the call context onto
// outgoing requests so provider logs can be matched to ours.
type contextAwareTransport struct {
	base http.RoundTripper
}

func (t *contextAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if id := RequestID(req.Context()); id != "" {
		req = req.Clone(req.Context())
		req.Header.Set(requestIDHeader, id)
	}
	return t.base.RoundTrip(req)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &contextAwareTransport{base: http.DefaultTransport},
	}
}

// Client provides access to OpenAI-compatible LLM endpoints.
type Client struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a new OpenAI-compatible generator.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	clientConfig.HTTPClient = newHTTPClient(cfg.Timeout)

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    *cfg,
		logger: logger.Named("llm"),
	}, nil
}

// Generate sends a chat completion request. Thinking blocks some local
// models emit before the answer are stripped from the returned content.
func (c *Client) Generate(ctx context.Context, systemPrompt string, messages []Message) (*GenerateResult, error) {
	chat := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		chat = append(chat, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		chat = append(chat, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    chat,
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   c.cfg.MaxTokens,
	}
	if c.cfg.DisableThinking {
		req.ChatTemplateKwargs = map[string]any{
			"enable_thinking": false,
		}
	}

	fields := contextFields(ctx)
	c.logger.Debug("LLM request", append(fields,
		zap.String("model", c.cfg.Model),
		zap.Int("messages", len(chat)),
		zap.Float64("temperature", c.cfg.Temperature))...)

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("LLM request failed", append(fields,
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))...)
		return nil, c.parseError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, c.emptyResponse()
	}

	content := StripThinking(resp.Choices[0].Message.Content)
	if strings.TrimSpace(content) == "" {
		return nil, c.emptyResponse()
	}

	c.logger.Info("LLM request completed", append(fields,
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))...)

	return &GenerateResult{
		Content:          content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// parseError categorizes OpenAI API errors using the structured Error type.
func (c *Client) parseError(err error) error {
	llmErr := ClassifyError(err)
	llmErr.Model = c.cfg.Model
	llmErr.Endpoint = c.cfg.Endpoint
	return llmErr
}

// An empty reply is retryable: sampling again usually produces content.
func (c *Client) emptyResponse() error {
	return NewErrorWithContext(ErrorTypeResponse, "empty response", true,
		apperrors.ErrEmptyGeneratorResponse, c.cfg.Model, c.cfg.Endpoint, 0)
}
