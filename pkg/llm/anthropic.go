package llm

import (
	"context"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/apperrors"
	"github.com/ekaya-inc/sqlgate/pkg/logging"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient generates SQL with Anthropic's Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	cfg    Config
	logger *zap.Logger
}

// NewAnthropicClient creates a generator backed by the Anthropic API.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []anthropic.ClientOption{anthropic.WithHTTPClient(newHTTPClient(cfg.Timeout))}
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.Endpoint, "/")))
	}

	c := *cfg
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		cfg:    c,
		logger: logger.Named("llm"),
	}, nil
}

// Generate sends a Messages request and returns the first text block.
func (c *AnthropicClient) Generate(ctx context.Context, systemPrompt string, messages []Message) (*GenerateResult, error) {
	msgs := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		text := m.Content
		role := anthropic.RoleUser
		if m.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{Role: role, Content: []anthropic.MessageContent{
			{Type: "text", Text: &text},
		}})
	}

	temperature := float32(c.cfg.Temperature)

	fields := contextFields(ctx)
	c.logger.Debug("LLM request", append(fields,
		zap.String("model", c.cfg.Model),
		zap.Int("messages", len(msgs)),
		zap.Float64("temperature", c.cfg.Temperature))...)

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.cfg.Model),
		System:      systemPrompt,
		Messages:    msgs,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		c.logger.Error("LLM request failed", append(fields,
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))...)
		llmErr := ClassifyError(err)
		llmErr.Model = c.cfg.Model
		llmErr.Endpoint = c.cfg.Endpoint
		return nil, llmErr
	}

	content := textFromResponse(resp)
	if strings.TrimSpace(content) == "" {
		return nil, NewErrorWithContext(ErrorTypeResponse, "empty response", true,
			apperrors.ErrEmptyGeneratorResponse, c.cfg.Model, c.cfg.Endpoint, 0)
	}

	c.logger.Info("LLM request completed", append(fields,
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))...)

	return &GenerateResult{
		Content:          content,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.cfg.Model
}

func textFromResponse(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}
