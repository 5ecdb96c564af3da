package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/sqlgate/pkg/apperrors"
)

func TestContextAwareTransport_InjectsRequestID(t *testing.T) {
	var receivedHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeader = r.Header.Get(requestIDHeader)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: &contextAwareTransport{base: http.DefaultTransport}}

	ctx := WithCallContext(context.Background(), "req-42", PhaseGenerate, 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "req-42", receivedHeader)
}

func TestContextAwareTransport_NoHeaderWithoutRequestID(t *testing.T) {
	var headerPresent bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, headerPresent = r.Header[requestIDHeader]
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := &http.Client{Transport: &contextAwareTransport{base: http.DefaultTransport}}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.False(t, headerPresent)
}

// openAIServer answers chat completions with content, or with status when non-2xx.
func openAIServer(t *testing.T, status int, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}
		body := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newTestClient(t *testing.T, url string, disableThinking bool) *Client {
	t.Helper()
	c, err := NewClient(&Config{
		Endpoint:        url + "/v1",
		Model:           "test-model",
		DisableThinking: disableThinking,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestClient_Generate(t *testing.T) {
	var req map[string]any
	server := openAIServer(t, http.StatusOK, "SELECT name FROM artists", &req)
	defer server.Close()

	c := newTestClient(t, server.URL, false)
	res, err := c.Generate(context.Background(), "system text", []Message{UserMessage("list artists")})
	require.NoError(t, err)

	assert.Equal(t, "SELECT name FROM artists", res.Content)
	assert.Equal(t, 12, res.PromptTokens)
	assert.Equal(t, 4, res.CompletionTokens)
	assert.Equal(t, 16, res.TotalTokens)

	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "system text", messages[0].(map[string]any)["content"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	_, hasKwargs := req["chat_template_kwargs"]
	assert.False(t, hasKwargs)
}

func TestClient_Generate_DisableThinking(t *testing.T) {
	var req map[string]any
	server := openAIServer(t, http.StatusOK, "<think>artists table</think>\nSELECT 1", &req)
	defer server.Close()

	c := newTestClient(t, server.URL, true)
	res, err := c.Generate(context.Background(), "", []Message{UserMessage("q")})
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1", res.Content)
	assert.Equal(t, map[string]any{"enable_thinking": false}, req["chat_template_kwargs"])
}

func TestClient_Generate_EmptyContent(t *testing.T) {
	server := openAIServer(t, http.StatusOK, "   ", nil)
	defer server.Close()

	c := newTestClient(t, server.URL, false)
	_, err := c.Generate(context.Background(), "", []Message{UserMessage("q")})
	require.Error(t, err)

	assert.True(t, errors.Is(err, apperrors.ErrEmptyGeneratorResponse))
	assert.Equal(t, ErrorTypeResponse, GetErrorType(err))
	assert.True(t, IsRetryable(err))
}

func TestClient_Generate_ServerError(t *testing.T) {
	server := openAIServer(t, http.StatusServiceUnavailable, "", nil)
	defer server.Close()

	c := newTestClient(t, server.URL, false)
	_, err := c.Generate(context.Background(), "", []Message{UserMessage("q")})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, 503, llmErr.StatusCode)
	assert.True(t, llmErr.Retryable)
	assert.Equal(t, "test-model", llmErr.Model)
}

func TestNewClient_RequiresModel(t *testing.T) {
	_, err := NewClient(&Config{Endpoint: "http://localhost:11434/v1"}, nil)
	assert.Error(t, err)
}

func TestAnthropicClient_Generate(t *testing.T) {
	var req map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"content": [{"type": "text", "text": "SELECT COUNT(*) FROM tracks"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 6}
		}`))
	}))
	defer server.Close()

	c, err := NewAnthropicClient(&Config{
		Provider: ProviderAnthropic,
		Endpoint: server.URL + "/v1",
		Model:    "claude-test",
		APIKey:   "test-key",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	res, err := c.Generate(context.Background(), "system text", []Message{
		UserMessage("how many tracks"),
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM tracks", res.Content)
	assert.Equal(t, 20, res.PromptTokens)
	assert.Equal(t, 6, res.CompletionTokens)
	assert.Equal(t, 26, res.TotalTokens)
	assert.Contains(t, fmt.Sprint(req["system"]), "system text")
	assert.Equal(t, float64(defaultAnthropicMaxTokens), req["max_tokens"])
}

func TestNewProviderClient(t *testing.T) {
	g, err := NewProviderClient(&Config{Model: "m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Client{}, g)

	g, err = NewProviderClient(&Config{Provider: "Anthropic", Model: "m"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, g)

	_, err = NewProviderClient(&Config{Provider: "bedrock", Model: "m"}, nil)
	assert.ErrorContains(t, err, `unsupported llm provider "bedrock"`)
}

func TestNewGenerator_Guarded(t *testing.T) {
	g, err := NewGenerator(&Config{Model: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "m", g.Model())
	assert.Equal(t, CircuitClosed, g.Breaker().State())

	_, err = NewGenerator(&Config{Provider: "openai"}, nil)
	assert.ErrorContains(t, err, "create openai generator")
}
