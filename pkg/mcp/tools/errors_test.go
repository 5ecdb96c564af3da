package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTextContent extracts the text string from the first text content item
func getTextContent(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	// The Content slice contains mcp.Content interface types
	// We need to marshal and unmarshal to extract the text
	jsonBytes, _ := json.Marshal(result.Content[0])
	var textContent struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	json.Unmarshal(jsonBytes, &textContent)
	return textContent.Text
}

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult("invalid_parameters", "question must not be empty")

	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	assert.True(t, result.IsError)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))

	assert.True(t, errResp.Error, "error field should be true")
	assert.Equal(t, "invalid_parameters", errResp.Code)
	assert.Equal(t, "question must not be empty", errResp.Message)
	assert.Nil(t, errResp.Details, "details should be nil when not provided")
}

func TestNewErrorResultWithDetails(t *testing.T) {
	details := map[string]any{
		"termination_reason": "retry_exhausted",
		"retry_count":        3,
	}

	result := NewErrorResultWithDetails("retry_exhausted", "The query could not be answered.", details)

	require.NotNil(t, result)
	assert.True(t, result.IsError)

	var errResp map[string]any
	require.NoError(t, json.Unmarshal([]byte(getTextContent(result)), &errResp))

	assert.Equal(t, true, errResp["error"])
	assert.Equal(t, "retry_exhausted", errResp["code"])
	got, ok := errResp["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "retry_exhausted", got["termination_reason"])
	assert.Equal(t, float64(3), got["retry_count"])
}

func TestErrorResponse_OmitsEmptyDetails(t *testing.T) {
	text := getTextContent(NewErrorResult("code", "message"))
	assert.NotContains(t, text, "details")
}
