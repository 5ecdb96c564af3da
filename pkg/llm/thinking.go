package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that may appear at the start of LLM responses.
var thinkTagPattern = regexp.MustCompile(`(?s)^[\s]*<think>.*?</think>[\s]*`)

// thinkContentPattern extracts the content inside <think>...</think> tags.
var thinkContentPattern = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// ExtractThinking extracts the content from <think>...</think> tags in an LLM response.
// Returns empty string if no thinking tags are found.
func ExtractThinking(response string) string {
	matches := thinkContentPattern.FindStringSubmatch(response)
	if len(matches) >= 2 {
		return strings.TrimSpace(matches[1])
	}
	return ""
}

// StripThinking removes a leading <think>...</think> block. An unterminated
// block means the model ran out of tokens mid-thought and nothing usable
// follows, so the result is empty.
func StripThinking(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")
	if strings.HasPrefix(strings.TrimSpace(cleaned), "<think>") {
		return ""
	}
	return cleaned
}
