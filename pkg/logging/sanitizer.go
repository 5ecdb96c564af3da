package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

// redaction replaces every match of pattern with replacement.
type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

func (r redaction) apply(s string) string {
	return r.pattern.ReplaceAllString(s, r.replacement)
}

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordRedaction = redaction{
		regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`),
		"${1}=" + RedactedText,
	}

	bearerRedaction = redaction{
		regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`),
		"Bearer " + RedactedText,
	}

	apiKeyRedaction = redaction{
		regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`),
		"${1}=" + RedactedText,
	}

	// OpenAI (sk-...) and Anthropic (sk-ant-...) secret keys echoed back in
	// provider error bodies.
	providerKeyRedaction = redaction{
		regexp.MustCompile(`\bsk-(?:ant-)?[A-Za-z0-9_-]{20,}`),
		RedactedText,
	}

	// user:pass@host in URL-style DSNs
	credentialsRedaction = redaction{
		regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`),
		"://" + RedactedText + "@" + RedactedText,
	}

	// user:pass@tcp(host) in go-sql-driver/mysql DSNs
	mysqlCredentialsRedaction = redaction{
		regexp.MustCompile(`[^\s:@/]+:[^\s@]+@(tcp|unix)\(`),
		RedactedText + "@${1}(",
	}
)

// SanitizeConnectionString removes credentials from a DSN.
// Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	return redact(connStr, passwordRedaction, credentialsRedaction, mysqlCredentialsRedaction)
}

// SanitizeError renders err with credentials, bearer tokens and API keys
// removed. Driver and LLM provider errors go through this before logging.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeMessage(err.Error())
}

// SanitizeMessage applies the SanitizeError redactions to text that has
// already been flattened to a string, such as a message bound for a client.
func SanitizeMessage(msg string) string {
	return redact(msg,
		passwordRedaction,
		bearerRedaction,
		apiKeyRedaction,
		providerKeyRedaction,
		credentialsRedaction,
		mysqlCredentialsRedaction)
}

// SanitizeQuery shortens a SQL statement to MaxQueryLogLength and removes
// inline secrets.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	return redact(TruncateString(query, MaxQueryLogLength), passwordRedaction, apiKeyRedaction)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func redact(s string, rs ...redaction) string {
	for _, r := range rs {
		s = r.apply(s)
	}
	return s
}
