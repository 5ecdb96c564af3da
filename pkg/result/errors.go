package result

import (
	"strings"

	"github.com/ekaya-inc/sqlgate/pkg/models"
)

// Messages shown to end users. Raw reasons stay in response metadata.
const (
	MessageUnprocessable   = "The query could not be processed."
	MessageMissingTable    = "The query refers to a table that does not exist in the database."
	MessageMissingColumn   = "The query refers to a column that does not exist in the database."
	MessageJoin            = "The requested tables cannot be joined using the database relationships."
	MessageGrouping        = "The query mixes aggregated and non-aggregated fields incorrectly."
	MessageTooManyRows     = "The query returned too many rows. Try narrowing the question or asking for an aggregate."
	MessageSchemaChanged   = "The database schema changed since the service started. Please try again after it is restarted."
	MessageSchemaCheck     = "The database schema could not be checked. Please try again later."
	MessageGeneratorFailed = "The question could not be translated into a query right now. Please try again later."
	MessageUnsafe          = "The generated query was rejected as unsafe."
	MessageFallback        = "The query could not be answered with the available schema."
)

// FormatError maps a raw failure reason to a user-facing error result.
func FormatError(reason string) *models.QueryResult {
	return &models.QueryResult{Type: TypeError, Message: FormatMessage(reason)}
}

// FormatMessage maps a raw failure reason to a user-facing sentence.
func FormatMessage(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return MessageUnprocessable
	}

	msg := strings.ToLower(reason)

	switch {
	case strings.Contains(msg, "result size exceeded"):
		return MessageTooManyRows
	case strings.Contains(msg, "schema changed"):
		return MessageSchemaChanged
	case strings.Contains(msg, "schema check failed"):
		return MessageSchemaCheck
	case strings.HasPrefix(msg, "generator"):
		return MessageGeneratorFailed
	case strings.Contains(msg, "no such table") || strings.Contains(msg, "unknown table"):
		return MessageMissingTable
	case strings.Contains(msg, "no such column") || strings.Contains(msg, "unknown column"):
		return MessageMissingColumn
	case strings.Contains(msg, "join"):
		return MessageJoin
	case strings.Contains(msg, "group by") || strings.Contains(msg, "misuse of aggregate"):
		return MessageGrouping
	case strings.Contains(msg, "injection") || strings.Contains(msg, "comments not allowed") ||
		strings.Contains(msg, "multiple sql statements") || strings.Contains(msg, "only select or with"):
		return MessageUnsafe
	}

	return MessageFallback
}
