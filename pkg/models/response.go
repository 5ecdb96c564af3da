package models

// ResponseVersion is the envelope version returned to transports.
const ResponseVersion = "v1"

// QueryResponse is the envelope returned for every natural-language query.
type QueryResponse struct {
	Version   string           `json:"version"`
	RequestID string           `json:"request_id"`
	Success   bool             `json:"success"`
	Result    *QueryResult     `json:"result"`
	Metadata  ResponseMetadata `json:"metadata"`
}

// QueryResult carries either shaped rows or a user-facing message.
// Type is one of scalar, list, table, time_series, error, clarification.
type QueryResult struct {
	Type          string         `json:"type"`
	Data          any            `json:"data,omitempty"`
	Message       string         `json:"message,omitempty"`
	SQL           string         `json:"sql,omitempty"`
	CSV           string         `json:"csv,omitempty"`
	Visualization map[string]any `json:"visualization,omitempty"`
}

// ResponseMetadata describes how the request was processed.
type ResponseMetadata struct {
	LatencyMs         int64  `json:"latency_ms"`
	RetryCount        int    `json:"retry_count"`
	ExecutionMode     string `json:"execution_mode"`
	RetryReason       string `json:"retry_reason,omitempty"`
	TerminationReason string `json:"termination_reason,omitempty"`
	LastErrorType     string `json:"last_error_type,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}
