package llm

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

type contextKey string

const (
	llmContextKey contextKey = "llm_context"

	// Keys set by WithCallContext.
	ContextKeyRequestID = "request_id"
	ContextKeyPhase     = "phase"
	ContextKeyAttempt   = "attempt"
)

// Phases of a generator call within one request.
const (
	PhaseGenerate = "generate"
	PhaseRepair   = "repair"
)

// WithContext returns a context with call context attached.
// The values are merged with any existing call context.
func WithContext(ctx context.Context, values map[string]any) context.Context {
	existing := GetContext(ctx)
	if existing == nil {
		existing = make(map[string]any)
	}
	for k, v := range values {
		existing[k] = v
	}
	return context.WithValue(ctx, llmContextKey, existing)
}

// GetContext retrieves the call context, if present.
func GetContext(ctx context.Context) map[string]any {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		// Return a copy to prevent mutation
		copied := make(map[string]any, len(c))
		for k, v := range c {
			copied[k] = v
		}
		return copied
	}
	return nil
}

// WithCallContext tags a generator call with the request it serves, the
// phase (generate or repair) and the 1-based attempt number.
func WithCallContext(ctx context.Context, requestID, phase string, attempt int) context.Context {
	values := map[string]any{
		ContextKeyPhase:   phase,
		ContextKeyAttempt: attempt,
	}
	if requestID != "" {
		values[ContextKeyRequestID] = requestID
	}
	return WithContext(ctx, values)
}

// RequestID returns the request id set by WithCallContext, or "".
func RequestID(ctx context.Context) string {
	if id, ok := GetContext(ctx)[ContextKeyRequestID].(string); ok {
		return id
	}
	return ""
}

// contextFields renders the call context as log fields in key order.
func contextFields(ctx context.Context) []zap.Field {
	values := GetContext(ctx)
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, values[k]))
	}
	return fields
}
