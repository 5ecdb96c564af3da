package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/sqlgate/pkg/models"
)

// Answer runs a question under a fresh request id and wraps the outcome in
// the versioned response envelope.
func (o *Orchestrator) Answer(ctx context.Context, question string) *models.QueryResponse {
	requestID := uuid.New().String()
	start := time.Now()

	out := o.Run(ctx, requestID, question)
	return NewResponse(requestID, out, time.Since(start))
}

// NewResponse builds the envelope returned to transports.
func NewResponse(requestID string, out *Outcome, latency time.Duration) *models.QueryResponse {
	return &models.QueryResponse{
		Version:   models.ResponseVersion,
		RequestID: requestID,
		Success:   out.Success,
		Result:    out.Result,
		Metadata: models.ResponseMetadata{
			LatencyMs:         latency.Milliseconds(),
			RetryCount:        out.State.RetryCount,
			ExecutionMode:     out.State.ExecutionMode,
			RetryReason:       out.State.RetryReason,
			TerminationReason: out.State.TerminationReason,
			LastErrorType:     out.State.LastErrorType,
			LastErrorMessage:  out.State.LastErrorMessage,
		},
	}
}
