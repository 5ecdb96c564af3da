package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/models"
	"github.com/ekaya-inc/sqlgate/pkg/orchestrator"
)

// maxBodyBytes caps request bodies for the query endpoints.
const maxBodyBytes = 64 << 10

// QueryService answers questions and checks SQL.
// *orchestrator.Orchestrator satisfies it.
type QueryService interface {
	Answer(ctx context.Context, question string) *models.QueryResponse
	Check(sqlQuery string) orchestrator.CheckResult
}

// AskRequest is the body of POST /api/query.
type AskRequest struct {
	Question string `json:"question"`
}

// ValidateRequest is the body of POST /api/validate.
type ValidateRequest struct {
	SQL string `json:"sql"`
}

// QueryHandler serves natural-language queries and SQL validation.
type QueryHandler struct {
	service QueryService
	logger  *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(service QueryService, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{service: service, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.Query)
	mux.HandleFunc("POST /api/validate", h.Validate)
}

// Query handles POST /api/query.
// Every processed question returns 200 with the response envelope; the
// envelope's success flag and metadata carry the outcome.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !h.decode(w, r, &req) {
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_question", "Question is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	resp := h.service.Answer(r.Context(), question)

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response",
			zap.String("request_id", resp.RequestID),
			zap.Error(err))
	}
}

// Validate handles POST /api/validate.
// Runs the static gates only; nothing is generated or executed.
func (h *QueryHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !h.decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.SQL) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_sql", "SQL query is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	data := h.service.Check(req.SQL)

	response := ApiResponse{Success: true, Data: data}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *QueryHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}
