package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/config"
	"github.com/ekaya-inc/sqlgate/pkg/orchestrator"
)

// StatusReporter exposes service status. *orchestrator.Orchestrator satisfies it.
type StatusReporter interface {
	Status() orchestrator.Status
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string               `json:"status"`
	Datasource string               `json:"datasource"`
	Details    *orchestrator.Status `json:"details,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Service     string `json:"service"`
	GoVersion   string `json:"go_version"`
	Hostname    string `json:"hostname"`
	Environment string `json:"environment"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	status StatusReporter
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. status may be nil.
func NewHealthHandler(cfg *config.Config, status StatusReporter, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{cfg: cfg, status: status, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
// The service stays up while the generator circuit is open; it reports
// "degraded" so operators can tell.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:     "ok",
		Datasource: h.cfg.Datasource.Type,
	}
	if h.status != nil {
		s := h.status.Status()
		response.Details = &s
		if !s.Healthy() {
			response.Status = "degraded"
		}
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "sqlgate",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
