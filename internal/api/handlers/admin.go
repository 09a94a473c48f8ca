package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/theblitlabs/parity-ml/internal/catalog"
	"github.com/theblitlabs/parity-ml/internal/monitoring/health"
	"github.com/theblitlabs/parity-ml/internal/monitoring/metrics"
	"github.com/theblitlabs/parity-ml/internal/transfer"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

// SessionLister exposes the active transfer sessions.
type SessionLister interface {
	Sessions() []transfer.Info
}

type AdminHandler struct {
	sessions SessionLister
	catalog  catalog.Catalog
	health   *health.HealthChecker
	system   *metrics.SystemMetricsCollector
}

func NewAdminHandler(sessions SessionLister, cat catalog.Catalog, checker *health.HealthChecker, system *metrics.SystemMetricsCollector) *AdminHandler {
	if checker == nil {
		checker = health.NewHealthChecker(0)
	}
	if system == nil {
		system = metrics.NewSystemMetricsCollector(0)
	}
	return &AdminHandler{
		sessions: sessions,
		catalog:  cat,
		health:   checker,
		system:   system,
	}
}

type healthResponse struct {
	Status     health.Status            `json:"status"`
	Components []health.ComponentHealth `json:"components"`
	System     metrics.SystemMetrics    `json:"system"`
	Sessions   int                      `json:"active_sessions"`
}

func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     h.health.Overall(),
		Components: h.health.GetAllHealth(),
		System:     h.system.GetSystemMetrics(),
		Sessions:   len(h.sessions.Sessions()),
	}

	code := http.StatusOK
	if resp.Status == health.StatusError {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Sessions())
}

func (h *AdminHandler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.catalog.List(r.Context())
	if err != nil {
		log := logger.WithComponent("api")
		log.Error().Err(err).Msg("Failed to list artifacts")
		http.Error(w, "failed to list artifacts", http.StatusInternalServerError)
		return
	}
	if artifacts == nil {
		artifacts = []catalog.Artifact{}
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (h *AdminHandler) LatestArtifact(w http.ResponseWriter, r *http.Request) {
	purpose, err := transfer.ParsePurpose(mux.Vars(r)["purpose"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	artifact, err := h.catalog.Latest(r.Context(), purpose)
	if errors.Is(err, catalog.ErrNotFound) {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log := logger.WithComponent("api")
		log.Error().Err(err).Str("purpose", purpose.String()).Msg("Failed to fetch artifact")
		http.Error(w, "failed to fetch artifact", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}
