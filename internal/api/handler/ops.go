// Package handler provides HTTP handlers for the fare API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/chauffeurline/fareengine/internal/api/models"
	"github.com/chauffeurline/fareengine/internal/api/response"
	"github.com/chauffeurline/fareengine/internal/pricing"
	"github.com/chauffeurline/fareengine/internal/provider/resilience"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds the dependencies inspected by the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Pricing reports which pricing table is in effect (optional).
	Pricing *pricing.Service

	// Registry reports distance provider health (optional).
	Registry *resilience.Registry

	// Checks are named readiness dependencies such as the database or Redis (optional).
	Checks map[string]Pinger
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing dependency check
// makes the service not ready. Fallback pricing does not, since quotes can
// still be served from the embedded table.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	details := map[string]interface{}{}
	status := models.HealthStatusOK

	for name, check := range h.cfg.Checks {
		if err := check.Ping(ctx); err != nil {
			details[name] = err.Error()
			status = models.HealthStatusFail
			continue
		}
		details[name] = "ok"
	}
	if h.cfg.Pricing != nil {
		snap := h.cfg.Pricing.Current(ctx)
		details["pricing"] = string(snap.Source)
		if snap.Degraded && status == models.HealthStatusOK {
			status = models.HealthStatusDegraded
		}
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{},
		Providers:  []models.ProviderStatus{},
	}

	if h.cfg.Pricing != nil {
		snap := h.cfg.Pricing.Current(r.Context())
		sub := models.SubsystemStatus{Name: "pricing", Status: models.HealthStatusOK}
		if snap.Degraded {
			reason := snap.Reason
			sub.Status = models.HealthStatusDegraded
			sub.Detail = &reason
			status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, "fallback_pricing")
		}
		status.Subsystems = append(status.Subsystems, sub)
	}

	if h.cfg.Registry != nil {
		down := 0
		for _, ph := range h.cfg.Registry.GetAllHealth() {
			ps := toProviderStatus(ph)
			if ps.Status != models.HealthStatusOK {
				down++
			}
			status.Providers = append(status.Providers, ps)
		}
		if down > 0 && down == len(status.Providers) {
			status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, "distance_unavailable")
		}
	}

	if len(status.ActiveDegradationFlags) > 0 {
		status.Status = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, status)
}

func toProviderStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:            ph.Name,
		CircuitState:        ph.CircuitState.String(),
		ConsecutiveFailures: ph.Counts.ConsecutiveFailures,
	}
	switch ph.Status() {
	case resilience.StatusOK:
		ps.Status = models.HealthStatusOK
	case resilience.StatusDegraded:
		ps.Status = models.HealthStatusDegraded
	default:
		ps.Status = models.HealthStatusFail
	}
	if ph.LastSuccessAt != nil {
		ts := models.Timestamp(*ph.LastSuccessAt)
		ps.LastSuccessAt = &ts
	}
	if ph.LastFailureAt != nil {
		ts := models.Timestamp(*ph.LastFailureAt)
		ps.LastFailureAt = &ts
	}
	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}
