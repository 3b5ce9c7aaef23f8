package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/api/middleware"
	"github.com/chauffeurline/fareengine/internal/api/models"
	"github.com/chauffeurline/fareengine/internal/api/response"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

// PricingHandler exposes the pricing table in effect.
type PricingHandler struct {
	service *pricing.Service
	logger  zerolog.Logger
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(service *pricing.Service, logger zerolog.Logger) *PricingHandler {
	return &PricingHandler{service: service, logger: logger}
}

// GetPricing handles GET /v1/pricing.
func (h *PricingHandler) GetPricing(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, toPricingResponse(h.service.Current(r.Context())))
}

// ReloadPricing handles POST /v1/admin/pricing:reload. It drops the cached
// table and reports what was loaded in its place.
func (h *PricingHandler) ReloadPricing(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Reload(r.Context())

	event := h.logger.Info()
	if snap.Degraded {
		event = h.logger.Warn().Str("reason", snap.Reason)
	}
	event.
		Str("subject", middleware.GetSubject(r.Context())).
		Str("source", string(snap.Source)).
		Msg("pricing reloaded")

	response.JSON(w, r, http.StatusOK, toPricingResponse(snap))
}

func toPricingResponse(snap pricing.Snapshot) models.PricingResponse {
	cfg := snap.Config

	resp := models.PricingResponse{
		Source:   string(snap.Source),
		Degraded: snap.Degraded,
		Reason:   snap.Reason,
		LoadedAt: models.Timestamp(snap.LoadedAt),
		Currency: currencyGBP,
		Vehicles: make([]models.VehicleRates, len(cfg.Vehicles)),
		Surcharges: models.SurchargeRates{
			AirportPickup:  cfg.Surcharges.AirportPickup.StringFixed(2),
			AirportDropoff: cfg.Surcharges.AirportDropoff.StringFixed(2),
			Congestion:     cfg.Surcharges.Congestion.StringFixed(2),
			Night:          cfg.NightSurcharge.StringFixed(2),
		},
	}
	if !cfg.UpdatedAt.IsZero() {
		ts := models.Timestamp(cfg.UpdatedAt)
		resp.UpdatedAt = &ts
	}

	for i, v := range cfg.Vehicles {
		resp.Vehicles[i] = models.VehicleRates{
			Code:              string(v.Code),
			Label:             v.Label,
			AsDirectedRate:    v.AsDirectedRate.StringFixed(2),
			Tier1:             v.Mileage.Tier1.StringFixed(2),
			Tier2:             v.Mileage.Tier2.StringFixed(2),
			Tier3:             v.Mileage.Tier3.StringFixed(2),
			InnerZoneOverride: v.InnerZoneOverride.StringFixed(2),
		}
	}

	return resp
}
