package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/chauffeurline/fareengine/internal/api/models"
	"github.com/chauffeurline/fareengine/internal/api/response"
	"github.com/chauffeurline/fareengine/internal/fare"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

// EligibilityHandler checks vehicle capacity for a party.
type EligibilityHandler struct {
	pricing *pricing.Service
}

// NewEligibilityHandler creates a new EligibilityHandler.
func NewEligibilityHandler(pricingService *pricing.Service) *EligibilityHandler {
	return &EligibilityHandler{pricing: pricingService}
}

// CheckEligibility handles POST /v1/eligibility:check.
func (h *EligibilityHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var input models.EligibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	var fieldErrs []models.FieldError
	if input.Passengers < 0 {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "passengers", Message: "must not be negative", Code: models.CodeInvalid})
	}
	if input.SmallSuitcases < 0 {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "smallSuitcases", Message: "must not be negative", Code: models.CodeInvalid})
	}
	if input.LargeSuitcases < 0 {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "largeSuitcases", Message: "must not be negative", Code: models.CodeInvalid})
	}

	cfg := h.pricing.Current(r.Context()).Config
	vehicle := pricing.VehicleCode(strings.ToLower(strings.TrimSpace(input.Vehicle)))
	if _, err := cfg.Vehicle(vehicle); err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "vehicle", Message: "unknown vehicle class", Code: models.CodeInvalid})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid eligibility request", fieldErrs)
		return
	}

	sel := fare.Selection{
		Vehicle:        vehicle,
		Passengers:     input.Passengers,
		SmallSuitcases: input.SmallSuitcases,
		LargeSuitcases: input.LargeSuitcases,
	}
	corrected, corrections := fare.Correct(sel)

	resp := models.EligibilityResponse{
		Allowed:          fare.Allowed(sel.Vehicle, sel.Passengers, sel.SmallSuitcases, sel.LargeSuitcases),
		Vehicle:          string(corrected.Vehicle),
		Passengers:       corrected.Passengers,
		Corrections:      make([]models.Correction, len(corrections)),
		EligibleVehicles: []string{},
	}
	for i, c := range corrections {
		resp.Corrections[i] = toCorrection(c)
	}
	for _, v := range fare.EligibleVehicles(cfg, sel.Passengers, sel.SmallSuitcases, sel.LargeSuitcases) {
		resp.EligibleVehicles = append(resp.EligibleVehicles, string(v))
	}

	response.JSON(w, r, http.StatusOK, resp)
}
