package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/api/models"
	"github.com/chauffeurline/fareengine/internal/api/response"
	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/fare"
	"github.com/chauffeurline/fareengine/internal/geo"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

const currencyGBP = "GBP"

// maxStops bounds the journey length accepted over HTTP.
const maxStops = 10

// QuoteHandler handles fare quote endpoints.
type QuoteHandler struct {
	quoter fare.QuoteComputer
	logger zerolog.Logger
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(quoter fare.QuoteComputer, logger zerolog.Logger) *QuoteHandler {
	return &QuoteHandler{quoter: quoter, logger: logger}
}

// ComputeQuote handles POST /v1/quotes:compute.
func (h *QuoteHandler) ComputeQuote(w http.ResponseWriter, r *http.Request) {
	var input models.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	req, fieldErrs := toFareRequest(input)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid quote request", fieldErrs)
		return
	}

	quote, err := h.quoter.Quote(r.Context(), req)
	if err != nil {
		h.writeQuoteError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toQuoteResponse(quote))
}

func (h *QuoteHandler) writeQuoteError(w http.ResponseWriter, r *http.Request, err error) {
	var inputErr *fare.InputError
	switch {
	case errors.As(err, &inputErr):
		response.BadRequest(w, r, "invalid quote request", []models.FieldError{
			{Field: inputErr.Field, Message: inputErr.Reason, Code: models.CodeInvalid},
		})
	case errors.Is(err, context.Canceled), errors.Is(err, fare.ErrSuperseded):
		response.RequestCancelled(w, r, "quote computation was cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "quote computation timed out")
	default:
		h.logger.Error().Err(err).Msg("quote computation failed")
		response.InternalError(w, r, "failed to compute quote")
	}
}

func toFareRequest(in models.QuoteRequest) (fare.Request, []models.FieldError) {
	var fieldErrs []models.FieldError

	serviceType, err := fare.ParseServiceType(in.ServiceType)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "serviceType", Message: "must be Transfer, Wait and Return or As Directed", Code: models.CodeInvalid})
	}

	vehicle := pricing.VehicleCode(strings.ToLower(strings.TrimSpace(in.Vehicle)))
	if vehicle == "" {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "vehicle", Message: "is required", Code: models.CodeRequired})
	}

	if len(in.Stops) == 0 {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "stops", Message: "at least one drop-off is required", Code: models.CodeRequired})
	}
	if len(in.Stops) > maxStops {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "stops", Message: "too many stops", Code: models.CodeTooMany})
	}

	pickup, ok := toWaypoint(in.Pickup)
	if !ok {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "pickup.location", Message: "latitude or longitude out of range", Code: models.CodeInvalid})
	}
	stops := make([]distance.Waypoint, len(in.Stops))
	for i, s := range in.Stops {
		if stops[i], ok = toWaypoint(s); !ok {
			fieldErrs = append(fieldErrs, models.FieldError{Field: fmt.Sprintf("stops[%d].location", i), Message: "latitude or longitude out of range", Code: models.CodeInvalid})
		}
	}

	var departure time.Time
	if in.DepartureTime != nil {
		departure = in.DepartureTime.Time()
	}

	return fare.Request{
		Selection: fare.Selection{
			Vehicle:        vehicle,
			Passengers:     in.Passengers,
			SmallSuitcases: in.SmallSuitcases,
			LargeSuitcases: in.LargeSuitcases,
		},
		ServiceType:    serviceType,
		Pickup:         pickup,
		Stops:          stops,
		WaitingMinutes: in.WaitingMinutes,
		Departure:      departure,
	}, fieldErrs
}

func toWaypoint(in models.WaypointInput) (distance.Waypoint, bool) {
	wp := distance.Waypoint{Label: strings.TrimSpace(in.Address)}
	if in.Location != nil {
		c := geo.Coordinate{Lat: in.Location.Lat, Lng: in.Location.Lng}
		if c.Validate() != nil {
			return wp, false
		}
		wp.Coordinate = &c
	}
	return wp, true
}

func toQuoteResponse(q *fare.Quote) models.QuoteResponse {
	b := q.Breakdown

	resp := models.QuoteResponse{
		ID:            q.ID,
		Vehicle:       string(q.Selection.Vehicle),
		ServiceType:   string(q.ServiceType),
		Passengers:    q.Selection.Passengers,
		Corrections:   make([]models.Correction, len(q.Corrections)),
		Legs:          make([]models.Leg, len(q.Legs)),
		SkippedLegs:   make([]models.SkippedLeg, len(q.Skipped)),
		Extras:        b.Extras,
		Display:       q.Display,
		Currency:      currencyGBP,
		PricingSource: string(q.PricingSource),
		Degraded:      q.Degraded,
		Notices:       q.Notices,
		ComputedAt:    models.Timestamp(q.ComputedAt),
		Breakdown: models.Breakdown{
			BaseKind:    string(b.BaseKind),
			Base:        fare.RoundMoney(b.Base).StringFixed(2),
			MileageRule: string(b.MileageRule),
			MileageFare: fare.RoundMoney(b.MileageFare).StringFixed(2),
			HourlyRate:  fare.RoundMoney(b.HourlyRate).StringFixed(2),
			WaitingCost: fare.RoundMoney(b.WaitingCost).StringFixed(2),
			Surcharges:  fare.RoundMoney(b.Surcharges).StringFixed(2),
			Items:       make([]models.LineItem, len(b.Items)),
			TotalMiles:  b.TotalMiles,
			Total:       b.Total.StringFixed(2),
		},
	}

	for i, c := range q.Corrections {
		resp.Corrections[i] = toCorrection(c)
	}
	for i, l := range q.Legs {
		resp.Legs[i] = models.Leg{
			Origin:          l.OriginLabel,
			Destination:     l.DestinationLabel,
			Miles:           l.Miles,
			OriginZone:      zonePtr(l.OriginZone),
			DestinationZone: zonePtr(l.DestinationZone),
			AppliedZone:     zonePtr(l.AppliedZone),
		}
	}
	for i, s := range q.Skipped {
		resp.SkippedLegs[i] = models.SkippedLeg{
			Index:       s.Index,
			Origin:      s.OriginLabel,
			Destination: s.DestinationLabel,
			Reason:      s.Reason,
		}
	}
	for i, it := range b.Items {
		resp.Breakdown.Items[i] = models.LineItem{
			Kind:   string(it.Kind),
			Label:  it.Label,
			Amount: fare.RoundMoney(it.Amount).StringFixed(2),
		}
	}
	if !q.Departure.IsZero() {
		ts := models.Timestamp(q.Departure)
		resp.DepartureTime = &ts
	}

	return resp
}

func toCorrection(c fare.Correction) models.Correction {
	return models.Correction{
		Kind:    string(c.Kind),
		Field:   c.Field,
		From:    c.From,
		To:      c.To,
		Message: c.Message,
	}
}

func zonePtr(z geo.ZoneID) *int {
	if !z.Known() {
		return nil
	}
	v := int(z)
	return &v
}
