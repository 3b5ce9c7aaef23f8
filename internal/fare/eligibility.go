package fare

import (
	"fmt"

	"github.com/chauffeurline/fareengine/internal/pricing"
)

// Capacity limits per vehicle class.
const (
	MaxSaloonPassengers = 4
	MaxMPVPassengers    = 7
)

// Selection is the customer's vehicle choice and party size.
type Selection struct {
	Vehicle        pricing.VehicleCode `json:"vehicle"`
	Passengers     int                 `json:"passengers"`
	SmallSuitcases int                 `json:"smallSuitcases"`
	LargeSuitcases int                 `json:"largeSuitcases"`
}

// CorrectionKind names an automatic fix applied to a selection.
type CorrectionKind string

// Correction kinds.
const (
	CorrectionVehicleDowngraded CorrectionKind = "vehicle_downgraded"
	CorrectionPassengersClamped CorrectionKind = "passengers_clamped"
)

// Correction describes one change made by Correct.
type Correction struct {
	Kind    CorrectionKind `json:"kind"`
	Field   string         `json:"field"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	Message string         `json:"message"`
}

// Allowed reports whether the vehicle class can carry the party.
// Executive and Luxury take up to 4 passengers with either 2 large and 2
// small cases or 1 large and 4 small. The MPV takes up to 7 passengers
// with no luggage limit.
func Allowed(vehicle pricing.VehicleCode, passengers, small, large int) bool {
	switch vehicle {
	case pricing.VehicleExecutive, pricing.VehicleLuxury:
		if passengers > MaxSaloonPassengers {
			return false
		}
		return (large <= 2 && small <= 2) || (large <= 1 && small <= 4)
	case pricing.VehicleMPV:
		return passengers <= MaxMPVPassengers
	default:
		return false
	}
}

// Correct downgrades an ineligible saloon to the MPV and clamps MPV
// passengers to its capacity. It never fails; applied changes are returned.
func Correct(sel Selection) (Selection, []Correction) {
	var corrections []Correction

	switch sel.Vehicle {
	case pricing.VehicleExecutive, pricing.VehicleLuxury:
		if !Allowed(sel.Vehicle, sel.Passengers, sel.SmallSuitcases, sel.LargeSuitcases) {
			corrections = append(corrections, Correction{
				Kind:    CorrectionVehicleDowngraded,
				Field:   "vehicle",
				From:    string(sel.Vehicle),
				To:      string(pricing.VehicleMPV),
				Message: "party size or luggage exceeds vehicle capacity, switched to Luxury MPV",
			})
			sel.Vehicle = pricing.VehicleMPV
		}
	}

	if sel.Vehicle == pricing.VehicleMPV && sel.Passengers > MaxMPVPassengers {
		corrections = append(corrections, Correction{
			Kind:    CorrectionPassengersClamped,
			Field:   "passengers",
			From:    fmt.Sprint(sel.Passengers),
			To:      fmt.Sprint(MaxMPVPassengers),
			Message: fmt.Sprintf("Luxury MPV seats at most %d passengers", MaxMPVPassengers),
		})
		sel.Passengers = MaxMPVPassengers
	}

	return sel, corrections
}

// EligibleVehicles lists the classes in cfg that can carry the party, in table order.
func EligibleVehicles(cfg *pricing.Config, passengers, small, large int) []pricing.VehicleCode {
	var out []pricing.VehicleCode
	for _, v := range cfg.Vehicles {
		if Allowed(v.Code, passengers, small, large) {
			out = append(out, v.Code)
		}
	}
	return out
}
