// Package fare computes journey fares: leg aggregation, mileage rate
// selection, surcharges, vehicle eligibility and the quote orchestration
// around them.
//
// Quoter.Quote prices a single request. Form-driven callers that re-quote
// on every edit wrap a Quoter in a Session: each Submit cancels the
// computation in flight, and only the newest result is published.
package fare

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chauffeurline/fareengine/internal/geo"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

// ErrInvalidInput marks caller input errors. Use errors.As with *InputError
// for the offending field.
var ErrInvalidInput = errors.New("invalid fare input")

// InputError reports a single invalid input field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error {
	return ErrInvalidInput
}

// ServiceType is the booking service.
type ServiceType string

// Supported service types.
const (
	ServiceTransfer      ServiceType = "Transfer"
	ServiceWaitAndReturn ServiceType = "Wait and Return"
	ServiceAsDirected    ServiceType = "As Directed"
)

// Valid reports whether s is a supported service type.
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceTransfer, ServiceWaitAndReturn, ServiceAsDirected:
		return true
	}
	return false
}

// Hourly reports whether the service is billed by the hour.
func (s ServiceType) Hourly() bool {
	return s == ServiceAsDirected
}

// ParseServiceType accepts the display names and their snake-case forms.
func ParseServiceType(s string) (ServiceType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	switch norm {
	case "transfer":
		return ServiceTransfer, nil
	case "wait and return":
		return ServiceWaitAndReturn, nil
	case "as directed":
		return ServiceAsDirected, nil
	}
	return "", &InputError{Field: "serviceType", Reason: fmt.Sprintf("unsupported service type %q", s)}
}

// Leg is one resolved origin to destination segment of a journey.
type Leg struct {
	OriginLabel      string     `json:"originLabel"`
	DestinationLabel string     `json:"destinationLabel"`
	Miles            float64    `json:"miles"`
	OriginZone       geo.ZoneID `json:"originZone"`
	DestinationZone  geo.ZoneID `json:"destinationZone"`
	AppliedZone      geo.ZoneID `json:"appliedZone"`
}

// TouchesInnerZone reports whether any of the leg's zones is an inner zone.
func (l Leg) TouchesInnerZone() bool {
	return l.OriginZone.Inner() || l.DestinationZone.Inner() || l.AppliedZone.Inner()
}

// TotalMiles sums leg miles in order.
func TotalMiles(legs []Leg) float64 {
	total := 0.0
	for _, l := range legs {
		total += l.Miles
	}
	return total
}

// ItemKind classifies a breakdown line item.
type ItemKind string

// Line item kinds in extras order.
const (
	ItemWaiting        ItemKind = "waiting"
	ItemNight          ItemKind = "night"
	ItemAirportPickup  ItemKind = "airport_pickup"
	ItemAirportDropoff ItemKind = "airport_dropoff"
)

// LineItem is one priced component added to the base fare.
type LineItem struct {
	Kind   ItemKind        `json:"kind"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Extra renders the item as an extras line.
func (i LineItem) Extra() string {
	return i.Label + ": " + FormatMoney(i.Amount)
}

// BaseKind describes what the base fare is.
type BaseKind string

// Base fare kinds.
const (
	BaseMileage BaseKind = "mileage"
	BaseHourly  BaseKind = "hourly"
)

// Breakdown is the computed fare. Total is Base plus every item, rounded
// half-up to pence; nothing else contributes. The parts are kept unrounded
// and only the sum is rounded, so parts rounded individually for display can
// add up to a penny more or less than Total.
type Breakdown struct {
	Vehicle     pricing.VehicleCode `json:"vehicle"`
	ServiceType ServiceType         `json:"serviceType"`
	Base        decimal.Decimal     `json:"base"`
	BaseKind    BaseKind            `json:"baseKind"`
	MileageRule MileageRule         `json:"mileageRule"`
	MileageFare decimal.Decimal     `json:"mileageFare"`
	HourlyRate  decimal.Decimal     `json:"hourlyRate"`
	WaitingCost decimal.Decimal     `json:"waitingCost"`
	Surcharges  decimal.Decimal     `json:"surcharges"`
	Items       []LineItem          `json:"items"`
	Extras      []string            `json:"extras"`
	Total       decimal.Decimal     `json:"total"`
	TotalMiles  float64             `json:"totalMiles"`
}

// ExtrasAmount is the sum of all line items.
func (b *Breakdown) ExtrasAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range b.Items {
		sum = sum.Add(it.Amount)
	}
	return sum
}
