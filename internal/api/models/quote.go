package models

// WaypointInput is a journey stop as entered by the customer.
type WaypointInput struct {
	Address  string `json:"address"`
	Location *Point `json:"location,omitempty"`
}

// QuoteRequest is the body of POST /v1/quotes:compute.
type QuoteRequest struct {
	Vehicle        string          `json:"vehicle"`
	ServiceType    string          `json:"serviceType"`
	Passengers     int             `json:"passengers"`
	SmallSuitcases int             `json:"smallSuitcases"`
	LargeSuitcases int             `json:"largeSuitcases"`
	Pickup         WaypointInput   `json:"pickup"`
	Stops          []WaypointInput `json:"stops"`
	WaitingMinutes int             `json:"waitingMinutes"`
	DepartureTime  *Timestamp      `json:"departureTime,omitempty"`
}

// Correction is an automatic change applied to the vehicle selection.
type Correction struct {
	Kind    string `json:"kind"`
	Field   string `json:"field"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// Leg is a priced journey leg. Zones are null when unknown.
type Leg struct {
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`
	Miles           float64 `json:"miles"`
	OriginZone      *int    `json:"originZone"`
	DestinationZone *int    `json:"destinationZone"`
	AppliedZone     *int    `json:"appliedZone"`
}

// SkippedLeg is a leg whose distance could not be resolved.
type SkippedLeg struct {
	Index       int    `json:"index"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Reason      string `json:"reason"`
}

// LineItem is one priced extra. Amounts are decimal strings with two places.
type LineItem struct {
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// Breakdown is the fare composition. Every amount is rounded to pence on its
// own; Total rounds the unrounded sum, so the listed parts may differ from it
// by a penny.
type Breakdown struct {
	BaseKind    string     `json:"baseKind"`
	Base        string     `json:"base"`
	MileageRule string     `json:"mileageRule"`
	MileageFare string     `json:"mileageFare"`
	HourlyRate  string     `json:"hourlyRate"`
	WaitingCost string     `json:"waitingCost"`
	Surcharges  string     `json:"surcharges"`
	Items       []LineItem `json:"items"`
	TotalMiles  float64    `json:"totalMiles"`
	Total       string     `json:"total"`
}

// QuoteResponse is the body returned by POST /v1/quotes:compute.
type QuoteResponse struct {
	ID            string       `json:"id"`
	Vehicle       string       `json:"vehicle"`
	ServiceType   string       `json:"serviceType"`
	Passengers    int          `json:"passengers"`
	Corrections   []Correction `json:"corrections"`
	Legs          []Leg        `json:"legs"`
	SkippedLegs   []SkippedLeg `json:"skippedLegs"`
	Breakdown     Breakdown    `json:"breakdown"`
	Extras        []string     `json:"extras"`
	Display       string       `json:"display"`
	Currency      string       `json:"currency"`
	PricingSource string       `json:"pricingSource"`
	Degraded      bool         `json:"degraded"`
	Notices       []string     `json:"notices"`
	DepartureTime *Timestamp   `json:"departureTime,omitempty"`
	ComputedAt    Timestamp    `json:"computedAt"`
}

// EligibilityRequest is the body of POST /v1/eligibility:check.
type EligibilityRequest struct {
	Vehicle        string `json:"vehicle"`
	Passengers     int    `json:"passengers"`
	SmallSuitcases int    `json:"smallSuitcases"`
	LargeSuitcases int    `json:"largeSuitcases"`
}

// EligibilityResponse reports whether a selection is allowed and how it was corrected.
type EligibilityResponse struct {
	Allowed          bool         `json:"allowed"`
	Vehicle          string       `json:"vehicle"`
	Passengers       int          `json:"passengers"`
	Corrections      []Correction `json:"corrections"`
	EligibleVehicles []string     `json:"eligibleVehicles"`
}

// ZoneResponse is the body of GET /v1/zones:classify.
type ZoneResponse struct {
	Location      Point    `json:"location"`
	Zone          int      `json:"zone"`
	Name          string   `json:"name"`
	RadiusMiles   *float64 `json:"radiusMiles"`
	DistanceMiles float64  `json:"distanceMiles"`
	Inner         bool     `json:"inner"`
}
