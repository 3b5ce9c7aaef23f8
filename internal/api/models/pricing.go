package models

// VehicleRates is one row of the pricing table. Amounts are decimal strings.
type VehicleRates struct {
	Code              string `json:"code"`
	Label             string `json:"label"`
	AsDirectedRate    string `json:"asDirectedRate"`
	Tier1             string `json:"tier1PerMile"`
	Tier2             string `json:"tier2PerMile"`
	Tier3             string `json:"tier3PerMile"`
	InnerZoneOverride string `json:"innerZonePerMile"`
}

// SurchargeRates are the flat surcharge amounts.
type SurchargeRates struct {
	AirportPickup  string `json:"airportPickup"`
	AirportDropoff string `json:"airportDropoff"`
	Congestion     string `json:"congestion"`
	Night          string `json:"night"`
}

// PricingResponse is the body of GET /v1/pricing and POST /v1/admin/pricing:reload.
type PricingResponse struct {
	Source     string         `json:"source"`
	Degraded   bool           `json:"degraded"`
	Reason     string         `json:"reason,omitempty"`
	LoadedAt   Timestamp      `json:"loadedAt"`
	UpdatedAt  *Timestamp     `json:"updatedAt,omitempty"`
	Currency   string         `json:"currency"`
	Vehicles   []VehicleRates `json:"vehicles"`
	Surcharges SurchargeRates `json:"surcharges"`
}
