// Package pricing holds the per-vehicle pricing table and surcharge amounts
// used to quote journeys, with storage and a caching service that falls back
// to an injected default table.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for pricing configuration.
var (
	// ErrConfigNotFound is returned when no pricing configuration is stored.
	ErrConfigNotFound = errors.New("pricing config not found")
	// ErrInvalidConfig is returned when a configuration breaks its invariants.
	ErrInvalidConfig = errors.New("invalid pricing config")
	// ErrUnknownVehicle is returned when a vehicle code is not in the table.
	ErrUnknownVehicle = errors.New("unknown vehicle class")
)

// VehicleCode identifies a vehicle class.
type VehicleCode string

// Vehicle classes offered for booking.
const (
	VehicleExecutive VehicleCode = "executive"
	VehicleLuxury    VehicleCode = "luxury"
	VehicleMPV       VehicleCode = "mpv"
)

// MileageRates are the per-mile rates for the three distance tiers.
type MileageRates struct {
	Tier1 decimal.Decimal `json:"tier1"`
	Tier2 decimal.Decimal `json:"tier2"`
	Tier3 decimal.Decimal `json:"tier3"`
}

// VehiclePricing is the pricing entry for one vehicle class.
type VehiclePricing struct {
	Code              VehicleCode     `json:"code"`
	Label             string          `json:"label"`
	AsDirectedRate    decimal.Decimal `json:"asDirectedRate"`
	Mileage           MileageRates    `json:"mileage"`
	InnerZoneOverride decimal.Decimal `json:"innerZoneOverride"`
}

// Surcharges are fixed fees added to a fare when triggered.
type Surcharges struct {
	AirportPickup  decimal.Decimal `json:"airportPickup"`
	AirportDropoff decimal.Decimal `json:"airportDropoff"`
	Congestion     decimal.Decimal `json:"congestion"`
}

// Config is the complete pricing configuration. It is read-only once loaded.
type Config struct {
	Vehicles       []VehiclePricing `json:"vehicles"`
	Surcharges     Surcharges       `json:"surcharges"`
	NightSurcharge decimal.Decimal  `json:"nightSurcharge"`
	UpdatedAt      time.Time        `json:"updatedAt,omitempty"`
}

// Vehicle returns the pricing entry for code.
func (c *Config) Vehicle(code VehicleCode) (VehiclePricing, error) {
	for _, v := range c.Vehicles {
		if v.Code == code {
			return v, nil
		}
	}
	return VehiclePricing{}, fmt.Errorf("%w: %q", ErrUnknownVehicle, code)
}

// Clone returns a copy that shares no slices with c.
func (c *Config) Clone() *Config {
	cp := *c
	cp.Vehicles = make([]VehiclePricing, len(c.Vehicles))
	copy(cp.Vehicles, c.Vehicles)
	return &cp
}

// Validate checks the vehicle list is non-empty with unique codes and that no
// amount is negative.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if len(c.Vehicles) == 0 {
		return fmt.Errorf("%w: no vehicles", ErrInvalidConfig)
	}

	seen := make(map[VehicleCode]bool, len(c.Vehicles))
	for _, v := range c.Vehicles {
		if v.Code == "" {
			return fmt.Errorf("%w: vehicle with empty code", ErrInvalidConfig)
		}
		if seen[v.Code] {
			return fmt.Errorf("%w: duplicate vehicle %q", ErrInvalidConfig, v.Code)
		}
		seen[v.Code] = true

		amounts := map[string]decimal.Decimal{
			"asDirectedRate":    v.AsDirectedRate,
			"mileage.tier1":     v.Mileage.Tier1,
			"mileage.tier2":     v.Mileage.Tier2,
			"mileage.tier3":     v.Mileage.Tier3,
			"innerZoneOverride": v.InnerZoneOverride,
		}
		for field, amount := range amounts {
			if amount.IsNegative() {
				return fmt.Errorf("%w: %s.%s is negative", ErrInvalidConfig, v.Code, field)
			}
		}
	}

	for field, amount := range map[string]decimal.Decimal{
		"surcharges.airportPickup":  c.Surcharges.AirportPickup,
		"surcharges.airportDropoff": c.Surcharges.AirportDropoff,
		"surcharges.congestion":     c.Surcharges.Congestion,
		"nightSurcharge":            c.NightSurcharge,
	} {
		if amount.IsNegative() {
			return fmt.Errorf("%w: %s is negative", ErrInvalidConfig, field)
		}
	}

	return nil
}
