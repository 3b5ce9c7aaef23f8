package fare

import (
	"github.com/shopspring/decimal"

	"github.com/chauffeurline/fareengine/internal/geo"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

// Tier boundaries in miles (inclusive upper bounds).
const (
	Tier1MaxMiles = 10.0
	Tier2MaxMiles = 40.0
)

// MileageRule names the rule that priced the mileage.
type MileageRule string

// Mileage rules in precedence order.
const (
	RuleAsDirected        MileageRule = "as_directed"
	RuleInnerZoneOverride MileageRule = "inner_zone_override"
	RulePerLegZone        MileageRule = "per_leg_zone"
	RuleTiered            MileageRule = "tiered"
)

// SelectMileageFare prices the legs for the vehicle. Precedence:
//  1. As Directed: no mileage (the hourly rate is the base).
//  2. Any leg touching an inner zone: the whole trip at InnerZoneOverride.
//  3. Every leg zoned: per-leg miles at the zone rate.
//  4. Otherwise: total miles at the tier for the total distance.
//
// Rule 2 deliberately overrides per-leg pricing for every leg of the trip.
func SelectMileageFare(vehicle pricing.VehiclePricing, legs []Leg, serviceType ServiceType) (decimal.Decimal, MileageRule) {
	if serviceType.Hourly() {
		return decimal.Zero, RuleAsDirected
	}

	total := TotalMiles(legs)

	for _, l := range legs {
		if l.TouchesInnerZone() {
			return miles(total).Mul(vehicle.InnerZoneOverride), RuleInnerZoneOverride
		}
	}

	if allZoned(legs) {
		sum := decimal.Zero
		for _, l := range legs {
			sum = sum.Add(miles(l.Miles).Mul(ZoneMileageRate(vehicle, l.AppliedZone)))
		}
		return sum, RulePerLegZone
	}

	return miles(total).Mul(TierRate(vehicle, total)), RuleTiered
}

// ZoneMileageRate is the per-mile rate for a zoned leg.
func ZoneMileageRate(vehicle pricing.VehiclePricing, zone geo.ZoneID) decimal.Decimal {
	if zone.Inner() {
		return vehicle.InnerZoneOverride
	}
	return vehicle.Mileage.Tier2
}

// TierRate picks the tier for a total trip distance.
func TierRate(vehicle pricing.VehiclePricing, totalMiles float64) decimal.Decimal {
	switch {
	case totalMiles <= Tier1MaxMiles:
		return vehicle.Mileage.Tier1
	case totalMiles <= Tier2MaxMiles:
		return vehicle.Mileage.Tier2
	default:
		return vehicle.Mileage.Tier3
	}
}

func allZoned(legs []Leg) bool {
	if len(legs) == 0 {
		return false
	}
	for _, l := range legs {
		if !l.AppliedZone.Known() {
			return false
		}
	}
	return true
}

func miles(m float64) decimal.Decimal {
	return decimal.NewFromFloat(m)
}
