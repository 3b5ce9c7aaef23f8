package pricing

import "github.com/shopspring/decimal"

// DefaultConfig returns the embedded pricing table used when the stored
// configuration cannot be loaded. Each call returns a fresh value.
func DefaultConfig() *Config {
	d := decimal.RequireFromString
	return &Config{
		Vehicles: []VehiclePricing{
			{
				Code:           VehicleExecutive,
				Label:          "Executive",
				AsDirectedRate: d("65"),
				Mileage: MileageRates{
					Tier1: d("3.50"),
					Tier2: d("2.80"),
					Tier3: d("2.20"),
				},
				InnerZoneOverride: d("4.00"),
			},
			{
				Code:           VehicleLuxury,
				Label:          "Luxury",
				AsDirectedRate: d("95"),
				Mileage: MileageRates{
					Tier1: d("5.00"),
					Tier2: d("4.00"),
					Tier3: d("3.20"),
				},
				InnerZoneOverride: d("5.50"),
			},
			{
				Code:           VehicleMPV,
				Label:          "Luxury MPV",
				AsDirectedRate: d("85"),
				Mileage: MileageRates{
					Tier1: d("4.50"),
					Tier2: d("3.60"),
					Tier3: d("2.90"),
				},
				InnerZoneOverride: d("5.00"),
			},
		},
		Surcharges: Surcharges{
			AirportPickup:  d("15"),
			AirportDropoff: d("10"),
			Congestion:     d("15"),
		},
		NightSurcharge: d("20"),
	}
}
