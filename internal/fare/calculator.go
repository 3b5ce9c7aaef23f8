package fare

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chauffeurline/fareengine/internal/pricing"
)

var sixty = decimal.NewFromInt(60)

// Input is everything the calculator needs besides the pricing table.
type Input struct {
	Vehicle        pricing.VehicleCode
	ServiceType    ServiceType
	Legs           []Leg
	WaitingMinutes int
	// Departure is already expressed in the pricing time zone.
	Departure time.Time
	Pickup    string
	DropOffs  []string
}

// Calculator computes fare breakdowns. It is a pure function of its inputs.
type Calculator struct {
	surcharges SurchargeEvaluator
}

// NewCalculator creates a calculator. A nil matcher uses KeywordMatcher.
func NewCalculator(matcher AirportMatcher) *Calculator {
	return &Calculator{surcharges: SurchargeEvaluator{Matcher: matcher}}
}

// Compute prices the journey against cfg.
func (c *Calculator) Compute(in Input, cfg *pricing.Config) (*Breakdown, error) {
	if cfg == nil {
		return nil, fmt.Errorf("compute fare: %w", pricing.ErrInvalidConfig)
	}
	if !in.ServiceType.Valid() {
		return nil, &InputError{Field: "serviceType", Reason: fmt.Sprintf("unsupported service type %q", in.ServiceType)}
	}
	if in.WaitingMinutes < 0 {
		return nil, &InputError{Field: "waitingMinutes", Reason: "must not be negative"}
	}

	vehicle, err := cfg.Vehicle(in.Vehicle)
	if err != nil {
		return nil, &InputError{Field: "vehicle", Reason: err.Error()}
	}

	b := &Breakdown{
		Vehicle:     vehicle.Code,
		ServiceType: in.ServiceType,
		HourlyRate:  vehicle.AsDirectedRate,
		MileageFare: decimal.Zero,
		WaitingCost: decimal.Zero,
		TotalMiles:  TotalMiles(in.Legs),
		Items:       []LineItem{},
		Extras:      []string{},
	}

	b.MileageFare, b.MileageRule = SelectMileageFare(vehicle, in.Legs, in.ServiceType)

	if in.ServiceType.Hourly() {
		b.Base = vehicle.AsDirectedRate
		b.BaseKind = BaseHourly
	} else {
		b.Base = b.MileageFare
		b.BaseKind = BaseMileage

		if in.WaitingMinutes > 0 {
			b.WaitingCost = decimal.NewFromInt(int64(in.WaitingMinutes)).Mul(vehicle.AsDirectedRate).Div(sixty)
			b.Items = append(b.Items, LineItem{
				Kind:   ItemWaiting,
				Label:  fmt.Sprintf("Waiting time (%d min)", in.WaitingMinutes),
				Amount: b.WaitingCost,
			})
		}
	}

	surcharges := c.surcharges.Evaluate(in.Departure, in.Pickup, in.DropOffs, cfg)
	b.Surcharges = decimal.Zero
	for _, s := range surcharges {
		b.Surcharges = b.Surcharges.Add(s.Amount)
	}
	b.Items = append(b.Items, surcharges...)

	for _, it := range b.Items {
		b.Extras = append(b.Extras, it.Extra())
	}

	b.Total = RoundMoney(b.Base.Add(b.ExtrasAmount()))

	return b, nil
}

// RoundMoney rounds half-up to pence.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
