package fare

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/pricing"
)

const tracerName = "github.com/chauffeurline/fareengine/internal/fare"

// DefaultTimezone is the zone the night window is evaluated in.
const DefaultTimezone = "Europe/London"

// Degraded-mode notices attached to a quote.
const (
	NoticeFallbackPricing = "fallback pricing"
	NoticeUnresolvedLegs  = "unresolved legs"
)

// Request is one quote computation for a booking session.
type Request struct {
	Selection      Selection
	ServiceType    ServiceType
	Pickup         distance.Waypoint
	Stops          []distance.Waypoint
	WaitingMinutes int
	Departure      time.Time
}

// Waypoints returns the pickup followed by the stops in order.
func (r Request) Waypoints() []distance.Waypoint {
	wps := make([]distance.Waypoint, 0, len(r.Stops)+1)
	wps = append(wps, r.Pickup)
	return append(wps, r.Stops...)
}

// Quote is a priced journey.
type Quote struct {
	ID            string         `json:"id"`
	Selection     Selection      `json:"selection"`
	Corrections   []Correction   `json:"corrections"`
	ServiceType   ServiceType    `json:"serviceType"`
	Legs          []Leg          `json:"legs"`
	Skipped       []SkippedLeg   `json:"skippedLegs"`
	Breakdown     *Breakdown     `json:"breakdown"`
	Display       string         `json:"display"`
	PricingSource pricing.Source `json:"pricingSource"`
	Degraded      bool           `json:"degraded"`
	Notices       []string       `json:"notices"`
	Departure     time.Time      `json:"departure"`
	ComputedAt    time.Time      `json:"computedAt"`
}

// QuoterConfig holds configuration for the quoter.
type QuoterConfig struct {
	// Aggregator resolves journey legs.
	Aggregator *Aggregator

	// Pricing supplies the pricing snapshot.
	Pricing *pricing.Service

	// Calculator computes the breakdown (default: NewCalculator(nil)).
	Calculator *Calculator

	// Location is the pricing time zone (default: Europe/London).
	Location *time.Location

	// Metrics records quote counters (optional).
	Metrics *Metrics

	// Logger for quote computation.
	Logger zerolog.Logger

	// Tracer for quote spans (default: global tracer).
	Tracer trace.Tracer
}

// Quoter orchestrates a full quote: eligibility, pricing, legs and breakdown.
type Quoter struct {
	aggregator *Aggregator
	pricing    *pricing.Service
	calculator *Calculator
	location   *time.Location
	metrics    *Metrics
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewQuoter creates a quoter.
func NewQuoter(cfg QuoterConfig) (*Quoter, error) {
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("new quoter: aggregator is required")
	}
	if cfg.Pricing == nil {
		return nil, fmt.Errorf("new quoter: pricing service is required")
	}
	if cfg.Calculator == nil {
		cfg.Calculator = NewCalculator(nil)
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("new quoter: load %s: %w", DefaultTimezone, err)
		}
		cfg.Location = loc
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}

	return &Quoter{
		aggregator: cfg.Aggregator,
		pricing:    cfg.Pricing,
		calculator: cfg.Calculator,
		location:   cfg.Location,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		tracer:     cfg.Tracer,
		now:        time.Now,
	}, nil
}

// Location returns the pricing time zone.
func (q *Quoter) Location() *time.Location {
	return q.location
}

// Quote computes a quote. Errors are either *InputError or the context's.
func (q *Quoter) Quote(ctx context.Context, req Request) (*Quote, error) {
	start := q.now()

	ctx, span := q.tracer.Start(ctx, "fare.Quote",
		trace.WithAttributes(
			attribute.String("fare.vehicle", string(req.Selection.Vehicle)),
			attribute.String("fare.service_type", string(req.ServiceType)),
			attribute.Int("fare.stops", len(req.Stops)),
		),
	)
	defer span.End()

	if err := validateRequest(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	selection, corrections := Correct(req.Selection)
	for _, c := range corrections {
		q.logger.Debug().Str("field", c.Field).Str("from", c.From).Str("to", c.To).Msg("Selection corrected")
	}

	snapshot := q.pricing.Current(ctx)

	agg, err := q.aggregator.Collect(ctx, req.Waypoints())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "leg aggregation cancelled")
		return nil, err
	}

	departure := req.Departure
	if !departure.IsZero() {
		departure = departure.In(q.location)
	}

	breakdown, err := q.calculator.Compute(Input{
		Vehicle:        selection.Vehicle,
		ServiceType:    req.ServiceType,
		Legs:           agg.Legs,
		WaitingMinutes: req.WaitingMinutes,
		Departure:      departure,
		Pickup:         req.Pickup.Label,
		DropOffs:       labels(req.Stops),
	}, snapshot.Config)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	quote := &Quote{
		ID:            uuid.New().String(),
		Selection:     selection,
		Corrections:   corrections,
		ServiceType:   req.ServiceType,
		Legs:          agg.Legs,
		Skipped:       agg.Skipped,
		Breakdown:     breakdown,
		Display:       Display(breakdown),
		PricingSource: snapshot.Source,
		Notices:       []string{},
		Departure:     departure,
		ComputedAt:    q.now().UTC(),
	}
	if quote.Corrections == nil {
		quote.Corrections = []Correction{}
	}
	if quote.Skipped == nil {
		quote.Skipped = []SkippedLeg{}
	}

	if snapshot.Degraded {
		quote.Notices = append(quote.Notices, NoticeFallbackPricing)
	}
	if len(agg.Skipped) > 0 {
		quote.Notices = append(quote.Notices, NoticeUnresolvedLegs)
	}
	quote.Degraded = len(quote.Notices) > 0

	if quote.Degraded {
		q.logger.Warn().
			Str("quote_id", quote.ID).
			Strs("notices", quote.Notices).
			Str("pricing_reason", snapshot.Reason).
			Msg("Quote computed in degraded mode")
	}

	span.SetAttributes(
		attribute.String("fare.quote_id", quote.ID),
		attribute.String("fare.total", breakdown.Total.StringFixed(2)),
		attribute.Bool("fare.degraded", quote.Degraded),
	)
	q.metrics.recordQuote(ctx, quote, q.now().Sub(start))

	return quote, nil
}

func validateRequest(req Request) error {
	if !req.ServiceType.Valid() {
		return &InputError{Field: "serviceType", Reason: fmt.Sprintf("unsupported service type %q", req.ServiceType)}
	}
	if req.Pickup.Empty() {
		return &InputError{Field: "pickup", Reason: "is required"}
	}
	for i, s := range req.Stops {
		if s.Empty() {
			return &InputError{Field: fmt.Sprintf("stops[%d]", i), Reason: "must have an address or coordinate"}
		}
	}
	if req.WaitingMinutes < 0 {
		return &InputError{Field: "waitingMinutes", Reason: "must not be negative"}
	}
	sel := req.Selection
	switch {
	case sel.Passengers < 0:
		return &InputError{Field: "passengers", Reason: "must not be negative"}
	case sel.SmallSuitcases < 0:
		return &InputError{Field: "smallSuitcases", Reason: "must not be negative"}
	case sel.LargeSuitcases < 0:
		return &InputError{Field: "largeSuitcases", Reason: "must not be negative"}
	}
	return nil
}

func labels(wps []distance.Waypoint) []string {
	out := make([]string, len(wps))
	for i, w := range wps {
		out[i] = w.Label
	}
	return out
}
