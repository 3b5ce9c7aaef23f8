package fare

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/geo"
)

// AggregatorConfig holds configuration for the leg aggregator.
type AggregatorConfig struct {
	// Resolver looks up leg distances.
	Resolver distance.Resolver

	// Classifier assigns zones to geocoded waypoints (default: geo.DefaultClassifier()).
	Classifier *geo.Classifier

	// Logger for aggregation.
	Logger zerolog.Logger

	// MaxConcurrency bounds parallel leg lookups (default: 4).
	MaxConcurrency int

	// Metrics records skipped legs (optional).
	Metrics *Metrics
}

// Aggregator turns a waypoint chain into resolved legs.
type Aggregator struct {
	resolver       distance.Resolver
	classifier     *geo.Classifier
	logger         zerolog.Logger
	maxConcurrency int
	metrics        *Metrics
}

// SkippedLeg is a leg left out of pricing because its distance is unknown.
type SkippedLeg struct {
	Index            int    `json:"index"`
	OriginLabel      string `json:"originLabel"`
	DestinationLabel string `json:"destinationLabel"`
	Reason           string `json:"reason"`
}

// Aggregation is the result of Collect.
type Aggregation struct {
	Legs    []Leg
	Skipped []SkippedLeg
}

// NewAggregator creates a leg aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Classifier == nil {
		cfg.Classifier = geo.DefaultClassifier()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}

	return &Aggregator{
		resolver:       cfg.Resolver,
		classifier:     cfg.Classifier,
		logger:         cfg.Logger,
		maxConcurrency: cfg.MaxConcurrency,
		metrics:        cfg.Metrics,
	}
}

// Aggregate resolves every consecutive pair of waypoints. Legs whose
// distance cannot be resolved are skipped; the only error returned is the
// context's.
func (a *Aggregator) Aggregate(ctx context.Context, waypoints []distance.Waypoint) ([]Leg, error) {
	agg, err := a.Collect(ctx, waypoints)
	if err != nil {
		return nil, err
	}
	return agg.Legs, nil
}

// Collect is Aggregate that also reports which legs were skipped.
func (a *Aggregator) Collect(ctx context.Context, waypoints []distance.Waypoint) (*Aggregation, error) {
	if len(waypoints) < 2 {
		return &Aggregation{Legs: []Leg{}}, ctx.Err()
	}

	n := len(waypoints) - 1
	legs := make([]Leg, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			legs[i], errs[i] = a.resolveLeg(ctx, waypoints[i], waypoints[i+1])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Aggregation{Legs: make([]Leg, 0, n)}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			a.logger.Debug().
				Err(errs[i]).
				Int("leg", i).
				Str("origin", waypoints[i].Label).
				Str("destination", waypoints[i+1].Label).
				Msg("Skipping unresolved leg")
			out.Skipped = append(out.Skipped, SkippedLeg{
				Index:            i,
				OriginLabel:      waypoints[i].Label,
				DestinationLabel: waypoints[i+1].Label,
				Reason:           errs[i].Error(),
			})
			continue
		}
		out.Legs = append(out.Legs, legs[i])
	}

	if len(out.Skipped) > 0 {
		a.logger.Warn().
			Int("skipped", len(out.Skipped)).
			Int("legs", n).
			Msg("Some legs could not be resolved and were left out of the fare")
		a.metrics.recordUnresolved(ctx, len(out.Skipped))
	}

	return out, nil
}

func (a *Aggregator) resolveLeg(ctx context.Context, origin, destination distance.Waypoint) (Leg, error) {
	if origin.Empty() || destination.Empty() {
		return Leg{}, fmt.Errorf("%w: empty waypoint", distance.ErrUnresolved)
	}
	if a.resolver == nil {
		return Leg{}, fmt.Errorf("%w: no resolver configured", distance.ErrUnresolved)
	}

	o, d := origin, destination
	if !o.HasCoordinate() || !d.HasCoordinate() {
		o, d = o.AddressOnly(), d.AddressOnly()
	}

	meters, err := a.resolver.Resolve(ctx, o, d)
	if err != nil {
		return Leg{}, err
	}
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		return Leg{}, fmt.Errorf("%w: invalid distance %v", distance.ErrUnresolved, meters)
	}

	leg := Leg{
		OriginLabel:      origin.Label,
		DestinationLabel: destination.Label,
		Miles:            distance.MetersToMiles(meters),
		OriginZone:       a.zoneOf(origin),
		DestinationZone:  a.zoneOf(destination),
	}
	leg.AppliedZone = appliedZone(leg.OriginZone, leg.DestinationZone)
	return leg, nil
}

func (a *Aggregator) zoneOf(w distance.Waypoint) geo.ZoneID {
	if !w.HasCoordinate() || w.Coordinate.Validate() != nil {
		return geo.ZoneUnknown
	}
	return a.classifier.Zone(*w.Coordinate)
}

// appliedZone is the outermost known zone of the two ends. Unknown is zero,
// so the maximum also covers the one-known and none-known cases.
func appliedZone(origin, destination geo.ZoneID) geo.ZoneID {
	return max(origin, destination)
}
