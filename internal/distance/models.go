// Package distance resolves driving distances for journey legs.
package distance

import (
	"context"
	"errors"
	"strings"

	"github.com/chauffeurline/fareengine/internal/geo"
)

// MetersPerMile converts resolved leg distances to billable miles.
const MetersPerMile = 1609.34

// Sentinel errors for distance lookups.
var (
	// ErrUnresolved indicates no distance could be determined for a leg.
	ErrUnresolved = errors.New("leg distance unresolved")
	// ErrProviderUnavailable indicates the provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("distance provider unavailable")
	// ErrNoRouteFound indicates the provider found no drivable route.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidCoordinates indicates the provided coordinates are out of range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	// ErrUnsupportedWaypoint indicates the provider cannot handle the waypoint form
	// (for example an address-only waypoint sent to a coordinate-only provider).
	ErrUnsupportedWaypoint = errors.New("unsupported waypoint")
)

// Waypoint is one stop in a journey: a free-text address and, when geocoded, its coordinate.
type Waypoint struct {
	Label      string          `json:"label"`
	Coordinate *geo.Coordinate `json:"coordinate,omitempty"`
}

// HasCoordinate reports whether the waypoint was geocoded.
func (w Waypoint) HasCoordinate() bool {
	return w.Coordinate != nil
}

// AddressOnly returns a copy of the waypoint without its coordinate.
func (w Waypoint) AddressOnly() Waypoint {
	return Waypoint{Label: w.Label}
}

// Empty reports whether the waypoint carries neither an address nor a coordinate.
func (w Waypoint) Empty() bool {
	return w.Coordinate == nil && strings.TrimSpace(w.Label) == ""
}

// Resolver returns the driving distance in meters between two waypoints.
// Any error means the distance is unknown.
type Resolver interface {
	Resolve(ctx context.Context, origin, destination Waypoint) (float64, error)
}

// Provider is a named upstream distance source.
type Provider interface {
	Resolver
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Error provides detailed error information from a distance provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}

// MetersToMiles converts a resolved distance to miles.
func MetersToMiles(meters float64) float64 {
	return meters / MetersPerMile
}
