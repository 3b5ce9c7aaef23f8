// Package googlemaps provides a driving distance provider backed by the
// Google Distance Matrix API. It accepts coordinate pairs and free-text
// addresses.
package googlemaps

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"

	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/provider/resilience"
)

const (
	// ProviderName identifies this distance provider.
	ProviderName = "googlemaps"

	// DefaultLanguage biases address interpretation to British English.
	DefaultLanguage = "en-GB"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// Element statuses returned by the Distance Matrix API.
const (
	elementOK          = "OK"
	elementNotFound    = "NOT_FOUND"
	elementZeroResults = "ZERO_RESULTS"
)

// ClientConfig holds configuration for the Distance Matrix client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL overrides the API host (optional, used by tests).
	BaseURL string

	// Language for address interpretation (optional, defaults to en-GB).
	Language string

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Resilience overrides the resilient client settings (optional).
	Resilience *resilience.ClientConfig

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client resolves driving distances with the Distance Matrix API.
type Client struct {
	maps     *maps.Client
	language string
	logger   zerolog.Logger
}

// NewClient creates a new Distance Matrix client.
func NewClient(cfg ClientConfig) (*Client, error) {
	language := cfg.Language
	if language == "" {
		language = DefaultLanguage
	}

	clientCfg := resilience.DefaultClientConfig(ProviderName)
	if cfg.Resilience != nil {
		clientCfg = *cfg.Resilience
		clientCfg.Name = ProviderName
	}
	clientCfg.Timeout = cfg.Timeout
	if clientCfg.Timeout == 0 {
		clientCfg.Timeout = DefaultTimeout
	}
	clientCfg.Registry = cfg.Registry

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(resilience.NewClient(clientCfg).HTTPClient()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &Client{
		maps:     mc,
		language: language,
		logger:   cfg.Logger,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Resolve returns the driving distance in meters between two waypoints,
// using coordinates when present and the address label otherwise.
func (c *Client) Resolve(ctx context.Context, origin, destination distance.Waypoint) (float64, error) {
	o, err := location(origin)
	if err != nil {
		return 0, err
	}
	d, err := location(destination)
	if err != nil {
		return 0, err
	}

	req := &maps.DistanceMatrixRequest{
		Origins:      []string{o},
		Destinations: []string{d},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsImperial,
		Language:     c.language,
	}

	c.logger.Debug().
		Str("origin", o).
		Str("destination", d).
		Msg("requesting leg distance from distance matrix")

	resp, err := c.maps.DistanceMatrix(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "maps api error",
			Err:      fmt.Errorf("%w: %w", distance.ErrProviderUnavailable, err),
		}
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "distance matrix returned no elements",
			Err:      distance.ErrNoRouteFound,
		}
	}

	el := resp.Rows[0].Elements[0]
	switch el.Status {
	case elementOK:
		c.logger.Debug().
			Int("meters", el.Distance.Meters).
			Msg("received leg distance from distance matrix")
		return float64(el.Distance.Meters), nil
	case elementNotFound, elementZeroResults:
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     el.Status,
			Message:  "no route found between the given points",
			Err:      distance.ErrNoRouteFound,
		}
	default:
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     el.Status,
			Message:  "distance matrix element failed",
			Err:      distance.ErrUnresolved,
		}
	}
}

// location renders a waypoint in the form the Distance Matrix API accepts.
func location(w distance.Waypoint) (string, error) {
	if w.Coordinate != nil {
		if err := w.Coordinate.Validate(); err != nil {
			return "", &distance.Error{
				Provider: ProviderName,
				Code:     "INVALID_COORDINATES",
				Message:  err.Error(),
				Err:      distance.ErrInvalidCoordinates,
			}
		}
		return strconv.FormatFloat(w.Coordinate.Lat, 'f', -1, 64) + "," +
			strconv.FormatFloat(w.Coordinate.Lng, 'f', -1, 64), nil
	}
	if w.Empty() {
		return "", &distance.Error{
			Provider: ProviderName,
			Code:     "EMPTY_WAYPOINT",
			Message:  "waypoint has neither address nor coordinate",
			Err:      distance.ErrUnsupportedWaypoint,
		}
	}
	return w.Label, nil
}
