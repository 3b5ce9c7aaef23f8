// Package openrouteservice provides a driving distance provider backed by the
// OpenRouteService directions API.
package openrouteservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/geo"
	"github.com/chauffeurline/fareengine/internal/provider/resilience"
)

const (
	// ProviderName identifies this distance provider.
	ProviderName = "openrouteservice"

	// DefaultBaseURL is the OpenRouteService API base URL.
	DefaultBaseURL = "https://api.openrouteservice.org"

	// DefaultProfile is the routing profile used for chauffeur legs.
	DefaultProfile = "driving-car"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenRouteService client.
type ClientConfig struct {
	// APIKey is the ORS API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to ORS API).
	BaseURL string

	// Profile is the ORS routing profile (optional, defaults to driving-car).
	Profile string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client resolves coordinate-pair driving distances through OpenRouteService.
type Client struct {
	apiKey     string
	baseURL    string
	profile    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new OpenRouteService client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	profile := cfg.Profile
	if profile == "" {
		profile = DefaultProfile
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		profile:    profile,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Resolve returns the driving distance in meters between two geocoded waypoints.
// Address-only waypoints are not supported.
func (c *Client) Resolve(ctx context.Context, origin, destination distance.Waypoint) (float64, error) {
	if !origin.HasCoordinate() || !destination.HasCoordinate() {
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     "UNSUPPORTED_WAYPOINT",
			Message:  "openrouteservice requires coordinates for both waypoints",
			Err:      distance.ErrUnsupportedWaypoint,
		}
	}
	if err := validateCoordinates(*origin.Coordinate); err != nil {
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     "INVALID_ORIGIN",
			Message:  "invalid origin coordinates",
			Err:      distance.ErrInvalidCoordinates,
		}
	}
	if err := validateCoordinates(*destination.Coordinate); err != nil {
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     "INVALID_DESTINATION",
			Message:  "invalid destination coordinates",
			Err:      distance.ErrInvalidCoordinates,
		}
	}

	orsReq := orsRequest{
		// ORS uses [lon, lat] order (GeoJSON)
		Coordinates: [][]float64{
			{origin.Coordinate.Lng, origin.Coordinate.Lat},
			{destination.Coordinate.Lng, destination.Coordinate.Lat},
		},
		Instructions: false,
		Geometry:     false,
		Units:        "m",
		Preference:   "recommended",
	}

	body, err := json.Marshal(orsReq)
	if err != nil {
		return 0, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, c.profile)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("profile", c.profile).
		Float64("origin_lat", origin.Coordinate.Lat).
		Float64("origin_lng", origin.Coordinate.Lng).
		Float64("dest_lat", destination.Coordinate.Lat).
		Float64("dest_lng", destination.Coordinate.Lng).
		Msg("requesting leg distance from ORS")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach distance provider",
			Err:      distance.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	var orsResp orsResponse
	if err := json.Unmarshal(respBody, &orsResp); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}

	if len(orsResp.Routes) == 0 {
		return 0, &distance.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "provider returned no routes",
			Err:      distance.ErrNoRouteFound,
		}
	}

	meters := orsResp.Routes[0].Summary.Distance

	c.logger.Debug().
		Float64("meters", meters).
		Msg("received leg distance from ORS")

	return meters, nil
}

// handleErrorResponse maps ORS error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var orsErr orsErrorResponse
	if err := json.Unmarshal(body, &orsErr); err != nil {
		return &distance.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("distance provider returned status %d", statusCode),
			Err:      distance.ErrProviderUnavailable,
		}
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return &distance.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      distance.ErrRateLimitExceeded,
		}
	case http.StatusForbidden, http.StatusUnauthorized:
		return &distance.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "API access denied - check API key configuration",
			Err:      distance.ErrProviderUnavailable,
		}
	case http.StatusNotFound:
		return &distance.Error{
			Provider: ProviderName,
			Code:     "NO_ROUTE",
			Message:  "no route found between the given points",
			Err:      distance.ErrNoRouteFound,
		}
	case http.StatusBadRequest:
		switch orsErr.Error.Code {
		case orsErrorCodeRouteNotFound, orsErrorCodePointNotFound, orsErrorCodeDistanceExceed:
			return &distance.Error{
				Provider: ProviderName,
				Code:     "NO_ROUTE",
				Message:  orsErr.Error.Message,
				Err:      distance.ErrNoRouteFound,
			}
		}
		return &distance.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  orsErr.Error.Message,
			Err:      distance.ErrInvalidCoordinates,
		}
	default:
		if statusCode >= 500 {
			return &distance.Error{
				Provider: ProviderName,
				Code:     fmt.Sprintf("SERVER_%d", statusCode),
				Message:  "distance provider is temporarily unavailable",
				Err:      distance.ErrProviderUnavailable,
			}
		}
		return &distance.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  orsErr.Error.Message,
			Err:      distance.ErrProviderUnavailable,
		}
	}
}

func validateCoordinates(c geo.Coordinate) error {
	return c.Validate()
}
