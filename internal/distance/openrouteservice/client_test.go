package openrouteservice

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/geo"
)

var (
	charingCross = distance.Waypoint{
		Label:      "Charing Cross, London",
		Coordinate: &geo.Coordinate{Lat: 51.5074, Lng: -0.1278},
	}
	heathrowT5 = distance.Waypoint{
		Label:      "Heathrow Airport Terminal 5",
		Coordinate: &geo.Coordinate{Lat: 51.4723, Lng: -0.4880},
	}
)

// mockHTTPClient wraps http.Client to implement HTTPDoer interface.
type mockHTTPClient struct {
	client *http.Client
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.client.Do(req)
}

// mockFailingClient simulates network errors.
type mockFailingClient struct{}

func (m *mockFailingClient) Do(req *http.Request) (*http.Response, error) {
	return nil, errors.New("network error")
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient(ClientConfig{
		APIKey:     "mock123",
		BaseURL:    server.URL,
		HTTPClient: &mockHTTPClient{client: server.Client()},
		Logger:     zerolog.Nop(),
	})
}

func TestClient_Resolve_Success(t *testing.T) {
	respBody, err := os.ReadFile("testdata/directions_response.json")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "mock123" {
			t.Errorf("expected Authorization header 'mock123', got '%s'", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/v2/directions/driving-car" {
			t.Errorf("expected path /v2/directions/driving-car, got %s", r.URL.Path)
		}

		var body orsRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		if len(body.Coordinates) != 2 {
			t.Errorf("expected 2 coordinates, got %d", len(body.Coordinates))
		} else if body.Coordinates[0][0] != -0.1278 || body.Coordinates[0][1] != 51.5074 { // [lon, lat]
			t.Errorf("unexpected origin coordinate %v", body.Coordinates[0])
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(respBody)
	}))
	defer server.Close()

	meters, err := newTestClient(server).Resolve(context.Background(), charingCross, heathrowT5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(meters-26514.3) > 1e-9 {
		t.Errorf("expected 26514.3 meters, got %f", meters)
	}
}

func TestClient_Resolve_AddressOnlyUnsupported(t *testing.T) {
	client := NewClient(ClientConfig{
		APIKey:     "mock123",
		HTTPClient: &mockFailingClient{},
		Logger:     zerolog.Nop(),
	})

	_, err := client.Resolve(context.Background(), charingCross.AddressOnly(), heathrowT5)
	if !errors.Is(err, distance.ErrUnsupportedWaypoint) {
		t.Fatalf("expected ErrUnsupportedWaypoint, got %v", err)
	}
}

func TestClient_Resolve_NoRouteFound(t *testing.T) {
	respBody, err := os.ReadFile("testdata/error_response.json")
	if err != nil {
		t.Fatalf("failed to load test fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write(respBody)
	}))
	defer server.Close()

	_, err = newTestClient(server).Resolve(context.Background(), charingCross, heathrowT5)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var distErr *distance.Error
	if !errors.As(err, &distErr) {
		t.Fatalf("expected distance.Error, got %T", err)
	}
	if !errors.Is(distErr.Err, distance.ErrNoRouteFound) {
		t.Errorf("expected ErrNoRouteFound, got %v", distErr.Err)
	}
}

func TestClient_Resolve_EmptyRoutes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"routes":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Resolve(context.Background(), charingCross, heathrowT5)
	if !errors.Is(err, distance.ErrNoRouteFound) {
		t.Errorf("expected ErrNoRouteFound, got %v", err)
	}
}

func TestClient_Resolve_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":403,"message":"Rate limit exceeded"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Resolve(context.Background(), charingCross, heathrowT5)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var distErr *distance.Error
	if !errors.As(err, &distErr) {
		t.Fatalf("expected distance.Error, got %T", err)
	}
	if !errors.Is(distErr.Err, distance.ErrRateLimitExceeded) {
		t.Errorf("expected ErrRateLimitExceeded, got %v", distErr.Err)
	}
	if !distErr.IsRetryable() {
		t.Error("expected rate limit error to be retryable")
	}
}

func TestClient_Resolve_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name        string
		origin      geo.Coordinate
		destination geo.Coordinate
	}{
		{
			name:        "latitude out of range",
			origin:      geo.Coordinate{Lat: 91.0, Lng: -0.1},
			destination: geo.Coordinate{Lat: 51.5, Lng: -0.1},
		},
		{
			name:        "longitude out of range",
			origin:      geo.Coordinate{Lat: 51.5, Lng: -0.1},
			destination: geo.Coordinate{Lat: 51.5, Lng: 181.0},
		},
	}

	client := NewClient(ClientConfig{
		APIKey:     "mock123",
		HTTPClient: &mockFailingClient{},
		Logger:     zerolog.Nop(),
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin, destination := tt.origin, tt.destination
			_, err := client.Resolve(context.Background(),
				distance.Waypoint{Label: "a", Coordinate: &origin},
				distance.Waypoint{Label: "b", Coordinate: &destination},
			)

			if !errors.Is(err, distance.ErrInvalidCoordinates) {
				t.Errorf("expected ErrInvalidCoordinates, got %v", err)
			}
		})
	}
}

func TestClient_Resolve_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"Internal server error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Resolve(context.Background(), charingCross, heathrowT5)
	if !errors.Is(err, distance.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestClient_Resolve_NetworkError(t *testing.T) {
	client := NewClient(ClientConfig{
		APIKey:     "mock123",
		HTTPClient: &mockFailingClient{},
		Logger:     zerolog.Nop(),
	})

	_, err := client.Resolve(context.Background(), charingCross, heathrowT5)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var distErr *distance.Error
	if !errors.As(err, &distErr) {
		t.Fatalf("expected distance.Error, got %T", err)
	}
	if distErr.Code != "REQUEST_FAILED" {
		t.Errorf("expected REQUEST_FAILED, got %s", distErr.Code)
	}
}

func TestClient_Name(t *testing.T) {
	client := NewClient(ClientConfig{
		APIKey: "test",
		Logger: zerolog.Nop(),
	})

	if client.Name() != ProviderName {
		t.Errorf("expected %s, got %s", ProviderName, client.Name())
	}
}
