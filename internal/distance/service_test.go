package distance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chauffeurline/fareengine/internal/geo"
)

// mockProvider is a mock distance provider for testing.
type mockProvider struct {
	name      string
	meters    float64
	err       error
	callCount atomic.Int32
	delay     time.Duration
}

func (m *mockProvider) Resolve(ctx context.Context, origin, destination Waypoint) (float64, error) {
	m.callCount.Add(1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return 0, m.err
	}
	return m.meters, nil
}

func (m *mockProvider) Name() string {
	return m.name
}

// memoryCache is an in-memory Cache for testing.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]float64
	getErr  error
}

func (c *memoryCache) Get(_ context.Context, key string) (float64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	m, ok := c.entries[key]
	return m, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, meters float64, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]float64)
	}
	c.entries[key] = meters
	return nil
}

func coordWaypoint(label string, lat, lng float64) Waypoint {
	return Waypoint{Label: label, Coordinate: &geo.Coordinate{Lat: lat, Lng: lng}}
}

var (
	pickup  = coordWaypoint("Charing Cross", 51.5074, -0.1278)
	dropOff = coordWaypoint("Heathrow Terminal 5", 51.4723, -0.4880)
)

func TestService_Resolve_CacheMiss(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 26514}

	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	meters, err := service.Resolve(context.Background(), pickup, dropOff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meters != 26514 {
		t.Errorf("expected 26514 meters, got %f", meters)
	}
	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_CacheHit(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 26514}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	for i := 0; i < 3; i++ {
		if _, err := service.Resolve(context.Background(), pickup, dropOff); err != nil {
			t.Fatalf("unexpected error on call %d: %v", i, err)
		}
	}

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (cache hit), got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_GridCaching(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 26514}
	service := NewService(ServiceConfig{
		Provider:      provider,
		Logger:        zerolog.Nop(),
		CacheGridSize: 0.01,
	})

	_, _ = service.Resolve(context.Background(),
		coordWaypoint("a", 51.5074, -0.1278), coordWaypoint("b", 51.4723, -0.4880))
	_, _ = service.Resolve(context.Background(),
		coordWaypoint("a2", 51.5076, -0.1275), coordWaypoint("b2", 51.4725, -0.4882))

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call (grid cache hit), got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_DirectionMatters(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 26514}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	_, _ = service.Resolve(context.Background(), pickup, dropOff)
	_, _ = service.Resolve(context.Background(), dropOff, pickup)

	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls (reverse leg not shared), got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_AddressKeysNormalised(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 1000}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	_, _ = service.Resolve(context.Background(), Waypoint{Label: "Gatwick Airport"}, Waypoint{Label: "The Savoy"})
	_, _ = service.Resolve(context.Background(), Waypoint{Label: "  gatwick   AIRPORT "}, Waypoint{Label: "the savoy"})

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_StaleIfError(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 26514}
	service := NewService(ServiceConfig{
		Provider:        provider,
		Logger:          zerolog.Nop(),
		CacheTTL:        time.Millisecond,
		StaleIfErrorTTL: time.Hour,
	})

	if _, err := service.Resolve(context.Background(), pickup, dropOff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	provider.err = &Error{Provider: "test-provider", Message: "down", Err: ErrProviderUnavailable}

	meters, err := service.Resolve(context.Background(), pickup, dropOff)
	if err != nil {
		t.Fatalf("expected stale data, got error: %v", err)
	}
	if meters != 26514 {
		t.Errorf("expected stale 26514 meters, got %f", meters)
	}
	if provider.callCount.Load() != 2 {
		t.Errorf("expected 2 provider calls, got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_ProviderError(t *testing.T) {
	provider := &mockProvider{name: "test-provider", err: ErrNoRouteFound}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	_, err := service.Resolve(context.Background(), pickup, dropOff)
	if !errors.Is(err, ErrNoRouteFound) {
		t.Errorf("expected ErrNoRouteFound, got %v", err)
	}
}

func TestService_Resolve_InvalidWaypoints(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 1}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	tests := []struct {
		name        string
		origin      Waypoint
		destination Waypoint
		want        error
	}{
		{"bad origin latitude", coordWaypoint("x", 95, 0), pickup, ErrInvalidCoordinates},
		{"bad destination longitude", pickup, coordWaypoint("x", 51, 200), ErrInvalidCoordinates},
		{"empty origin", Waypoint{}, pickup, ErrUnresolved},
		{"blank destination", pickup, Waypoint{Label: "   "}, ErrUnresolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Resolve(context.Background(), tt.origin, tt.destination)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if provider.callCount.Load() != 0 {
		t.Errorf("expected no provider calls, got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_ConcurrentRequestsDeduplicated(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 26514, delay: 50 * time.Millisecond}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := service.Resolve(context.Background(), pickup, dropOff); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call for identical concurrent lookups, got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_CallerCancellation(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 26514, delay: 200 * time.Millisecond}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := service.Resolve(ctx, pickup, dropOff)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Errorf("caller should stop waiting on cancellation")
	}
}

func TestService_Resolve_SharedCache(t *testing.T) {
	shared := &memoryCache{}
	provider := &mockProvider{name: "test-provider", meters: 26514}

	first := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop(), SharedCache: shared})
	if _, err := first.Resolve(context.Background(), pickup, dropOff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second process with a cold local cache reads from the shared tier.
	second := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop(), SharedCache: shared})
	meters, err := second.Resolve(context.Background(), pickup, dropOff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meters != 26514 {
		t.Errorf("expected 26514 meters, got %f", meters)
	}
	if provider.callCount.Load() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.callCount.Load())
	}
}

func TestService_Resolve_SharedCacheErrorIgnored(t *testing.T) {
	shared := &memoryCache{getErr: errors.New("connection refused")}
	provider := &mockProvider{name: "test-provider", meters: 500}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop(), SharedCache: shared})

	meters, err := service.Resolve(context.Background(), pickup, dropOff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meters != 500 {
		t.Errorf("expected 500 meters, got %f", meters)
	}
}

func TestService_CacheStats(t *testing.T) {
	provider := &mockProvider{name: "test-provider", meters: 1}
	service := NewService(ServiceConfig{Provider: provider, Logger: zerolog.Nop()})

	_, _ = service.Resolve(context.Background(), pickup, dropOff)
	_, _ = service.Resolve(context.Background(), dropOff, pickup)

	stats := service.CacheStats()
	if stats.TotalEntries != 2 || stats.FreshEntries != 2 {
		t.Errorf("expected 2 fresh entries, got %+v", stats)
	}
	if stats.Provider != "test-provider" {
		t.Errorf("expected provider test-provider, got %s", stats.Provider)
	}

	service.InvalidateCache()
	if service.CacheStats().TotalEntries != 0 {
		t.Error("expected empty cache after invalidation")
	}
}

func TestService_CacheKeyFormat(t *testing.T) {
	service := NewService(ServiceConfig{Provider: &mockProvider{name: "p"}, CacheGridSize: 0.01})

	got := service.CacheKey(coordWaypoint("a", 51.5074, -0.1278), coordWaypoint("b", 51.4723, -0.4880))
	want := "c:5150,-13:5147,-49"
	if got != want {
		t.Errorf("expected key %s, got %s", want, got)
	}

	// Falls back to address keys when either side lacks a coordinate.
	got = service.CacheKey(coordWaypoint("Savoy", 51.51, -0.12), Waypoint{Label: "Gatwick  Airport"})
	if got != "a:savoy|gatwick airport" {
		t.Errorf("unexpected address key %s", got)
	}
}

func TestService_CacheKey_DefaultGridSeparatesNearbyPickups(t *testing.T) {
	service := NewService(ServiceConfig{Provider: &mockProvider{name: "p"}})
	heathrow := coordWaypoint("LHR", 51.4700, -0.4543)

	// About 100m apart along the same street.
	a := service.CacheKey(coordWaypoint("a", 51.51000, -0.12000), heathrow)
	b := service.CacheKey(coordWaypoint("b", 51.51090, -0.12000), heathrow)
	if a == b {
		t.Errorf("expected distinct keys for pickups 100m apart, both %s", a)
	}

	again := service.CacheKey(coordWaypoint("a again", 51.51000, -0.12000), heathrow)
	if again != a {
		t.Errorf("expected identical coordinates to share a key, got %s and %s", a, again)
	}
}

func TestMetersToMiles(t *testing.T) {
	if got := MetersToMiles(16093.4); got < 9.9999 || got > 10.0001 {
		t.Errorf("expected 10 miles, got %f", got)
	}
}
