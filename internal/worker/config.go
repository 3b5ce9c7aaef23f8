// Package worker runs background jobs for the fare engine: warming the
// shared distance cache, checking the stored pricing table and probing
// provider health.
package worker

import (
	"sort"
	"time"

	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/geo"
)

// WarmupRoute is a frequently quoted leg to pre-resolve.
type WarmupRoute struct {
	// Name is the human-readable name of the route.
	Name string

	Origin      distance.Waypoint
	Destination distance.Waypoint

	// Priority determines warm-up order (lower = higher priority).
	Priority int
}

// WarmupConfig holds configuration for the distance warm-up job.
type WarmupConfig struct {
	// Routes are the legs to resolve. If empty, uses DefaultWarmupRoutes.
	Routes []WarmupRoute

	// Concurrency is the number of concurrent lookups.
	// Default: 3
	Concurrency int

	// Timeout bounds each lookup.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultWarmupConfig returns the default warm-up configuration.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Routes:      DefaultWarmupRoutes(),
		Concurrency: 3,
		Timeout:     30 * time.Second,
	}
}

type hub struct {
	name     string
	coord    geo.Coordinate
	priority int
}

// londonHubs are the airports and rail termini most quotes start or end at.
var londonHubs = []hub{
	{"Heathrow Terminal 2", geo.Coordinate{Lat: 51.4693, Lng: -0.4503}, 1},
	{"Heathrow Terminal 3", geo.Coordinate{Lat: 51.4713, Lng: -0.4563}, 1},
	{"Heathrow Terminal 4", geo.Coordinate{Lat: 51.4590, Lng: -0.4462}, 1},
	{"Heathrow Terminal 5", geo.Coordinate{Lat: 51.4723, Lng: -0.4880}, 1},
	{"Gatwick North Terminal", geo.Coordinate{Lat: 51.1612, Lng: -0.1771}, 1},
	{"Gatwick South Terminal", geo.Coordinate{Lat: 51.1537, Lng: -0.1821}, 1},
	{"London City Airport", geo.Coordinate{Lat: 51.5048, Lng: 0.0495}, 2},
	{"Stansted Airport", geo.Coordinate{Lat: 51.8860, Lng: 0.2389}, 2},
	{"Luton Airport", geo.Coordinate{Lat: 51.8747, Lng: -0.3683}, 2},
	{"St Pancras International", geo.Coordinate{Lat: 51.5320, Lng: -0.1262}, 3},
	{"Paddington Station", geo.Coordinate{Lat: 51.5154, Lng: -0.1755}, 3},
	{"Waterloo Station", geo.Coordinate{Lat: 51.5032, Lng: -0.1123}, 3},
}

// DefaultWarmupRoutes returns each hub to Charing Cross and back.
func DefaultWarmupRoutes() []WarmupRoute {
	centre := geo.CentralLondon
	centreWp := distance.Waypoint{Label: "Charing Cross, London", Coordinate: &centre}

	routes := make([]WarmupRoute, 0, 2*len(londonHubs))
	for _, h := range londonHubs {
		c := h.coord
		wp := distance.Waypoint{Label: h.name, Coordinate: &c}
		routes = append(routes,
			WarmupRoute{Name: h.name + " to Charing Cross", Origin: wp, Destination: centreWp, Priority: h.priority},
			WarmupRoute{Name: "Charing Cross to " + h.name, Origin: centreWp, Destination: wp, Priority: h.priority},
		)
	}
	return routes
}

// OrderedRoutes returns the routes sorted by priority, stable within a priority.
func (c WarmupConfig) OrderedRoutes() []WarmupRoute {
	routes := make([]WarmupRoute, len(c.Routes))
	copy(routes, c.Routes)
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Priority < routes[j].Priority })
	return routes
}

// TotalRoutes returns the number of routes to warm.
func (c WarmupConfig) TotalRoutes() int {
	return len(c.Routes)
}
