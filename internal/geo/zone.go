package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ZoneID identifies a pricing zone ring. The zero value means the zone is unknown.
type ZoneID int

// ZoneUnknown marks a leg endpoint without a coordinate.
const ZoneUnknown ZoneID = 0

// InnerZoneMax is the highest zone id billed at the inner-zone override rate.
const InnerZoneMax ZoneID = 4

// Known reports whether the zone was classified.
func (z ZoneID) Known() bool {
	return z != ZoneUnknown
}

// Inner reports whether the zone is a known inner zone (1..4).
func (z ZoneID) Inner() bool {
	return z.Known() && z <= InnerZoneMax
}

// MarshalJSON encodes an unknown zone as null.
func (z ZoneID) MarshalJSON() ([]byte, error) {
	if !z.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(int(z))
}

// UnmarshalJSON decodes null as an unknown zone.
func (z *ZoneID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*z = ZoneUnknown
		return nil
	}
	var id int
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*z = ZoneID(id)
	return nil
}

// ZoneRing is one concentric band around the reference point.
type ZoneRing struct {
	ID          ZoneID  `json:"id"`
	Name        string  `json:"name"`
	RadiusMiles float64 `json:"radiusMiles"`
}

// MarshalJSON encodes the catch-all ring's infinite radius as null.
func (r ZoneRing) MarshalJSON() ([]byte, error) {
	var radius *float64
	if !math.IsInf(r.RadiusMiles, 1) {
		radius = &r.RadiusMiles
	}
	return json.Marshal(struct {
		ID          ZoneID   `json:"id"`
		Name        string   `json:"name"`
		RadiusMiles *float64 `json:"radiusMiles"`
	}{r.ID, r.Name, radius})
}

// CentralLondon is the zone reference point (Charing Cross).
var CentralLondon = Coordinate{Lat: 51.5074, Lng: -0.1278}

// ErrInvalidRings is returned when a zone catalogue breaks its ordering rules.
var ErrInvalidRings = errors.New("invalid zone ring catalogue")

// LondonRings returns the nine-ring London catalogue. The last ring is a catch-all.
func LondonRings() []ZoneRing {
	return []ZoneRing{
		{ID: 1, Name: "Zone 1 - Central", RadiusMiles: 1.5},
		{ID: 2, Name: "Zone 2 - Inner", RadiusMiles: 3},
		{ID: 3, Name: "Zone 3", RadiusMiles: 5},
		{ID: 4, Name: "Zone 4", RadiusMiles: 7.5},
		{ID: 5, Name: "Zone 5 - Outer", RadiusMiles: 10},
		{ID: 6, Name: "Zone 6 - Greater London", RadiusMiles: 15},
		{ID: 7, Name: "Zone 7 - M25", RadiusMiles: 20},
		{ID: 8, Name: "Zone 8 - Home Counties", RadiusMiles: 30},
		{ID: 9, Name: "Zone 9 - Beyond", RadiusMiles: math.Inf(1)},
	}
}

// ValidateRings checks ids are 1..n ascending and radii strictly increase.
func ValidateRings(rings []ZoneRing) error {
	if len(rings) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidRings)
	}
	for i, r := range rings {
		if r.ID != ZoneID(i+1) {
			return fmt.Errorf("%w: ring %d has id %d", ErrInvalidRings, i, r.ID)
		}
		if i > 0 && r.RadiusMiles <= rings[i-1].RadiusMiles {
			return fmt.Errorf("%w: radius of zone %d does not exceed zone %d", ErrInvalidRings, r.ID, rings[i-1].ID)
		}
	}
	return nil
}

// Classifier maps coordinates to zone rings around a fixed reference point.
type Classifier struct {
	reference Coordinate
	rings     []ZoneRing
}

// NewClassifier creates a classifier for the given reference point and catalogue.
func NewClassifier(reference Coordinate, rings []ZoneRing) (*Classifier, error) {
	if err := ValidateRings(rings); err != nil {
		return nil, err
	}
	cp := make([]ZoneRing, len(rings))
	copy(cp, rings)
	return &Classifier{reference: reference, rings: cp}, nil
}

// DefaultClassifier returns the central London classifier.
func DefaultClassifier() *Classifier {
	c, err := NewClassifier(CentralLondon, LondonRings())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the first ring whose radius covers the coordinate,
// or the last ring when none does.
func (c *Classifier) Classify(coord Coordinate) ZoneRing {
	d := HaversineMiles(c.reference, coord)
	for _, r := range c.rings {
		if r.RadiusMiles >= d {
			return r
		}
	}
	return c.rings[len(c.rings)-1]
}

// Zone is a convenience wrapper returning only the ring id.
func (c *Classifier) Zone(coord Coordinate) ZoneID {
	return c.Classify(coord).ID
}

// Rings returns a copy of the catalogue.
func (c *Classifier) Rings() []ZoneRing {
	cp := make([]ZoneRing, len(c.rings))
	copy(cp, c.rings)
	return cp
}

// Reference returns the reference point.
func (c *Classifier) Reference() Coordinate {
	return c.reference
}
