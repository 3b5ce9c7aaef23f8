package fare

import (
	"regexp"
	"strings"
	"time"

	"github.com/chauffeurline/fareengine/internal/pricing"
)

// Night window: departures from 23:00 up to but excluding 04:00.
const (
	NightStartHour = 23
	NightEndHour   = 4
)

// AirportMatcher decides whether an address is an airport or terminal.
type AirportMatcher interface {
	IsAirport(address string) bool
}

// AirportMatcherFunc adapts a function to AirportMatcher.
type AirportMatcherFunc func(address string) bool

// IsAirport calls f(address).
func (f AirportMatcherFunc) IsAirport(address string) bool {
	return f(address)
}

// KeywordMatcher matches "airport" or "terminal" anywhere in the address,
// case-insensitively, plus standalone IATA codes of the London airports
// (drop-off labels such as "LHR T5").
type KeywordMatcher struct {
	keywords []string
	codes    *regexp.Regexp
}

// LondonAirportCodes are the IATA codes accepted as airport labels.
var LondonAirportCodes = []string{"LHR", "LGW", "STN", "LTN", "LCY", "SEN"}

// NewKeywordMatcher creates the default matcher.
func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{
		keywords: []string{"airport", "terminal"},
		codes:    regexp.MustCompile(`(?i)\b(` + strings.Join(LondonAirportCodes, "|") + `)\b`),
	}
}

// IsAirport implements AirportMatcher.
func (m *KeywordMatcher) IsAirport(address string) bool {
	lower := strings.ToLower(address)
	for _, k := range m.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return m.codes.MatchString(address)
}

var defaultAirportMatcher = NewKeywordMatcher()

// IsAirportOrTerminal reports whether address looks like an airport or terminal.
func IsAirportOrTerminal(address string) bool {
	return defaultAirportMatcher.IsAirport(address)
}

// IsNightDeparture reports whether t falls in the night window, using t's
// own location. A zero time never triggers.
func IsNightDeparture(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	h := t.Hour()
	return h >= NightStartHour || h < NightEndHour
}

// SurchargeEvaluator detects night and airport surcharges.
type SurchargeEvaluator struct {
	Matcher AirportMatcher
}

// Evaluate returns triggered surcharges in extras order: night, airport
// pickup, airport drop-off. Each applies at most once.
func (e SurchargeEvaluator) Evaluate(departure time.Time, pickup string, dropOffs []string, cfg *pricing.Config) []LineItem {
	matcher := e.Matcher
	if matcher == nil {
		matcher = defaultAirportMatcher
	}

	var items []LineItem

	if IsNightDeparture(departure) {
		items = append(items, LineItem{Kind: ItemNight, Label: "Night surcharge", Amount: cfg.NightSurcharge})
	}

	if matcher.IsAirport(pickup) {
		items = append(items, LineItem{Kind: ItemAirportPickup, Label: "Airport pickup", Amount: cfg.Surcharges.AirportPickup})
	}

	for _, d := range dropOffs {
		if matcher.IsAirport(d) {
			items = append(items, LineItem{Kind: ItemAirportDropoff, Label: "Airport drop-off", Amount: cfg.Surcharges.AirportDropoff})
			break
		}
	}

	return items
}
