package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chauffeurline/fareengine/internal/api/handler"
	"github.com/chauffeurline/fareengine/internal/api/models"
	"github.com/chauffeurline/fareengine/internal/distance"
	"github.com/chauffeurline/fareengine/internal/fare"
	"github.com/chauffeurline/fareengine/internal/pricing"
	"github.com/chauffeurline/fareengine/internal/provider/resilience"
)

// labelResolver answers by "origin->destination" label in miles.
type labelResolver map[string]float64

func (l labelResolver) Resolve(_ context.Context, o, d distance.Waypoint) (float64, error) {
	miles, ok := l[o.Label+"->"+d.Label]
	if !ok {
		return 0, distance.ErrUnresolved
	}
	return miles * distance.MetersPerMile, nil
}

// quoteFunc adapts a function to fare.QuoteComputer.
type quoteFunc func(ctx context.Context, req fare.Request) (*fare.Quote, error)

func (f quoteFunc) Quote(ctx context.Context, req fare.Request) (*fare.Quote, error) {
	return f(ctx, req)
}

func newQuoter(t *testing.T, r distance.Resolver) *fare.Quoter {
	t.Helper()
	q, err := fare.NewQuoter(fare.QuoterConfig{
		Aggregator: fare.NewAggregator(fare.AggregatorConfig{Resolver: r, Logger: zerolog.Nop()}),
		Pricing: pricing.NewService(pricing.ServiceConfig{
			Repository: pricing.NewInMemoryRepository(pricing.DefaultConfig()),
			Logger:     zerolog.Nop(),
		}),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	return q
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestComputeQuote_Transfer(t *testing.T) {
	h := handler.NewQuoteHandler(newQuoter(t, labelResolver{"Mayfair->The City": 8}), zerolog.Nop())

	rec := postJSON(t, h.ComputeQuote, "/v1/quotes:compute", `{
		"vehicle": "Executive",
		"serviceType": "transfer",
		"passengers": 2,
		"pickup": {"address": "Mayfair"},
		"stops": [{"address": "The City"}],
		"departureTime": "2026-03-14T12:00:00Z"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.QuoteResponse](t, rec)
	assert.Equal(t, "£28.00", resp.Display)
	assert.Equal(t, "28.00", resp.Breakdown.Total)
	assert.Equal(t, "tiered", resp.Breakdown.MileageRule)
	assert.Equal(t, "executive", resp.Vehicle)
	assert.Equal(t, "Transfer", resp.ServiceType)
	assert.Equal(t, "GBP", resp.Currency)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Legs, 1)
	assert.Nil(t, resp.Legs[0].AppliedZone)
	assert.NotNil(t, resp.DepartureTime)
	assert.Empty(t, resp.SkippedLegs)
}

func TestComputeQuote_WaitAndReturnWithCoordinates(t *testing.T) {
	h := handler.NewQuoteHandler(newQuoter(t, labelResolver{"Paddington->Charing Cross": 12}), zerolog.Nop())

	rec := postJSON(t, h.ComputeQuote, "/v1/quotes:compute", `{
		"vehicle": "mpv",
		"serviceType": "Wait and Return",
		"passengers": 5,
		"pickup": {"address": "Paddington", "location": {"lat": 51.5154, "lng": -0.1755}},
		"stops": [{"address": "Charing Cross", "location": {"lat": 51.5074, "lng": -0.1278}}],
		"waitingMinutes": 30,
		"departureTime": "2026-03-14T12:00:00Z"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[models.QuoteResponse](t, rec)
	assert.Equal(t, "£102.50", resp.Display)
	assert.Equal(t, "inner_zone_override", resp.Breakdown.MileageRule)
	require.Len(t, resp.Breakdown.Items, 1)
	assert.Equal(t, "waiting", resp.Breakdown.Items[0].Kind)
	assert.Equal(t, "42.50", resp.Breakdown.Items[0].Amount)
	require.NotNil(t, resp.Legs[0].OriginZone)
	assert.Equal(t, 2, *resp.Legs[0].OriginZone)
	assert.Equal(t, 1, *resp.Legs[0].DestinationZone)
}

func TestComputeQuote_Validation(t *testing.T) {
	h := handler.NewQuoteHandler(quoteFunc(func(context.Context, fare.Request) (*fare.Quote, error) {
		t.Fatal("quoter must not be called for invalid input")
		return nil, nil
	}), zerolog.Nop())

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{
			name:   "malformed json",
			body:   `{"vehicle":`,
			fields: nil,
		},
		{
			name:   "unknown service and no stops",
			body:   `{"vehicle":"executive","serviceType":"shuttle","pickup":{"address":"A"}}`,
			fields: []string{"serviceType", "stops"},
		},
		{
			name:   "missing vehicle",
			body:   `{"serviceType":"transfer","pickup":{"address":"A"},"stops":[{"address":"B"}]}`,
			fields: []string{"vehicle"},
		},
		{
			name:   "coordinate out of range",
			body:   `{"vehicle":"mpv","serviceType":"transfer","pickup":{"address":"A"},"stops":[{"address":"B","location":{"lat":91,"lng":0}}]}`,
			fields: []string{"stops[0].location"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.ComputeQuote, "/v1/quotes:compute", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			problem := decode[models.Problem](t, rec)
			var fields []string
			for _, fe := range problem.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestComputeQuote_QuoterErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"input error", &fare.InputError{Field: "vehicle", Reason: "unknown vehicle class"}, http.StatusBadRequest},
		{"cancelled", context.Canceled, http.StatusRequestTimeout},
		{"superseded", fare.ErrSuperseded, http.StatusRequestTimeout},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	body := `{"vehicle":"limo","serviceType":"transfer","pickup":{"address":"A"},"stops":[{"address":"B"}]}`

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewQuoteHandler(quoteFunc(func(context.Context, fare.Request) (*fare.Quote, error) {
				return nil, tt.err
			}), zerolog.Nop())

			rec := postJSON(t, h.ComputeQuote, "/v1/quotes:compute", body)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestComputeQuote_PassesRequestThrough(t *testing.T) {
	var got fare.Request
	h := handler.NewQuoteHandler(quoteFunc(func(_ context.Context, req fare.Request) (*fare.Quote, error) {
		got = req
		return nil, context.Canceled
	}), zerolog.Nop())

	postJSON(t, h.ComputeQuote, "/v1/quotes:compute", `{
		"vehicle": " Luxury ",
		"serviceType": "as_directed",
		"passengers": 3,
		"smallSuitcases": 4,
		"largeSuitcases": 1,
		"pickup": {"address": " Heathrow T5 "},
		"stops": [{"address": "Savoy"}, {"address": "Gatwick"}],
		"departureTime": "2026-07-01T22:30:00Z"
	}`)

	assert.Equal(t, pricing.VehicleLuxury, got.Selection.Vehicle)
	assert.Equal(t, fare.ServiceAsDirected, got.ServiceType)
	assert.Equal(t, 4, got.Selection.SmallSuitcases)
	assert.Equal(t, "Heathrow T5", got.Pickup.Label)
	require.Len(t, got.Stops, 2)
	assert.Equal(t, "Gatwick", got.Stops[1].Label)
	assert.True(t, got.Departure.Equal(time.Date(2026, 7, 1, 22, 30, 0, 0, time.UTC)))
}

func TestCheckEligibility(t *testing.T) {
	svc := pricing.NewService(pricing.ServiceConfig{
		Repository: pricing.NewInMemoryRepository(pricing.DefaultConfig()),
		Logger:     zerolog.Nop(),
	})
	h := handler.NewEligibilityHandler(svc)

	t.Run("luggage forces mpv", func(t *testing.T) {
		rec := postJSON(t, h.CheckEligibility, "/v1/eligibility:check",
			`{"vehicle":"luxury","passengers":2,"largeSuitcases":3}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decode[models.EligibilityResponse](t, rec)
		assert.False(t, resp.Allowed)
		assert.Equal(t, "mpv", resp.Vehicle)
		require.Len(t, resp.Corrections, 1)
		assert.Equal(t, "vehicle_downgraded", resp.Corrections[0].Kind)
		assert.Equal(t, []string{"mpv"}, resp.EligibleVehicles)
	})

	t.Run("allowed selection", func(t *testing.T) {
		rec := postJSON(t, h.CheckEligibility, "/v1/eligibility:check",
			`{"vehicle":"executive","passengers":4,"smallSuitcases":2,"largeSuitcases":2}`)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[models.EligibilityResponse](t, rec)
		assert.True(t, resp.Allowed)
		assert.Empty(t, resp.Corrections)
		assert.Equal(t, []string{"executive", "luxury", "mpv"}, resp.EligibleVehicles)
	})

	t.Run("unknown vehicle", func(t *testing.T) {
		rec := postJSON(t, h.CheckEligibility, "/v1/eligibility:check", `{"vehicle":"bus","passengers":-1}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Len(t, decode[models.Problem](t, rec).Errors, 2)
	})
}

func TestClassifyZone(t *testing.T) {
	h := handler.NewZoneHandler(nil)

	get := func(query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ClassifyZone(rec, httptest.NewRequest(http.MethodGet, "/v1/zones:classify?"+query, http.NoBody))
		return rec
	}

	rec := get("lat=51.4723&lng=-0.4880")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.ZoneResponse](t, rec)
	assert.Equal(t, 7, resp.Zone)
	assert.False(t, resp.Inner)
	require.NotNil(t, resp.RadiusMiles)
	assert.Equal(t, 20.0, *resp.RadiusMiles)

	rec = get("lat=51.5074&lng=-0.1278")
	resp = decode[models.ZoneResponse](t, rec)
	assert.Equal(t, 1, resp.Zone)
	assert.True(t, resp.Inner)
	assert.Equal(t, 0.0, resp.DistanceMiles)

	// Birmingham is beyond every bounded ring.
	rec = get("lat=52.4862&lng=-1.8904")
	resp = decode[models.ZoneResponse](t, rec)
	assert.Equal(t, 9, resp.Zone)
	assert.Nil(t, resp.RadiusMiles)

	assert.Equal(t, http.StatusBadRequest, get("lat=abc&lng=0").Code)
	assert.Equal(t, http.StatusBadRequest, get("lng=0").Code)
	assert.Equal(t, http.StatusBadRequest, get("lat=95&lng=0").Code)
}

func TestPricingHandler(t *testing.T) {
	repo := pricing.NewInMemoryRepository(pricing.DefaultConfig())
	svc := pricing.NewService(pricing.ServiceConfig{Repository: repo, Logger: zerolog.Nop()})
	h := handler.NewPricingHandler(svc, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetPricing(rec, httptest.NewRequest(http.MethodGet, "/v1/pricing", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.PricingResponse](t, rec)
	assert.Equal(t, "repository", resp.Source)
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Vehicles, 3)
	assert.Equal(t, "executive", resp.Vehicles[0].Code)
	assert.Equal(t, "3.50", resp.Vehicles[0].Tier1)
	assert.Equal(t, "20.00", resp.Surcharges.Night)

	// The cached table is served until a reload.
	repo.SetError(errors.New("connection refused"))
	rec = httptest.NewRecorder()
	h.GetPricing(rec, httptest.NewRequest(http.MethodGet, "/v1/pricing", http.NoBody))
	assert.Equal(t, "repository", decode[models.PricingResponse](t, rec).Source)

	rec = httptest.NewRecorder()
	h.ReloadPricing(rec, httptest.NewRequest(http.MethodPost, "/v1/admin/pricing:reload", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	resp = decode[models.PricingResponse](t, rec)
	assert.Equal(t, "fallback", resp.Source)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.Reason)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestOpsHandler(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "openrouteservice", Registry: registry})
	registry.RecordFailure("openrouteservice", errors.New("upstream 502"))

	repo := pricing.NewInMemoryRepository(pricing.DefaultConfig())
	repo.SetError(errors.New("connection refused"))

	h := handler.NewOpsHandler(handler.OpsConfig{
		Version:  "1.2.3",
		Pricing:  pricing.NewService(pricing.ServiceConfig{Repository: repo, Logger: zerolog.Nop()}),
		Registry: registry,
		Checks: map[string]handler.Pinger{
			"redis": pingFunc(func(context.Context) error { return nil }),
		},
	})

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		health := decode[models.Health](t, rec)
		assert.Equal(t, models.HealthStatusOK, health.Status)
		assert.Equal(t, "1.2.3", health.Details["version"])
	})

	t.Run("ready but degraded on fallback pricing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)
		health := decode[models.Health](t, rec)
		assert.Equal(t, models.HealthStatusDegraded, health.Status)
		assert.Equal(t, "fallback", health.Details["pricing"])
		assert.Equal(t, "ok", health.Details["redis"])
	})

	t.Run("status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))
		require.Equal(t, http.StatusOK, rec.Code)

		status := decode[models.SystemStatus](t, rec)
		assert.Equal(t, models.HealthStatusDegraded, status.Status)
		assert.Contains(t, status.ActiveDegradationFlags, "fallback_pricing")
		require.Len(t, status.Providers, 1)
		p := status.Providers[0]
		assert.Equal(t, "openrouteservice", p.Provider)
		assert.Equal(t, models.HealthStatusOK, p.Status)
		assert.Equal(t, "closed", p.CircuitState)
		require.NotNil(t, p.Message)
		assert.Equal(t, "upstream 502", *p.Message)
	})
}

func TestOpsHandler_NotReady(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{
		Checks: map[string]handler.Pinger{
			"database": pingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") }),
		},
	})

	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusFail, health.Status)
	assert.Contains(t, health.Details["database"], "connection refused")
}

