package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chauffeurline/fareengine/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("pickup is required").
		WithInstance("/v1/quotes:compute").
		WithErrors([]models.FieldError{{Field: "pickup", Message: "is required", Code: "REQUIRED"}})

	assert.Equal(t, "pickup is required", p.Detail)
	assert.Equal(t, "/v1/quotes:compute", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "REQUIRED", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "waitingMinutes", Message: "must not be negative"},
	})
	p.Instance = "/v1/quotes:compute"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "/v1/quotes:compute", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "waitingMinutes", result.Errors[0].Field)
}

func TestProblem_Constructors(t *testing.T) {
	tests := []struct {
		name   string
		p      *models.Problem
		typ    string
		title  string
		status int
	}{
		{"bad request", models.NewBadRequest("req_1", "d", nil), models.ProblemTypeValidation, "Validation error", http.StatusBadRequest},
		{"unauthorized", models.NewUnauthorized("req_1", "d"), models.ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized},
		{"forbidden", models.NewForbidden("req_1", "d"), models.ProblemTypeForbidden, "Forbidden", http.StatusForbidden},
		{"not found", models.NewNotFound("req_1", "d"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"too many requests", models.NewTooManyRequests("req_1", "d"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req_1", "d"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req_1", "d"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.p.Type)
			assert.Equal(t, tt.title, tt.p.Title)
			assert.Equal(t, tt.status, tt.p.Status)
			assert.Equal(t, "d", tt.p.Detail)
			assert.Equal(t, "req_1", tt.p.TraceID)
		})
	}
}

func TestTimestamp_JSON(t *testing.T) {
	var ts models.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2026-07-01T22:30:00Z"`), &ts))
	assert.Equal(t, 22, ts.Time().Hour())

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `"2026-07-01T22:30:00Z"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`1751409000`), &ts))
}

func TestForStatus(t *testing.T) {
	p := models.ForStatus(http.StatusRequestTimeout, "req_2", "superseded by a newer quote")
	assert.Equal(t, models.ProblemTypeRequestCancelled, p.Type)
	assert.Equal(t, "Request cancelled", p.Title)
	assert.Equal(t, "superseded by a newer quote", p.Detail)

	p = models.ForStatus(http.StatusTeapot, "req_2", "")
	assert.Equal(t, models.ProblemTypeInternal, p.Type)
	assert.Equal(t, "I'm a teapot", p.Title)
	assert.Equal(t, http.StatusTeapot, p.Status)
}
