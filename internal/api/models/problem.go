package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 error body, served as application/problem+json.
// TraceID echoes the request id so support can find the quote in the logs.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at the request field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Field error codes.
const (
	CodeRequired   = "required"
	CodeInvalid    = "invalid"
	CodeOutOfRange = "out_of_range"
	CodeTooMany    = "too_many"
)

// ProblemType constants for standard error types.
const (
	ProblemTypeValidation           = "https://api.chauffeurline.co.uk/problems/validation-error"
	ProblemTypeUnauthorized         = "https://api.chauffeurline.co.uk/problems/unauthorized"
	ProblemTypeForbidden            = "https://api.chauffeurline.co.uk/problems/forbidden"
	ProblemTypeNotFound             = "https://api.chauffeurline.co.uk/problems/not-found"
	ProblemTypeTooManyRequests      = "https://api.chauffeurline.co.uk/problems/too-many-requests"
	ProblemTypeUnsupportedMediaType = "https://api.chauffeurline.co.uk/problems/unsupported-media-type"
	ProblemTypeTLSRequired          = "https://api.chauffeurline.co.uk/problems/tls-required"
	ProblemTypeRequestCancelled     = "https://api.chauffeurline.co.uk/problems/request-cancelled"
	ProblemTypeInternal             = "https://api.chauffeurline.co.uk/problems/internal-error"
	ProblemTypeUnavailable          = "https://api.chauffeurline.co.uk/problems/service-unavailable"
)

// NewProblem creates a new Problem with the given parameters.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail adds a detail message to the Problem.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance adds the request instance URI to the Problem.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors adds field errors to the Problem.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-Id", p.TraceID)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// statusProblems gives the default type and title for each status the API returns.
var statusProblems = map[int]struct{ typ, title string }{
	http.StatusBadRequest:           {ProblemTypeValidation, "Validation error"},
	http.StatusUnauthorized:         {ProblemTypeUnauthorized, "Unauthorized"},
	http.StatusForbidden:            {ProblemTypeForbidden, "Forbidden"},
	http.StatusNotFound:             {ProblemTypeNotFound, "Not found"},
	http.StatusRequestTimeout:       {ProblemTypeRequestCancelled, "Request cancelled"},
	http.StatusUnsupportedMediaType: {ProblemTypeUnsupportedMediaType, "Unsupported media type"},
	http.StatusTooManyRequests:      {ProblemTypeTooManyRequests, "Too many requests"},
	http.StatusInternalServerError:  {ProblemTypeInternal, "Internal server error"},
	http.StatusServiceUnavailable:   {ProblemTypeUnavailable, "Service unavailable"},
}

// ForStatus creates a problem with the default type and title for status.
// Unlisted statuses fall back to the internal error type with the status text as title.
func ForStatus(status int, traceID, detail string) *Problem {
	sp, ok := statusProblems[status]
	if !ok {
		sp.typ, sp.title = ProblemTypeInternal, http.StatusText(status)
	}
	return NewProblem(sp.typ, sp.title, status, traceID).WithDetail(detail)
}

// NewBadRequest creates a 400 problem carrying field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	return ForStatus(http.StatusBadRequest, traceID, detail).WithErrors(errors)
}

func NewUnauthorized(traceID, detail string) *Problem {
	return ForStatus(http.StatusUnauthorized, traceID, detail)
}

func NewForbidden(traceID, detail string) *Problem {
	return ForStatus(http.StatusForbidden, traceID, detail)
}

func NewNotFound(traceID, detail string) *Problem {
	return ForStatus(http.StatusNotFound, traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return ForStatus(http.StatusTooManyRequests, traceID, detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return ForStatus(http.StatusInternalServerError, traceID, detail)
}

func NewServiceUnavailable(traceID, detail string) *Problem {
	return ForStatus(http.StatusServiceUnavailable, traceID, detail)
}
