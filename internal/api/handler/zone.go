package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/chauffeurline/fareengine/internal/api/models"
	"github.com/chauffeurline/fareengine/internal/api/response"
	"github.com/chauffeurline/fareengine/internal/geo"
)

// ZoneHandler classifies coordinates into London zones.
type ZoneHandler struct {
	classifier *geo.Classifier
}

// NewZoneHandler creates a new ZoneHandler. A nil classifier uses the London catalogue.
func NewZoneHandler(classifier *geo.Classifier) *ZoneHandler {
	if classifier == nil {
		classifier = geo.DefaultClassifier()
	}
	return &ZoneHandler{classifier: classifier}
}

// ClassifyZone handles GET /v1/zones:classify?lat=&lng=.
func (h *ZoneHandler) ClassifyZone(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fieldErrs []models.FieldError
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lat", Message: "must be a number", Code: models.CodeInvalid})
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		fieldErrs = append(fieldErrs, models.FieldError{Field: "lng", Message: "must be a number", Code: models.CodeInvalid})
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "lat and lng query parameters are required", fieldErrs)
		return
	}

	coord := geo.Coordinate{Lat: lat, Lng: lng}
	if err := coord.Validate(); err != nil {
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "lat", Message: "latitude or longitude out of range", Code: models.CodeOutOfRange},
		})
		return
	}

	ring := h.classifier.Classify(coord)
	resp := models.ZoneResponse{
		Location:      models.Point{Lat: lat, Lng: lng},
		Zone:          int(ring.ID),
		Name:          ring.Name,
		DistanceMiles: math.Round(geo.HaversineMiles(h.classifier.Reference(), coord)*100) / 100,
		Inner:         ring.ID.Inner(),
	}
	if !math.IsInf(ring.RadiusMiles, 1) {
		radius := ring.RadiusMiles
		resp.RadiusMiles = &radius
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, resp)
}
