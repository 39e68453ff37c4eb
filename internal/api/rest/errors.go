package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/service"
)

// respondServiceError maps service and repository sentinels onto HTTP
// status codes. Unknown errors read as internal.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoActiveModel),
		errors.Is(err, service.ErrNoTrainingData):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrExecutionFailed):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// orgFromRequest reads the tenant scope. The X-Org-ID header is required
// on every intelligence route.
func orgFromRequest(r *http.Request) (models.OrgContext, bool) {
	org := models.OrgContext{OrgID: r.Header.Get("X-Org-ID")}
	return org, org.Valid()
}

// entityRef is the request-body shape of an entity reference.
type entityRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (e entityRef) toModel() models.EntityRef {
	return models.EntityRef{Type: models.EntityType(e.EntityType), ID: e.EntityID}
}

// parseDate parses an optional YYYY-MM-DD query or body value; empty is a
// zero time, which services resolve to their default window.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
