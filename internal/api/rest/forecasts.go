package rest

import (
	"encoding/json"
	"net/http"

	"github.com/adlytics/adlytics-intelligence/internal/repository"
)

// GenerateForecasts handles POST /forecasts/generate
func (h *Handler) GenerateForecasts(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		entityRef
		Metric  string `json:"metric"`
		Horizon int    `json:"horizon"`
		ModelID string `json:"model_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Metric == "" {
		respondError(w, http.StatusBadRequest, "metric is required")
		return
	}

	forecasts, err := h.forecastSvc.Generate(r.Context(), org, req.toModel(), req.Metric, req.Horizon, req.ModelID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"forecasts": forecasts,
		"count":     len(forecasts),
	})
}

// ListForecasts handles GET /forecasts
func (h *Handler) ListForecasts(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	filter, err := forecastFilterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	forecasts, err := h.forecastSvc.List(r.Context(), org, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, forecasts)
}

// BackfillActuals handles POST /forecasts/backfill
func (h *Handler) BackfillActuals(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	updated, err := h.forecastSvc.BackfillActuals(r.Context(), org)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// ForecastAccuracy handles GET /forecasts/accuracy
func (h *Handler) ForecastAccuracy(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	filter, err := forecastFilterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.forecastSvc.AccuracyReport(r.Context(), org, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func forecastFilterFromQuery(r *http.Request) (repository.ForecastFilter, error) {
	q := r.URL.Query()
	filter := repository.ForecastFilter{
		EntityID: q.Get("entity_id"),
		Metric:   q.Get("metric"),
	}
	from, err := parseDate(q.Get("from"))
	if err != nil {
		return filter, err
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		return filter, err
	}
	filter.From, filter.To = from, to
	return filter, nil
}
