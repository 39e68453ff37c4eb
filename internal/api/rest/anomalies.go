package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
)

// DetectAnomalies handles POST /anomalies/detect
func (h *Handler) DetectAnomalies(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		entityRef
		Metrics []string `json:"metrics"`
		From    string   `json:"from"`
		To      string   `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Metrics) == 0 {
		respondError(w, http.StatusBadRequest, "metrics is required")
		return
	}
	from, err := parseDate(req.From)
	if err != nil {
		respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(req.To)
	if err != nil {
		respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}

	anomalies, err := h.anomalySvc.Detect(r.Context(), org, req.toModel(), req.Metrics, from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// ListAnomalies handles GET /anomalies
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	q := r.URL.Query()
	entity := models.EntityRef{
		Type: models.EntityType(q.Get("entity_type")),
		ID:   q.Get("entity_id"),
	}
	filter := repository.AnomalyFilter{
		Metric: q.Get("metric"),
		Status: models.AnomalyStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	anomalies, err := h.anomalySvc.List(r.Context(), org, entity, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, anomalies)
}

// AnomalySummary handles GET /anomalies/summary
func (h *Handler) AnomalySummary(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	q := r.URL.Query()
	var entity *models.EntityRef
	if q.Get("entity_id") != "" {
		entity = &models.EntityRef{
			Type: models.EntityType(q.Get("entity_type")),
			ID:   q.Get("entity_id"),
		}
	}

	window := time.Duration(0)
	if v := q.Get("window_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			respondError(w, http.StatusBadRequest, "window_days must be a positive integer")
			return
		}
		window = time.Duration(days) * 24 * time.Hour
	}

	summary, err := h.anomalySvc.Summary(r.Context(), org, entity, window)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// AcknowledgeAnomaly handles POST /anomalies/{id}/acknowledge
func (h *Handler) AcknowledgeAnomaly(w http.ResponseWriter, r *http.Request) {
	h.anomalyTransition(w, r, h.anomalySvc.Acknowledge)
}

// ResolveAnomaly handles POST /anomalies/{id}/resolve
func (h *Handler) ResolveAnomaly(w http.ResponseWriter, r *http.Request) {
	h.anomalyTransition(w, r, h.anomalySvc.Resolve)
}

// MarkFalsePositive handles POST /anomalies/{id}/false-positive
func (h *Handler) MarkFalsePositive(w http.ResponseWriter, r *http.Request) {
	h.anomalyTransition(w, r, h.anomalySvc.MarkFalsePositive)
}

type anomalyTransitionFn func(ctx context.Context, org models.OrgContext, id string) error

func (h *Handler) anomalyTransition(w http.ResponseWriter, r *http.Request, fn anomalyTransitionFn) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}
	id := mux.Vars(r)["id"]
	if err := fn(r.Context(), org, id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
