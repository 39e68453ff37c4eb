package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adlytics/adlytics-intelligence/internal/models"
)

// AnalyzeTrends handles POST /trends/analyze
func (h *Handler) AnalyzeTrends(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		entityRef
		Metrics    []string `json:"metrics"`
		From       string   `json:"from"`
		To         string   `json:"to"`
		WindowDays int      `json:"window_days"`
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

	analyses, err := h.trendSvc.Analyze(r.Context(), org, req.toModel(), req.Metrics, from, to, req.WindowDays)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"trends": analyses,
		"count":  len(analyses),
	})
}

// CompareTrends handles POST /trends/compare
func (h *Handler) CompareTrends(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		Entities []entityRef `json:"entities"`
		Metric   string      `json:"metric"`
		From     string      `json:"from"`
		To       string      `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Metric == "" || len(req.Entities) == 0 {
		respondError(w, http.StatusBadRequest, "metric and entities are required")
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

	entities := make([]models.EntityRef, len(req.Entities))
	for i, e := range req.Entities {
		entities[i] = e.toModel()
	}

	entries, err := h.trendSvc.CompareEntities(r.Context(), org, entities, req.Metric, from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// DetectPatterns handles POST /trends/patterns
func (h *Handler) DetectPatterns(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		entityRef
		Metric string `json:"metric"`
		From   string `json:"from"`
		To     string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Metric == "" {
		respondError(w, http.StatusBadRequest, "metric is required")
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

	report, err := h.trendSvc.DetectPatterns(r.Context(), org, req.toModel(), req.Metric, from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// ExportTrend handles GET /trends/{id}/export
func (h *Handler) ExportTrend(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	export, err := h.exportSvc.ExportTrend(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, export)
}
