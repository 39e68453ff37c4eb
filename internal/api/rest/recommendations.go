package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adlytics/adlytics-intelligence/internal/models"
)

// GenerateRecommendations handles POST /recommendations/generate
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		entityRef
		Types []string `json:"types"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	types := make([]models.RecommendationType, len(req.Types))
	for i, t := range req.Types {
		types[i] = models.RecommendationType(t)
	}

	recs, err := h.recommendationSvc.Generate(r.Context(), org, req.toModel(), types)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
		"count":           len(recs),
	})
}

// GetRecommendation handles GET /recommendations/{id}
func (h *Handler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	rec, err := h.recommendationSvc.Get(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// ApplyRecommendation handles POST /recommendations/{id}/apply
func (h *Handler) ApplyRecommendation(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		AppliedBy string `json:"applied_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// HTTP-triggered applies record the transition only; platform-side
	// execution happens through the service API.
	if err := h.recommendationSvc.Apply(r.Context(), org, mux.Vars(r)["id"], req.AppliedBy, nil); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// DismissRecommendation handles POST /recommendations/{id}/dismiss
func (h *Handler) DismissRecommendation(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	if err := h.recommendationSvc.Dismiss(r.Context(), org, mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

// RecommendationFeedback handles POST /recommendations/{id}/feedback
func (h *Handler) RecommendationFeedback(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		IsHelpful *bool `json:"is_helpful"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.IsHelpful == nil {
		respondError(w, http.StatusBadRequest, "is_helpful is required")
		return
	}

	if err := h.recommendationSvc.SetFeedback(r.Context(), org, mux.Vars(r)["id"], *req.IsHelpful); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}
