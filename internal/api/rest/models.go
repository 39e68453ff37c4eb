package rest

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/service"
)

// CreateModel handles POST /models
func (h *Handler) CreateModel(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var req struct {
		Name            string            `json:"name"`
		Algorithm       string            `json:"algorithm"`
		TargetMetric    string            `json:"target_metric"`
		Hyperparameters models.Params     `json:"hyperparameters"`
		Features        models.StringList `json:"features"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m := &models.PredictionModel{
		Name:            req.Name,
		Algorithm:       req.Algorithm,
		TargetMetric:    req.TargetMetric,
		Hyperparameters: req.Hyperparameters,
		Features:        req.Features,
	}
	if err := h.trainerSvc.CreateModel(r.Context(), org, m); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// ListModels handles GET /models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	q := r.URL.Query()
	filter := repository.ModelFilter{
		TargetMetric: q.Get("target_metric"),
		Algorithm:    q.Get("algorithm"),
		Status:       models.ModelStatus(q.Get("status")),
		TrainedOnly:  q.Get("trained") == "true",
	}

	list, err := h.trainerSvc.ListModels(r.Context(), org, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetModel handles GET /models/{id}
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	m, err := h.trainerSvc.GetModel(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// TrainModel handles POST /models/{id}/train
func (h *Handler) TrainModel(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	// Body is optional; an empty body runs a full training pass.
	var req struct {
		Incremental     bool          `json:"incremental"`
		Hyperparameters models.Params `json:"hyperparameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m, err := h.trainerSvc.TrainModel(r.Context(), org, mux.Vars(r)["id"], service.TrainOptions{
		Incremental:     req.Incremental,
		Hyperparameters: req.Hyperparameters,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// RetireModel handles POST /models/{id}/retire
func (h *Handler) RetireModel(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	if err := h.trainerSvc.RetireModel(r.Context(), org, mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "retired"})
}

// BulkRetrain handles POST /models/retrain
func (h *Handler) BulkRetrain(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	// Body is optional; without ids every active model is retrained.
	var req struct {
		ModelIDs []string `json:"model_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := h.trainerSvc.BulkRetrain(r.Context(), org, req.ModelIDs)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// CompareModels handles GET /models/compare
func (h *Handler) CompareModels(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	cmp, err := h.trainerSvc.CompareModels(r.Context(), org, r.URL.Query().Get("target_metric"), r.URL.Query().Get("algorithm"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cmp)
}

// ExportModel handles GET /models/{id}/export
func (h *Handler) ExportModel(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	export, err := h.exportSvc.Export(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, export)
}

// ImportModel handles POST /models/import
func (h *Handler) ImportModel(w http.ResponseWriter, r *http.Request) {
	org, ok := orgFromRequest(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "X-Org-ID header required")
		return
	}

	var export models.ModelExport
	if err := json.NewDecoder(r.Body).Decode(&export); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m, err := h.exportSvc.Import(r.Context(), org, &export)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}
