package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/adlytics/adlytics-intelligence/internal/service"
)

// Handler manages HTTP request handlers
type Handler struct {
	anomalySvc        service.AnomalyService
	trendSvc          service.TrendService
	trainerSvc        service.TrainerService
	forecastSvc       service.ForecastService
	recommendationSvc service.RecommendationService
	exportSvc         service.ExportService
}

// NewHandler creates a new HTTP handler
func NewHandler(as service.AnomalyService, ts service.TrendService, trs service.TrainerService, fs service.ForecastService, rs service.RecommendationService, es service.ExportService) *Handler {
	return &Handler{
		anomalySvc:        as,
		trendSvc:          ts,
		trainerSvc:        trs,
		forecastSvc:       fs,
		recommendationSvc: rs,
		exportSvc:         es,
	}
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler) {
	// Anomaly routes
	router.HandleFunc("/anomalies/detect", h.DetectAnomalies).Methods("POST")
	router.HandleFunc("/anomalies", h.ListAnomalies).Methods("GET")
	router.HandleFunc("/anomalies/summary", h.AnomalySummary).Methods("GET")
	router.HandleFunc("/anomalies/{id}/acknowledge", h.AcknowledgeAnomaly).Methods("POST")
	router.HandleFunc("/anomalies/{id}/resolve", h.ResolveAnomaly).Methods("POST")
	router.HandleFunc("/anomalies/{id}/false-positive", h.MarkFalsePositive).Methods("POST")

	// Trend routes
	router.HandleFunc("/trends/analyze", h.AnalyzeTrends).Methods("POST")
	router.HandleFunc("/trends/compare", h.CompareTrends).Methods("POST")
	router.HandleFunc("/trends/patterns", h.DetectPatterns).Methods("POST")
	router.HandleFunc("/trends/{id}/export", h.ExportTrend).Methods("GET")

	// Model routes
	router.HandleFunc("/models", h.CreateModel).Methods("POST")
	router.HandleFunc("/models", h.ListModels).Methods("GET")
	router.HandleFunc("/models/compare", h.CompareModels).Methods("GET")
	router.HandleFunc("/models/retrain", h.BulkRetrain).Methods("POST")
	router.HandleFunc("/models/import", h.ImportModel).Methods("POST")
	router.HandleFunc("/models/{id}", h.GetModel).Methods("GET")
	router.HandleFunc("/models/{id}/train", h.TrainModel).Methods("POST")
	router.HandleFunc("/models/{id}/retire", h.RetireModel).Methods("POST")
	router.HandleFunc("/models/{id}/export", h.ExportModel).Methods("GET")

	// Forecast routes
	router.HandleFunc("/forecasts/generate", h.GenerateForecasts).Methods("POST")
	router.HandleFunc("/forecasts", h.ListForecasts).Methods("GET")
	router.HandleFunc("/forecasts/backfill", h.BackfillActuals).Methods("POST")
	router.HandleFunc("/forecasts/accuracy", h.ForecastAccuracy).Methods("GET")

	// Recommendation routes
	router.HandleFunc("/recommendations/generate", h.GenerateRecommendations).Methods("POST")
	router.HandleFunc("/recommendations/{id}", h.GetRecommendation).Methods("GET")
	router.HandleFunc("/recommendations/{id}/apply", h.ApplyRecommendation).Methods("POST")
	router.HandleFunc("/recommendations/{id}/dismiss", h.DismissRecommendation).Methods("POST")
	router.HandleFunc("/recommendations/{id}/feedback", h.RecommendationFeedback).Methods("POST")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
