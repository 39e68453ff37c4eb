package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/adlytics/adlytics-intelligence/internal/algorithm"
	"github.com/adlytics/adlytics-intelligence/internal/api/middleware"
	"github.com/adlytics/adlytics-intelligence/internal/api/rest"
	"github.com/adlytics/adlytics-intelligence/internal/config"
	"github.com/adlytics/adlytics-intelligence/internal/pkg/logger"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/service"
	"github.com/adlytics/adlytics-intelligence/internal/timeseries"
	"github.com/adlytics/adlytics-intelligence/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Path: cfg.LogPath})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("adlytics intelligence engine starting", zap.Int("port", cfg.Port))

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer repo.Close()

	migrationSQL, err := migrations.FS.ReadFile("001_initial_schema.sql")
	if err != nil {
		zlog.Fatal("failed to read embedded migration", zap.Error(err))
	}
	if err := repo.RunMigrations(string(migrationSQL)); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}
	zlog.Info("database migrations completed")

	repos := repo.Repositories()
	registry := algorithm.NewRegistry()

	// The metric source is external in production deployments; the in-memory
	// source stands in until the warehouse connector is configured.
	var source timeseries.Source = timeseries.NewMemorySource()

	anomalySvc := service.NewAnomalyService(source, repos.Anomaly, zlog, service.AnomalyConfig{
		ZThreshold:          cfg.AnomalyZThreshold,
		SkipDuplicatePoints: cfg.AnomalySkipDuplicates,
	})
	trendSvc := service.NewTrendService(source, repos.Trend, nil, zlog, service.TrendConfig{
		WindowDays: cfg.TrendWindowDays,
		MinPoints:  cfg.TrendMinPoints,
	})
	trainerSvc := service.NewTrainerService(source, repos.Model, registry, zlog, service.TrainerConfig{
		ValidationSplit: cfg.ValidationSplit,
		LookbackMonths:  cfg.RetrainLookbackMonths,
	})
	forecastSvc := service.NewForecastService(source, repos.Forecast, repos.Model, registry,
		service.GrowthAveragePredictor{Window: 7, DailyGrowth: cfg.ForecastDailyGrowth},
		zlog, service.ForecastConfig{
			LookbackDays: cfg.ForecastLookbackDays,
			BandPct:      cfg.ForecastBandPct,
		})
	recommendationSvc := service.NewRecommendationService(repos.Anomaly, repos.Trend, repos.Recommendation, zlog, service.RecommendationConfig{
		MinConfidence: cfg.RecommendationMinConfidence,
		AnomalyWindow: time.Duration(cfg.RecommendationAnomalyWindowDays) * 24 * time.Hour,
		TrendWindow:   time.Duration(cfg.RecommendationTrendWindowDays) * 24 * time.Hour,
	})
	exportSvc := service.NewExportService(repos.Model, repos.Trend, registry, zlog)

	zlog.Info("services initialized")

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handler := rest.NewHandler(anomalySvc, trendSvc, trainerSvc, forecastSvc, recommendationSvc, exportSvc)
	rest.SetupRoutes(apiRouter, handler)

	router.Use(middleware.Recovery(zlog))
	router.Use(middleware.Logging(zlog))
	router.Use(middleware.Metrics())

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Org-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  time.Duration(cfg.RequestTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.RequestTimeoutSec) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zlog.Error("graceful shutdown failed", zap.Error(err))
	}
	zlog.Info("stopped")
}
