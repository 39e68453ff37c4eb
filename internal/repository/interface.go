package repository

import (
	"context"
	"time"

	"github.com/adlytics/adlytics-intelligence/internal/models"
)

// AnomalyFilter narrows anomaly listings.
type AnomalyFilter struct {
	Metric string
	Status models.AnomalyStatus
	Since  time.Time
	Until  time.Time
	Limit  int
}

// AnomalyRepository defines anomaly data access methods.
type AnomalyRepository interface {
	CreateAnomaly(ctx context.Context, a *models.Anomaly) error
	GetAnomaly(ctx context.Context, orgID, id string) (*models.Anomaly, error)
	ListAnomalies(ctx context.Context, orgID string, entity models.EntityRef, filter AnomalyFilter) ([]*models.Anomaly, error)
	// AnomalyExists reports whether a point was already flagged in a prior run.
	AnomalyExists(ctx context.Context, orgID string, entity models.EntityRef, metric string, detectedAt time.Time) (bool, error)
	UpdateAnomalyStatus(ctx context.Context, orgID, id string, status models.AnomalyStatus, resolvedAt *time.Time) error
	// ListUnresolvedAnomalies returns detected/acknowledged anomalies since a cutoff.
	ListUnresolvedAnomalies(ctx context.Context, orgID string, entity models.EntityRef, since time.Time) ([]*models.Anomaly, error)
	AnomalySummary(ctx context.Context, orgID string, entity *models.EntityRef, since time.Time) (*models.AnomalySummary, error)
}

// TrendRepository defines trend analysis data access methods.
// Trend records are immutable; there is no update.
type TrendRepository interface {
	CreateTrend(ctx context.Context, t *models.TrendAnalysis) error
	GetTrend(ctx context.Context, orgID, id string) (*models.TrendAnalysis, error)
	ListRecentTrends(ctx context.Context, orgID string, entity models.EntityRef, since time.Time) ([]*models.TrendAnalysis, error)
}

// ModelFilter narrows prediction model listings.
type ModelFilter struct {
	TargetMetric string
	Algorithm    string
	Status       models.ModelStatus
	TrainedOnly  bool
}

// ModelRepository defines prediction model data access methods.
type ModelRepository interface {
	CreateModel(ctx context.Context, m *models.PredictionModel) error
	GetModel(ctx context.Context, orgID, id string) (*models.PredictionModel, error)
	ListModels(ctx context.Context, orgID string, filter ModelFilter) ([]*models.PredictionModel, error)
	// SaveTrainingResult persists parameters, accuracy metrics and training
	// metadata in one transaction. A failure leaves the prior row untouched.
	SaveTrainingResult(ctx context.Context, m *models.PredictionModel) error
	UpdateModelStatus(ctx context.Context, orgID, id string, status models.ModelStatus) error
}

// ForecastFilter narrows forecast listings.
type ForecastFilter struct {
	EntityID string
	Metric   string
	From     time.Time
	To       time.Time
}

// ForecastRepository defines forecast data access methods.
type ForecastRepository interface {
	CreateForecasts(ctx context.Context, forecasts []*models.Forecast) error
	// ListPendingActuals returns forecasts whose date has passed but whose
	// actuals have not been backfilled yet.
	ListPendingActuals(ctx context.Context, orgID string, through time.Time) ([]*models.Forecast, error)
	SetForecastActuals(ctx context.Context, orgID, id string, actual float64, accuracy *float64) error
	ListForecastsWithActuals(ctx context.Context, orgID string, filter ForecastFilter) ([]*models.Forecast, error)
}

// RecommendationRepository defines recommendation data access methods.
type RecommendationRepository interface {
	CreateRecommendations(ctx context.Context, recs []*models.Recommendation) error
	GetRecommendation(ctx context.Context, orgID, id string) (*models.Recommendation, error)
	// ApplyRecommendation marks the recommendation applied inside a
	// transaction and runs execute before committing; any execute error
	// rolls the transition back, leaving the recommendation pending.
	ApplyRecommendation(ctx context.Context, orgID, id, appliedBy string, execute func(context.Context) error) error
	UpdateRecommendationStatus(ctx context.Context, orgID, id string, status models.RecommendationStatus) error
	SetRecommendationFeedback(ctx context.Context, orgID, id string, isHelpful bool) error
}

// Repository aggregates all repositories.
type Repository struct {
	Anomaly        AnomalyRepository
	Trend          TrendRepository
	Model          ModelRepository
	Forecast       ForecastRepository
	Recommendation RecommendationRepository
}
