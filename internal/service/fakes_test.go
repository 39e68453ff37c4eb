package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
)

// In-memory fakes for the repository interfaces. They mimic the store's
// observable behavior (ErrNotFound, pending-only apply, id assignment)
// without SQL.

type fakeAnomalyRepo struct {
	anomalies []*models.Anomaly
	createErr error
}

func (f *fakeAnomalyRepo) CreateAnomaly(ctx context.Context, a *models.Anomaly) error {
	if f.createErr != nil {
		return f.createErr
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	f.anomalies = append(f.anomalies, a)
	return nil
}

func (f *fakeAnomalyRepo) GetAnomaly(ctx context.Context, orgID, id string) (*models.Anomaly, error) {
	for _, a := range f.anomalies {
		if a.OrgID == orgID && a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("anomaly %s: %w", id, repository.ErrNotFound)
}

func (f *fakeAnomalyRepo) ListAnomalies(ctx context.Context, orgID string, entity models.EntityRef, filter repository.AnomalyFilter) ([]*models.Anomaly, error) {
	var out []*models.Anomaly
	for _, a := range f.anomalies {
		if a.OrgID != orgID || a.EntityType != entity.Type || a.EntityID != entity.ID {
			continue
		}
		if filter.Metric != "" && a.MetricName != filter.Metric {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAnomalyRepo) AnomalyExists(ctx context.Context, orgID string, entity models.EntityRef, metric string, detectedAt time.Time) (bool, error) {
	for _, a := range f.anomalies {
		if a.OrgID == orgID && a.EntityType == entity.Type && a.EntityID == entity.ID &&
			a.MetricName == metric && a.DetectedAt.Equal(detectedAt) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAnomalyRepo) UpdateAnomalyStatus(ctx context.Context, orgID, id string, status models.AnomalyStatus, resolvedAt *time.Time) error {
	a, err := f.GetAnomaly(ctx, orgID, id)
	if err != nil {
		return err
	}
	a.Status = status
	a.ResolvedAt = resolvedAt
	return nil
}

func (f *fakeAnomalyRepo) ListUnresolvedAnomalies(ctx context.Context, orgID string, entity models.EntityRef, since time.Time) ([]*models.Anomaly, error) {
	var out []*models.Anomaly
	for _, a := range f.anomalies {
		if a.OrgID == orgID && a.EntityType == entity.Type && a.EntityID == entity.ID &&
			a.Unresolved() && !a.DetectedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnomalyRepo) AnomalySummary(ctx context.Context, orgID string, entity *models.EntityRef, since time.Time) (*models.AnomalySummary, error) {
	summary := &models.AnomalySummary{
		BySeverity: make(map[models.AnomalySeverity]int),
		ByStatus:   make(map[models.AnomalyStatus]int),
		ByMetric:   make(map[string]int),
	}
	for _, a := range f.anomalies {
		if a.OrgID != orgID {
			continue
		}
		summary.Total++
		summary.BySeverity[a.Severity]++
		summary.ByStatus[a.Status]++
		summary.ByMetric[a.MetricName]++
	}
	return summary, nil
}

type fakeTrendRepo struct {
	trends    []*models.TrendAnalysis
	createErr error
}

func (f *fakeTrendRepo) CreateTrend(ctx context.Context, t *models.TrendAnalysis) error {
	if f.createErr != nil {
		return f.createErr
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	f.trends = append(f.trends, t)
	return nil
}

func (f *fakeTrendRepo) GetTrend(ctx context.Context, orgID, id string) (*models.TrendAnalysis, error) {
	for _, t := range f.trends {
		if t.OrgID == orgID && t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("trend analysis %s: %w", id, repository.ErrNotFound)
}

func (f *fakeTrendRepo) ListRecentTrends(ctx context.Context, orgID string, entity models.EntityRef, since time.Time) ([]*models.TrendAnalysis, error) {
	var out []*models.TrendAnalysis
	for _, t := range f.trends {
		if t.OrgID == orgID && t.EntityType == entity.Type && t.EntityID == entity.ID &&
			!t.CreatedAt.Before(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeModelRepo struct {
	models  []*models.PredictionModel
	saveErr error
}

func (f *fakeModelRepo) CreateModel(ctx context.Context, m *models.PredictionModel) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = models.ModelDraft
	}
	if m.Version == 0 {
		m.Version = 1
	}
	f.models = append(f.models, m)
	return nil
}

func (f *fakeModelRepo) GetModel(ctx context.Context, orgID, id string) (*models.PredictionModel, error) {
	for _, m := range f.models {
		if m.OrgID == orgID && m.ID == id {
			return m, nil
		}
	}
	return nil, fmt.Errorf("model %s: %w", id, repository.ErrNotFound)
}

func (f *fakeModelRepo) ListModels(ctx context.Context, orgID string, filter repository.ModelFilter) ([]*models.PredictionModel, error) {
	var out []*models.PredictionModel
	for _, m := range f.models {
		if m.OrgID != orgID {
			continue
		}
		if filter.TargetMetric != "" && m.TargetMetric != filter.TargetMetric {
			continue
		}
		if filter.Algorithm != "" && m.Algorithm != filter.Algorithm {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.TrainedOnly && m.LastTrainedAt == nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeModelRepo) SaveTrainingResult(ctx context.Context, m *models.PredictionModel) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	stored, err := f.GetModel(ctx, m.OrgID, m.ID)
	if err != nil {
		return err
	}
	*stored = *m
	return nil
}

func (f *fakeModelRepo) UpdateModelStatus(ctx context.Context, orgID, id string, status models.ModelStatus) error {
	m, err := f.GetModel(ctx, orgID, id)
	if err != nil {
		return err
	}
	m.Status = status
	return nil
}

type fakeForecastRepo struct {
	forecasts []*models.Forecast
	createErr error
}

func (f *fakeForecastRepo) CreateForecasts(ctx context.Context, forecasts []*models.Forecast) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, fc := range forecasts {
		if fc.ID == "" {
			fc.ID = uuid.New().String()
		}
	}
	f.forecasts = append(f.forecasts, forecasts...)
	return nil
}

func (f *fakeForecastRepo) ListPendingActuals(ctx context.Context, orgID string, through time.Time) ([]*models.Forecast, error) {
	var out []*models.Forecast
	for _, fc := range f.forecasts {
		if fc.OrgID == orgID && fc.Actuals == nil && !fc.ForecastDate.After(through) {
			out = append(out, fc)
		}
	}
	return out, nil
}

func (f *fakeForecastRepo) SetForecastActuals(ctx context.Context, orgID, id string, actual float64, accuracy *float64) error {
	for _, fc := range f.forecasts {
		if fc.OrgID == orgID && fc.ID == id {
			fc.Actuals = &actual
			fc.Accuracy = accuracy
			return nil
		}
	}
	return fmt.Errorf("forecast %s: %w", id, repository.ErrNotFound)
}

func (f *fakeForecastRepo) ListForecastsWithActuals(ctx context.Context, orgID string, filter repository.ForecastFilter) ([]*models.Forecast, error) {
	var out []*models.Forecast
	for _, fc := range f.forecasts {
		if fc.OrgID != orgID || fc.Actuals == nil {
			continue
		}
		if filter.EntityID != "" && fc.EntityID != filter.EntityID {
			continue
		}
		if filter.Metric != "" && fc.MetricName != filter.Metric {
			continue
		}
		out = append(out, fc)
	}
	return out, nil
}

type fakeRecommendationRepo struct {
	recs      []*models.Recommendation
	createErr error
}

func (f *fakeRecommendationRepo) CreateRecommendations(ctx context.Context, recs []*models.Recommendation) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, r := range recs {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
	}
	f.recs = append(f.recs, recs...)
	return nil
}

func (f *fakeRecommendationRepo) GetRecommendation(ctx context.Context, orgID, id string) (*models.Recommendation, error) {
	for _, r := range f.recs {
		if r.OrgID == orgID && r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("recommendation %s: %w", id, repository.ErrNotFound)
}

// ApplyRecommendation mirrors the transactional store: the transition only
// sticks when the recommendation is pending and execute succeeds.
func (f *fakeRecommendationRepo) ApplyRecommendation(ctx context.Context, orgID, id, appliedBy string, execute func(context.Context) error) error {
	r, err := f.GetRecommendation(ctx, orgID, id)
	if err != nil {
		return err
	}
	if r.Status != models.RecPending {
		return fmt.Errorf("recommendation %s not pending: %w", id, repository.ErrNotFound)
	}
	if err := execute(ctx); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Status = models.RecApplied
	r.AppliedAt = &now
	r.AppliedBy = &appliedBy
	return nil
}

func (f *fakeRecommendationRepo) UpdateRecommendationStatus(ctx context.Context, orgID, id string, status models.RecommendationStatus) error {
	r, err := f.GetRecommendation(ctx, orgID, id)
	if err != nil {
		return err
	}
	r.Status = status
	return nil
}

func (f *fakeRecommendationRepo) SetRecommendationFeedback(ctx context.Context, orgID, id string, isHelpful bool) error {
	r, err := f.GetRecommendation(ctx, orgID, id)
	if err != nil {
		return err
	}
	r.IsHelpful = &isHelpful
	return nil
}
