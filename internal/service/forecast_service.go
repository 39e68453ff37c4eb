package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/adlytics/adlytics-intelligence/internal/algorithm"
	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/pkg/metrics"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/timeseries"
)

// Predictor produces point estimates for future days from recent history.
// Strategies are swappable: the default is a growth-compounded moving
// average, and ModelPredictor delegates to a trained algorithm.
type Predictor interface {
	// PredictSteps returns one value per day ahead, 1..horizon.
	PredictSteps(history []float64, horizon int) []float64
}

// GrowthAveragePredictor forecasts from the mean of the last Window points,
// compounded by an assumed daily growth rate.
type GrowthAveragePredictor struct {
	Window      int
	DailyGrowth float64
}

func (p GrowthAveragePredictor) PredictSteps(history []float64, horizon int) []float64 {
	window := p.Window
	if window <= 0 {
		window = 7
	}
	if window > len(history) {
		window = len(history)
	}

	base := 0.0
	if window > 0 {
		for _, v := range history[len(history)-window:] {
			base += v
		}
		base /= float64(window)
	}

	out := make([]float64, horizon)
	value := base
	for i := range out {
		value *= 1 + p.DailyGrowth
		out[i] = value
	}
	return out
}

// ModelPredictor forecasts with a trained algorithm's stored parameters.
type ModelPredictor struct {
	Impl   algorithm.Model
	Params models.Params
}

func (p ModelPredictor) PredictSteps(history []float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = p.Impl.Predict(p.Params, history, i+1)
	}
	return out
}

// ForecastService generates forward predictions, backfills actuals as real
// values arrive, and reports forecast-vs-actual accuracy.
type ForecastService interface {
	// Generate produces one forecast per day up to horizon for an entity
	// metric. modelID pins a specific active model; when empty, the active
	// model with the lowest MAPE for the metric is used. Returns
	// ErrNoActiveModel when no trained active model covers the metric.
	Generate(ctx context.Context, org models.OrgContext, entity models.EntityRef, metric string, horizon int, modelID string) ([]*models.Forecast, error)

	List(ctx context.Context, org models.OrgContext, filter repository.ForecastFilter) ([]*models.Forecast, error)

	// BackfillActuals fills in actuals and per-forecast accuracy for past
	// forecast dates whose real values are now known. Returns the number of
	// forecasts updated.
	BackfillActuals(ctx context.Context, org models.OrgContext) (int, error)

	// AccuracyReport aggregates error statistics over forecasts that have
	// actuals, sliced by metric, horizon and calendar month.
	AccuracyReport(ctx context.Context, org models.OrgContext, filter repository.ForecastFilter) (*models.AccuracyReport, error)
}

// ForecastConfig tunes forecast generation.
type ForecastConfig struct {
	// LookbackDays is the history window fed to the predictor.
	LookbackDays int

	// BandPct is the half-width of the confidence band around each point
	// estimate, as a fraction.
	BandPct float64

	// ConfidenceLevel is the nominal level recorded on each forecast.
	ConfidenceLevel float64
}

type forecastService struct {
	source    timeseries.Source
	repo      repository.ForecastRepository
	modelRepo repository.ModelRepository
	registry  *algorithm.Registry
	logger    *zap.Logger
	cfg       ForecastConfig

	// predictor overrides the per-model strategy when set; used to pin the
	// heuristic strategy regardless of model state.
	predictor Predictor
}

// NewForecastService creates a forecast service. A non-nil predictor pins
// that strategy for every generation; nil selects per model.
func NewForecastService(source timeseries.Source, repo repository.ForecastRepository, modelRepo repository.ModelRepository, registry *algorithm.Registry, predictor Predictor, logger *zap.Logger, cfg ForecastConfig) ForecastService {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 90
	}
	if cfg.BandPct <= 0 {
		cfg.BandPct = 0.10
	}
	if cfg.ConfidenceLevel <= 0 {
		cfg.ConfidenceLevel = 0.95
	}
	return &forecastService{
		source:    source,
		repo:      repo,
		modelRepo: modelRepo,
		registry:  registry,
		predictor: predictor,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *forecastService) Generate(ctx context.Context, org models.OrgContext, entity models.EntityRef, metric string, horizon int, modelID string) ([]*models.Forecast, error) {
	if !org.Valid() || !entity.Valid() {
		return nil, fmt.Errorf("%w: org and entity are required", ErrInvalidInput)
	}
	if horizon <= 0 {
		horizon = 30
	}

	model, err := s.selectModel(ctx, org, metric, modelID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -s.cfg.LookbackDays)
	points, err := s.source.FetchSeries(ctx, org, entity, metric, from, now)
	if err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: metric %s for %s", ErrNoTrainingData, metric, entity.String())
	}
	history := timeseries.Values(points)

	predictor := s.predictor
	if predictor == nil {
		impl, err := s.registry.Get(model.Algorithm)
		if err != nil {
			return nil, err
		}
		predictor = ModelPredictor{Impl: impl, Params: model.ModelParameters}
	}
	predictions := predictor.PredictSteps(history, horizon)

	startDate := points[len(points)-1].Date
	forecasts := make([]*models.Forecast, horizon)
	for i, predicted := range predictions {
		band := math.Abs(predicted) * s.cfg.BandPct
		forecasts[i] = &models.Forecast{
			OrgID:           org.OrgID,
			ModelID:         model.ID,
			EntityType:      entity.Type,
			EntityID:        entity.ID,
			MetricName:      metric,
			ForecastDate:    startDate.AddDate(0, 0, i+1),
			PredictedValue:  predicted,
			ConfidenceLower: predicted - band,
			ConfidenceUpper: predicted + band,
			ConfidenceLevel: s.cfg.ConfidenceLevel,
			ForecastHorizon: i + 1,
		}
	}

	if err := s.repo.CreateForecasts(ctx, forecasts); err != nil {
		return nil, fmt.Errorf("persist forecasts: %w", err)
	}
	metrics.ForecastsGeneratedTotal.Add(float64(len(forecasts)))

	s.logger.Info("forecasts generated",
		zap.String("org_id", org.OrgID),
		zap.String("entity", entity.String()),
		zap.String("metric", metric),
		zap.String("model_id", model.ID),
		zap.Int("horizon", horizon))

	return forecasts, nil
}

// selectModel resolves an explicit model id, or picks the org's active
// trained model with the lowest MAPE for the metric.
func (s *forecastService) selectModel(ctx context.Context, org models.OrgContext, metric, modelID string) (*models.PredictionModel, error) {
	if modelID != "" {
		m, err := s.modelRepo.GetModel(ctx, org.OrgID, modelID)
		if err != nil {
			return nil, err
		}
		if m.Status != models.ModelActive || !m.Trained() {
			return nil, fmt.Errorf("%w: model %s is not active and trained", ErrNoActiveModel, modelID)
		}
		return m, nil
	}

	candidates, err := s.modelRepo.ListModels(ctx, org.OrgID, repository.ModelFilter{
		TargetMetric: metric,
		Status:       models.ModelActive,
		TrainedOnly:  true,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: metric %s", ErrNoActiveModel, metric)
	}

	best := candidates[0]
	for _, m := range candidates[1:] {
		if m.MAPE < best.MAPE {
			best = m
		}
	}
	return best, nil
}

func (s *forecastService) List(ctx context.Context, org models.OrgContext, filter repository.ForecastFilter) ([]*models.Forecast, error) {
	return s.repo.ListForecastsWithActuals(ctx, org.OrgID, filter)
}

func (s *forecastService) BackfillActuals(ctx context.Context, org models.OrgContext) (int, error) {
	pending, err := s.repo.ListPendingActuals(ctx, org.OrgID, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, f := range pending {
		day := f.ForecastDate
		points, err := s.source.FetchSeries(ctx, org, f.Entity(), f.MetricName, day, day.AddDate(0, 0, 1))
		if err != nil {
			s.logger.Warn("actuals lookup failed",
				zap.String("forecast_id", f.ID), zap.Error(err))
			continue
		}
		if len(points) == 0 {
			continue // value not reported yet
		}
		actual := points[0].Value
		accuracy := forecastAccuracy(f.PredictedValue, actual)
		if err := s.repo.SetForecastActuals(ctx, org.OrgID, f.ID, actual, accuracy); err != nil {
			return updated, fmt.Errorf("set actuals: %w", err)
		}
		updated++
	}
	return updated, nil
}

// forecastAccuracy scores one forecast against its actual as
// max(0, 1 - |error|/|actual|). A zero actual yields no score rather than
// a divide by zero.
func forecastAccuracy(predicted, actual float64) *float64 {
	if actual == 0 {
		return nil
	}
	acc := 1 - math.Abs(predicted-actual)/math.Abs(actual)
	if acc < 0 {
		acc = 0
	}
	return &acc
}

func (s *forecastService) AccuracyReport(ctx context.Context, org models.OrgContext, filter repository.ForecastFilter) (*models.AccuracyReport, error) {
	forecasts, err := s.repo.ListForecastsWithActuals(ctx, org.OrgID, filter)
	if err != nil {
		return nil, err
	}

	report := &models.AccuracyReport{}
	var scored []*models.Forecast
	for _, f := range forecasts {
		if f.Actuals == nil {
			continue
		}
		scored = append(scored, f)
	}
	report.Total = len(scored)
	if len(scored) == 0 {
		return report, nil
	}

	report.Overall = bucketOf(scored)
	report.ByMetric = make(map[string]models.AccuracyBucket)
	report.ByHorizon = make(map[int]models.AccuracyBucket)
	report.ByMonth = make(map[string]models.AccuracyBucket)

	byMetric := groupForecasts(scored, func(f *models.Forecast) string { return f.MetricName })
	for k, group := range byMetric {
		report.ByMetric[k] = bucketOf(group)
	}
	byHorizon := make(map[int][]*models.Forecast)
	for _, f := range scored {
		byHorizon[f.ForecastHorizon] = append(byHorizon[f.ForecastHorizon], f)
	}
	for h, group := range byHorizon {
		report.ByHorizon[h] = bucketOf(group)
	}
	byMonth := groupForecasts(scored, func(f *models.Forecast) string { return f.ForecastDate.Format("2006-01") })
	for k, group := range byMonth {
		report.ByMonth[k] = bucketOf(group)
	}
	return report, nil
}

func groupForecasts(forecasts []*models.Forecast, key func(*models.Forecast) string) map[string][]*models.Forecast {
	groups := make(map[string][]*models.Forecast)
	for _, f := range forecasts {
		k := key(f)
		groups[k] = append(groups[k], f)
	}
	return groups
}

// bucketOf computes MAE/RMSE/MAPE over forecasts known to have actuals.
func bucketOf(forecasts []*models.Forecast) models.AccuracyBucket {
	var sumAbs, sumSq, sumPct float64
	pctCount := 0
	for _, f := range forecasts {
		err := f.PredictedValue - *f.Actuals
		sumAbs += math.Abs(err)
		sumSq += err * err
		if *f.Actuals != 0 {
			sumPct += math.Abs(err / *f.Actuals)
			pctCount++
		}
	}
	n := float64(len(forecasts))
	bucket := models.AccuracyBucket{
		Count: len(forecasts),
		MAE:   sumAbs / n,
		RMSE:  math.Sqrt(sumSq / n),
	}
	if pctCount > 0 {
		bucket.MAPE = sumPct / float64(pctCount) * 100
	}
	return bucket
}
