package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/pkg/metrics"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/stats"
	"github.com/adlytics/adlytics-intelligence/internal/timeseries"
)

// TrendService fits and classifies metric trends over date windows.
type TrendService interface {
	// Analyze fits a least-squares line per metric and records one
	// TrendAnalysis each. Metrics with fewer than the minimum points are
	// skipped, not errors.
	Analyze(ctx context.Context, org models.OrgContext, entity models.EntityRef, metricNames []string, from, to time.Time, windowDays int) ([]*models.TrendAnalysis, error)

	// CompareEntities computes the same trend stats per entity and ranks
	// them by growth rate descending.
	CompareEntities(ctx context.Context, org models.OrgContext, entities []models.EntityRef, metric string, from, to time.Time) ([]models.TrendComparisonEntry, error)

	// DetectPatterns reports linear/cyclical/seasonal/outlier sub-analyses
	// and names the dominant pattern.
	DetectPatterns(ctx context.Context, org models.OrgContext, entity models.EntityRef, metric string, from, to time.Time) (*models.PatternReport, error)
}

// SeasonalityDetector inspects a series for periodic structure. The default
// implementation reports none; an autocorrelation-based detector is
// available for callers that want it.
type SeasonalityDetector interface {
	DetectSeasonality(values []float64) *models.SeasonalPattern
}

// NoSeasonality always reports no seasonal pattern.
type NoSeasonality struct{}

func (NoSeasonality) DetectSeasonality(values []float64) *models.SeasonalPattern {
	return &models.SeasonalPattern{HasSeasonality: false}
}

// AutocorrelationSeasonality flags a series as seasonal when the
// autocorrelation at the period lag exceeds the threshold.
type AutocorrelationSeasonality struct {
	PeriodDays int     // lag to test, e.g. 7 for weekly structure in daily data
	Threshold  float64 // minimum autocorrelation, e.g. 0.4
}

func (d AutocorrelationSeasonality) DetectSeasonality(values []float64) *models.SeasonalPattern {
	period := d.PeriodDays
	if period <= 0 {
		period = 7
	}
	threshold := d.Threshold
	if threshold <= 0 {
		threshold = 0.4
	}
	if len(values) < 2*period {
		return &models.SeasonalPattern{HasSeasonality: false}
	}
	acf := stats.Autocorrelation(values, period)
	return &models.SeasonalPattern{
		HasSeasonality: acf > threshold,
		PeriodDays:     period,
		Strength:       acf,
	}
}

// TrendConfig tunes trend analysis.
type TrendConfig struct {
	// WindowDays is the default window when no explicit range is given.
	WindowDays int

	// MinPoints is the minimum series length for a meaningful regression.
	MinPoints int
}

type trendService struct {
	source      timeseries.Source
	repo        repository.TrendRepository
	seasonality SeasonalityDetector
	logger      *zap.Logger
	cfg         TrendConfig
}

// NewTrendService creates a trend service. A nil seasonality detector
// defaults to NoSeasonality.
func NewTrendService(source timeseries.Source, repo repository.TrendRepository, seasonality SeasonalityDetector, logger *zap.Logger, cfg TrendConfig) TrendService {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.MinPoints <= 0 {
		cfg.MinPoints = 10
	}
	if seasonality == nil {
		seasonality = NoSeasonality{}
	}
	return &trendService{source: source, repo: repo, seasonality: seasonality, logger: logger, cfg: cfg}
}

func (s *trendService) Analyze(ctx context.Context, org models.OrgContext, entity models.EntityRef, metricNames []string, from, to time.Time, windowDays int) ([]*models.TrendAnalysis, error) {
	if !org.Valid() || !entity.Valid() {
		return nil, fmt.Errorf("%w: org and entity are required", ErrInvalidInput)
	}
	from, to = s.resolveWindow(from, to, windowDays)

	var analyses []*models.TrendAnalysis
	for _, metric := range metricNames {
		analysis, err := s.analyzeMetric(ctx, org, entity, metric, from, to)
		if err != nil {
			s.logger.Warn("trend analysis failed for metric",
				zap.String("org_id", org.OrgID),
				zap.String("entity", entity.String()),
				zap.String("metric", metric),
				zap.Error(err))
			continue
		}
		if analysis == nil {
			continue // too few points
		}
		analyses = append(analyses, analysis)
	}
	return analyses, nil
}

func (s *trendService) analyzeMetric(ctx context.Context, org models.OrgContext, entity models.EntityRef, metric string, from, to time.Time) (*models.TrendAnalysis, error) {
	points, err := s.source.FetchSeries(ctx, org, entity, metric, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	if len(points) < s.cfg.MinPoints {
		s.logger.Debug("skipping metric with too few points",
			zap.String("metric", metric), zap.Int("points", len(points)))
		return nil, nil
	}

	values := timeseries.Values(points)
	analysis := s.computeTrend(values)
	analysis.OrgID = org.OrgID
	analysis.EntityType = entity.Type
	analysis.EntityID = entity.ID
	analysis.MetricName = metric
	analysis.StartDate = points[0].Date
	analysis.EndDate = points[len(points)-1].Date

	if err := s.repo.CreateTrend(ctx, analysis); err != nil {
		return nil, fmt.Errorf("persist trend analysis: %w", err)
	}
	metrics.TrendAnalysesTotal.WithLabelValues(string(analysis.TrendDirection)).Inc()
	return analysis, nil
}

// computeTrend derives the statistical fields of a TrendAnalysis from a
// series. Pure; no tenant or persistence concerns.
func (s *trendService) computeTrend(values []float64) *models.TrendAnalysis {
	fit := stats.LinearFit(values)
	base, _ := stats.Baseline(values)
	volatility := stats.CoefficientOfVariation(base)

	lastValue := values[len(values)-1]

	return &models.TrendAnalysis{
		DataPoints:        len(values),
		TrendDirection:    classifyDirection(fit.Slope, volatility),
		GrowthRate:        fit.Slope,
		PatternType:       classifyPattern(fit.RSquared, volatility),
		Volatility:        volatility,
		RSquared:          fit.RSquared,
		SignificanceProxy: 1 - fit.RSquared, // proxy only, not a rigorous p-value
		SeasonalPattern:   s.seasonality.DetectSeasonality(values),
		ForecastNextValue: lastValue * (1 + fit.Slope),
	}
}

func (s *trendService) CompareEntities(ctx context.Context, org models.OrgContext, entities []models.EntityRef, metric string, from, to time.Time) ([]models.TrendComparisonEntry, error) {
	if !org.Valid() {
		return nil, fmt.Errorf("%w: org is required", ErrInvalidInput)
	}
	from, to = s.resolveWindow(from, to, 0)

	var entries []models.TrendComparisonEntry
	for _, entity := range entities {
		points, err := s.source.FetchSeries(ctx, org, entity, metric, from, to)
		if err != nil {
			s.logger.Warn("comparison fetch failed for entity",
				zap.String("entity", entity.String()), zap.Error(err))
			continue
		}
		if len(points) < s.cfg.MinPoints {
			continue
		}
		values := timeseries.Values(points)
		t := s.computeTrend(values)
		entries = append(entries, models.TrendComparisonEntry{
			Entity:     entity,
			GrowthRate: t.GrowthRate,
			Direction:  t.TrendDirection,
			Volatility: t.Volatility,
			RSquared:   t.RSquared,
			DataPoints: t.DataPoints,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].GrowthRate > entries[j].GrowthRate
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (s *trendService) DetectPatterns(ctx context.Context, org models.OrgContext, entity models.EntityRef, metric string, from, to time.Time) (*models.PatternReport, error) {
	if !org.Valid() || !entity.Valid() {
		return nil, fmt.Errorf("%w: org and entity are required", ErrInvalidInput)
	}
	from, to = s.resolveWindow(from, to, 0)

	points, err := s.source.FetchSeries(ctx, org, entity, metric, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	report := &models.PatternReport{
		Entity:     entity,
		MetricName: metric,
		DataPoints: len(points),
	}
	if len(points) < s.cfg.MinPoints {
		report.DominantPattern = "none"
		return report, nil
	}

	values := timeseries.Values(points)
	fit := stats.LinearFit(values)
	base, _ := stats.Baseline(values)
	volatility := stats.CoefficientOfVariation(base)

	report.Linear = models.PatternSubAnalysis{
		Detected: fit.RSquared > 0.8,
		Score:    fit.RSquared,
		Detail:   fmt.Sprintf("slope %.4f", fit.Slope),
	}
	report.Cyclical = models.PatternSubAnalysis{
		Detected: volatility > 50,
		Score:    volatility,
		Detail:   "coefficient of variation over 50%",
	}

	// The seasonal sub-analysis always runs the autocorrelation check even
	// when the configured detector is the stub.
	seasonal := AutocorrelationSeasonality{PeriodDays: 7}.DetectSeasonality(values)
	report.Seasonal = models.PatternSubAnalysis{
		Detected: seasonal.HasSeasonality,
		Score:    seasonal.Strength,
		Detail:   fmt.Sprintf("autocorrelation at lag %d", seasonal.PeriodDays),
	}

	outliers := stats.Outliers(values, 3.0)
	report.Outliers = models.PatternSubAnalysis{
		Detected: len(outliers) > 0,
		Score:    float64(len(outliers)),
		Detail:   fmt.Sprintf("%d point(s) beyond 3 sigma", len(outliers)),
	}

	switch {
	case report.Linear.Detected:
		report.DominantPattern = "linear"
	case report.Seasonal.Detected:
		report.DominantPattern = "seasonal"
	case report.Cyclical.Detected:
		report.DominantPattern = "cyclical"
	default:
		report.DominantPattern = "none"
	}
	return report, nil
}

func (s *trendService) resolveWindow(from, to time.Time, windowDays int) (time.Time, time.Time) {
	if windowDays <= 0 {
		windowDays = s.cfg.WindowDays
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -windowDays)
	}
	return from, to
}

// classifyDirection maps slope and volatility to a direction bucket. Near
// zero slope wins over volatility so a flat noisy series reads stable.
func classifyDirection(growthRate, volatility float64) models.TrendDirection {
	switch {
	case math.Abs(growthRate) < 0.01:
		return models.TrendStable
	case volatility > 50:
		return models.TrendVolatile
	case growthRate > 0:
		return models.TrendUpward
	default:
		return models.TrendDownward
	}
}

// classifyPattern is a shape heuristic, not a true curve fit: a strong
// linear fit reads linear, high volatility reads cyclical, the remainder
// is labeled exponential.
func classifyPattern(rSquared, volatility float64) models.PatternType {
	switch {
	case rSquared > 0.8:
		return models.PatternLinear
	case volatility > 50:
		return models.PatternCyclical
	default:
		return models.PatternExponential
	}
}
