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
)

// RecommendationService synthesizes actionable suggestions from unresolved
// anomalies and recent trends, and tracks whether they were acted on.
type RecommendationService interface {
	// Generate derives recommendations for an entity, anomaly-sourced first
	// and trend-sourced second, filters them by minimum confidence and the
	// optional type allowlist, and returns them ranked by priority then
	// confidence. Ties keep generation order.
	Generate(ctx context.Context, org models.OrgContext, entity models.EntityRef, types []models.RecommendationType) ([]*models.Recommendation, error)

	Get(ctx context.Context, org models.OrgContext, id string) (*models.Recommendation, error)

	// Apply transitions a pending recommendation to applied, running execute
	// inside the same transaction. An execute failure rolls the transition
	// back so the recommendation stays pending.
	Apply(ctx context.Context, org models.OrgContext, id, appliedBy string, execute func(context.Context) error) error

	Dismiss(ctx context.Context, org models.OrgContext, id string) error
	SetFeedback(ctx context.Context, org models.OrgContext, id string, isHelpful bool) error
}

// RecommendationConfig tunes synthesis.
type RecommendationConfig struct {
	// MinConfidence drops suggestions the engine is not sure about.
	MinConfidence float64

	// AnomalyWindow is how far back unresolved anomalies are considered.
	AnomalyWindow time.Duration

	// TrendWindow is how far back trend records are considered. Trends are
	// slower-moving signals than anomalies, so the window is wider.
	TrendWindow time.Duration
}

type recommendationService struct {
	anomalies repository.AnomalyRepository
	trends    repository.TrendRepository
	repo      repository.RecommendationRepository
	logger    *zap.Logger
	cfg       RecommendationConfig
}

// NewRecommendationService creates a recommendation service over the
// anomaly, trend and recommendation stores.
func NewRecommendationService(anomalies repository.AnomalyRepository, trends repository.TrendRepository, repo repository.RecommendationRepository, logger *zap.Logger, cfg RecommendationConfig) RecommendationService {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.5
	}
	if cfg.AnomalyWindow <= 0 {
		cfg.AnomalyWindow = 7 * 24 * time.Hour
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = 30 * 24 * time.Hour
	}
	return &recommendationService{anomalies: anomalies, trends: trends, repo: repo, logger: logger, cfg: cfg}
}

func (s *recommendationService) Generate(ctx context.Context, org models.OrgContext, entity models.EntityRef, types []models.RecommendationType) ([]*models.Recommendation, error) {
	if !org.Valid() || !entity.Valid() {
		return nil, fmt.Errorf("%w: org and entity are required", ErrInvalidInput)
	}
	now := time.Now().UTC()

	var recs []*models.Recommendation

	unresolved, err := s.anomalies.ListUnresolvedAnomalies(ctx, org.OrgID, entity, now.Add(-s.cfg.AnomalyWindow))
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	for _, a := range unresolved {
		recs = append(recs, recommendationFromAnomaly(a))
	}

	trends, err := s.trends.ListRecentTrends(ctx, org.OrgID, entity, now.Add(-s.cfg.TrendWindow))
	if err != nil {
		return nil, fmt.Errorf("list trends: %w", err)
	}
	for _, t := range trends {
		if r := recommendationFromTrend(t); r != nil {
			recs = append(recs, r)
		}
	}

	recs = filterRecommendations(recs, s.cfg.MinConfidence, types)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].RankScore() > recs[j].RankScore()
	})

	if len(recs) > 0 {
		if err := s.repo.CreateRecommendations(ctx, recs); err != nil {
			return nil, fmt.Errorf("persist recommendations: %w", err)
		}
	}
	for _, r := range recs {
		metrics.RecommendationsGeneratedTotal.WithLabelValues(string(r.Metadata.Source)).Inc()
	}

	s.logger.Info("recommendations generated",
		zap.String("org_id", org.OrgID),
		zap.String("entity", entity.String()),
		zap.Int("anomaly_sources", len(unresolved)),
		zap.Int("trend_sources", len(trends)),
		zap.Int("recommendations", len(recs)))

	return recs, nil
}

// recommendationFromAnomaly maps one unresolved anomaly to a suggestion.
// Priority mirrors severity; confidence gets a small bump over the
// detector's score (a persisting anomaly is stronger evidence than one
// sighting), capped at 1.
func recommendationFromAnomaly(a *models.Anomaly) *models.Recommendation {
	recType := recTypeForMetric(a.MetricName)
	direction := "above"
	if a.ActualValue < a.ExpectedValue {
		direction = "below"
	}
	return &models.Recommendation{
		OrgID:           a.OrgID,
		EntityType:      a.EntityType,
		EntityID:        a.EntityID,
		Type:            recType,
		Priority:        priorityForSeverity(a.Severity),
		Title:           fmt.Sprintf("Investigate %s anomaly on %s", a.Severity, a.MetricName),
		Description:     fmt.Sprintf("%s was %.2f, %s the expected %.2f (%.1f%% deviation).", a.MetricName, a.ActualValue, direction, a.ExpectedValue, a.DeviationPercentage),
		Rationale:       fmt.Sprintf("Unresolved %s anomaly detected by %s.", a.Severity, a.DetectionMethod),
		ConfidenceScore: math.Min(1, a.ConfidenceScore+0.1),
		ImpactEstimate:  math.Abs(a.DeviationPercentage),
		Status:          models.RecPending,
		Metadata: models.RecommendationMeta{
			Source:   models.SourceAnomaly,
			SourceID: a.ID,
			Metric:   a.MetricName,
		},
	}
}

// recommendationFromTrend maps a trend record to a suggestion, or nil when
// the trend is not actionable. Stable trends never produce suggestions.
func recommendationFromTrend(t *models.TrendAnalysis) *models.Recommendation {
	var (
		recType  models.RecommendationType
		priority models.RecommendationPriority
		title    string
		desc     string
	)
	switch t.TrendDirection {
	case models.TrendDownward:
		// A sustained decline is a budget call regardless of the metric:
		// stop funding what is shrinking until the cause is understood.
		recType = models.RecBudgetOptimization
		priority = models.PriorityHigh
		title = fmt.Sprintf("Address declining %s", t.MetricName)
		desc = fmt.Sprintf("%s is trending down at %.2f per day over %d points.", t.MetricName, t.GrowthRate, t.DataPoints)
	case models.TrendVolatile:
		recType = models.RecOther
		priority = models.PriorityMedium
		title = fmt.Sprintf("Stabilize volatile %s", t.MetricName)
		desc = fmt.Sprintf("%s volatility is %.1f%%, making performance hard to predict.", t.MetricName, t.Volatility)
	case models.TrendUpward:
		recType = models.RecBudgetOptimization
		priority = models.PriorityMedium
		title = fmt.Sprintf("Capitalize on growing %s", t.MetricName)
		desc = fmt.Sprintf("%s is trending up at %.2f per day; consider shifting budget toward it.", t.MetricName, t.GrowthRate)
	default:
		return nil
	}

	confidence := t.RSquared
	if confidence <= 0 {
		confidence = 0.7 // weak fit still carries directional signal
	}
	return &models.Recommendation{
		OrgID:           t.OrgID,
		EntityType:      t.EntityType,
		EntityID:        t.EntityID,
		Type:            recType,
		Priority:        priority,
		Title:           title,
		Description:     desc,
		Rationale:       fmt.Sprintf("Trend analysis over %d data points (r²=%.2f).", t.DataPoints, t.RSquared),
		ConfidenceScore: confidence,
		ImpactEstimate:  math.Abs(t.GrowthRate) * 100,
		Status:          models.RecPending,
		Metadata: models.RecommendationMeta{
			Source:   models.SourceTrend,
			SourceID: t.ID,
			Metric:   t.MetricName,
		},
	}
}

// recTypeForMetric buckets a metric name into the action most likely to
// move it: money metrics get budget work, price metrics get bid work,
// volume metrics get targeting work, and conversion problems usually mean
// the creative has gone stale.
func recTypeForMetric(metric string) models.RecommendationType {
	switch metric {
	case "spend", "cost":
		return models.RecBudgetOptimization
	case "cpc", "cpm", "cpa":
		return models.RecBidAdjustment
	case "clicks", "impressions":
		return models.RecTargetingRefinement
	case "conversions":
		return models.RecCreativeRefresh
	default:
		return models.RecOther
	}
}

// priorityForSeverity maps anomaly severity one-to-one onto priority.
func priorityForSeverity(s models.AnomalySeverity) models.RecommendationPriority {
	switch s {
	case models.SeverityCritical:
		return models.PriorityUrgent
	case models.SeverityHigh:
		return models.PriorityHigh
	case models.SeverityMedium:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

func filterRecommendations(recs []*models.Recommendation, minConfidence float64, types []models.RecommendationType) []*models.Recommendation {
	allowed := make(map[models.RecommendationType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}

	var out []*models.Recommendation
	for _, r := range recs {
		if r.ConfidenceScore < minConfidence {
			continue
		}
		if len(allowed) > 0 && !allowed[r.Type] {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *recommendationService) Get(ctx context.Context, org models.OrgContext, id string) (*models.Recommendation, error) {
	return s.repo.GetRecommendation(ctx, org.OrgID, id)
}

func (s *recommendationService) Apply(ctx context.Context, org models.OrgContext, id, appliedBy string, execute func(context.Context) error) error {
	wrapped := func(ctx context.Context) error {
		if execute == nil {
			return nil
		}
		if err := execute(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
		}
		return nil
	}
	return s.repo.ApplyRecommendation(ctx, org.OrgID, id, appliedBy, wrapped)
}

func (s *recommendationService) Dismiss(ctx context.Context, org models.OrgContext, id string) error {
	return s.repo.UpdateRecommendationStatus(ctx, org.OrgID, id, models.RecDismissed)
}

func (s *recommendationService) SetFeedback(ctx context.Context, org models.OrgContext, id string, isHelpful bool) error {
	return s.repo.SetRecommendationFeedback(ctx, org.OrgID, id, isHelpful)
}
