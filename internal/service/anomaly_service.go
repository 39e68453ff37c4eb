package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/pkg/metrics"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/stats"
	"github.com/adlytics/adlytics-intelligence/internal/timeseries"
)

// AnomalyService detects metric deviations and manages their review lifecycle.
type AnomalyService interface {
	// Detect scans each metric's history and records one anomaly per point
	// whose |z| exceeds the threshold. Empty series and per-metric failures
	// are skipped, never fatal to the batch.
	Detect(ctx context.Context, org models.OrgContext, entity models.EntityRef, metricNames []string, from, to time.Time) ([]*models.Anomaly, error)

	List(ctx context.Context, org models.OrgContext, entity models.EntityRef, filter repository.AnomalyFilter) ([]*models.Anomaly, error)
	Acknowledge(ctx context.Context, org models.OrgContext, id string) error
	Resolve(ctx context.Context, org models.OrgContext, id string) error
	MarkFalsePositive(ctx context.Context, org models.OrgContext, id string) error

	// Summary aggregates counts, resolution time and false-positive rate
	// over a trailing window for dashboards.
	Summary(ctx context.Context, org models.OrgContext, entity *models.EntityRef, window time.Duration) (*models.AnomalySummary, error)
}

// AnomalyConfig tunes detection behavior.
type AnomalyConfig struct {
	// ZThreshold is the |z| above which a point is flagged.
	ZThreshold float64

	// SkipDuplicatePoints skips points already flagged by a prior run over
	// an overlapping window. Off by default: re-runs re-record.
	SkipDuplicatePoints bool
}

type anomalyService struct {
	source timeseries.Source
	repo   repository.AnomalyRepository
	logger *zap.Logger
	cfg    AnomalyConfig
}

// NewAnomalyService creates an anomaly service over a metric source and store.
func NewAnomalyService(source timeseries.Source, repo repository.AnomalyRepository, logger *zap.Logger, cfg AnomalyConfig) AnomalyService {
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = 3.0
	}
	return &anomalyService{source: source, repo: repo, logger: logger, cfg: cfg}
}

func (s *anomalyService) Detect(ctx context.Context, org models.OrgContext, entity models.EntityRef, metricNames []string, from, to time.Time) ([]*models.Anomaly, error) {
	if !org.Valid() || !entity.Valid() {
		return nil, fmt.Errorf("%w: org and entity are required", ErrInvalidInput)
	}

	var created []*models.Anomaly
	for _, metric := range metricNames {
		anomalies, err := s.detectMetric(ctx, org, entity, metric, from, to)
		if err != nil {
			// One bad metric must not block the others in the batch.
			s.logger.Warn("anomaly detection failed for metric",
				zap.String("org_id", org.OrgID),
				zap.String("entity", entity.String()),
				zap.String("metric", metric),
				zap.Error(err))
			metrics.DetectionRunsTotal.WithLabelValues("failed").Inc()
			continue
		}
		created = append(created, anomalies...)
	}

	s.logger.Info("anomaly detection completed",
		zap.String("org_id", org.OrgID),
		zap.String("entity", entity.String()),
		zap.Int("metrics", len(metricNames)),
		zap.Int("anomalies", len(created)))

	return created, nil
}

func (s *anomalyService) detectMetric(ctx context.Context, org models.OrgContext, entity models.EntityRef, metric string, from, to time.Time) ([]*models.Anomaly, error) {
	points, err := s.source.FetchSeries(ctx, org, entity, metric, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch series: %w", err)
	}
	if len(points) == 0 {
		metrics.DetectionRunsTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	base, err := stats.Baseline(timeseries.Values(points))
	if err != nil {
		return nil, err
	}

	var created []*models.Anomaly
	for _, p := range points {
		z := stats.ZScore(p.Value, base.Mean, base.StdDev)
		if math.Abs(z) <= s.cfg.ZThreshold {
			continue
		}

		if s.cfg.SkipDuplicatePoints {
			exists, err := s.repo.AnomalyExists(ctx, org.OrgID, entity, metric, p.Date)
			if err != nil {
				return created, fmt.Errorf("check duplicate: %w", err)
			}
			if exists {
				continue
			}
		}

		a := &models.Anomaly{
			OrgID:               org.OrgID,
			EntityType:          entity.Type,
			EntityID:            entity.ID,
			MetricName:          metric,
			DetectedAt:          p.Date,
			ExpectedValue:       base.Mean,
			ActualValue:         p.Value,
			DeviationPercentage: deviationPct(p.Value, base.Mean),
			Severity:            severityFromZ(math.Abs(z)),
			ConfidenceScore:     confidenceFromZ(math.Abs(z)),
			Status:              models.AnomalyDetected,
			DetectionMethod:     "z_score",
			Metadata: models.AnomalyMetadata{
				BaselineMean:   base.Mean,
				BaselineStdDev: base.StdDev,
				ZScore:         z,
			},
		}
		if err := s.repo.CreateAnomaly(ctx, a); err != nil {
			return created, fmt.Errorf("persist anomaly: %w", err)
		}
		metrics.AnomaliesDetectedTotal.WithLabelValues(string(a.Severity)).Inc()
		created = append(created, a)
	}

	metrics.DetectionRunsTotal.WithLabelValues("completed").Inc()
	return created, nil
}

func (s *anomalyService) List(ctx context.Context, org models.OrgContext, entity models.EntityRef, filter repository.AnomalyFilter) ([]*models.Anomaly, error) {
	return s.repo.ListAnomalies(ctx, org.OrgID, entity, filter)
}

func (s *anomalyService) Acknowledge(ctx context.Context, org models.OrgContext, id string) error {
	return s.repo.UpdateAnomalyStatus(ctx, org.OrgID, id, models.AnomalyAcknowledged, nil)
}

func (s *anomalyService) Resolve(ctx context.Context, org models.OrgContext, id string) error {
	now := time.Now().UTC()
	return s.repo.UpdateAnomalyStatus(ctx, org.OrgID, id, models.AnomalyResolved, &now)
}

func (s *anomalyService) MarkFalsePositive(ctx context.Context, org models.OrgContext, id string) error {
	return s.repo.UpdateAnomalyStatus(ctx, org.OrgID, id, models.AnomalyFalsePositive, nil)
}

func (s *anomalyService) Summary(ctx context.Context, org models.OrgContext, entity *models.EntityRef, window time.Duration) (*models.AnomalySummary, error) {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	since := time.Now().UTC().Add(-window)
	return s.repo.AnomalySummary(ctx, org.OrgID, entity, since)
}

// deviationPct is the relative deviation from the baseline mean, 0 when
// the baseline is 0.
func deviationPct(actual, expected float64) float64 {
	if expected == 0 {
		return 0
	}
	return (actual - expected) / expected * 100
}

// severityFromZ buckets |z| deterministically; larger |z| never maps to a
// lower severity.
func severityFromZ(absZ float64) models.AnomalySeverity {
	switch {
	case absZ >= 5.0:
		return models.SeverityCritical
	case absZ >= 4.0:
		return models.SeverityHigh
	case absZ >= 3.0:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// confidenceFromZ is min(1, |z|/5).
func confidenceFromZ(absZ float64) float64 {
	return math.Min(1.0, absZ/5.0)
}
