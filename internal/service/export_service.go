package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adlytics/adlytics-intelligence/internal/algorithm"
	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
)

// ExportService moves model definitions and trend records across orgs or
// deployments. An export carries structure and fitted parameters but no
// tenant data; model import always reconstructs a fresh draft at version 1.
type ExportService interface {
	Export(ctx context.Context, org models.OrgContext, modelID string) (*models.ModelExport, error)
	Import(ctx context.Context, org models.OrgContext, export *models.ModelExport) (*models.PredictionModel, error)
	ExportTrend(ctx context.Context, org models.OrgContext, trendID string) (*models.TrendExport, error)
}

type exportService struct {
	repo     repository.ModelRepository
	trends   repository.TrendRepository
	registry *algorithm.Registry
	logger   *zap.Logger
}

// NewExportService creates an export service over the model and trend stores.
func NewExportService(repo repository.ModelRepository, trends repository.TrendRepository, registry *algorithm.Registry, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, trends: trends, registry: registry, logger: logger}
}

func (s *exportService) Export(ctx context.Context, org models.OrgContext, modelID string) (*models.ModelExport, error) {
	m, err := s.repo.GetModel(ctx, org.OrgID, modelID)
	if err != nil {
		return nil, err
	}
	return &models.ModelExport{
		Name:            m.Name,
		Algorithm:       m.Algorithm,
		TargetMetric:    m.TargetMetric,
		Hyperparameters: m.Hyperparameters,
		ModelParameters: m.ModelParameters,
		Features:        m.Features,
		Version:         m.Version,
	}, nil
}

func (s *exportService) ExportTrend(ctx context.Context, org models.OrgContext, trendID string) (*models.TrendExport, error) {
	t, err := s.trends.GetTrend(ctx, org.OrgID, trendID)
	if err != nil {
		return nil, err
	}
	return &models.TrendExport{
		EntityType:        t.EntityType,
		EntityID:          t.EntityID,
		MetricName:        t.MetricName,
		StartDate:         t.StartDate,
		EndDate:           t.EndDate,
		DataPoints:        t.DataPoints,
		TrendDirection:    t.TrendDirection,
		GrowthRate:        t.GrowthRate,
		PatternType:       t.PatternType,
		Volatility:        t.Volatility,
		RSquared:          t.RSquared,
		SignificanceProxy: t.SignificanceProxy,
		SeasonalPattern:   t.SeasonalPattern,
		ForecastNextValue: t.ForecastNextValue,
	}, nil
}

func (s *exportService) Import(ctx context.Context, org models.OrgContext, export *models.ModelExport) (*models.PredictionModel, error) {
	if !org.Valid() {
		return nil, fmt.Errorf("%w: org is required", ErrInvalidInput)
	}
	if export == nil || export.Name == "" || export.TargetMetric == "" {
		return nil, fmt.Errorf("%w: export is missing name or target_metric", ErrInvalidInput)
	}
	if _, err := s.registry.Get(export.Algorithm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// Imports never inherit the source's version or training history; the
	// model must prove itself again in the destination org.
	m := &models.PredictionModel{
		OrgID:           org.OrgID,
		Name:            export.Name,
		Algorithm:       export.Algorithm,
		TargetMetric:    export.TargetMetric,
		Hyperparameters: export.Hyperparameters,
		ModelParameters: export.ModelParameters,
		Features:        export.Features,
		Status:          models.ModelDraft,
		Version:         1,
	}
	if err := s.repo.CreateModel(ctx, m); err != nil {
		return nil, err
	}

	s.logger.Info("model imported",
		zap.String("org_id", org.OrgID),
		zap.String("model_id", m.ID),
		zap.String("algorithm", m.Algorithm))

	return m, nil
}
