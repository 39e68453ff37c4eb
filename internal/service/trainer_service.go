package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/adlytics/adlytics-intelligence/internal/algorithm"
	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/pkg/metrics"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/stats"
	"github.com/adlytics/adlytics-intelligence/internal/timeseries"
)

// TrainerService manages the prediction model lifecycle: creation, training
// with held-out validation, incremental refits, bulk retraining and
// accuracy comparison.
type TrainerService interface {
	// CreateModel registers a draft model. The algorithm name must be known
	// to the registry.
	CreateModel(ctx context.Context, org models.OrgContext, m *models.PredictionModel) error

	// TrainModel fits the model on org-wide history of its target metric,
	// scores it on an order-preserving held-out tail, and promotes the model
	// to active on success.
	TrainModel(ctx context.Context, org models.OrgContext, modelID string, opts TrainOptions) (*models.PredictionModel, error)

	GetModel(ctx context.Context, org models.OrgContext, modelID string) (*models.PredictionModel, error)
	ListModels(ctx context.Context, org models.OrgContext, filter repository.ModelFilter) ([]*models.PredictionModel, error)
	RetireModel(ctx context.Context, org models.OrgContext, modelID string) error

	// BulkRetrain retrains the given models, or every active model for the
	// org when no ids are given. One model's failure never aborts the batch.
	BulkRetrain(ctx context.Context, org models.OrgContext, modelIDs []string) (*models.BulkRetrainReport, error)

	// CompareModels ranks trained models by MAPE ascending, optionally
	// restricted to one target metric or algorithm.
	CompareModels(ctx context.Context, org models.OrgContext, targetMetric, algo string) (*models.ModelComparison, error)
}

// TrainOptions tunes a single training run.
type TrainOptions struct {
	// Incremental refits on data since the last run, warm-starting from the
	// stored parameters. A full run on an already-trained model bumps the
	// version; an incremental one never does.
	Incremental bool

	// Hyperparameters, when non-nil, replace the model's stored
	// hyperparameters before fitting.
	Hyperparameters models.Params
}

// TrainerConfig tunes training behavior.
type TrainerConfig struct {
	// ValidationSplit is the fraction of the series held out for scoring,
	// always taken from the chronological tail.
	ValidationSplit float64

	// LookbackMonths is the history window for a full training run.
	LookbackMonths int
}

type trainerService struct {
	source   timeseries.Source
	repo     repository.ModelRepository
	registry *algorithm.Registry
	logger   *zap.Logger
	cfg      TrainerConfig
}

// NewTrainerService creates a trainer over a metric source, model store and
// algorithm registry.
func NewTrainerService(source timeseries.Source, repo repository.ModelRepository, registry *algorithm.Registry, logger *zap.Logger, cfg TrainerConfig) TrainerService {
	if cfg.ValidationSplit <= 0 || cfg.ValidationSplit >= 1 {
		cfg.ValidationSplit = 0.2
	}
	if cfg.LookbackMonths <= 0 {
		cfg.LookbackMonths = 12
	}
	return &trainerService{source: source, repo: repo, registry: registry, logger: logger, cfg: cfg}
}

func (s *trainerService) CreateModel(ctx context.Context, org models.OrgContext, m *models.PredictionModel) error {
	if !org.Valid() {
		return fmt.Errorf("%w: org is required", ErrInvalidInput)
	}
	if m.Name == "" || m.TargetMetric == "" {
		return fmt.Errorf("%w: name and target_metric are required", ErrInvalidInput)
	}
	if _, err := s.registry.Get(m.Algorithm); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	m.OrgID = org.OrgID
	m.Status = models.ModelDraft
	m.Version = 1
	return s.repo.CreateModel(ctx, m)
}

func (s *trainerService) GetModel(ctx context.Context, org models.OrgContext, modelID string) (*models.PredictionModel, error) {
	return s.repo.GetModel(ctx, org.OrgID, modelID)
}

func (s *trainerService) ListModels(ctx context.Context, org models.OrgContext, filter repository.ModelFilter) ([]*models.PredictionModel, error) {
	return s.repo.ListModels(ctx, org.OrgID, filter)
}

func (s *trainerService) RetireModel(ctx context.Context, org models.OrgContext, modelID string) error {
	return s.repo.UpdateModelStatus(ctx, org.OrgID, modelID, models.ModelRetired)
}

func (s *trainerService) TrainModel(ctx context.Context, org models.OrgContext, modelID string, opts TrainOptions) (*models.PredictionModel, error) {
	m, err := s.repo.GetModel(ctx, org.OrgID, modelID)
	if err != nil {
		return nil, err
	}
	if opts.Hyperparameters != nil {
		m.Hyperparameters = opts.Hyperparameters
	}

	impl, err := s.registry.Get(m.Algorithm)
	if err != nil {
		return nil, err
	}

	incremental := opts.Incremental
	now := time.Now().UTC()
	from := now.AddDate(0, -s.cfg.LookbackMonths, 0)
	if incremental && m.LastTrainedAt != nil {
		from = *m.LastTrainedAt
	}

	points, err := s.source.FetchOrgSeries(ctx, org, m.TargetMetric, from, now)
	if err != nil {
		metrics.TrainingRunsTotal.WithLabelValues(m.Algorithm, "failed").Inc()
		return nil, fmt.Errorf("fetch training data: %w", err)
	}
	values := timeseries.Values(points)
	if len(values) < 2 {
		metrics.TrainingRunsTotal.WithLabelValues(m.Algorithm, "failed").Inc()
		return nil, fmt.Errorf("%w: %d point(s) for metric %s", ErrNoTrainingData, len(values), m.TargetMetric)
	}

	timer := prometheus.NewTimer(metrics.TrainingDurationSeconds.WithLabelValues(m.Algorithm))
	defer timer.ObserveDuration()

	train, validation := splitSeries(values, s.cfg.ValidationSplit)

	var warm models.Params
	if incremental && m.Trained() {
		warm = m.ModelParameters
	}
	params, err := impl.Fit(train, m.Hyperparameters, warm)
	if err != nil {
		metrics.TrainingRunsTotal.WithLabelValues(m.Algorithm, "failed").Inc()
		return nil, fmt.Errorf("fit %s: %w", m.Algorithm, err)
	}

	mae, rmse, mape, r2 := s.validate(impl, params, train, validation)

	wasTrained := m.Trained()
	m.ModelParameters = params
	m.MAE = mae
	m.RMSE = rmse
	m.MAPE = mape
	m.RSquared = r2
	m.TrainingDataCount = len(values)
	m.LastTrainedAt = &now
	m.Status = models.ModelActive
	if !incremental && wasTrained {
		m.Version++
	}
	m.TrainingMetadata = models.TrainingMetadata{
		TrainSamples:      len(train),
		ValidationSamples: len(validation),
		ValidationSplit:   s.cfg.ValidationSplit,
		Incremental:       incremental,
		TrainedAt:         now,
	}

	if err := s.repo.SaveTrainingResult(ctx, m); err != nil {
		metrics.TrainingRunsTotal.WithLabelValues(m.Algorithm, "failed").Inc()
		return nil, fmt.Errorf("save training result: %w", err)
	}
	metrics.TrainingRunsTotal.WithLabelValues(m.Algorithm, "completed").Inc()

	s.logger.Info("model trained",
		zap.String("org_id", org.OrgID),
		zap.String("model_id", m.ID),
		zap.String("algorithm", m.Algorithm),
		zap.Bool("incremental", incremental),
		zap.Int("samples", len(values)),
		zap.Float64("mape", mape))

	return m, nil
}

// validate scores the fitted parameters on the held-out tail with one-step
// walk-forward predictions: each validation point is predicted from the
// training series plus all prior validation actuals.
func (s *trainerService) validate(impl algorithm.Model, params models.Params, train, validation []float64) (mae, rmse, mape, r2 float64) {
	if len(validation) == 0 {
		return 0, 0, 0, 0
	}

	history := make([]float64, len(train), len(train)+len(validation))
	copy(history, train)

	predicted := make([]float64, len(validation))
	for i, actual := range validation {
		predicted[i] = impl.Predict(params, history, 1)
		history = append(history, actual)
	}

	var sumAbs, sumSq, sumPct float64
	pctCount := 0
	for i, actual := range validation {
		err := predicted[i] - actual
		sumAbs += math.Abs(err)
		sumSq += err * err
		if actual != 0 {
			sumPct += math.Abs(err / actual)
			pctCount++
		}
	}
	n := float64(len(validation))
	mae = sumAbs / n
	rmse = math.Sqrt(sumSq / n)
	if pctCount > 0 {
		mape = sumPct / float64(pctCount) * 100
	}

	base, _ := stats.Baseline(validation)
	var ssTot float64
	for _, actual := range validation {
		d := actual - base.Mean
		ssTot += d * d
	}
	if ssTot > 1e-12 {
		r2 = stats.Clamp01(1 - sumSq/ssTot)
	}
	return mae, rmse, mape, r2
}

func (s *trainerService) BulkRetrain(ctx context.Context, org models.OrgContext, modelIDs []string) (*models.BulkRetrainReport, error) {
	if len(modelIDs) == 0 {
		active, err := s.repo.ListModels(ctx, org.OrgID, repository.ModelFilter{Status: models.ModelActive})
		if err != nil {
			return nil, err
		}
		for _, m := range active {
			modelIDs = append(modelIDs, m.ID)
		}
	}

	report := &models.BulkRetrainReport{Total: len(modelIDs)}
	for _, id := range modelIDs {
		result := models.BulkRetrainResult{ModelID: id, Success: true}
		if _, err := s.TrainModel(ctx, org, id, TrainOptions{}); err != nil {
			result.Success = false
			result.Error = err.Error()
			report.Failed++
			s.logger.Warn("bulk retrain failed for model",
				zap.String("model_id", id), zap.Error(err))
		} else {
			report.Successful++
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func (s *trainerService) CompareModels(ctx context.Context, org models.OrgContext, targetMetric, algo string) (*models.ModelComparison, error) {
	trained, err := s.repo.ListModels(ctx, org.OrgID, repository.ModelFilter{
		TargetMetric: targetMetric,
		Algorithm:    algo,
		TrainedOnly:  true,
	})
	if err != nil {
		return nil, err
	}

	cmp := &models.ModelComparison{}
	var sumMAPE float64
	for _, m := range trained {
		cmp.Models = append(cmp.Models, models.ModelAccuracyEntry{
			ModelID:   m.ID,
			Name:      m.Name,
			Algorithm: m.Algorithm,
			Metric:    m.TargetMetric,
			MAPE:      m.MAPE,
			MAE:       m.MAE,
			RMSE:      m.RMSE,
			RSquared:  m.RSquared,
		})
		sumMAPE += m.MAPE
	}
	sort.SliceStable(cmp.Models, func(i, j int) bool {
		return cmp.Models[i].MAPE < cmp.Models[j].MAPE
	})
	if len(cmp.Models) > 0 {
		best := cmp.Models[0]
		cmp.Best = &best
		cmp.AverageMAPE = sumMAPE / float64(len(cmp.Models))
	}
	return cmp, nil
}

// splitSeries splits a series into train and validation preserving
// chronological order; the validation set is the tail. At least one point
// always stays in train.
func splitSeries(values []float64, split float64) (train, validation []float64) {
	cut := len(values) - int(math.Round(float64(len(values))*split))
	if cut < 1 {
		cut = 1
	}
	if cut > len(values) {
		cut = len(values)
	}
	return values[:cut], values[cut:]
}
