package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adlytics/adlytics-intelligence/internal/algorithm"
	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/timeseries"
)

func newTrainerFixture(cfg TrainerConfig) (*timeseries.MemorySource, *fakeModelRepo, TrainerService) {
	source := timeseries.NewMemorySource()
	repo := &fakeModelRepo{}
	svc := NewTrainerService(source, repo, algorithm.NewRegistry(), zap.NewNop(), cfg)
	return source, repo, svc
}

func putOrgHistory(source *timeseries.MemorySource, metric string, values []float64) {
	start := time.Now().UTC().AddDate(0, 0, -len(values))
	source.PutOrg(testOrg.OrgID, metric, dailySeries(start, values))
}

func TestCreateModelDefaults(t *testing.T) {
	_, repo, svc := newTrainerFixture(TrainerConfig{})

	m := &models.PredictionModel{Name: "spend-lr", Algorithm: "linear_regression", TargetMetric: "spend"}
	require.NoError(t, svc.CreateModel(context.Background(), testOrg, m))

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, testOrg.OrgID, m.OrgID)
	assert.Equal(t, models.ModelDraft, m.Status)
	assert.Equal(t, 1, m.Version)
	assert.False(t, m.Trained())
	assert.Len(t, repo.models, 1)
}

func TestCreateModelUnknownAlgorithm(t *testing.T) {
	_, _, svc := newTrainerFixture(TrainerConfig{})

	m := &models.PredictionModel{Name: "x", Algorithm: "prophet", TargetMetric: "spend"}
	err := svc.CreateModel(context.Background(), testOrg, m)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTrainModelPromotesAndScores(t *testing.T) {
	source, _, svc := newTrainerFixture(TrainerConfig{ValidationSplit: 0.2})

	// Perfect line, so walk-forward one-step predictions are exact.
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100 + 2*float64(i)
	}
	putOrgHistory(source, "spend", values)

	m := &models.PredictionModel{Name: "spend-lr", Algorithm: "linear_regression", TargetMetric: "spend"}
	require.NoError(t, svc.CreateModel(context.Background(), testOrg, m))

	trained, err := svc.TrainModel(context.Background(), testOrg, m.ID, TrainOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.ModelActive, trained.Status)
	assert.True(t, trained.Trained())
	assert.Equal(t, 20, trained.TrainingDataCount)
	assert.Equal(t, 1, trained.Version, "first training run keeps version 1")
	assert.InDelta(t, 0, trained.MAE, 1e-6)
	assert.InDelta(t, 0, trained.RMSE, 1e-6)
	assert.InDelta(t, 0, trained.MAPE, 1e-6)
	assert.InDelta(t, 2, trained.ModelParameters["slope"], 1e-9)

	meta := trained.TrainingMetadata
	assert.Equal(t, 16, meta.TrainSamples, "80/20 split preserves order")
	assert.Equal(t, 4, meta.ValidationSamples)
	assert.False(t, meta.Incremental)
}

func TestTrainModelFullRetrainBumpsVersion(t *testing.T) {
	source, repo, svc := newTrainerFixture(TrainerConfig{})

	values := make([]float64, 30)
	for i := range values {
		values[i] = 50 + float64(i)
	}
	putOrgHistory(source, "spend", values)

	m := &models.PredictionModel{Name: "spend-lr", Algorithm: "linear_regression", TargetMetric: "spend"}
	require.NoError(t, svc.CreateModel(context.Background(), testOrg, m))

	_, err := svc.TrainModel(context.Background(), testOrg, m.ID, TrainOptions{})
	require.NoError(t, err)

	retrained, err := svc.TrainModel(context.Background(), testOrg, m.ID, TrainOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, retrained.Version)

	// Rewind the training timestamp so the incremental window has data.
	stored, err := repo.GetModel(context.Background(), testOrg.OrgID, m.ID)
	require.NoError(t, err)
	past := time.Now().UTC().AddDate(0, 0, -10)
	stored.LastTrainedAt = &past

	incremental, err := svc.TrainModel(context.Background(), testOrg, m.ID, TrainOptions{Incremental: true})
	require.NoError(t, err)
	assert.Equal(t, 2, incremental.Version, "incremental refit never bumps the version")
	assert.True(t, incremental.TrainingMetadata.Incremental)
}

func TestTrainModelNoData(t *testing.T) {
	_, _, svc := newTrainerFixture(TrainerConfig{})

	m := &models.PredictionModel{Name: "ctr-lr", Algorithm: "linear_regression", TargetMetric: "ctr"}
	require.NoError(t, svc.CreateModel(context.Background(), testOrg, m))

	_, err := svc.TrainModel(context.Background(), testOrg, m.ID, TrainOptions{})
	assert.ErrorIs(t, err, ErrNoTrainingData)

	stored, getErr := svc.GetModel(context.Background(), testOrg, m.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ModelDraft, stored.Status, "failed training leaves the model untouched")
}

func TestBulkRetrainIsolatesFailures(t *testing.T) {
	source, repo, svc := newTrainerFixture(TrainerConfig{})

	values := make([]float64, 20)
	for i := range values {
		values[i] = 10 + float64(i)
	}
	putOrgHistory(source, "spend", values)
	putOrgHistory(source, "clicks", values)
	// No history for "roas"; its retrain must fail.

	now := time.Now().UTC()
	for _, metric := range []string{"spend", "clicks", "roas"} {
		m := &models.PredictionModel{
			OrgID:         testOrg.OrgID,
			Name:          metric + "-ma",
			Algorithm:     "moving_average",
			TargetMetric:  metric,
			Status:        models.ModelActive,
			LastTrainedAt: &now,
		}
		require.NoError(t, repo.CreateModel(context.Background(), m))
	}

	report, err := svc.BulkRetrain(context.Background(), testOrg, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 3)

	var failed []models.BulkRetrainResult
	for _, r := range report.Results {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	require.Len(t, failed, 1)
	assert.NotEmpty(t, failed[0].Error)
}

func TestTrainModelClampsRSquared(t *testing.T) {
	source, _, svc := newTrainerFixture(TrainerConfig{})

	// Rising head, oscillating tail: the fit explains none of the
	// validation variance, so the raw score would go negative.
	values := make([]float64, 20)
	for i := 0; i < 16; i++ {
		values[i] = float64(i + 1)
	}
	values[16], values[17], values[18], values[19] = 100, 0, 100, 0
	putOrgHistory(source, "spend", values)

	m := &models.PredictionModel{Name: "spend-lr", Algorithm: "linear_regression", TargetMetric: "spend"}
	require.NoError(t, svc.CreateModel(context.Background(), testOrg, m))

	trained, err := svc.TrainModel(context.Background(), testOrg, m.ID, TrainOptions{})
	require.NoError(t, err)
	assert.Zero(t, trained.RSquared, "a worse-than-mean validation fit floors at 0")
	assert.Greater(t, trained.MAPE, 0.0)
}

func TestTrainModelOverwritesHyperparameters(t *testing.T) {
	source, _, svc := newTrainerFixture(TrainerConfig{})

	values := make([]float64, 20)
	for i := range values {
		values[i] = float64(i + 1)
	}
	putOrgHistory(source, "spend", values)

	m := &models.PredictionModel{Name: "spend-ma", Algorithm: "moving_average", TargetMetric: "spend"}
	require.NoError(t, svc.CreateModel(context.Background(), testOrg, m))

	trained, err := svc.TrainModel(context.Background(), testOrg, m.ID, TrainOptions{
		Hyperparameters: models.Params{"window": 3},
	})
	require.NoError(t, err)

	assert.InDelta(t, 3, trained.Hyperparameters["window"], 1e-9)
	assert.InDelta(t, 3, trained.ModelParameters["window"], 1e-9)
	// Train split keeps the first 16 points, so the window mean is (14+15+16)/3.
	assert.InDelta(t, 15, trained.ModelParameters["mean"], 1e-9)
}

func TestBulkRetrainExplicitIDs(t *testing.T) {
	source, repo, svc := newTrainerFixture(TrainerConfig{})

	values := make([]float64, 20)
	for i := range values {
		values[i] = 10 + float64(i)
	}
	putOrgHistory(source, "spend", values)

	m := &models.PredictionModel{
		OrgID:        testOrg.OrgID,
		Name:         "spend-ma",
		Algorithm:    "moving_average",
		TargetMetric: "spend",
		Status:       models.ModelActive,
	}
	require.NoError(t, repo.CreateModel(context.Background(), m))

	report, err := svc.BulkRetrain(context.Background(), testOrg, []string{m.ID, "missing"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].Success)
	assert.False(t, report.Results[1].Success)
}

func TestCompareModelsRanksByMAPE(t *testing.T) {
	_, repo, svc := newTrainerFixture(TrainerConfig{})

	now := time.Now().UTC()
	entries := []struct {
		name string
		mape float64
	}{
		{"worst", 40},
		{"best", 5},
		{"middle", 15},
	}
	for _, e := range entries {
		m := &models.PredictionModel{
			OrgID:         testOrg.OrgID,
			Name:          e.name,
			Algorithm:     "moving_average",
			TargetMetric:  "spend",
			MAPE:          e.mape,
			LastTrainedAt: &now,
		}
		require.NoError(t, repo.CreateModel(context.Background(), m))
	}
	// Untrained models are excluded from the comparison.
	require.NoError(t, repo.CreateModel(context.Background(), &models.PredictionModel{
		OrgID: testOrg.OrgID, Name: "draft", Algorithm: "moving_average", TargetMetric: "spend",
	}))
	// A different algorithm, used to exercise the filter below.
	require.NoError(t, repo.CreateModel(context.Background(), &models.PredictionModel{
		OrgID: testOrg.OrgID, Name: "lr", Algorithm: "linear_regression", TargetMetric: "spend",
		MAPE: 1, LastTrainedAt: &now,
	}))

	cmp, err := svc.CompareModels(context.Background(), testOrg, "spend", "moving_average")
	require.NoError(t, err)

	require.Len(t, cmp.Models, 3)
	require.NotNil(t, cmp.Best)
	assert.Equal(t, "best", cmp.Best.Name)
	assert.Equal(t, []string{"best", "middle", "worst"},
		[]string{cmp.Models[0].Name, cmp.Models[1].Name, cmp.Models[2].Name},
		"entries come back ranked by MAPE ascending")
	assert.InDelta(t, 20, cmp.AverageMAPE, 1e-9)

	all, err := svc.CompareModels(context.Background(), testOrg, "spend", "")
	require.NoError(t, err)
	require.Len(t, all.Models, 4)
	assert.Equal(t, "lr", all.Best.Name, "dropping the algorithm filter widens the field")
}

func TestSplitSeriesPreservesOrder(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	train, validation := splitSeries(values, 0.2)

	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, train)
	assert.Equal(t, []float64{9, 10}, validation)

	train, validation = splitSeries([]float64{1, 2}, 0.9)
	assert.Equal(t, []float64{1}, train, "at least one point stays in train")
	assert.Equal(t, []float64{2}, validation)
}
