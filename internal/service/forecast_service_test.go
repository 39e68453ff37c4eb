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
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/timeseries"
)

type forecastFixture struct {
	source    *timeseries.MemorySource
	repo      *fakeForecastRepo
	modelRepo *fakeModelRepo
	svc       ForecastService
}

func newForecastFixture(predictor Predictor, cfg ForecastConfig) *forecastFixture {
	f := &forecastFixture{
		source:    timeseries.NewMemorySource(),
		repo:      &fakeForecastRepo{},
		modelRepo: &fakeModelRepo{},
	}
	f.svc = NewForecastService(f.source, f.repo, f.modelRepo, algorithm.NewRegistry(), predictor, zap.NewNop(), cfg)
	return f
}

func (f *forecastFixture) addActiveModel(t *testing.T, metric string) *models.PredictionModel {
	t.Helper()
	now := time.Now().UTC()
	m := &models.PredictionModel{
		OrgID:         testOrg.OrgID,
		Name:          metric + "-ma",
		Algorithm:     "moving_average",
		TargetMetric:  metric,
		Status:        models.ModelActive,
		LastTrainedAt: &now,
		ModelParameters: models.Params{
			"window": 7,
			"mean":   100,
		},
	}
	require.NoError(t, f.modelRepo.CreateModel(context.Background(), m))
	return m
}

func TestGenerateNoActiveModel(t *testing.T) {
	f := newForecastFixture(nil, ForecastConfig{})

	_, err := f.svc.Generate(context.Background(), testOrg, testEntity, "spend", 7, "")
	assert.ErrorIs(t, err, ErrNoActiveModel)
}

func TestGenerateWithHeuristicPredictor(t *testing.T) {
	f := newForecastFixture(GrowthAveragePredictor{Window: 7}, ForecastConfig{BandPct: 0.10})
	model := f.addActiveModel(t, "spend")

	// Last 7 days average exactly 200.
	values := []float64{180, 190, 200, 210, 220, 200, 200}
	start := time.Now().UTC().AddDate(0, 0, -7)
	f.source.Put(testOrg.OrgID, testEntity, "spend", dailySeries(start, values))

	forecasts, err := f.svc.Generate(context.Background(), testOrg, testEntity, "spend", 5, "")
	require.NoError(t, err)
	require.Len(t, forecasts, 5)

	lastDate := start.AddDate(0, 0, 6)
	for i, fc := range forecasts {
		assert.Equal(t, model.ID, fc.ModelID)
		assert.Equal(t, i+1, fc.ForecastHorizon)
		assert.Equal(t, lastDate.AddDate(0, 0, i+1), fc.ForecastDate)
		assert.InDelta(t, 200, fc.PredictedValue, 1e-9, "zero growth keeps the moving average flat")
		assert.InDelta(t, 180, fc.ConfidenceLower, 1e-9)
		assert.InDelta(t, 220, fc.ConfidenceUpper, 1e-9)
		assert.InDelta(t, 0.95, fc.ConfidenceLevel, 1e-9)
		assert.Nil(t, fc.Actuals)
	}
	assert.Len(t, f.repo.forecasts, 5)
}

func TestGrowthAveragePredictorCompounds(t *testing.T) {
	p := GrowthAveragePredictor{Window: 2, DailyGrowth: 0.1}
	out := p.PredictSteps([]float64{90, 110}, 3)
	require.Len(t, out, 3)
	assert.InDelta(t, 110, out[0], 1e-9)
	assert.InDelta(t, 121, out[1], 1e-9)
	assert.InDelta(t, 133.1, out[2], 1e-9)
}

func TestGenerateWithModelPredictor(t *testing.T) {
	f := newForecastFixture(nil, ForecastConfig{})
	f.addActiveModel(t, "spend")

	values := []float64{100, 100, 100, 100, 100, 100, 100}
	start := time.Now().UTC().AddDate(0, 0, -7)
	f.source.Put(testOrg.OrgID, testEntity, "spend", dailySeries(start, values))

	forecasts, err := f.svc.Generate(context.Background(), testOrg, testEntity, "spend", 3, "")
	require.NoError(t, err)
	require.Len(t, forecasts, 3)
	for _, fc := range forecasts {
		assert.InDelta(t, 100, fc.PredictedValue, 1e-9, "moving average over flat history")
	}
}

func TestGenerateNoHistory(t *testing.T) {
	f := newForecastFixture(nil, ForecastConfig{})
	f.addActiveModel(t, "spend")

	_, err := f.svc.Generate(context.Background(), testOrg, testEntity, "spend", 7, "")
	assert.ErrorIs(t, err, ErrNoTrainingData)
}

func TestGeneratePicksLowestMAPEModel(t *testing.T) {
	f := newForecastFixture(nil, ForecastConfig{})
	worst := f.addActiveModel(t, "spend")
	worst.MAPE = 40
	best := f.addActiveModel(t, "spend")
	best.MAPE = 5

	values := []float64{100, 100, 100, 100, 100, 100, 100}
	start := time.Now().UTC().AddDate(0, 0, -7)
	f.source.Put(testOrg.OrgID, testEntity, "spend", dailySeries(start, values))

	forecasts, err := f.svc.Generate(context.Background(), testOrg, testEntity, "spend", 2, "")
	require.NoError(t, err)
	require.NotEmpty(t, forecasts)
	assert.Equal(t, best.ID, forecasts[0].ModelID, "lowest MAPE wins, not newest")
}

func TestGenerateExplicitModel(t *testing.T) {
	f := newForecastFixture(nil, ForecastConfig{})
	worst := f.addActiveModel(t, "spend")
	worst.MAPE = 40
	best := f.addActiveModel(t, "spend")
	best.MAPE = 5

	values := []float64{100, 100, 100, 100, 100, 100, 100}
	start := time.Now().UTC().AddDate(0, 0, -7)
	f.source.Put(testOrg.OrgID, testEntity, "spend", dailySeries(start, values))

	forecasts, err := f.svc.Generate(context.Background(), testOrg, testEntity, "spend", 2, worst.ID)
	require.NoError(t, err)
	require.NotEmpty(t, forecasts)
	assert.Equal(t, worst.ID, forecasts[0].ModelID, "an explicit id overrides the MAPE ranking")

	draft := &models.PredictionModel{
		OrgID: testOrg.OrgID, Name: "spend-draft", Algorithm: "moving_average",
		TargetMetric: "spend", Status: models.ModelDraft,
	}
	require.NoError(t, f.modelRepo.CreateModel(context.Background(), draft))

	_, err = f.svc.Generate(context.Background(), testOrg, testEntity, "spend", 2, draft.ID)
	assert.ErrorIs(t, err, ErrNoActiveModel, "a draft model cannot be pinned")
}

func TestBackfillActuals(t *testing.T) {
	f := newForecastFixture(nil, ForecastConfig{})

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)

	past := &models.Forecast{
		OrgID: testOrg.OrgID, EntityType: testEntity.Type, EntityID: testEntity.ID,
		MetricName: "spend", ForecastDate: yesterday, PredictedValue: 90,
	}
	future := &models.Forecast{
		OrgID: testOrg.OrgID, EntityType: testEntity.Type, EntityID: testEntity.ID,
		MetricName: "spend", ForecastDate: tomorrow, PredictedValue: 100,
	}
	require.NoError(t, f.repo.CreateForecasts(context.Background(), []*models.Forecast{past, future}))

	f.source.Put(testOrg.OrgID, testEntity, "spend", []timeseries.Point{{Date: yesterday, Value: 100}})

	updated, err := f.svc.BackfillActuals(context.Background(), testOrg)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	require.NotNil(t, past.Actuals)
	assert.Equal(t, 100.0, *past.Actuals)
	require.NotNil(t, past.Accuracy)
	assert.InDelta(t, 0.9, *past.Accuracy, 1e-9, "accuracy = 1 - |err|/|actual|")
	assert.Nil(t, future.Actuals, "future dates stay pending")
}

func TestForecastAccuracyHelper(t *testing.T) {
	acc := forecastAccuracy(150, 100)
	require.NotNil(t, acc)
	assert.InDelta(t, 0.5, *acc, 1e-9)

	acc = forecastAccuracy(500, 100)
	require.NotNil(t, acc)
	assert.Equal(t, 0.0, *acc, "accuracy floors at 0")

	assert.Nil(t, forecastAccuracy(50, 0), "zero actual yields no score")
}

func TestAccuracyReportEmpty(t *testing.T) {
	f := newForecastFixture(nil, ForecastConfig{})

	report, err := f.svc.AccuracyReport(context.Background(), testOrg, repository.ForecastFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.ByMetric)
}

func TestAccuracyReportBuckets(t *testing.T) {
	f := newForecastFixture(nil, ForecastConfig{})

	actual := func(v float64) *float64 { return &v }
	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	forecasts := []*models.Forecast{
		{OrgID: testOrg.OrgID, MetricName: "spend", ForecastDate: jan, ForecastHorizon: 1, PredictedValue: 110, Actuals: actual(100)},
		{OrgID: testOrg.OrgID, MetricName: "spend", ForecastDate: feb, ForecastHorizon: 7, PredictedValue: 90, Actuals: actual(100)},
		{OrgID: testOrg.OrgID, MetricName: "clicks", ForecastDate: feb, ForecastHorizon: 1, PredictedValue: 50, Actuals: actual(50)},
	}
	require.NoError(t, f.repo.CreateForecasts(context.Background(), forecasts))

	report, err := f.svc.AccuracyReport(context.Background(), testOrg, repository.ForecastFilter{})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.InDelta(t, (10.0+10.0+0.0)/3, report.Overall.MAE, 1e-9)

	spend := report.ByMetric["spend"]
	assert.Equal(t, 2, spend.Count)
	assert.InDelta(t, 10, spend.MAE, 1e-9)
	assert.InDelta(t, 10, spend.MAPE, 1e-9)

	assert.Equal(t, 2, report.ByHorizon[1].Count)
	assert.Equal(t, 1, report.ByHorizon[7].Count)
	assert.Equal(t, 1, report.ByMonth["2026-01"].Count)
	assert.Equal(t, 2, report.ByMonth["2026-02"].Count)
}
