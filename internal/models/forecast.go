package models

import "time"

// Forecast is one predicted value for one (model, entity, metric, date)
// tuple. Actuals and accuracy are filled in later by the backfill step
// once the real value is known.
type Forecast struct {
	ID              string     `json:"id" db:"id"`
	OrgID           string     `json:"org_id" db:"org_id"`
	ModelID         string     `json:"model_id" db:"model_id"`
	EntityType      EntityType `json:"entity_type" db:"entity_type"`
	EntityID        string     `json:"entity_id" db:"entity_id"`
	MetricName      string     `json:"metric_name" db:"metric_name"`
	ForecastDate    time.Time  `json:"forecast_date" db:"forecast_date"`
	PredictedValue  float64    `json:"predicted_value" db:"predicted_value"`
	ConfidenceLower float64    `json:"confidence_lower" db:"confidence_lower"`
	ConfidenceUpper float64    `json:"confidence_upper" db:"confidence_upper"`
	ConfidenceLevel float64    `json:"confidence_level" db:"confidence_level"`
	ForecastHorizon int        `json:"forecast_horizon" db:"forecast_horizon"` // days ahead, 1..N
	Actuals         *float64   `json:"actuals,omitempty" db:"actuals"`
	Accuracy        *float64   `json:"accuracy,omitempty" db:"accuracy"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Entity returns the subject reference the forecast was generated for.
func (f *Forecast) Entity() EntityRef {
	return EntityRef{Type: f.EntityType, ID: f.EntityID}
}

// AccuracyBucket is aggregate error statistics over one slice of forecasts.
type AccuracyBucket struct {
	Count int     `json:"count"`
	MAE   float64 `json:"mae"`
	RMSE  float64 `json:"rmse"`
	MAPE  float64 `json:"mape"`
}

// AccuracyReport aggregates forecast-vs-actual error over a window.
// All fields are zero-valued when no forecasts have actuals yet.
type AccuracyReport struct {
	Total     int                       `json:"total"`
	Overall   AccuracyBucket            `json:"overall"`
	ByMetric  map[string]AccuracyBucket `json:"by_metric,omitempty"`
	ByHorizon map[int]AccuracyBucket    `json:"by_horizon,omitempty"`
	ByMonth   map[string]AccuracyBucket `json:"by_month,omitempty"` // "2026-01" buckets, the time trend of accuracy
}
