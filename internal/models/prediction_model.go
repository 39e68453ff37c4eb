package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ModelStatus is the lifecycle state of a prediction model.
type ModelStatus string

const (
	ModelDraft   ModelStatus = "draft"
	ModelActive  ModelStatus = "active"
	ModelRetired ModelStatus = "retired"
)

// TrainingMetadata records how the last training run was performed.
type TrainingMetadata struct {
	TrainSamples      int       `json:"train_samples"`
	ValidationSamples int       `json:"validation_samples"`
	ValidationSplit   float64   `json:"validation_split"`
	Incremental       bool      `json:"incremental"`
	TrainedAt         time.Time `json:"trained_at"`
}

func (m TrainingMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *TrainingMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into TrainingMetadata", src)
	}
}

// PredictionModel is a trained artifact for one (org, target_metric,
// algorithm) combination. Created in draft; training fills the accuracy
// metrics and promotes to active; version bumps on structural change.
type PredictionModel struct {
	ID                string           `json:"id" db:"id"`
	OrgID             string           `json:"org_id" db:"org_id"`
	Name              string           `json:"name" db:"name"`
	Algorithm         string           `json:"algorithm" db:"algorithm"`
	TargetMetric      string           `json:"target_metric" db:"target_metric"`
	Hyperparameters   Params           `json:"hyperparameters" db:"hyperparameters"`
	ModelParameters   Params           `json:"model_parameters" db:"model_parameters"`
	Features          StringList       `json:"features" db:"features"`
	Status            ModelStatus      `json:"status" db:"status"`
	Version           int              `json:"version" db:"version"`
	MAE               float64          `json:"mae" db:"mae"`
	RMSE              float64          `json:"rmse" db:"rmse"`
	MAPE              float64          `json:"mape" db:"mape"`
	RSquared          float64          `json:"r_squared" db:"r_squared"`
	TrainingDataCount int              `json:"training_data_count" db:"training_data_count"`
	LastTrainedAt     *time.Time       `json:"last_trained_at,omitempty" db:"last_trained_at"`
	TrainingMetadata  TrainingMetadata `json:"training_metadata" db:"training_metadata"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// Trained reports whether the model has been through at least one
// successful training run.
func (m *PredictionModel) Trained() bool {
	return m.LastTrainedAt != nil
}

// ModelExport is the structured, re-importable representation of a model.
// Re-import reconstructs a draft, version-1 model with identical
// hyperparameters and parameters.
type ModelExport struct {
	Name            string     `json:"name"`
	Algorithm       string     `json:"algorithm"`
	TargetMetric    string     `json:"target_metric"`
	Hyperparameters Params     `json:"hyperparameters"`
	ModelParameters Params     `json:"model_parameters"`
	Features        StringList `json:"features"`
	Version         int        `json:"version"`
}

// ModelAccuracyEntry is one model's standing in an accuracy comparison.
type ModelAccuracyEntry struct {
	ModelID   string  `json:"model_id"`
	Name      string  `json:"name"`
	Algorithm string  `json:"algorithm"`
	Metric    string  `json:"target_metric"`
	MAPE      float64 `json:"mape"`
	MAE       float64 `json:"mae"`
	RMSE      float64 `json:"rmse"`
	RSquared  float64 `json:"r_squared"`
}

// ModelComparison ranks trained models by MAPE ascending.
type ModelComparison struct {
	Models      []ModelAccuracyEntry `json:"models"`
	Best        *ModelAccuracyEntry  `json:"best,omitempty"`
	AverageMAPE float64              `json:"average_mape"`
}

// BulkRetrainResult is one model's outcome inside a bulk retrain batch.
type BulkRetrainResult struct {
	ModelID string `json:"model_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkRetrainReport aggregates a bulk retrain batch. One model's failure
// never aborts the batch.
type BulkRetrainReport struct {
	Total      int                 `json:"total"`
	Successful int                 `json:"successful"`
	Failed     int                 `json:"failed"`
	Results    []BulkRetrainResult `json:"results"`
}
