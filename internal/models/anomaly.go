package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnomalySeverity buckets the magnitude of a deviation, derived from |z-score|.
type AnomalySeverity string

const (
	SeverityLow      AnomalySeverity = "low"
	SeverityMedium   AnomalySeverity = "medium"
	SeverityHigh     AnomalySeverity = "high"
	SeverityCritical AnomalySeverity = "critical"
)

// AnomalyStatus tracks the review lifecycle of a detected anomaly.
type AnomalyStatus string

const (
	AnomalyDetected      AnomalyStatus = "detected"
	AnomalyAcknowledged  AnomalyStatus = "acknowledged"
	AnomalyResolved      AnomalyStatus = "resolved"
	AnomalyFalsePositive AnomalyStatus = "false_positive"
)

// AnomalyMetadata records the baseline the deviation was measured against.
type AnomalyMetadata struct {
	BaselineMean   float64 `json:"baseline_mean"`
	BaselineStdDev float64 `json:"baseline_stddev"`
	ZScore         float64 `json:"z_score"`
}

func (m AnomalyMetadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *AnomalyMetadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into AnomalyMetadata", src)
	}
}

// Anomaly is one detected deviation of a metric from its baseline.
// Created by detection; mutated only through status transitions.
type Anomaly struct {
	ID                  string          `json:"id" db:"id"`
	OrgID               string          `json:"org_id" db:"org_id"`
	EntityType          EntityType      `json:"entity_type" db:"entity_type"`
	EntityID            string          `json:"entity_id" db:"entity_id"`
	MetricName          string          `json:"metric_name" db:"metric_name"`
	DetectedAt          time.Time       `json:"detected_at" db:"detected_at"`
	ExpectedValue       float64         `json:"expected_value" db:"expected_value"`
	ActualValue         float64         `json:"actual_value" db:"actual_value"`
	DeviationPercentage float64         `json:"deviation_percentage" db:"deviation_percentage"`
	Severity            AnomalySeverity `json:"severity" db:"severity"`
	ConfidenceScore     float64         `json:"confidence_score" db:"confidence_score"`
	Status              AnomalyStatus   `json:"status" db:"status"`
	DetectionMethod     string          `json:"detection_method" db:"detection_method"`
	Metadata            AnomalyMetadata `json:"metadata" db:"metadata"`
	ResolvedAt          *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Entity returns the subject reference the anomaly was computed for.
func (a *Anomaly) Entity() EntityRef {
	return EntityRef{Type: a.EntityType, ID: a.EntityID}
}

// Unresolved reports whether the anomaly still needs attention.
func (a *Anomaly) Unresolved() bool {
	return a.Status == AnomalyDetected || a.Status == AnomalyAcknowledged
}

// AnomalySummary is the dashboard aggregate over a window of anomalies.
type AnomalySummary struct {
	Total              int                     `json:"total"`
	BySeverity         map[AnomalySeverity]int `json:"by_severity"`
	ByStatus           map[AnomalyStatus]int   `json:"by_status"`
	ByMetric           map[string]int          `json:"by_metric"`
	Unresolved         int                     `json:"unresolved"`
	CriticalUnresolved int                     `json:"critical_unresolved"`
	AvgResolutionHours float64                 `json:"avg_resolution_hours"`
	FalsePositiveRate  float64                 `json:"false_positive_rate"`
	WindowStart        time.Time               `json:"window_start"`
	WindowEnd          time.Time               `json:"window_end"`
}
