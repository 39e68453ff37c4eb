package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TrendDirection classifies the slope/volatility of a metric window.
type TrendDirection string

const (
	TrendUpward   TrendDirection = "upward"
	TrendDownward TrendDirection = "downward"
	TrendStable   TrendDirection = "stable"
	TrendVolatile TrendDirection = "volatile"
)

// PatternType is the heuristic shape classification of a series.
type PatternType string

const (
	PatternLinear      PatternType = "linear"
	PatternCyclical    PatternType = "cyclical"
	PatternExponential PatternType = "exponential"
)

// SeasonalPattern describes detected seasonality. Nullable on the record:
// nil means no seasonality was detected (or detection is disabled).
type SeasonalPattern struct {
	HasSeasonality bool    `json:"has_seasonality"`
	PeriodDays     int     `json:"period_days,omitempty"`
	Strength       float64 `json:"strength,omitempty"` // autocorrelation at the period lag
}

func (s *SeasonalPattern) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *SeasonalPattern) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into SeasonalPattern", src)
	}
}

// TrendAnalysis is one statistical summary of a metric over a date window.
// Immutable once created; a fresh run creates a new record.
type TrendAnalysis struct {
	ID                string           `json:"id" db:"id"`
	OrgID             string           `json:"org_id" db:"org_id"`
	EntityType        EntityType       `json:"entity_type" db:"entity_type"`
	EntityID          string           `json:"entity_id" db:"entity_id"`
	MetricName        string           `json:"metric_name" db:"metric_name"`
	StartDate         time.Time        `json:"start_date" db:"start_date"`
	EndDate           time.Time        `json:"end_date" db:"end_date"`
	DataPoints        int              `json:"data_points" db:"data_points"`
	TrendDirection    TrendDirection   `json:"trend_direction" db:"trend_direction"`
	GrowthRate        float64          `json:"growth_rate" db:"growth_rate"`
	PatternType       PatternType      `json:"pattern_type" db:"pattern_type"`
	Volatility        float64          `json:"volatility" db:"volatility"` // coefficient of variation, %
	RSquared          float64          `json:"r_squared" db:"r_squared"`
	SignificanceProxy float64          `json:"significance_proxy" db:"significance_proxy"` // 1 - r², not a rigorous p-value
	SeasonalPattern   *SeasonalPattern `json:"seasonal_pattern,omitempty" db:"seasonal_pattern"`
	ForecastNextValue float64          `json:"forecast_next_value" db:"forecast_next_value"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}

// Entity returns the subject reference the analysis was computed for.
func (t *TrendAnalysis) Entity() EntityRef {
	return EntityRef{Type: t.EntityType, ID: t.EntityID}
}

// TrendExport is the structured, portable representation of a trend
// record, without store identifiers.
type TrendExport struct {
	EntityType        EntityType       `json:"entity_type"`
	EntityID          string           `json:"entity_id"`
	MetricName        string           `json:"metric_name"`
	StartDate         time.Time        `json:"start_date"`
	EndDate           time.Time        `json:"end_date"`
	DataPoints        int              `json:"data_points"`
	TrendDirection    TrendDirection   `json:"trend_direction"`
	GrowthRate        float64          `json:"growth_rate"`
	PatternType       PatternType      `json:"pattern_type"`
	Volatility        float64          `json:"volatility"`
	RSquared          float64          `json:"r_squared"`
	SignificanceProxy float64          `json:"significance_proxy"`
	SeasonalPattern   *SeasonalPattern `json:"seasonal_pattern,omitempty"`
	ForecastNextValue float64          `json:"forecast_next_value"`
}

// TrendComparisonEntry is one entity's trend stats in a cross-entity ranking.
type TrendComparisonEntry struct {
	Entity     EntityRef      `json:"entity"`
	Rank       int            `json:"rank"`
	GrowthRate float64        `json:"growth_rate"`
	Direction  TrendDirection `json:"trend_direction"`
	Volatility float64        `json:"volatility"`
	RSquared   float64        `json:"r_squared"`
	DataPoints int            `json:"data_points"`
}

// PatternSubAnalysis is one shape check inside a pattern report.
type PatternSubAnalysis struct {
	Detected bool    `json:"detected"`
	Score    float64 `json:"score"`
	Detail   string  `json:"detail,omitempty"`
}

// PatternReport names the dominant pattern of a series along with the
// individual sub-analyses it was derived from.
type PatternReport struct {
	Entity          EntityRef          `json:"entity"`
	MetricName      string             `json:"metric_name"`
	DataPoints      int                `json:"data_points"`
	Linear          PatternSubAnalysis `json:"linear"`
	Cyclical        PatternSubAnalysis `json:"cyclical"`
	Seasonal        PatternSubAnalysis `json:"seasonal"`
	Outliers        PatternSubAnalysis `json:"outliers"`
	DominantPattern string             `json:"dominant_pattern"` // linear > seasonal > cyclical > none
}
