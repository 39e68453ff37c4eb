package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RecommendationType is the actionable category of a suggestion.
type RecommendationType string

const (
	RecBudgetOptimization  RecommendationType = "budget_optimization"
	RecBidAdjustment       RecommendationType = "bid_adjustment"
	RecTargetingRefinement RecommendationType = "targeting_refinement"
	RecCreativeRefresh     RecommendationType = "creative_refresh"
	RecOther               RecommendationType = "other"
)

// RecommendationPriority is derived deterministically from the source
// record's severity or significance, never set arbitrarily.
type RecommendationPriority string

const (
	PriorityLow    RecommendationPriority = "low"
	PriorityMedium RecommendationPriority = "medium"
	PriorityHigh   RecommendationPriority = "high"
	PriorityUrgent RecommendationPriority = "urgent"
)

// Weight returns the numeric rank weight of a priority.
func (p RecommendationPriority) Weight() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	default:
		return 1
	}
}

// RecommendationStatus tracks whether a suggestion was acted on.
type RecommendationStatus string

const (
	RecPending   RecommendationStatus = "pending"
	RecApplied   RecommendationStatus = "applied"
	RecDismissed RecommendationStatus = "dismissed"
)

// RecommendationSource names where a suggestion came from.
type RecommendationSource string

const (
	SourceAnomaly     RecommendationSource = "anomaly"
	SourceTrend       RecommendationSource = "trend_analysis"
	SourcePerformance RecommendationSource = "performance"
)

// RecommendationMeta back-references the record a suggestion was derived
// from. The recommendation does not own that record's lifecycle.
type RecommendationMeta struct {
	Source   RecommendationSource `json:"source"`
	SourceID string               `json:"source_id"`
	Metric   string               `json:"metric,omitempty"`
}

func (m RecommendationMeta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *RecommendationMeta) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into RecommendationMeta", src)
	}
}

// Recommendation is one actionable suggestion synthesized from anomalies
// or trends.
type Recommendation struct {
	ID              string                 `json:"id" db:"id"`
	OrgID           string                 `json:"org_id" db:"org_id"`
	EntityType      EntityType             `json:"entity_type" db:"entity_type"`
	EntityID        string                 `json:"entity_id" db:"entity_id"`
	Type            RecommendationType     `json:"type" db:"type"`
	Priority        RecommendationPriority `json:"priority" db:"priority"`
	Title           string                 `json:"title" db:"title"`
	Description     string                 `json:"description" db:"description"`
	Rationale       string                 `json:"rationale" db:"rationale"`
	ConfidenceScore float64                `json:"confidence_score" db:"confidence_score"`
	ImpactEstimate  float64                `json:"impact_estimate" db:"impact_estimate"`
	Status          RecommendationStatus   `json:"status" db:"status"`
	IsHelpful       *bool                  `json:"is_helpful,omitempty" db:"is_helpful"`
	AppliedAt       *time.Time             `json:"applied_at,omitempty" db:"applied_at"`
	AppliedBy       *string                `json:"applied_by,omitempty" db:"applied_by"`
	Metadata        RecommendationMeta     `json:"metadata" db:"metadata"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at" db:"updated_at"`
}

// Entity returns the subject reference the recommendation targets.
func (r *Recommendation) Entity() EntityRef {
	return EntityRef{Type: r.EntityType, ID: r.EntityID}
}

// RankScore is the deterministic ordering key: priority dominates,
// confidence breaks ties within a priority.
func (r *Recommendation) RankScore() float64 {
	return float64(r.Priority.Weight())*100 + r.ConfidenceScore*100
}
