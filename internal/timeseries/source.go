// Package timeseries defines the read-only metric history collaborator.
// Historical series live in an external store; the engine only reads them.
package timeseries

import (
	"context"
	"sync"
	"time"

	"github.com/adlytics/adlytics-intelligence/internal/models"
)

// Point is one dated observation of a metric.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Source fetches historical metric series, ordered ascending by date.
// A series may be empty; callers decide whether that skips the metric.
type Source interface {
	// FetchSeries returns the history for one entity's metric.
	FetchSeries(ctx context.Context, org models.OrgContext, entity models.EntityRef, metric string, from, to time.Time) ([]Point, error)

	// FetchOrgSeries returns the org-wide aggregate history for a metric,
	// used for model training where no single entity is the subject.
	FetchOrgSeries(ctx context.Context, org models.OrgContext, metric string, from, to time.Time) ([]Point, error)
}

// Values extracts the value column of a series.
func Values(points []Point) []float64 {
	vals := make([]float64, len(points))
	for i, p := range points {
		vals[i] = p.Value
	}
	return vals
}

// MemorySource is an in-memory Source for tests and local development.
type MemorySource struct {
	mu     sync.RWMutex
	series map[string][]Point // org|entity|metric → points, ascending
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{series: make(map[string][]Point)}
}

func seriesKey(orgID string, entity models.EntityRef, metric string) string {
	return orgID + "|" + entity.String() + "|" + metric
}

// Put replaces the stored series for one entity metric. Points must be
// ascending by date.
func (m *MemorySource) Put(orgID string, entity models.EntityRef, metric string, points []Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[seriesKey(orgID, entity, metric)] = points
}

// PutOrg replaces the org-wide aggregate series for a metric.
func (m *MemorySource) PutOrg(orgID, metric string, points []Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.series[orgID+"||"+metric] = points
}

func (m *MemorySource) FetchSeries(ctx context.Context, org models.OrgContext, entity models.EntityRef, metric string, from, to time.Time) ([]Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRange(m.series[seriesKey(org.OrgID, entity, metric)], from, to), nil
}

func (m *MemorySource) FetchOrgSeries(ctx context.Context, org models.OrgContext, metric string, from, to time.Time) ([]Point, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return filterRange(m.series[org.OrgID+"||"+metric], from, to), nil
}

func filterRange(points []Point, from, to time.Time) []Point {
	var out []Point
	for _, p := range points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}
