package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/adlytics/adlytics-intelligence/internal/models"
	"github.com/adlytics/adlytics-intelligence/internal/repository"
	"github.com/adlytics/adlytics-intelligence/internal/service"
	"github.com/adlytics/adlytics-intelligence/internal/timeseries"
)

// memAnomalyRepo is a minimal in-memory AnomalyRepository for handler tests.
type memAnomalyRepo struct {
	anomalies []*models.Anomaly
}

func (m *memAnomalyRepo) CreateAnomaly(ctx context.Context, a *models.Anomaly) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	m.anomalies = append(m.anomalies, a)
	return nil
}

func (m *memAnomalyRepo) GetAnomaly(ctx context.Context, orgID, id string) (*models.Anomaly, error) {
	for _, a := range m.anomalies {
		if a.OrgID == orgID && a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("anomaly %s: %w", id, repository.ErrNotFound)
}

func (m *memAnomalyRepo) ListAnomalies(ctx context.Context, orgID string, entity models.EntityRef, filter repository.AnomalyFilter) ([]*models.Anomaly, error) {
	var out []*models.Anomaly
	for _, a := range m.anomalies {
		if a.OrgID == orgID && a.EntityType == entity.Type && a.EntityID == entity.ID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAnomalyRepo) AnomalyExists(ctx context.Context, orgID string, entity models.EntityRef, metric string, detectedAt time.Time) (bool, error) {
	return false, nil
}

func (m *memAnomalyRepo) UpdateAnomalyStatus(ctx context.Context, orgID, id string, status models.AnomalyStatus, resolvedAt *time.Time) error {
	a, err := m.GetAnomaly(ctx, orgID, id)
	if err != nil {
		return err
	}
	a.Status = status
	a.ResolvedAt = resolvedAt
	return nil
}

func (m *memAnomalyRepo) ListUnresolvedAnomalies(ctx context.Context, orgID string, entity models.EntityRef, since time.Time) ([]*models.Anomaly, error) {
	return nil, nil
}

func (m *memAnomalyRepo) AnomalySummary(ctx context.Context, orgID string, entity *models.EntityRef, since time.Time) (*models.AnomalySummary, error) {
	return &models.AnomalySummary{
		BySeverity: make(map[models.AnomalySeverity]int),
		ByStatus:   make(map[models.AnomalyStatus]int),
		ByMetric:   make(map[string]int),
		Total:      len(m.anomalies),
	}, nil
}

func setupTestRouter(t *testing.T) (*mux.Router, *timeseries.MemorySource, *memAnomalyRepo) {
	t.Helper()
	source := timeseries.NewMemorySource()
	repo := &memAnomalyRepo{}
	anomalySvc := service.NewAnomalyService(source, repo, zap.NewNop(), service.AnomalyConfig{})

	router := mux.NewRouter()
	SetupRoutes(router, NewHandler(anomalySvc, nil, nil, nil, nil, nil))
	return router, source, repo
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q, want healthy", body["status"])
	}
}

func TestMissingOrgHeader(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/anomalies/detect"},
		{http.MethodGet, "/anomalies"},
		{http.MethodGet, "/anomalies/summary"},
		{http.MethodPost, "/anomalies/abc/acknowledge"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, bytes.NewBufferString("{}"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d, want 400 without X-Org-ID", p.method, p.path, w.Code)
		}
	}
}

func TestDetectAnomaliesValidation(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"missing metrics", `{"entity_type":"campaign","entity_id":"c1"}`},
		{"bad date", `{"entity_type":"campaign","entity_id":"c1","metrics":["spend"],"from":"June 1"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/anomalies/detect", bytes.NewBufferString(c.body))
			req.Header.Set("X-Org-ID", "org-1")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestDetectAnomaliesFlow(t *testing.T) {
	router, source, repo := setupTestRouter(t)

	entity := models.EntityRef{Type: models.EntityCampaign, ID: "c1"}
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100
	}
	values[2] = 101
	values[5] = 99
	values[15] = 1000
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		points[i] = timeseries.Point{Date: start.AddDate(0, 0, i), Value: v}
	}
	source.Put("org-1", entity, "spend", points)

	body := `{"entity_type":"campaign","entity_id":"c1","metrics":["spend"]}`
	req := httptest.NewRequest(http.MethodPost, "/anomalies/detect", bytes.NewBufferString(body))
	req.Header.Set("X-Org-ID", "org-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Count     int               `json:"count"`
		Anomalies []*models.Anomaly `json:"anomalies"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if len(repo.anomalies) != 1 {
		t.Errorf("persisted = %d, want 1", len(repo.anomalies))
	}

	// The recorded anomaly can now be acknowledged through the API.
	id := resp.Anomalies[0].ID
	ackReq := httptest.NewRequest(http.MethodPost, "/anomalies/"+id+"/acknowledge", nil)
	ackReq.Header.Set("X-Org-ID", "org-1")
	ackW := httptest.NewRecorder()
	router.ServeHTTP(ackW, ackReq)
	if ackW.Code != http.StatusOK {
		t.Fatalf("acknowledge status = %d", ackW.Code)
	}
	if repo.anomalies[0].Status != models.AnomalyAcknowledged {
		t.Errorf("status = %s, want acknowledged", repo.anomalies[0].Status)
	}

	// Wrong org cannot touch it.
	otherReq := httptest.NewRequest(http.MethodPost, "/anomalies/"+id+"/resolve", nil)
	otherReq.Header.Set("X-Org-ID", "org-2")
	otherW := httptest.NewRecorder()
	router.ServeHTTP(otherW, otherReq)
	if otherW.Code != http.StatusNotFound {
		t.Errorf("cross-org resolve status = %d, want 404", otherW.Code)
	}
}
