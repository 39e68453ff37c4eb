package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/adlytics/adlytics-intelligence/internal/models"
)

// ErrNotFound is returned when a row does not exist for the org.
var ErrNotFound = errors.New("not found")

// PostgresRepository implements all repositories using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository connects to PostgreSQL and configures the pool.
func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// RunMigrations executes schema migration SQL.
func (r *PostgresRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// Repositories returns the aggregate view over this store.
func (r *PostgresRepository) Repositories() *Repository {
	return &Repository{
		Anomaly:        r,
		Trend:          r,
		Model:          r,
		Forecast:       r,
		Recommendation: r,
	}
}

// AnomalyRepository implementation

func (r *PostgresRepository) CreateAnomaly(ctx context.Context, a *models.Anomaly) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
		INSERT INTO anomalies (id, org_id, entity_type, entity_id, metric_name, detected_at,
			expected_value, actual_value, deviation_percentage, severity, confidence_score,
			status, detection_method, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	return instrumentQuery("anomaly_create", func() error {
		_, err := r.db.ExecContext(ctx, query,
			a.ID, a.OrgID, a.EntityType, a.EntityID, a.MetricName, a.DetectedAt,
			a.ExpectedValue, a.ActualValue, a.DeviationPercentage, a.Severity,
			a.ConfidenceScore, a.Status, a.DetectionMethod, a.Metadata,
			a.CreatedAt, a.UpdatedAt,
		)
		return err
	})
}

func (r *PostgresRepository) GetAnomaly(ctx context.Context, orgID, id string) (*models.Anomaly, error) {
	var a models.Anomaly
	query := `SELECT * FROM anomalies WHERE org_id = $1 AND id = $2`

	err := instrumentQuery("anomaly_get", func() error {
		return r.db.GetContext(ctx, &a, query, orgID, id)
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("anomaly %s: %w", id, ErrNotFound)
	}
	return &a, err
}

func (r *PostgresRepository) ListAnomalies(ctx context.Context, orgID string, entity models.EntityRef, filter AnomalyFilter) ([]*models.Anomaly, error) {
	query := `SELECT * FROM anomalies WHERE org_id = $1 AND entity_type = $2 AND entity_id = $3`
	args := []interface{}{orgID, entity.Type, entity.ID}
	n := 4

	if filter.Metric != "" {
		query += fmt.Sprintf(" AND metric_name = $%d", n)
		args = append(args, filter.Metric)
		n++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, filter.Status)
		n++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND detected_at >= $%d", n)
		args = append(args, filter.Since)
		n++
	}
	if !filter.Until.IsZero() {
		query += fmt.Sprintf(" AND detected_at <= $%d", n)
		args = append(args, filter.Until)
		n++
	}

	query += " ORDER BY detected_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
	}

	var anomalies []*models.Anomaly
	err := instrumentQuery("anomaly_list", func() error {
		return r.db.SelectContext(ctx, &anomalies, query, args...)
	})
	return anomalies, err
}

func (r *PostgresRepository) AnomalyExists(ctx context.Context, orgID string, entity models.EntityRef, metric string, detectedAt time.Time) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM anomalies
		WHERE org_id = $1 AND entity_type = $2 AND entity_id = $3
		  AND metric_name = $4 AND detected_at = $5
	`
	err := instrumentQuery("anomaly_exists", func() error {
		return r.db.GetContext(ctx, &count, query, orgID, entity.Type, entity.ID, metric, detectedAt)
	})
	return count > 0, err
}

func (r *PostgresRepository) UpdateAnomalyStatus(ctx context.Context, orgID, id string, status models.AnomalyStatus, resolvedAt *time.Time) error {
	query := `
		UPDATE anomalies SET status = $1, resolved_at = $2, updated_at = $3
		WHERE org_id = $4 AND id = $5
	`
	return instrumentQuery("anomaly_update_status", func() error {
		res, err := r.db.ExecContext(ctx, query, status, resolvedAt, time.Now().UTC(), orgID, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("anomaly %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (r *PostgresRepository) ListUnresolvedAnomalies(ctx context.Context, orgID string, entity models.EntityRef, since time.Time) ([]*models.Anomaly, error) {
	var anomalies []*models.Anomaly
	query := `
		SELECT * FROM anomalies
		WHERE org_id = $1 AND entity_type = $2 AND entity_id = $3
		  AND status IN ('detected', 'acknowledged') AND detected_at >= $4
		ORDER BY detected_at DESC
	`
	err := instrumentQuery("anomaly_list_unresolved", func() error {
		return r.db.SelectContext(ctx, &anomalies, query, orgID, entity.Type, entity.ID, since)
	})
	return anomalies, err
}

func (r *PostgresRepository) AnomalySummary(ctx context.Context, orgID string, entity *models.EntityRef, since time.Time) (*models.AnomalySummary, error) {
	query := `SELECT * FROM anomalies WHERE org_id = $1 AND detected_at >= $2`
	args := []interface{}{orgID, since}
	if entity != nil {
		query += " AND entity_type = $3 AND entity_id = $4"
		args = append(args, entity.Type, entity.ID)
	}

	var anomalies []*models.Anomaly
	err := instrumentQuery("anomaly_summary", func() error {
		return r.db.SelectContext(ctx, &anomalies, query, args...)
	})
	if err != nil {
		return nil, err
	}

	summary := &models.AnomalySummary{
		BySeverity:  make(map[models.AnomalySeverity]int),
		ByStatus:    make(map[models.AnomalyStatus]int),
		ByMetric:    make(map[string]int),
		WindowStart: since,
		WindowEnd:   time.Now().UTC(),
	}

	var resolutionHours float64
	var resolvedCount, falsePositives int
	for _, a := range anomalies {
		summary.Total++
		summary.BySeverity[a.Severity]++
		summary.ByStatus[a.Status]++
		summary.ByMetric[a.MetricName]++
		if a.Unresolved() {
			summary.Unresolved++
			if a.Severity == models.SeverityCritical {
				summary.CriticalUnresolved++
			}
		}
		if a.Status == models.AnomalyResolved && a.ResolvedAt != nil {
			resolutionHours += a.ResolvedAt.Sub(a.DetectedAt).Hours()
			resolvedCount++
		}
		if a.Status == models.AnomalyFalsePositive {
			falsePositives++
		}
	}
	if resolvedCount > 0 {
		summary.AvgResolutionHours = resolutionHours / float64(resolvedCount)
	}
	if summary.Total > 0 {
		summary.FalsePositiveRate = float64(falsePositives) / float64(summary.Total)
	}

	return summary, nil
}

// TrendRepository implementation

func (r *PostgresRepository) CreateTrend(ctx context.Context, t *models.TrendAnalysis) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO trend_analyses (id, org_id, entity_type, entity_id, metric_name,
			start_date, end_date, data_points, trend_direction, growth_rate, pattern_type,
			volatility, r_squared, significance_proxy, seasonal_pattern, forecast_next_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	return instrumentQuery("trend_create", func() error {
		_, err := r.db.ExecContext(ctx, query,
			t.ID, t.OrgID, t.EntityType, t.EntityID, t.MetricName,
			t.StartDate, t.EndDate, t.DataPoints, t.TrendDirection, t.GrowthRate,
			t.PatternType, t.Volatility, t.RSquared, t.SignificanceProxy,
			t.SeasonalPattern, t.ForecastNextValue, t.CreatedAt,
		)
		return err
	})
}

func (r *PostgresRepository) GetTrend(ctx context.Context, orgID, id string) (*models.TrendAnalysis, error) {
	var t models.TrendAnalysis
	query := `SELECT * FROM trend_analyses WHERE org_id = $1 AND id = $2`

	err := instrumentQuery("trend_get", func() error {
		return r.db.GetContext(ctx, &t, query, orgID, id)
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trend analysis %s: %w", id, ErrNotFound)
	}
	return &t, err
}

func (r *PostgresRepository) ListRecentTrends(ctx context.Context, orgID string, entity models.EntityRef, since time.Time) ([]*models.TrendAnalysis, error) {
	var trends []*models.TrendAnalysis
	query := `
		SELECT * FROM trend_analyses
		WHERE org_id = $1 AND entity_type = $2 AND entity_id = $3 AND created_at >= $4
		ORDER BY created_at DESC
	`
	err := instrumentQuery("trend_list_recent", func() error {
		return r.db.SelectContext(ctx, &trends, query, orgID, entity.Type, entity.ID, since)
	})
	return trends, err
}

// ModelRepository implementation

func (r *PostgresRepository) CreateModel(ctx context.Context, m *models.PredictionModel) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Status == "" {
		m.Status = models.ModelDraft
	}
	if m.Version == 0 {
		m.Version = 1
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO prediction_models (id, org_id, name, algorithm, target_metric,
			hyperparameters, model_parameters, features, status, version,
			mae, rmse, mape, r_squared, training_data_count, last_trained_at,
			training_metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	return instrumentQuery("model_create", func() error {
		_, err := r.db.ExecContext(ctx, query,
			m.ID, m.OrgID, m.Name, m.Algorithm, m.TargetMetric,
			m.Hyperparameters, m.ModelParameters, m.Features, m.Status, m.Version,
			m.MAE, m.RMSE, m.MAPE, m.RSquared, m.TrainingDataCount, m.LastTrainedAt,
			m.TrainingMetadata, m.CreatedAt, m.UpdatedAt,
		)
		return err
	})
}

func (r *PostgresRepository) GetModel(ctx context.Context, orgID, id string) (*models.PredictionModel, error) {
	var m models.PredictionModel
	query := `SELECT * FROM prediction_models WHERE org_id = $1 AND id = $2`

	err := instrumentQuery("model_get", func() error {
		return r.db.GetContext(ctx, &m, query, orgID, id)
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("model %s: %w", id, ErrNotFound)
	}
	return &m, err
}

func (r *PostgresRepository) ListModels(ctx context.Context, orgID string, filter ModelFilter) ([]*models.PredictionModel, error) {
	query := `SELECT * FROM prediction_models WHERE org_id = $1`
	args := []interface{}{orgID}
	n := 2

	if filter.TargetMetric != "" {
		query += fmt.Sprintf(" AND target_metric = $%d", n)
		args = append(args, filter.TargetMetric)
		n++
	}
	if filter.Algorithm != "" {
		query += fmt.Sprintf(" AND algorithm = $%d", n)
		args = append(args, filter.Algorithm)
		n++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, filter.Status)
		n++
	}
	if filter.TrainedOnly {
		query += " AND last_trained_at IS NOT NULL"
	}
	query += " ORDER BY created_at DESC"

	var out []*models.PredictionModel
	err := instrumentQuery("model_list", func() error {
		return r.db.SelectContext(ctx, &out, query, args...)
	})
	return out, err
}

// SaveTrainingResult writes parameters, metrics and metadata in one
// transaction so a crash mid-training leaves the prior row untouched.
func (r *PostgresRepository) SaveTrainingResult(ctx context.Context, m *models.PredictionModel) error {
	return instrumentQuery("model_save_training", func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin training tx: %w", err)
		}
		defer tx.Rollback()

		query := `
			UPDATE prediction_models
			SET hyperparameters = $1, model_parameters = $2, status = $3, version = $4,
			    mae = $5, rmse = $6, mape = $7, r_squared = $8,
			    training_data_count = $9, last_trained_at = $10, training_metadata = $11,
			    updated_at = $12
			WHERE org_id = $13 AND id = $14
		`
		res, err := tx.ExecContext(ctx, query,
			m.Hyperparameters, m.ModelParameters, m.Status, m.Version,
			m.MAE, m.RMSE, m.MAPE, m.RSquared,
			m.TrainingDataCount, m.LastTrainedAt, m.TrainingMetadata,
			time.Now().UTC(), m.OrgID, m.ID,
		)
		if err != nil {
			return fmt.Errorf("persist training result: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("model %s: %w", m.ID, ErrNotFound)
		}
		return tx.Commit()
	})
}

func (r *PostgresRepository) UpdateModelStatus(ctx context.Context, orgID, id string, status models.ModelStatus) error {
	query := `UPDATE prediction_models SET status = $1, updated_at = $2 WHERE org_id = $3 AND id = $4`
	return instrumentQuery("model_update_status", func() error {
		_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), orgID, id)
		return err
	})
}

// ForecastRepository implementation

func (r *PostgresRepository) CreateForecasts(ctx context.Context, forecasts []*models.Forecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	return instrumentQuery("forecast_create_batch", func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin forecast tx: %w", err)
		}
		defer tx.Rollback()

		query := `
			INSERT INTO forecasts (id, org_id, model_id, entity_type, entity_id, metric_name,
				forecast_date, predicted_value, confidence_lower, confidence_upper,
				confidence_level, forecast_horizon, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		now := time.Now().UTC()
		for _, f := range forecasts {
			if f.ID == "" {
				f.ID = uuid.New().String()
			}
			f.CreatedAt = now
			f.UpdatedAt = now
			if _, err := tx.ExecContext(ctx, query,
				f.ID, f.OrgID, f.ModelID, f.EntityType, f.EntityID, f.MetricName,
				f.ForecastDate, f.PredictedValue, f.ConfidenceLower, f.ConfidenceUpper,
				f.ConfidenceLevel, f.ForecastHorizon, f.CreatedAt, f.UpdatedAt,
			); err != nil {
				return fmt.Errorf("insert forecast: %w", err)
			}
		}
		return tx.Commit()
	})
}

func (r *PostgresRepository) ListPendingActuals(ctx context.Context, orgID string, through time.Time) ([]*models.Forecast, error) {
	var forecasts []*models.Forecast
	query := `
		SELECT * FROM forecasts
		WHERE org_id = $1 AND actuals IS NULL AND forecast_date <= $2
		ORDER BY forecast_date ASC
	`
	err := instrumentQuery("forecast_list_pending", func() error {
		return r.db.SelectContext(ctx, &forecasts, query, orgID, through)
	})
	return forecasts, err
}

func (r *PostgresRepository) SetForecastActuals(ctx context.Context, orgID, id string, actual float64, accuracy *float64) error {
	query := `
		UPDATE forecasts SET actuals = $1, accuracy = $2, updated_at = $3
		WHERE org_id = $4 AND id = $5
	`
	return instrumentQuery("forecast_set_actuals", func() error {
		_, err := r.db.ExecContext(ctx, query, actual, accuracy, time.Now().UTC(), orgID, id)
		return err
	})
}

func (r *PostgresRepository) ListForecastsWithActuals(ctx context.Context, orgID string, filter ForecastFilter) ([]*models.Forecast, error) {
	query := `SELECT * FROM forecasts WHERE org_id = $1 AND actuals IS NOT NULL`
	args := []interface{}{orgID}
	n := 2

	if filter.EntityID != "" {
		query += fmt.Sprintf(" AND entity_id = $%d", n)
		args = append(args, filter.EntityID)
		n++
	}
	if filter.Metric != "" {
		query += fmt.Sprintf(" AND metric_name = $%d", n)
		args = append(args, filter.Metric)
		n++
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND forecast_date >= $%d", n)
		args = append(args, filter.From)
		n++
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND forecast_date <= $%d", n)
		args = append(args, filter.To)
		n++
	}
	query += " ORDER BY forecast_date ASC"

	var forecasts []*models.Forecast
	err := instrumentQuery("forecast_list_actuals", func() error {
		return r.db.SelectContext(ctx, &forecasts, query, args...)
	})
	return forecasts, err
}

// RecommendationRepository implementation

func (r *PostgresRepository) CreateRecommendations(ctx context.Context, recs []*models.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	return instrumentQuery("recommendation_create_batch", func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin recommendation tx: %w", err)
		}
		defer tx.Rollback()

		query := `
			INSERT INTO recommendations (id, org_id, entity_type, entity_id, type, priority,
				title, description, rationale, confidence_score, impact_estimate, status,
				metadata, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`
		now := time.Now().UTC()
		for _, rec := range recs {
			if rec.ID == "" {
				rec.ID = uuid.New().String()
			}
			rec.CreatedAt = now
			rec.UpdatedAt = now
			if _, err := tx.ExecContext(ctx, query,
				rec.ID, rec.OrgID, rec.EntityType, rec.EntityID, rec.Type, rec.Priority,
				rec.Title, rec.Description, rec.Rationale, rec.ConfidenceScore,
				rec.ImpactEstimate, rec.Status, rec.Metadata, rec.CreatedAt, rec.UpdatedAt,
			); err != nil {
				return fmt.Errorf("insert recommendation: %w", err)
			}
		}
		return tx.Commit()
	})
}

func (r *PostgresRepository) GetRecommendation(ctx context.Context, orgID, id string) (*models.Recommendation, error) {
	var rec models.Recommendation
	query := `SELECT * FROM recommendations WHERE org_id = $1 AND id = $2`

	err := instrumentQuery("recommendation_get", func() error {
		return r.db.GetContext(ctx, &rec, query, orgID, id)
	})
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recommendation %s: %w", id, ErrNotFound)
	}
	return &rec, err
}

// ApplyRecommendation performs the pending→applied transition and the
// execution step in one transaction; execution failure rolls back and the
// recommendation stays pending.
func (r *PostgresRepository) ApplyRecommendation(ctx context.Context, orgID, id, appliedBy string, execute func(context.Context) error) error {
	return instrumentQuery("recommendation_apply", func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin apply tx: %w", err)
		}
		defer tx.Rollback()

		query := `
			UPDATE recommendations
			SET status = 'applied', applied_at = $1, applied_by = $2, updated_at = $1
			WHERE org_id = $3 AND id = $4 AND status = 'pending'
		`
		res, err := tx.ExecContext(ctx, query, time.Now().UTC(), appliedBy, orgID, id)
		if err != nil {
			return fmt.Errorf("apply recommendation: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("recommendation %s not pending: %w", id, ErrNotFound)
		}

		if err := execute(ctx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (r *PostgresRepository) UpdateRecommendationStatus(ctx context.Context, orgID, id string, status models.RecommendationStatus) error {
	query := `UPDATE recommendations SET status = $1, updated_at = $2 WHERE org_id = $3 AND id = $4`
	return instrumentQuery("recommendation_update_status", func() error {
		_, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), orgID, id)
		return err
	})
}

func (r *PostgresRepository) SetRecommendationFeedback(ctx context.Context, orgID, id string, isHelpful bool) error {
	query := `UPDATE recommendations SET is_helpful = $1, updated_at = $2 WHERE org_id = $3 AND id = $4`
	return instrumentQuery("recommendation_set_feedback", func() error {
		_, err := r.db.ExecContext(ctx, query, isHelpful, time.Now().UTC(), orgID, id)
		return err
	})
}
