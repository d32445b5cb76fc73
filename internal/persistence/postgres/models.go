package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lumetric/lumetric/internal/domain"
)

// modelRepo implements ModelRepo for PostgreSQL. Scalar lifecycle fields get
// their own columns; the fitted artifact (channel configs, coefficients,
// scaler, adstock tails) travels as one JSONB document
type modelRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// mmmArtifact is the JSONB payload persisted alongside the scalar columns
type mmmArtifact struct {
	Channels            []domain.ChannelConfig          `json:"channels"`
	Seasonality         bool                            `json:"seasonality"`
	Trend               bool                            `json:"trend"`
	Regularization      float64                         `json:"regularization"`
	Intercept           float64                         `json:"intercept"`
	Coefficients        map[string]domain.ChannelResult `json:"coefficients"`
	FeatureCoefficients map[string]float64              `json:"feature_coefficients"`
	FeatureImportance   map[string]float64              `json:"feature_importance"`
	Metrics             domain.FitMetrics               `json:"metrics"`
	Scaler              *domain.Scaler                  `json:"scaler,omitempty"`
	AdstockTails        map[string]float64              `json:"adstock_tails,omitempty"`
	TrainDuration       time.Duration                   `json:"train_duration"`
}

func packArtifact(m domain.MarketingMixModel) ([]byte, error) {
	return json.Marshal(mmmArtifact{
		Channels:            m.Channels,
		Seasonality:         m.Seasonality,
		Trend:               m.Trend,
		Regularization:      m.Regularization,
		Intercept:           m.Intercept,
		Coefficients:        m.Coefficients,
		FeatureCoefficients: m.FeatureCoefficients,
		FeatureImportance:   m.FeatureImportance,
		Metrics:             m.Metrics,
		Scaler:              m.Scaler,
		AdstockTails:        m.AdstockTails,
		TrainDuration:       m.TrainDuration,
	})
}

func unpackArtifact(data []byte, m *domain.MarketingMixModel) error {
	var a mmmArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	m.Channels = a.Channels
	m.Seasonality = a.Seasonality
	m.Trend = a.Trend
	m.Regularization = a.Regularization
	m.Intercept = a.Intercept
	m.Coefficients = a.Coefficients
	m.FeatureCoefficients = a.FeatureCoefficients
	m.FeatureImportance = a.FeatureImportance
	m.Metrics = a.Metrics
	m.Scaler = a.Scaler
	m.AdstockTails = a.AdstockTails
	m.TrainDuration = a.TrainDuration
	return nil
}

// Insert adds a new model artifact
func (r *modelRepo) Insert(ctx context.Context, m domain.MarketingMixModel) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	artifact, err := packArtifact(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model artifact: %w", err)
	}

	query := `
		INSERT INTO mmm_models (id, name, target_variable, train_start, train_end,
			status, error_message, trained_at, artifact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.Name, m.TargetVariable, m.TrainStart, m.TrainEnd,
		m.Status, m.ErrorMessage, m.TrainedAt, artifact)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate model %s: %w", m.ID, err)
		}
		return fmt.Errorf("failed to insert model: %w", err)
	}
	return nil
}

// Get fetches one model artifact by id
func (r *modelRepo) Get(ctx context.Context, id string) (domain.MarketingMixModel, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, name, target_variable, train_start, train_end,
			status, error_message, trained_at, artifact
		FROM mmm_models
		WHERE id = $1`

	var m domain.MarketingMixModel
	var artifact []byte
	err := r.db.QueryRowxContext(ctx, query, id).Scan(
		&m.ID, &m.Name, &m.TargetVariable, &m.TrainStart, &m.TrainEnd,
		&m.Status, &m.ErrorMessage, &m.TrainedAt, &artifact)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MarketingMixModel{}, fmt.Errorf("model %s not found", id)
		}
		return domain.MarketingMixModel{}, fmt.Errorf("failed to get model: %w", err)
	}
	if err := unpackArtifact(artifact, &m); err != nil {
		return domain.MarketingMixModel{}, fmt.Errorf("failed to unmarshal model artifact: %w", err)
	}
	return m, nil
}

// Update persists the whole artifact after lifecycle or training changes
func (r *modelRepo) Update(ctx context.Context, m domain.MarketingMixModel) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	artifact, err := packArtifact(m)
	if err != nil {
		return fmt.Errorf("failed to marshal model artifact: %w", err)
	}

	query := `
		UPDATE mmm_models
		SET name = $2, target_variable = $3, train_start = $4, train_end = $5,
			status = $6, error_message = $7, trained_at = $8, artifact = $9
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		m.ID, m.Name, m.TargetVariable, m.TrainStart, m.TrainEnd,
		m.Status, m.ErrorMessage, m.TrainedAt, artifact)
	if err != nil {
		return fmt.Errorf("failed to update model: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("model %s not found", m.ID)
	}
	return nil
}

// optimizationRepo implements OptimizationRepo for PostgreSQL
type optimizationRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// optPayload is the JSONB body of one optimization run
type optPayload struct {
	CurrentAllocation   map[string]float64      `json:"current_allocation"`
	OptimizedAllocation map[string]float64      `json:"optimized_allocation"`
	Recommendations     []domain.Recommendation `json:"recommendations"`
}

// Insert records one budget optimization run
func (r *optimizationRepo) Insert(ctx context.Context, opt domain.BudgetOptimization) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(optPayload{
		CurrentAllocation:   opt.CurrentAllocation,
		OptimizedAllocation: opt.OptimizedAllocation,
		Recommendations:     opt.Recommendations,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal optimization payload: %w", err)
	}

	query := `
		INSERT INTO budget_optimizations (id, model_id, total_budget,
			current_predicted_total, optimized_predicted_total,
			improvement_pct, improvement_absolute,
			iterations, tolerance, converged, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.ExecContext(ctx, query,
		opt.ID, opt.ModelID, opt.TotalBudget,
		opt.CurrentPredictedTotal, opt.OptimizedPredictedTotal,
		opt.ImprovementPct, opt.ImprovementAbsolute,
		opt.Iterations, opt.Tolerance, opt.Converged, payload, opt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert optimization: %w", err)
	}
	return nil
}

// ListByModel retrieves a model's optimization runs, newest first
func (r *optimizationRepo) ListByModel(ctx context.Context, modelID string) ([]domain.BudgetOptimization, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, model_id, total_budget,
			current_predicted_total, optimized_predicted_total,
			improvement_pct, improvement_absolute,
			iterations, tolerance, converged, payload, created_at
		FROM budget_optimizations
		WHERE model_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryxContext(ctx, query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimizations: %w", err)
	}
	defer rows.Close()

	var out []domain.BudgetOptimization
	for rows.Next() {
		var opt domain.BudgetOptimization
		var payload []byte
		if err := rows.Scan(
			&opt.ID, &opt.ModelID, &opt.TotalBudget,
			&opt.CurrentPredictedTotal, &opt.OptimizedPredictedTotal,
			&opt.ImprovementPct, &opt.ImprovementAbsolute,
			&opt.Iterations, &opt.Tolerance, &opt.Converged, &payload, &opt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan optimization: %w", err)
		}
		var p optPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal optimization payload: %w", err)
		}
		opt.CurrentAllocation = p.CurrentAllocation
		opt.OptimizedAllocation = p.OptimizedAllocation
		opt.Recommendations = p.Recommendations
		out = append(out, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
