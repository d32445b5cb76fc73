package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lumetric/lumetric/internal/domain"
)

// touchpointRepo implements TouchpointRepo for PostgreSQL
type touchpointRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Insert adds a touchpoint record
func (r *touchpointRepo) Insert(ctx context.Context, tp domain.Touchpoint) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO touchpoints (id, subject_id, channel, category, ts, cost, engagement_score, excluded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		tp.ID, tp.SubjectID, tp.Channel, tp.Category, tp.Timestamp,
		tp.Cost, tp.EngagementScore, tp.Excluded, tp.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate touchpoint %s: %w", tp.ID, err)
		}
		return fmt.Errorf("failed to insert touchpoint: %w", err)
	}
	return nil
}

// ListForSubject retrieves the subject's non-excluded touchpoints in [from, to]
func (r *touchpointRepo) ListForSubject(ctx context.Context, subjectID string, from, to time.Time) ([]domain.Touchpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, subject_id, channel, category, ts, cost, engagement_score, excluded, created_at
		FROM touchpoints
		WHERE subject_id = $1 AND ts >= $2 AND ts <= $3 AND NOT excluded
		ORDER BY ts ASC`

	var out []domain.Touchpoint
	if err := r.db.SelectContext(ctx, &out, query, subjectID, from, to); err != nil {
		return nil, fmt.Errorf("failed to query touchpoints: %w", err)
	}
	return out, nil
}

// conversionRepo implements ConversionRepo for PostgreSQL
type conversionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Insert adds a conversion in pending status
func (r *conversionRepo) Insert(ctx context.Context, conv domain.Conversion) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if conv.Status == "" {
		conv.Status = domain.ConversionPending
	}

	query := `
		INSERT INTO conversions (id, subject_id, value, currency, ts, lookback_window_days, status,
			attributed_touchpoint_count, error_message, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		conv.ID, conv.SubjectID, conv.Value, conv.Currency, conv.Timestamp,
		conv.LookbackWindowDays, conv.Status, conv.TouchpointCount,
		conv.ErrorMessage, conv.ProcessedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate conversion %s: %w", conv.ID, err)
		}
		return fmt.Errorf("failed to insert conversion: %w", err)
	}
	return nil
}

// Get fetches one conversion by id
func (r *conversionRepo) Get(ctx context.Context, id string) (domain.Conversion, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, subject_id, value, currency, ts, lookback_window_days, status,
			attributed_touchpoint_count, error_message, processed_at
		FROM conversions
		WHERE id = $1`

	var conv domain.Conversion
	if err := r.db.GetContext(ctx, &conv, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conversion{}, fmt.Errorf("conversion %s not found", id)
		}
		return domain.Conversion{}, fmt.Errorf("failed to get conversion: %w", err)
	}
	return conv, nil
}

// ListPending retrieves conversions awaiting attribution, oldest first
func (r *conversionRepo) ListPending(ctx context.Context, limit int) ([]domain.Conversion, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, subject_id, value, currency, ts, lookback_window_days, status,
			attributed_touchpoint_count, error_message, processed_at
		FROM conversions
		WHERE status = $1
		ORDER BY ts ASC
		LIMIT $2`

	var out []domain.Conversion
	if err := r.db.SelectContext(ctx, &out, query, domain.ConversionPending, limit); err != nil {
		return nil, fmt.Errorf("failed to query pending conversions: %w", err)
	}
	return out, nil
}

// Update persists lifecycle changes to a conversion
func (r *conversionRepo) Update(ctx context.Context, conv domain.Conversion) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE conversions
		SET status = $2, attributed_touchpoint_count = $3, error_message = $4, processed_at = $5
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		conv.ID, conv.Status, conv.TouchpointCount, conv.ErrorMessage, conv.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to update conversion: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("conversion %s not found", conv.ID)
	}
	return nil
}
