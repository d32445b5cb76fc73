package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lumetric/lumetric/internal/domain"
)

// attributionRepo implements AttributionRepo for PostgreSQL
type attributionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Upsert writes a weight record keyed by (conversion, touchpoint, model). The
// unique index on that triple makes concurrent recomputation safe: a losing
// writer overwrites in place instead of duplicating, the original row id is
// kept, and the stored status flips to recalculated.
func (r *attributionRepo) Upsert(ctx context.Context, rec domain.AttributionWeight) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO attribution_weights
			(id, conversion_id, touchpoint_id, model_type, weight, attributed_value,
			 position, total_touchpoints, hours_to_conversion, confidence_score,
			 status, channel, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (conversion_id, touchpoint_id, model_type) DO UPDATE SET
			weight = EXCLUDED.weight,
			attributed_value = EXCLUDED.attributed_value,
			position = EXCLUDED.position,
			total_touchpoints = EXCLUDED.total_touchpoints,
			hours_to_conversion = EXCLUDED.hours_to_conversion,
			confidence_score = EXCLUDED.confidence_score,
			status = $14,
			channel = EXCLUDED.channel,
			computed_at = EXCLUDED.computed_at
		RETURNING (xmax = 0)`

	var created bool
	err := r.db.QueryRowxContext(ctx, query,
		rec.ID, rec.ConversionID, rec.TouchpointID, rec.ModelType,
		rec.Weight, rec.AttributedValue, rec.Position, rec.TotalTouchpoints,
		rec.HoursToConversion, rec.ConfidenceScore, rec.Status, rec.Channel,
		rec.ComputedAt, domain.WeightRecalculated).
		Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert weight record: %w", err)
	}
	return created, nil
}

// ListByConversion retrieves a conversion's weight records across all models
func (r *attributionRepo) ListByConversion(ctx context.Context, conversionID string) ([]domain.AttributionWeight, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, conversion_id, touchpoint_id, model_type, weight, attributed_value,
			position, total_touchpoints, hours_to_conversion, confidence_score,
			status, channel, computed_at
		FROM attribution_weights
		WHERE conversion_id = $1
		ORDER BY model_type, position`

	var out []domain.AttributionWeight
	if err := r.db.SelectContext(ctx, &out, query, conversionID); err != nil {
		return nil, fmt.Errorf("failed to query weight records: %w", err)
	}
	return out, nil
}

// ListByModel retrieves one model's weight records computed in [from, to]
func (r *attributionRepo) ListByModel(ctx context.Context, model domain.AttributionModelType, from, to time.Time) ([]domain.AttributionWeight, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, conversion_id, touchpoint_id, model_type, weight, attributed_value,
			position, total_touchpoints, hours_to_conversion, confidence_score,
			status, channel, computed_at
		FROM attribution_weights
		WHERE model_type = $1 AND computed_at >= $2 AND computed_at <= $3
		ORDER BY computed_at ASC`

	var out []domain.AttributionWeight
	if err := r.db.SelectContext(ctx, &out, query, model, from, to); err != nil {
		return nil, fmt.Errorf("failed to query weight records by model: %w", err)
	}
	return out, nil
}
