// Package persistence defines the storage boundary of the analytics core.
// The numeric packages consume these interfaces; postgres/ and memory/
// provide the implementations. The (conversion, touchpoint, model) upsert
// uniqueness required by concurrent attribution workers is enforced here, at
// the storage boundary, not inside the math.
package persistence

import (
	"context"
	"time"

	"github.com/lumetric/lumetric/internal/domain"
)

// TouchpointRepo stores customer interactions
type TouchpointRepo interface {
	// Insert adds a touchpoint record
	Insert(ctx context.Context, tp domain.Touchpoint) error

	// ListForSubject returns the subject's non-excluded touchpoints with
	// timestamps in [from, to], ordered ascending by timestamp
	ListForSubject(ctx context.Context, subjectID string, from, to time.Time) ([]domain.Touchpoint, error)
}

// ConversionRepo stores value-bearing outcome events
type ConversionRepo interface {
	// Insert adds a conversion in pending status
	Insert(ctx context.Context, conv domain.Conversion) error

	// Get fetches one conversion by id
	Get(ctx context.Context, id string) (domain.Conversion, error)

	// ListPending returns up to limit conversions awaiting attribution,
	// oldest first
	ListPending(ctx context.Context, limit int) ([]domain.Conversion, error)

	// Update persists status, touchpoint count, processed timestamp, and
	// error message changes
	Update(ctx context.Context, conv domain.Conversion) error
}

// AttributionRepo stores per-model weight records
type AttributionRepo interface {
	// Upsert writes a weight record keyed by (conversion, touchpoint, model).
	// An existing record for that triple is overwritten in place and the
	// stored status becomes "recalculated"; created reports whether the
	// record was new.
	Upsert(ctx context.Context, rec domain.AttributionWeight) (created bool, err error)

	// ListByConversion returns all weight records for a conversion, ordered
	// by model type then journey position
	ListByConversion(ctx context.Context, conversionID string) ([]domain.AttributionWeight, error)

	// ListByModel returns weight records for one model type computed in
	// [from, to], for channel roll-ups
	ListByModel(ctx context.Context, model domain.AttributionModelType, from, to time.Time) ([]domain.AttributionWeight, error)
}

// SeriesRepo stores per-channel daily spend series and the target metric
type SeriesRepo interface {
	// InsertChannelDays adds daily rows for channels
	InsertChannelDays(ctx context.Context, rows []domain.ChannelDay) error

	// ListChannelDays returns one channel's rows with dates in [from, to],
	// ordered ascending by date
	ListChannelDays(ctx context.Context, channel string, from, to time.Time) ([]domain.ChannelDay, error)

	// TrailingSpend sums a channel's spend over the days days ending at
	// until, for optimizer warm starts
	TrailingSpend(ctx context.Context, channel string, days int, until time.Time) (float64, error)

	// InsertTargetDays adds observations of a target metric
	InsertTargetDays(ctx context.Context, metric string, rows []domain.TargetDay) error

	// ListTargetDays returns the target series with dates in [from, to],
	// ordered ascending by date
	ListTargetDays(ctx context.Context, metric string, from, to time.Time) ([]domain.TargetDay, error)
}

// ModelRepo stores marketing mix model artifacts
type ModelRepo interface {
	Insert(ctx context.Context, m domain.MarketingMixModel) error
	Get(ctx context.Context, id string) (domain.MarketingMixModel, error)
	Update(ctx context.Context, m domain.MarketingMixModel) error
}

// OptimizationRepo stores budget optimization runs
type OptimizationRepo interface {
	Insert(ctx context.Context, opt domain.BudgetOptimization) error
	ListByModel(ctx context.Context, modelID string) ([]domain.BudgetOptimization, error)
}
