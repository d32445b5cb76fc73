package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lumetric/lumetric/internal/domain"
)

// seriesRepo implements SeriesRepo for PostgreSQL
type seriesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// InsertChannelDays adds daily rows atomically; re-inserting a
// (channel, date) pair overwrites that day's figures
func (r *seriesRepo) InsertChannelDays(ctx context.Context, rows []domain.ChannelDay) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(rows)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO channel_days (channel, date, spend, impressions, clicks, conversions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (channel, date) DO UPDATE SET
			spend = EXCLUDED.spend,
			impressions = EXCLUDED.impressions,
			clicks = EXCLUDED.clicks,
			conversions = EXCLUDED.conversions`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.Channel, row.Date, row.Spend, row.Impressions, row.Clicks, row.Conversions); err != nil {
			return fmt.Errorf("failed to insert channel day: %w", err)
		}
	}
	return tx.Commit()
}

// ListChannelDays retrieves one channel's rows with dates in [from, to]
func (r *seriesRepo) ListChannelDays(ctx context.Context, channel string, from, to time.Time) ([]domain.ChannelDay, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT channel, date, spend, impressions, clicks, conversions
		FROM channel_days
		WHERE channel = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC`

	var out []domain.ChannelDay
	if err := r.db.SelectContext(ctx, &out, query, channel, from, to); err != nil {
		return nil, fmt.Errorf("failed to query channel days: %w", err)
	}
	return out, nil
}

// TrailingSpend sums one channel's spend over the window ending at until
func (r *seriesRepo) TrailingSpend(ctx context.Context, channel string, days int, until time.Time) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT COALESCE(SUM(spend), 0)
		FROM channel_days
		WHERE channel = $1 AND date > $2 AND date <= $3`

	var total float64
	from := until.AddDate(0, 0, -days)
	if err := r.db.QueryRowxContext(ctx, query, channel, from, until).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum trailing spend: %w", err)
	}
	return total, nil
}

// InsertTargetDays adds observations of a target metric
func (r *seriesRepo) InsertTargetDays(ctx context.Context, metric string, rows []domain.TargetDay) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout*time.Duration(len(rows)/100+1))
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO target_days (metric, date, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (metric, date) DO UPDATE SET value = EXCLUDED.value`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, metric, row.Date, row.Value); err != nil {
			return fmt.Errorf("failed to insert target day: %w", err)
		}
	}
	return tx.Commit()
}

// ListTargetDays retrieves the target series with dates in [from, to]
func (r *seriesRepo) ListTargetDays(ctx context.Context, metric string, from, to time.Time) ([]domain.TargetDay, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT date, value
		FROM target_days
		WHERE metric = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC`

	var out []domain.TargetDay
	if err := r.db.SelectContext(ctx, &out, query, metric, from, to); err != nil {
		return nil, fmt.Errorf("failed to query target days: %w", err)
	}
	return out, nil
}
