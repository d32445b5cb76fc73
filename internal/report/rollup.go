// Package report aggregates attribution output into channel-level economics
// for the surrounding reporting layer.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumetric/lumetric/internal/cache"
	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/persistence"
)

// rollupTTL keeps roll-ups warm briefly; attribution batches invalidate by
// time, not by key
const rollupTTL = 5 * time.Minute

// ChannelRollup is one channel's aggregated attribution economics
type ChannelRollup struct {
	Channel          string  `json:"channel"`
	AttributedValue  float64 `json:"attributed_value"`
	AttributedConvs  float64 `json:"attributed_conversions"` // sum of fractional weights
	Records          int     `json:"records"`
	Spend            float64 `json:"spend"`
	ROAS             float64 `json:"roas"`
	ROI              float64 `json:"roi"`
}

// Rollup is the full roll-up for one model type and date range
type Rollup struct {
	ModelType domain.AttributionModelType `json:"model_type"`
	From      time.Time                   `json:"from"`
	To        time.Time                   `json:"to"`
	Channels  []ChannelRollup             `json:"channels"`
}

// Reporter computes channel roll-ups from stored weight records and spend
type Reporter struct {
	weights persistence.AttributionRepo
	series  persistence.SeriesRepo
	cache   cache.Cache
}

// NewReporter wires the reporter; the cache may be nil to disable caching
func NewReporter(weights persistence.AttributionRepo, series persistence.SeriesRepo, c cache.Cache) *Reporter {
	return &Reporter{weights: weights, series: series, cache: c}
}

// ChannelRollups aggregates one attribution model's weight records computed
// in [from, to] into per-channel value, ROAS, and ROI. Channels with zero
// spend report zero ratios instead of dividing by zero. Results are sorted
// by attributed value descending.
func (r *Reporter) ChannelRollups(ctx context.Context, model domain.AttributionModelType, from, to time.Time) (Rollup, error) {
	if !model.Valid() {
		return Rollup{}, fmt.Errorf("%w: %q", domain.ErrUnknownModel, model)
	}

	key := fmt.Sprintf("rollup|%s|%d|%d", model, from.Unix(), to.Unix())
	if r.cache != nil {
		if b, ok := r.cache.Get(key); ok {
			var cached Rollup
			if err := json.Unmarshal(b, &cached); err == nil {
				return cached, nil
			}
		}
	}

	records, err := r.weights.ListByModel(ctx, model, from, to)
	if err != nil {
		return Rollup{}, fmt.Errorf("list weight records: %w", err)
	}

	byChannel := make(map[string]*ChannelRollup)
	for _, rec := range records {
		cr, ok := byChannel[rec.Channel]
		if !ok {
			cr = &ChannelRollup{Channel: rec.Channel}
			byChannel[rec.Channel] = cr
		}
		cr.AttributedValue += rec.AttributedValue
		cr.AttributedConvs += rec.Weight
		cr.Records++
	}

	out := Rollup{ModelType: model, From: from, To: to}
	for ch, cr := range byChannel {
		spend, err := r.channelSpend(ctx, ch, from, to)
		if err != nil {
			log.Warn().Err(err).Str("channel", ch).Msg("spend unavailable for roll-up")
		}
		cr.Spend = spend
		if spend > 0 {
			cr.ROAS = cr.AttributedValue / spend
			cr.ROI = (cr.AttributedValue - spend) / spend
		}
		out.Channels = append(out.Channels, *cr)
	}
	sort.Slice(out.Channels, func(i, j int) bool {
		return out.Channels[i].AttributedValue > out.Channels[j].AttributedValue
	})

	if r.cache != nil {
		if b, err := json.Marshal(out); err == nil {
			r.cache.Set(key, b, rollupTTL)
		}
	}
	return out, nil
}

func (r *Reporter) channelSpend(ctx context.Context, channel string, from, to time.Time) (float64, error) {
	rows, err := r.series.ListChannelDays(ctx, channel, from, to)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, row := range rows {
		total += row.Spend
	}
	return total, nil
}
