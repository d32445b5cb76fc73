package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumetric/lumetric/internal/cache"
	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/persistence/memory"
)

func seedRollupData(t *testing.T, store *memory.Store) (from, to time.Time) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	records := []domain.AttributionWeight{
		{ID: "w1", ConversionID: "c1", TouchpointID: "t1", ModelType: domain.ModelLinear, Channel: "search", Weight: 0.5, AttributedValue: 60, ComputedAt: base.Add(24 * time.Hour)},
		{ID: "w2", ConversionID: "c1", TouchpointID: "t2", ModelType: domain.ModelLinear, Channel: "social", Weight: 0.5, AttributedValue: 60, ComputedAt: base.Add(24 * time.Hour)},
		{ID: "w3", ConversionID: "c2", TouchpointID: "t3", ModelType: domain.ModelLinear, Channel: "search", Weight: 1.0, AttributedValue: 80, ComputedAt: base.Add(48 * time.Hour)},
		// different model type, must be excluded from linear roll-ups
		{ID: "w4", ConversionID: "c1", TouchpointID: "t1", ModelType: domain.ModelFirstTouch, Channel: "search", Weight: 1.0, AttributedValue: 120, ComputedAt: base.Add(24 * time.Hour)},
	}
	for _, rec := range records {
		_, err := store.Attributions().Upsert(ctx, rec)
		require.NoError(t, err)
	}

	spend := []domain.ChannelDay{
		{Channel: "search", Date: base, Spend: 50},
		{Channel: "search", Date: base.Add(24 * time.Hour), Spend: 20},
		{Channel: "social", Date: base, Spend: 0},
	}
	require.NoError(t, store.Series().InsertChannelDays(ctx, spend))

	return base, base.Add(72 * time.Hour)
}

func TestChannelRollups(t *testing.T) {
	store := memory.NewStore()
	from, to := seedRollupData(t, store)
	rep := NewReporter(store.Attributions(), store.Series(), nil)

	out, err := rep.ChannelRollups(context.Background(), domain.ModelLinear, from, to)
	require.NoError(t, err)
	require.Len(t, out.Channels, 2)

	// search leads social on attributed value, so it sorts first
	search := out.Channels[0]
	assert.Equal(t, "search", search.Channel)
	assert.InDelta(t, 140.0, search.AttributedValue, 1e-9)
	assert.InDelta(t, 1.5, search.AttributedConvs, 1e-9)
	assert.Equal(t, 2, search.Records)
	assert.InDelta(t, 70.0, search.Spend, 1e-9)
	assert.InDelta(t, 2.0, search.ROAS, 1e-9)
	assert.InDelta(t, 1.0, search.ROI, 1e-9)

	social := out.Channels[1]
	assert.Equal(t, "social", social.Channel)
	assert.InDelta(t, 60.0, social.AttributedValue, 1e-9)
}

func TestChannelRollupsZeroSpend(t *testing.T) {
	store := memory.NewStore()
	from, to := seedRollupData(t, store)
	rep := NewReporter(store.Attributions(), store.Series(), nil)

	out, err := rep.ChannelRollups(context.Background(), domain.ModelLinear, from, to)
	require.NoError(t, err)

	var social ChannelRollup
	for _, c := range out.Channels {
		if c.Channel == "social" {
			social = c
		}
	}
	assert.Zero(t, social.Spend)
	assert.Zero(t, social.ROAS)
	assert.Zero(t, social.ROI)
}

func TestChannelRollupsRangeFilter(t *testing.T) {
	store := memory.NewStore()
	from, _ := seedRollupData(t, store)
	rep := NewReporter(store.Attributions(), store.Series(), nil)

	// window ends before w3 was computed
	out, err := rep.ChannelRollups(context.Background(), domain.ModelLinear, from, from.Add(36*time.Hour))
	require.NoError(t, err)
	for _, c := range out.Channels {
		if c.Channel == "search" {
			assert.InDelta(t, 60.0, c.AttributedValue, 1e-9)
			assert.Equal(t, 1, c.Records)
		}
	}
}

func TestChannelRollupsCached(t *testing.T) {
	store := memory.NewStore()
	from, to := seedRollupData(t, store)
	rep := NewReporter(store.Attributions(), store.Series(), cache.New())

	first, err := rep.ChannelRollups(context.Background(), domain.ModelLinear, from, to)
	require.NoError(t, err)

	// new records after the first call are invisible until the TTL lapses
	_, err = store.Attributions().Upsert(context.Background(), domain.AttributionWeight{
		ID: "w9", ConversionID: "c9", TouchpointID: "t9", ModelType: domain.ModelLinear,
		Channel: "search", Weight: 1.0, AttributedValue: 500, ComputedAt: from.Add(time.Hour),
	})
	require.NoError(t, err)

	second, err := rep.ChannelRollups(context.Background(), domain.ModelLinear, from, to)
	require.NoError(t, err)
	assert.Equal(t, first.Channels, second.Channels)
}

func TestChannelRollupsUnknownModel(t *testing.T) {
	store := memory.NewStore()
	rep := NewReporter(store.Attributions(), store.Series(), nil)

	_, err := rep.ChannelRollups(context.Background(), "bogus", time.Time{}, time.Now())
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
}
