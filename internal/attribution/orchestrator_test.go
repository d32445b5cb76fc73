package attribution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/persistence/memory"
)

func seedJourney(t *testing.T, store *memory.Store, convAt time.Time) domain.Conversion {
	t.Helper()
	ctx := context.Background()

	for i, h := range []float64{72, 24, 1} {
		require.NoError(t, store.Touchpoints().Insert(ctx, domain.Touchpoint{
			ID:        []string{"tp-a", "tp-b", "tp-c"}[i],
			SubjectID: "subj-1",
			Channel:   []string{"google_ads", "facebook_ads", "email"}[i],
			Timestamp: convAt.Add(-time.Duration(h * float64(time.Hour))),
		}))
	}

	conv := domain.Conversion{
		ID:                 "conv-1",
		SubjectID:          "subj-1",
		Value:              100,
		Currency:           "USD",
		Timestamp:          convAt,
		LookbackWindowDays: 30,
		Status:             domain.ConversionPending,
	}
	require.NoError(t, store.Conversions().Insert(ctx, conv))
	return conv
}

func newOrchestrator(store *memory.Store) *Orchestrator {
	return NewOrchestrator(NewEngine(DefaultConfig()),
		store.Touchpoints(), store.Conversions(), store.Attributions(), nil)
}

func TestProcessConversion_WritesAllModels(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	conv := seedJourney(t, store, convAt)

	o := newOrchestrator(store)
	res, err := o.ProcessConversion(ctx, conv, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.ConversionAttributed, res.Status)
	assert.Equal(t, 3, res.Touchpoints)
	// 5 default models x 3 touchpoints, all fresh.
	assert.Equal(t, 15, res.Created)
	assert.Equal(t, 0, res.Recalculated)

	stored, err := store.Conversions().Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversionAttributed, stored.Status)
	assert.Equal(t, 3, stored.TouchpointCount)
	require.NotNil(t, stored.ProcessedAt)

	records, err := store.Attributions().ListByConversion(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, records, 15)
	for _, rec := range records {
		assert.Equal(t, domain.WeightCalculated, rec.Status)
	}
}

func TestProcessConversion_IdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	conv := seedJourney(t, store, convAt)

	o := newOrchestrator(store)
	_, err := o.ProcessConversion(ctx, conv, nil)
	require.NoError(t, err)

	before, err := store.Attributions().ListByConversion(ctx, conv.ID)
	require.NoError(t, err)

	res, err := o.ProcessConversion(ctx, conv, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 15, res.Recalculated)

	after, err := store.Attributions().ListByConversion(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before), "record count unchanged on recompute")

	ids := make(map[string]string, len(before))
	for _, rec := range before {
		ids[rec.TouchpointID+"|"+string(rec.ModelType)] = rec.ID
	}
	for _, rec := range after {
		assert.Equal(t, domain.WeightRecalculated, rec.Status)
		assert.Equal(t, ids[rec.TouchpointID+"|"+string(rec.ModelType)], rec.ID,
			"recomputation overwrites in place, identity preserved")
	}
}

func TestProcessConversion_NoTouchpointsExcluded(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	conv := domain.Conversion{
		ID:                 "conv-lonely",
		SubjectID:          "subj-nobody",
		Value:              50,
		Currency:           "USD",
		Timestamp:          time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		LookbackWindowDays: 30,
		Status:             domain.ConversionPending,
	}
	require.NoError(t, store.Conversions().Insert(ctx, conv))

	o := newOrchestrator(store)
	res, err := o.ProcessConversion(ctx, conv, nil)
	require.NoError(t, err, "empty window is a terminal state, not an error")
	assert.Equal(t, domain.ConversionExcluded, res.Status)
	assert.Zero(t, res.Created)

	stored, err := store.Conversions().Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversionExcluded, stored.Status)
}

func TestProcessConversion_LookbackWindowBounds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	// One touchpoint inside the 7-day window, one outside, one excluded.
	require.NoError(t, store.Touchpoints().Insert(ctx, domain.Touchpoint{
		ID: "tp-old", SubjectID: "subj-1", Channel: "display",
		Timestamp: convAt.AddDate(0, 0, -10),
	}))
	require.NoError(t, store.Touchpoints().Insert(ctx, domain.Touchpoint{
		ID: "tp-in", SubjectID: "subj-1", Channel: "email",
		Timestamp: convAt.AddDate(0, 0, -3),
	}))
	require.NoError(t, store.Touchpoints().Insert(ctx, domain.Touchpoint{
		ID: "tp-excl", SubjectID: "subj-1", Channel: "email",
		Timestamp: convAt.AddDate(0, 0, -1), Excluded: true,
	}))

	conv := domain.Conversion{
		ID: "conv-1", SubjectID: "subj-1", Value: 10, Currency: "USD",
		Timestamp: convAt, LookbackWindowDays: 7, Status: domain.ConversionPending,
	}
	require.NoError(t, store.Conversions().Insert(ctx, conv))

	o := newOrchestrator(store)
	res, err := o.ProcessConversion(ctx, conv, []domain.AttributionModelType{domain.ModelLinear})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Touchpoints)

	records, err := store.Attributions().ListByConversion(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "tp-in", records[0].TouchpointID)
	assert.Equal(t, 1.0, records[0].Weight)
}

func TestProcessPending_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	seedJourney(t, store, convAt)

	// Malformed conversion: negative value fails validation.
	require.NoError(t, store.Conversions().Insert(ctx, domain.Conversion{
		ID: "conv-bad", SubjectID: "subj-1", Value: -1, Currency: "USD",
		Timestamp: convAt.Add(time.Hour), LookbackWindowDays: 30,
		Status: domain.ConversionPending,
	}))

	// Conversion with no touchpoints at all.
	require.NoError(t, store.Conversions().Insert(ctx, domain.Conversion{
		ID: "conv-empty", SubjectID: "subj-ghost", Value: 20, Currency: "USD",
		Timestamp: convAt.Add(2 * time.Hour), LookbackWindowDays: 30,
		Status: domain.ConversionPending,
	}))

	o := newOrchestrator(store)
	batch, err := o.ProcessPending(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Processed)
	assert.Equal(t, 1, batch.Attributed)
	assert.Equal(t, 1, batch.Excluded)
	assert.Equal(t, 1, batch.Failed)

	bad, err := store.Conversions().Get(ctx, "conv-bad")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversionFailed, bad.Status)
	assert.NotEmpty(t, bad.ErrorMessage)

	// The failed conversion did not poison the others.
	good, err := store.Conversions().Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConversionAttributed, good.Status)
}

func TestProcessPending_RespectsBatchSize(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"c1", "c2", "c3"} {
		require.NoError(t, store.Conversions().Insert(ctx, domain.Conversion{
			ID: id, SubjectID: "subj-ghost", Value: 5, Currency: "USD",
			Timestamp: convAt, LookbackWindowDays: 30, Status: domain.ConversionPending,
		}))
	}

	o := newOrchestrator(store)
	batch, err := o.ProcessPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Processed)

	remaining, err := store.Conversions().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}
