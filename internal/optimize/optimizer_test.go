package optimize

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/persistence/memory"
)

func readyModel(rois map[string]float64) domain.MarketingMixModel {
	m := domain.MarketingMixModel{
		ID:           "mix-1",
		Status:       domain.MMMTrained,
		TrainEnd:     time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Coefficients: make(map[string]domain.ChannelResult, len(rois)),
	}
	for ch, roi := range rois {
		m.Channels = append(m.Channels, domain.DefaultChannelConfig(ch))
		m.Coefficients[ch] = domain.ChannelResult{ROI: roi, Coefficient: roi}
	}
	return m
}

func TestOptimize_FavorsHigherROI(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	model := readyModel(map[string]float64{"search": 3.0, "display": 1.0})

	o := NewOptimizer(store.Series(), store.Optimizations(), nil, DefaultSolverConfig())
	res, err := o.Optimize(ctx, model, 10000, nil)
	require.NoError(t, err)

	assert.Greater(t, res.OptimizedAllocation["search"], res.OptimizedAllocation["display"],
		"the higher-ROI channel must receive strictly more budget")
	assert.InDelta(t, 10000,
		res.OptimizedAllocation["search"]+res.OptimizedAllocation["display"], 1e-6,
		"allocations exhaust the budget exactly")

	// Analytic optimum for r1*sqrt(x) + r2*sqrt(B-x): x/(B-x) = (r1/r2)^2.
	assert.InDelta(t, 9000, res.OptimizedAllocation["search"], 250)
	assert.True(t, res.Converged)
	assert.Greater(t, res.Iterations, 0)
}

func TestOptimize_EqualSplitWithoutHistory(t *testing.T) {
	// No trailing spend recorded: the warm start is an even split, and with
	// equal ROIs the optimizer should stay there.
	ctx := context.Background()
	store := memory.NewStore()
	model := readyModel(map[string]float64{"search": 2.0, "display": 2.0})

	o := NewOptimizer(store.Series(), store.Optimizations(), nil, DefaultSolverConfig())
	res, err := o.Optimize(ctx, model, 8000, nil)
	require.NoError(t, err)

	assert.InDelta(t, 4000, res.OptimizedAllocation["search"], 100)
	assert.InDelta(t, 4000, res.OptimizedAllocation["display"], 100)
}

func TestOptimize_HonorsBounds(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	model := readyModel(map[string]float64{"search": 3.0, "display": 1.0})

	maxSearch := 6000.0
	minDisplay := 2500.0
	res, err := NewOptimizer(store.Series(), store.Optimizations(), nil, DefaultSolverConfig()).
		Optimize(ctx, model, 10000, []domain.BudgetConstraint{
			{Channel: "search", MaxSpend: &maxSearch},
			{Channel: "display", MinSpend: &minDisplay},
		})
	require.NoError(t, err)

	assert.LessOrEqual(t, res.OptimizedAllocation["search"], maxSearch+1e-6)
	assert.GreaterOrEqual(t, res.OptimizedAllocation["display"], minDisplay-1e-6)
	assert.InDelta(t, 10000,
		res.OptimizedAllocation["search"]+res.OptimizedAllocation["display"], 1e-6)
}

func TestOptimize_Preconditions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	o := NewOptimizer(store.Series(), store.Optimizations(), nil, DefaultSolverConfig())

	draft := readyModel(map[string]float64{"search": 2.0})
	draft.Status = domain.MMMDraft
	_, err := o.Optimize(ctx, draft, 1000, nil)
	assert.ErrorIs(t, err, domain.ErrModelNotReady)

	empty := readyModel(nil)
	_, err = o.Optimize(ctx, empty, 1000, nil)
	assert.ErrorIs(t, err, domain.ErrNoChannels)

	ok := readyModel(map[string]float64{"search": 2.0})
	_, err = o.Optimize(ctx, ok, 0, nil)
	assert.Error(t, err)
}

func TestOptimize_WarmStartFromTrailingSpend(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	model := readyModel(map[string]float64{"search": 2.0, "display": 2.0})

	// Historical spend 3:1 toward search inside the trailing window.
	var rows []domain.ChannelDay
	for i := 0; i < 30; i++ {
		day := model.TrainEnd.AddDate(0, 0, -i)
		rows = append(rows,
			domain.ChannelDay{Channel: "search", Date: day, Spend: 300},
			domain.ChannelDay{Channel: "display", Date: day, Spend: 100},
		)
	}
	require.NoError(t, store.Series().InsertChannelDays(ctx, rows))

	res, err := NewOptimizer(store.Series(), store.Optimizations(), nil, DefaultSolverConfig()).
		Optimize(ctx, model, 10000, nil)
	require.NoError(t, err)

	assert.InDelta(t, 9000, res.CurrentAllocation["search"], 1e-6)
	assert.InDelta(t, 3000, res.CurrentAllocation["display"], 1e-6)
	assert.Greater(t, res.CurrentPredictedTotal, 0.0)
	// Equal ROIs: the optimum is an even split, away from the skewed start.
	assert.InDelta(t, 5000, res.OptimizedAllocation["search"], 150)
}

func TestOptimize_PersistsResult(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	model := readyModel(map[string]float64{"search": 3.0, "display": 1.0})

	o := NewOptimizer(store.Series(), store.Optimizations(), nil, DefaultSolverConfig())
	res, err := o.Optimize(ctx, model, 5000, nil)
	require.NoError(t, err)

	saved, err := store.Optimizations().ListByModel(ctx, model.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, res.ID, saved[0].ID)
}

func TestRecommendations_SortAndPriority(t *testing.T) {
	recs := recommendations(
		[]string{"a", "b", "c", "d"},
		map[string]float64{"a": 1000, "b": 1000, "c": 1000, "d": 0},
		map[string]float64{"a": 1300, "b": 1120, "c": 1050, "d": 500},
	)

	require.Len(t, recs, 4)
	// d moved from zero: treated as a 100% change, sorted first.
	assert.Equal(t, "d", recs[0].Channel)
	assert.Equal(t, domain.PriorityHigh, recs[0].Priority)
	assert.Equal(t, "a", recs[1].Channel)
	assert.Equal(t, domain.PriorityHigh, recs[1].Priority)
	assert.Equal(t, "b", recs[2].Channel)
	assert.Equal(t, domain.PriorityMedium, recs[2].Priority)
	assert.Equal(t, "c", recs[3].Channel)
	assert.Equal(t, domain.PriorityLow, recs[3].Priority)
}

func TestClampToBudget(t *testing.T) {
	box := []bounds{{lo: 0, hi: 1000}, {lo: 200, hi: 1000}}
	out := clampToBudget([]float64{1500, 0}, box, 1200)

	total := out[0] + out[1]
	assert.InDelta(t, 1200, total, 1e-6)
	for i := range out {
		assert.GreaterOrEqual(t, out[i], box[i].lo-1e-9)
		assert.LessOrEqual(t, out[i], box[i].hi+1e-9)
	}
}

func TestSolve_ConcaveSingleOptimum(t *testing.T) {
	// Maximize -(x-300)^2 - (y-700)^2 under x+y=1000: optimum (300, 700).
	cfg := DefaultSolverConfig()
	res, err := solve(cfg, []float64{500, 500},
		[]bounds{{0, 1000}, {0, 1000}}, 1000,
		func(s []float64) float64 {
			return -math.Pow(s[0]-300, 2) - math.Pow(s[1]-700, 2)
		})
	require.NoError(t, err)
	assert.True(t, res.converged)
	assert.InDelta(t, 300, res.spend[0], 5)
	assert.InDelta(t, 700, res.spend[1], 5)
}
