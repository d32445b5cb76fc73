package optimize

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/metrics"
	"github.com/lumetric/lumetric/internal/persistence"
)

// trailingWindowDays is the actual-spend window used for the warm start
const trailingWindowDays = 30

// Optimizer allocates a fixed budget across a trained model's channels
type Optimizer struct {
	series  persistence.SeriesRepo
	results persistence.OptimizationRepo
	metrics *metrics.Registry
	cfg     SolverConfig
	now     func() time.Time
}

// NewOptimizer wires the optimizer. results and the metrics registry may be
// nil when callers only want the computation.
func NewOptimizer(series persistence.SeriesRepo, results persistence.OptimizationRepo, reg *metrics.Registry, cfg SolverConfig) *Optimizer {
	return &Optimizer{series: series, results: results, metrics: reg, cfg: cfg, now: time.Now}
}

// Optimize reallocates totalBudget across the model's channels.
//
// The objective is the concave surrogate sum over channels of
// sqrt(spend) * roi * 10, using each channel's trained ROI as a linear
// multiplier on diminishing returns. Marginal return strictly decreases with
// spend, so the optimum is interior and the descent converges to it. This is
// deliberately not the trained saturation curve; it is a stable allocation
// surrogate.
//
// Non-convergence inside the evaluation budget is not an error: the best
// iterate is returned with Converged set to false.
func (o *Optimizer) Optimize(ctx context.Context, model domain.MarketingMixModel, totalBudget float64, constraints []domain.BudgetConstraint) (domain.BudgetOptimization, error) {
	if !model.Status.Ready() {
		return domain.BudgetOptimization{}, fmt.Errorf("%w: status %s", domain.ErrModelNotReady, model.Status)
	}
	if len(model.Channels) == 0 {
		return domain.BudgetOptimization{}, domain.ErrNoChannels
	}
	if totalBudget <= 0 {
		return domain.BudgetOptimization{}, fmt.Errorf("total budget %.2f must be positive", totalBudget)
	}

	channels := make([]string, len(model.Channels))
	rois := make([]float64, len(model.Channels))
	for i, ch := range model.Channels {
		channels[i] = ch.Channel
		rois[i] = model.Coefficients[ch.Channel].ROI
	}

	box := buildBounds(channels, constraints, totalBudget)
	current := o.currentSpend(ctx, channels, model.TrainEnd)
	initial := warmStart(current, channels, totalBudget)

	objective := func(spend []float64) float64 {
		total := 0.0
		for i, s := range spend {
			if s > 0 {
				total += math.Sqrt(s) * rois[i] * 10
			}
		}
		return total
	}

	res, err := solve(o.cfg, initial, box, totalBudget, objective)
	if err != nil {
		return domain.BudgetOptimization{}, err
	}
	if !res.converged {
		log.Warn().
			Str("model", model.ID).
			Int("evaluations", res.evaluations).
			Msg("budget optimizer did not converge, returning best iterate")
	}

	currentVec := make([]float64, len(channels))
	for i, ch := range channels {
		currentVec[i] = current[ch]
	}
	currentPredicted := objective(currentVec)

	opt := domain.BudgetOptimization{
		ID:                      uuid.NewString(),
		ModelID:                 model.ID,
		TotalBudget:             totalBudget,
		CurrentAllocation:       current,
		OptimizedAllocation:     make(map[string]float64, len(channels)),
		CurrentPredictedTotal:   currentPredicted,
		OptimizedPredictedTotal: res.objective,
		ImprovementAbsolute:     res.objective - currentPredicted,
		Iterations:              res.evaluations,
		Tolerance:               o.cfg.Tolerance,
		Converged:               res.converged,
		CreatedAt:               o.now(),
	}
	if currentPredicted != 0 {
		opt.ImprovementPct = (res.objective - currentPredicted) / currentPredicted * 100
	}
	for i, ch := range channels {
		opt.OptimizedAllocation[ch] = res.spend[i]
	}
	opt.Recommendations = recommendations(channels, current, opt.OptimizedAllocation)

	if o.metrics != nil {
		o.metrics.OptimizerRuns.WithLabelValues(fmt.Sprintf("%t", res.converged)).Inc()
		o.metrics.OptimizerEvaluations.Observe(float64(res.evaluations))
	}
	if o.results != nil {
		if err := o.results.Insert(ctx, opt); err != nil {
			return opt, fmt.Errorf("persist optimization: %w", err)
		}
	}
	return opt, nil
}

// buildBounds resolves per-channel constraints, defaulting to [0, budget]
func buildBounds(channels []string, constraints []domain.BudgetConstraint, budget float64) []bounds {
	byChannel := make(map[string]domain.BudgetConstraint, len(constraints))
	for _, c := range constraints {
		byChannel[c.Channel] = c
	}
	box := make([]bounds, len(channels))
	for i, ch := range channels {
		b := bounds{lo: 0, hi: budget}
		if c, ok := byChannel[ch]; ok {
			if c.MinSpend != nil && *c.MinSpend > 0 {
				b.lo = *c.MinSpend
			}
			if c.MaxSpend != nil && *c.MaxSpend < budget {
				b.hi = *c.MaxSpend
			}
		}
		box[i] = b
	}
	return box
}

// currentSpend sums each channel's trailing 30-day actual spend
func (o *Optimizer) currentSpend(ctx context.Context, channels []string, until time.Time) map[string]float64 {
	out := make(map[string]float64, len(channels))
	for _, ch := range channels {
		spend, err := o.series.TrailingSpend(ctx, ch, trailingWindowDays, until)
		if err != nil {
			log.Warn().Err(err).Str("channel", ch).Msg("trailing spend unavailable, assuming zero")
			spend = 0
		}
		out[ch] = spend
	}
	return out
}

// warmStart scales the historical spend mix to the budget, or splits evenly
// when there is no history
func warmStart(current map[string]float64, channels []string, budget float64) []float64 {
	total := 0.0
	for _, s := range current {
		total += s
	}
	initial := make([]float64, len(channels))
	if total <= 0 {
		for i := range initial {
			initial[i] = budget / float64(len(channels))
		}
		return initial
	}
	for i, ch := range channels {
		initial[i] = current[ch] / total * budget
	}
	return initial
}

// recommendations sorts reallocations by absolute percent change and tags
// priorities at the >20% and >10% thresholds
func recommendations(channels []string, current, optimized map[string]float64) []domain.Recommendation {
	recs := make([]domain.Recommendation, 0, len(channels))
	for _, ch := range channels {
		cur := current[ch]
		opt := optimized[ch]
		var pct float64
		switch {
		case cur > 0:
			pct = (opt - cur) / cur * 100
		case opt > 0:
			pct = 100
		}
		recs = append(recs, domain.Recommendation{
			Channel:        ch,
			CurrentSpend:   cur,
			OptimizedSpend: opt,
			ChangePct:      pct,
			Priority:       priorityFor(pct),
		})
	}
	sort.Slice(recs, func(i, j int) bool {
		return math.Abs(recs[i].ChangePct) > math.Abs(recs[j].ChangePct)
	})
	return recs
}

func priorityFor(pct float64) domain.RecommendationPriority {
	switch {
	case math.Abs(pct) > 20:
		return domain.PriorityHigh
	case math.Abs(pct) > 10:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
