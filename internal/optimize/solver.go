// Package optimize reallocates a fixed budget across trained channels to
// maximize a concave surrogate of predicted return.
package optimize

import (
	"fmt"
	"math"
)

// SolverConfig tunes the constrained descent
type SolverConfig struct {
	MaxEvaluations  int     `json:"max_evaluations" yaml:"max_evaluations"`   // objective evaluation budget
	Tolerance       float64 `json:"tolerance" yaml:"tolerance"`               // convergence tolerance on improvement
	InitialStepFrac float64 `json:"initial_step_frac" yaml:"initial_step_frac"` // first transfer size as a budget fraction
	BacktrackRatio  float64 `json:"backtrack_ratio" yaml:"backtrack_ratio"`   // step shrink factor when stuck
	MinStepFrac     float64 `json:"min_step_frac" yaml:"min_step_frac"`       // stop below this step size
}

// DefaultSolverConfig returns the standard solver parameters
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		MaxEvaluations:  2000,
		Tolerance:       1e-6,
		InitialStepFrac: 0.05,
		BacktrackRatio:  0.5,
		MinStepFrac:     1e-9,
	}
}

// bounds is a per-channel closed interval
type bounds struct {
	lo, hi float64
}

// solveResult is the raw solver outcome before it is shaped into the domain
// result
type solveResult struct {
	spend       []float64
	objective   float64
	evaluations int
	converged   bool
}

// solve maximizes objective over allocations that sum to budget and respect
// the per-channel bounds. Moves are pairwise transfers between channels,
// which conserve the budget by construction; the step size backs off when no
// transfer improves the objective. A concave objective makes every accepted
// transfer a move toward the unique optimum, so termination at min step is
// convergence. If the evaluation budget runs out first the best iterate is
// still returned with converged = false.
func solve(cfg SolverConfig, initial []float64, box []bounds, budget float64, objective func([]float64) float64) (solveResult, error) {
	n := len(initial)
	if n == 0 {
		return solveResult{}, fmt.Errorf("no channels to allocate")
	}
	if len(box) != n {
		return solveResult{}, fmt.Errorf("bounds length %d does not match %d channels", len(box), n)
	}

	current := clampToBudget(initial, box, budget)
	best := append([]float64(nil), current...)
	bestObj := objective(best)
	evaluations := 1

	step := cfg.InitialStepFrac * budget
	minStep := cfg.MinStepFrac * budget
	if minStep <= 0 {
		minStep = 1e-12
	}
	converged := false

	for evaluations < cfg.MaxEvaluations {
		improved := false

		for from := 0; from < n && evaluations < cfg.MaxEvaluations; from++ {
			for to := 0; to < n && evaluations < cfg.MaxEvaluations; to++ {
				if from == to {
					continue
				}
				// Largest feasible transfer up to the current step.
				delta := math.Min(step, math.Min(best[from]-box[from].lo, box[to].hi-best[to]))
				if delta <= 0 {
					continue
				}
				trial := append([]float64(nil), best...)
				trial[from] -= delta
				trial[to] += delta

				obj := objective(trial)
				evaluations++
				if obj > bestObj+cfg.Tolerance {
					best = trial
					bestObj = obj
					improved = true
				}
			}
		}

		if !improved {
			step *= cfg.BacktrackRatio
			if step < minStep {
				converged = true
				break
			}
		}
	}

	return solveResult{
		spend:       best,
		objective:   bestObj,
		evaluations: evaluations,
		converged:   converged,
	}, nil
}

// clampToBudget pulls the initial point inside the bounds, then repairs the
// budget equality by spreading the residual across channels with slack.
func clampToBudget(x []float64, box []bounds, budget float64) []float64 {
	n := len(x)
	out := make([]float64, n)
	total := 0.0
	for i := range x {
		out[i] = math.Min(math.Max(x[i], box[i].lo), box[i].hi)
		total += out[i]
	}

	for iter := 0; iter < 64 && math.Abs(total-budget) > 1e-9; iter++ {
		residual := budget - total
		var slack float64
		for i := range out {
			if residual > 0 {
				slack += box[i].hi - out[i]
			} else {
				slack += out[i] - box[i].lo
			}
		}
		if slack <= 0 {
			break // infeasible bounds; hand the solver the closest point
		}
		total = 0
		for i := range out {
			var room float64
			if residual > 0 {
				room = box[i].hi - out[i]
			} else {
				room = out[i] - box[i].lo
			}
			out[i] += residual * room / slack
			total += out[i]
		}
	}
	return out
}
