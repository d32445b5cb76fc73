package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/metrics"
	"github.com/lumetric/lumetric/internal/optimize"
)

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	modelID, _ := cmd.Flags().GetString("model")
	budget, _ := cmd.Flags().GetFloat64("budget")

	var constraints []domain.BudgetConstraint
	if path, _ := cmd.Flags().GetString("constraints"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read constraints: %w", err)
		}
		if err := yaml.Unmarshal(data, &constraints); err != nil {
			return fmt.Errorf("failed to parse constraints YAML: %w", err)
		}
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	model, err := store.Models().Get(ctx, modelID)
	if err != nil {
		return err
	}

	opt := optimize.NewOptimizer(store.Series(), store.Optimizations(), metrics.NewRegistry(), cfg.SolverConfig())
	result, err := opt.Optimize(ctx, model, budget, constraints)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	fmt.Printf("Optimization %s for model %s (budget %.2f)\n", result.ID, modelID, budget)
	fmt.Printf("  predicted: %.2f -> %.2f (%+.1f%%), converged=%v after %d evaluations\n",
		result.CurrentPredictedTotal, result.OptimizedPredictedTotal,
		result.ImprovementPct, result.Converged, result.Iterations)
	for _, rec := range result.Recommendations {
		fmt.Printf("  [%-6s] %-20s %.2f -> %.2f (%+.1f%%)\n",
			rec.Priority, rec.Channel, rec.CurrentSpend, rec.OptimizedSpend, rec.ChangePct)
	}
	return nil
}
