package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lumetric/lumetric/internal/attribution"
	"github.com/lumetric/lumetric/internal/metrics"
)

func runAttribute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engineCfg := cfg.EngineConfig()
	if err := engineCfg.Validate(); err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	orch := attribution.NewOrchestrator(
		attribution.NewEngine(engineCfg),
		store.Touchpoints(), store.Conversions(), store.Attributions(), reg)

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if batchSize <= 0 {
		batchSize = cfg.Attribution.BatchSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop, _ := cmd.Flags().GetBool("loop")
	interval, _ := cmd.Flags().GetDuration("interval")

	for {
		batch, err := orch.ProcessPending(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("attribution batch failed: %w", err)
		}
		fmt.Printf("Processed %d conversions: %d attributed, %d excluded, %d failed\n",
			batch.Processed, batch.Attributed, batch.Excluded, batch.Failed)

		if !loop {
			return nil
		}
		select {
		case <-ctx.Done():
			log.Info().Msg("attribution worker stopping")
			return nil
		case <-time.After(interval):
		}
	}
}
