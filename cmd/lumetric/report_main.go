package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumetric/lumetric/internal/cache"
	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/report"
)

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	modelType, _ := cmd.Flags().GetString("model-type")
	from, to, err := parseRange(cmd)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	rep := report.NewReporter(store.Attributions(), store.Series(), cache.NewAuto(cfg.Storage.RedisAddr))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	rollup, err := rep.ChannelRollups(ctx, domain.AttributionModelType(modelType), from, to)
	if err != nil {
		return err
	}

	fmt.Printf("Channel roll-up (%s, %s to %s)\n",
		rollup.ModelType, from.Format("2006-01-02"), to.Format("2006-01-02"))
	fmt.Printf("%-20s %12s %10s %10s %8s %8s\n", "CHANNEL", "VALUE", "CONVS", "SPEND", "ROAS", "ROI")
	for _, ch := range rollup.Channels {
		fmt.Printf("%-20s %12.2f %10.2f %10.2f %8.2f %8.2f\n",
			ch.Channel, ch.AttributedValue, ch.AttributedConvs, ch.Spend, ch.ROAS, ch.ROI)
	}
	return nil
}

func parseRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if s, _ := cmd.Flags().GetString("from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad --from %q: %w", s, err)
		}
		from = t
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad --to %q: %w", s, err)
		}
		to = t.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("range end %s before start %s", to, from)
	}
	return from, to, nil
}
