package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/metrics"
	"github.com/lumetric/lumetric/internal/mmm"
)

// modelDefinition is the YAML shape accepted by `model create`
type modelDefinition struct {
	Name           string                 `yaml:"name"`
	TargetVariable string                 `yaml:"target_variable"`
	TrainStart     string                 `yaml:"train_start"`
	TrainEnd       string                 `yaml:"train_end"`
	Channels       []domain.ChannelConfig `yaml:"channels"`
	Seasonality    *bool                  `yaml:"seasonality,omitempty"`
	Trend          *bool                  `yaml:"trend,omitempty"`
	Regularization *float64               `yaml:"regularization,omitempty"`
}

func runModelCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model definition: %w", err)
	}
	var def modelDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("failed to parse model definition: %w", err)
	}

	model, err := def.toModel(cfg.MMM.Seasonality, cfg.MMM.Trend, cfg.MMM.Regularization)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.Models().Insert(ctx, model); err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	fmt.Printf("Created draft model %s (%s)\n", model.ID, model.Name)
	return nil
}

func (d modelDefinition) toModel(seasonality, trend bool, lambda float64) (domain.MarketingMixModel, error) {
	if d.Name == "" {
		return domain.MarketingMixModel{}, fmt.Errorf("model definition missing name")
	}
	if len(d.Channels) == 0 {
		return domain.MarketingMixModel{}, fmt.Errorf("model definition has no channels")
	}
	start, err := time.Parse("2006-01-02", d.TrainStart)
	if err != nil {
		return domain.MarketingMixModel{}, fmt.Errorf("bad train_start %q: %w", d.TrainStart, err)
	}
	end, err := time.Parse("2006-01-02", d.TrainEnd)
	if err != nil {
		return domain.MarketingMixModel{}, fmt.Errorf("bad train_end %q: %w", d.TrainEnd, err)
	}
	if !end.After(start) {
		return domain.MarketingMixModel{}, fmt.Errorf("train_end %s not after train_start %s", d.TrainEnd, d.TrainStart)
	}

	channels := make([]domain.ChannelConfig, 0, len(d.Channels))
	for _, ch := range d.Channels {
		merged := domain.DefaultChannelConfig(ch.Channel)
		if ch.AdstockDecay != 0 {
			merged.AdstockDecay = ch.AdstockDecay
		}
		merged.AdstockDelay = ch.AdstockDelay
		if ch.Shape != "" {
			merged.Shape = ch.Shape
		}
		if ch.ShapeK != 0 {
			merged.ShapeK = ch.ShapeK
		}
		merged.HalfSpend = ch.HalfSpend
		if err := merged.Validate(); err != nil {
			return domain.MarketingMixModel{}, err
		}
		channels = append(channels, merged)
	}

	if d.Seasonality != nil {
		seasonality = *d.Seasonality
	}
	if d.Trend != nil {
		trend = *d.Trend
	}
	if d.Regularization != nil {
		lambda = *d.Regularization
	}

	target := d.TargetVariable
	if target == "" {
		target = "revenue"
	}

	return domain.MarketingMixModel{
		ID:             uuid.NewString(),
		Name:           d.Name,
		TargetVariable: target,
		TrainStart:     start,
		TrainEnd:       end,
		Channels:       channels,
		Seasonality:    seasonality,
		Trend:          trend,
		Regularization: lambda,
		Status:         domain.MMMDraft,
	}, nil
}

func runModelTrain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	trainer := mmm.NewTrainer(store.Series(), store.Models(), metrics.NewRegistry())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	model, err := trainer.Train(ctx, args[0])
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	fmt.Printf("Trained %s in %s\n", model.ID, model.TrainDuration.Round(time.Millisecond))
	fmt.Printf("  R²=%.4f adjR²=%.4f MAPE=%.2f%% RMSE=%.2f\n",
		model.Metrics.RSquared, model.Metrics.AdjRSquared, model.Metrics.MAPE, model.Metrics.RMSE)
	for ch, res := range model.Coefficients {
		fmt.Printf("  %-20s coef=%.4f roi=%.2f contribution=%.1f%%\n",
			ch, res.Coefficient, res.ROI, res.ContributionPct)
	}
	return nil
}

func runModelShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	model, err := store.Models().Get(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to render model: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runModelForecast(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("plan")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read spend plan: %w", err)
	}
	var plan map[string][]float64
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return fmt.Errorf("failed to parse spend plan YAML: %w", err)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	model, err := store.Models().Get(ctx, args[0])
	if err != nil {
		return err
	}

	start := model.TrainEnd.AddDate(0, 0, 1)
	if s, _ := cmd.Flags().GetString("start"); s != "" {
		start, err = time.Parse("2006-01-02", s)
		if err != nil {
			return fmt.Errorf("bad --start %q: %w", s, err)
		}
	}

	fc, err := mmm.Predict(model, plan, start)
	if err != nil {
		return fmt.Errorf("forecast failed: %w", err)
	}

	fmt.Printf("Forecast for %s, %d days from %s (total %.2f)\n",
		model.ID, len(fc.Days), start.Format("2006-01-02"), fc.Total)
	for i, day := range fc.Days {
		fmt.Printf("  %s  %.2f\n", day.Format("2006-01-02"), fc.Values[i])
	}
	return nil
}

// lifecycleCmd builds the validate/deploy/archive subcommands, which differ
// only in the transition they apply
func lifecycleCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [model-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			model, err := store.Models().Get(ctx, args[0])
			if err != nil {
				return err
			}

			switch verb {
			case "validate":
				err = model.Validate()
			case "deploy":
				err = model.Deploy()
			case "archive":
				err = model.Archive()
			}
			if err != nil {
				return err
			}

			if err := store.Models().Update(ctx, model); err != nil {
				return fmt.Errorf("failed to persist transition: %w", err)
			}
			log.Info().Str("model", model.ID).Str("status", string(model.Status)).Msg("model transitioned")
			fmt.Printf("Model %s is now %s\n", model.ID, model.Status)
			return nil
		},
	}
}
