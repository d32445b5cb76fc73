package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lumetric/lumetric/internal/config"
)

const (
	appName = "Lumetric"
	version = "v1.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "lumetric",
		Short:   "Marketing analytics engine: attribution, mix modeling, budget optimization",
		Version: version,
		Long: `Lumetric computes multi-touch attribution over customer journeys, trains
marketing mix models on daily spend series, and reallocates budgets from the
trained response curves.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config (defaults to "+config.DefaultPath()+" if present)")

	// Attribution batch worker
	attributeCmd := &cobra.Command{
		Use:   "attribute",
		Short: "Process pending conversions through the attribution models",
		Long:  "Pulls pending conversions, computes weights for every configured model, and upserts the results",
		RunE:  runAttribute,
	}
	attributeCmd.Flags().Int("batch-size", 0, "Conversions per batch (0 uses the configured value)")
	attributeCmd.Flags().Bool("loop", false, "Keep polling for pending conversions")
	attributeCmd.Flags().Duration("interval", 30*time.Second, "Poll interval when looping")

	// Mix model lifecycle
	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "Marketing mix model lifecycle commands",
		Long:  "Create, train, validate, deploy, and archive mix models",
	}

	modelCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft model from a YAML definition",
		RunE:  runModelCreate,
	}
	modelCreateCmd.Flags().StringP("file", "f", "", "Model definition YAML (required)")
	modelCreateCmd.MarkFlagRequired("file")

	modelTrainCmd := &cobra.Command{
		Use:   "train [model-id]",
		Short: "Train a draft model on its configured date range",
		Args:  cobra.ExactArgs(1),
		RunE:  runModelTrain,
	}

	modelShowCmd := &cobra.Command{
		Use:   "show [model-id]",
		Short: "Print a model's status, diagnostics, and channel economics",
		Args:  cobra.ExactArgs(1),
		RunE:  runModelShow,
	}

	modelForecastCmd := &cobra.Command{
		Use:   "forecast [model-id]",
		Short: "Project the target metric over a planned spend schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  runModelForecast,
	}
	modelForecastCmd.Flags().StringP("plan", "p", "", "Per-channel daily spend plan YAML (required)")
	modelForecastCmd.Flags().String("start", "", "Horizon start (YYYY-MM-DD), defaults to the day after training ends")
	modelForecastCmd.MarkFlagRequired("plan")

	modelValidateCmd := lifecycleCmd("validate", "Mark a trained model validated")
	modelDeployCmd := lifecycleCmd("deploy", "Deploy a trained or validated model")
	modelArchiveCmd := lifecycleCmd("archive", "Archive a model")

	modelCmd.AddCommand(modelCreateCmd)
	modelCmd.AddCommand(modelTrainCmd)
	modelCmd.AddCommand(modelShowCmd)
	modelCmd.AddCommand(modelForecastCmd)
	modelCmd.AddCommand(modelValidateCmd)
	modelCmd.AddCommand(modelDeployCmd)
	modelCmd.AddCommand(modelArchiveCmd)

	// Budget optimization
	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "Reallocate a budget across a trained model's channels",
		Long:  "Runs the allocation search against the model's fitted response curves and stores the result",
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().String("model", "", "Trained model id (required)")
	optimizeCmd.Flags().Float64("budget", 0, "Total budget to allocate (required)")
	optimizeCmd.Flags().String("constraints", "", "Optional YAML file of per-channel min/max bounds")
	optimizeCmd.MarkFlagRequired("model")
	optimizeCmd.MarkFlagRequired("budget")

	// Channel roll-up reporting
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Channel attribution roll-ups",
		Long:  "Aggregate stored attribution weights into per-channel value, ROAS, and ROI",
		RunE:  runReport,
	}
	reportCmd.Flags().String("model-type", "linear", "Attribution model type to aggregate")
	reportCmd.Flags().String("from", "", "Range start (YYYY-MM-DD), defaults to 30 days ago")
	reportCmd.Flags().String("to", "", "Range end (YYYY-MM-DD), defaults to now")

	// Monitoring endpoint
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start the Prometheus metrics server",
		Long:  "Serves /metrics and /health until interrupted",
		RunE:  runMonitor,
	}
	monitorCmd.Flags().String("addr", "", "Listen address (overrides config)")

	rootCmd.AddCommand(attributeCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(monitorCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig resolves the --config flag, falling back to the default path
// when it exists and to built-in defaults otherwise
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		if _, err := os.Stat(config.DefaultPath()); err == nil {
			path = config.DefaultPath()
		} else {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}
