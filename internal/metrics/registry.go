// Package metrics exposes Prometheus instrumentation for the analytics core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds all Prometheus metrics for Lumetric
type Registry struct {
	// Attribution metrics
	ConversionsProcessed *prometheus.CounterVec // by terminal status
	WeightUpserts        *prometheus.CounterVec // by model and calc status
	ModelFailures        *prometheus.CounterVec // per-model compute errors

	// MMM metrics
	TrainingRuns     *prometheus.CounterVec // by outcome
	TrainingDuration prometheus.Histogram
	LastRSquared     prometheus.Gauge

	// Optimizer metrics
	OptimizerRuns        *prometheus.CounterVec // by convergence
	OptimizerEvaluations prometheus.Histogram

	registry *prometheus.Registry
}

// NewRegistry creates a registry with all Lumetric metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		ConversionsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumetric_conversions_processed_total",
				Help: "Conversions processed by terminal status",
			},
			[]string{"status"},
		),
		WeightUpserts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumetric_weight_upserts_total",
				Help: "Attribution weight records written, by model and calc status",
			},
			[]string{"model", "status"},
		),
		ModelFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumetric_model_failures_total",
				Help: "Per-model attribution compute failures",
			},
			[]string{"model"},
		),
		TrainingRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumetric_mmm_training_runs_total",
				Help: "MMM training runs by outcome",
			},
			[]string{"outcome"},
		),
		TrainingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lumetric_mmm_training_duration_seconds",
				Help:    "Wall-clock duration of MMM training",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		LastRSquared: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lumetric_mmm_last_r_squared",
				Help: "R-squared of the most recently trained model",
			},
		),
		OptimizerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lumetric_optimizer_runs_total",
				Help: "Budget optimization runs by convergence flag",
			},
			[]string{"converged"},
		),
		OptimizerEvaluations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lumetric_optimizer_evaluations",
				Help:    "Objective evaluations per optimization run",
				Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000},
			},
		),
		registry: prometheus.NewRegistry(),
	}

	r.registry.MustRegister(
		r.ConversionsProcessed,
		r.WeightUpserts,
		r.ModelFailures,
		r.TrainingRuns,
		r.TrainingDuration,
		r.LastRSquared,
		r.OptimizerRuns,
		r.OptimizerEvaluations,
	)
	return r
}

// Handler returns the promhttp handler for the monitor listener
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve blocks serving /metrics and /health on addr
func (r *Registry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	log.Info().Str("addr", addr).Msg("metrics listener started")
	return http.ListenAndServe(addr, mux)
}
