package mmm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/metrics"
	"github.com/lumetric/lumetric/internal/persistence"
)

// DefaultRegularization is the ridge strength used when a model sets none
const DefaultRegularization = 1.0

// Trainer loads training rows, fits the regression, and persists the artifact
type Trainer struct {
	series  persistence.SeriesRepo
	models  persistence.ModelRepo
	metrics *metrics.Registry
	now     func() time.Time
}

// NewTrainer wires the trainer. The metrics registry may be nil.
func NewTrainer(series persistence.SeriesRepo, models persistence.ModelRepo, reg *metrics.Registry) *Trainer {
	return &Trainer{series: series, models: models, metrics: reg, now: time.Now}
}

// Train fits the model identified by id. The artifact moves through
// training → trained on success; any failure during loading, assembly, or
// fitting moves it to error with the message stored, and the error is
// returned to the caller. Training failures are never retried here.
func (t *Trainer) Train(ctx context.Context, id string) (domain.MarketingMixModel, error) {
	model, err := t.models.Get(ctx, id)
	if err != nil {
		return domain.MarketingMixModel{}, fmt.Errorf("load model %s: %w", id, err)
	}

	if err := model.Transition(domain.MMMTraining); err != nil {
		return model, err
	}
	if err := t.models.Update(ctx, model); err != nil {
		return model, fmt.Errorf("mark training: %w", err)
	}

	started := t.now()
	trained, err := t.fit(ctx, model)
	if err != nil {
		model.Status = domain.MMMError
		model.ErrorMessage = err.Error()
		if uerr := t.models.Update(ctx, model); uerr != nil {
			log.Error().Err(uerr).Str("model", id).Msg("failed to persist error status")
		}
		t.countRun("error")
		log.Error().Err(err).Str("model", id).Msg("mmm training failed")
		return model, err
	}

	duration := t.now().Sub(started)
	trained.Status = domain.MMMTrained
	trained.ErrorMessage = ""
	trainedAt := t.now()
	trained.TrainedAt = &trainedAt
	trained.TrainDuration = duration
	if err := t.models.Update(ctx, trained); err != nil {
		return trained, fmt.Errorf("persist trained model: %w", err)
	}

	t.countRun("trained")
	if t.metrics != nil {
		t.metrics.TrainingDuration.Observe(duration.Seconds())
		t.metrics.LastRSquared.Set(trained.Metrics.RSquared)
	}
	log.Info().
		Str("model", id).
		Float64("r_squared", trained.Metrics.RSquared).
		Dur("duration", duration).
		Int("channels", len(trained.Channels)).
		Msg("mmm training complete")
	return trained, nil
}

func (t *Trainer) fit(ctx context.Context, model domain.MarketingMixModel) (domain.MarketingMixModel, error) {
	if len(model.Channels) == 0 {
		return model, domain.ErrNoChannels
	}
	for _, ch := range model.Channels {
		if err := ch.Validate(); err != nil {
			return model, fmt.Errorf("channel config: %w", err)
		}
	}
	lambda := model.Regularization
	if lambda <= 0 {
		lambda = DefaultRegularization
	}

	target, err := t.series.ListTargetDays(ctx, model.TargetVariable, model.TrainStart, model.TrainEnd)
	if err != nil {
		return model, fmt.Errorf("load target series %q: %w", model.TargetVariable, err)
	}

	channelRows := make(map[string][]domain.ChannelDay, len(model.Channels))
	for _, ch := range model.Channels {
		rows, err := t.series.ListChannelDays(ctx, ch.Channel, model.TrainStart, model.TrainEnd)
		if err != nil {
			return model, fmt.Errorf("load series for channel %s: %w", ch.Channel, err)
		}
		channelRows[ch.Channel] = rows
	}

	frame, err := buildFrame(target, channelRows, model.Channels, model.Seasonality, model.Trend)
	if err != nil {
		return model, err
	}
	if len(frame.dates) <= len(frame.features)+1 {
		return model, fmt.Errorf("insufficient training rows: %d rows for %d features",
			len(frame.dates), len(frame.features))
	}

	scaler := fitScaler(frame.matrix, frame.features)
	scaled := applyScaler(scaler, frame.matrix)

	coefs, intercept, err := ridgeFit(scaled, frame.target, lambda)
	if err != nil {
		return model, fmt.Errorf("ridge fit: %w", err)
	}

	pred := predict(scaled, coefs, intercept)
	model.Metrics = fitMetrics(frame.target, pred, len(frame.features))
	model.Intercept = intercept
	model.FeatureImportance = featureImportance(frame.features, coefs)
	model.Coefficients = channelEconomics(frame, scaler, coefs, intercept, model.Channels)
	model.Scaler = scaler
	model.AdstockTails = frame.tails
	model.Regularization = lambda

	model.FeatureCoefficients = make(map[string]float64, len(frame.features))
	for i, f := range frame.features {
		model.FeatureCoefficients[f] = coefs[i]
	}

	// Persist the resolved half-spend so forecasts reuse the training-time
	// saturation midpoint instead of re-deriving a different median.
	for i := range model.Channels {
		if half := frame.halfSpend[model.Channels[i].Channel]; half > 0 {
			h := half
			model.Channels[i].HalfSpend = &h
		}
	}
	return model, nil
}

func (t *Trainer) countRun(outcome string) {
	if t.metrics != nil {
		t.metrics.TrainingRuns.WithLabelValues(outcome).Inc()
	}
}
