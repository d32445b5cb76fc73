package attribution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/metrics"
	"github.com/lumetric/lumetric/internal/persistence"
)

// Orchestrator resolves a conversion's eligible touchpoints, runs the
// requested models, and writes idempotent weight records.
type Orchestrator struct {
	engine      *Engine
	touchpoints persistence.TouchpointRepo
	conversions persistence.ConversionRepo
	weights     persistence.AttributionRepo
	metrics     *metrics.Registry
	now         func() time.Time
}

// NewOrchestrator wires the orchestrator. The metrics registry may be nil.
func NewOrchestrator(engine *Engine, tps persistence.TouchpointRepo, convs persistence.ConversionRepo, weights persistence.AttributionRepo, reg *metrics.Registry) *Orchestrator {
	return &Orchestrator{
		engine:      engine,
		touchpoints: tps,
		conversions: convs,
		weights:     weights,
		metrics:     reg,
		now:         time.Now,
	}
}

// Result summarizes one conversion's attribution run
type Result struct {
	ConversionID string                        `json:"conversion_id"`
	Status       domain.ConversionStatus       `json:"status"`
	Touchpoints  int                           `json:"touchpoints"`
	Created      int                           `json:"created"`
	Recalculated int                           `json:"recalculated"`
	FailedModels []domain.AttributionModelType `json:"failed_models,omitempty"`
}

// ProcessConversion runs the requested models over one conversion. A journey
// with zero eligible touchpoints ends in the excluded status: that is a
// terminal outcome, not an error. A model whose computation fails is logged
// and skipped; the conversion is still marked attributed as long as the
// touchpoint list was non-empty.
func (o *Orchestrator) ProcessConversion(ctx context.Context, conv domain.Conversion, models []domain.AttributionModelType) (Result, error) {
	res := Result{ConversionID: conv.ID}

	if err := conv.Validate(); err != nil {
		return res, err
	}
	if len(models) == 0 {
		models = domain.DefaultModelSet
	}
	for _, m := range models {
		if !m.Valid() {
			return res, fmt.Errorf("%w: %q", domain.ErrUnknownModel, m)
		}
	}

	conv.Status = domain.ConversionProcessing
	if err := o.conversions.Update(ctx, conv); err != nil {
		return res, fmt.Errorf("mark processing: %w", err)
	}

	journey, err := o.touchpoints.ListForSubject(ctx, conv.SubjectID, conv.WindowStart(), conv.Timestamp)
	if err != nil {
		return res, fmt.Errorf("resolve touchpoints for conversion %s: %w", conv.ID, err)
	}
	res.Touchpoints = len(journey)

	if len(journey) == 0 {
		conv.Status = domain.ConversionExcluded
		conv.TouchpointCount = 0
		if err := o.conversions.Update(ctx, conv); err != nil {
			return res, fmt.Errorf("mark excluded: %w", err)
		}
		o.countConversion(domain.ConversionExcluded)
		res.Status = domain.ConversionExcluded
		log.Debug().Str("conversion", conv.ID).Msg("no touchpoints in lookback window, excluded")
		return res, nil
	}

	for _, model := range models {
		records, err := o.engine.Compute(model, journey, conv)
		if err != nil {
			res.FailedModels = append(res.FailedModels, model)
			o.countModelFailure(model)
			log.Warn().Err(err).
				Str("conversion", conv.ID).
				Str("model", string(model)).
				Msg("attribution model failed, skipping")
			continue
		}
		for _, rec := range records {
			created, err := o.weights.Upsert(ctx, rec)
			if err != nil {
				return res, fmt.Errorf("upsert weight %s/%s/%s: %w", rec.ConversionID, rec.TouchpointID, model, err)
			}
			if created {
				res.Created++
				o.countUpsert(model, domain.WeightCalculated)
			} else {
				res.Recalculated++
				o.countUpsert(model, domain.WeightRecalculated)
			}
		}
	}

	processed := o.now()
	conv.Status = domain.ConversionAttributed
	conv.TouchpointCount = len(journey)
	conv.ProcessedAt = &processed
	if err := o.conversions.Update(ctx, conv); err != nil {
		return res, fmt.Errorf("mark attributed: %w", err)
	}
	o.countConversion(domain.ConversionAttributed)
	res.Status = domain.ConversionAttributed
	return res, nil
}

// BatchResult summarizes one ProcessPending sweep
type BatchResult struct {
	Processed  int `json:"processed"`
	Attributed int `json:"attributed"`
	Excluded   int `json:"excluded"`
	Failed     int `json:"failed"`
}

// ProcessPending attributes up to batchSize pending conversions. Failures are
// isolated: a conversion that cannot be processed is marked failed with its
// error message and the sweep continues.
func (o *Orchestrator) ProcessPending(ctx context.Context, batchSize int) (BatchResult, error) {
	var batch BatchResult

	pending, err := o.conversions.ListPending(ctx, batchSize)
	if err != nil {
		return batch, fmt.Errorf("list pending conversions: %w", err)
	}

	for _, conv := range pending {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		res, err := o.ProcessConversion(ctx, conv, nil)
		batch.Processed++
		if err != nil {
			batch.Failed++
			conv.Status = domain.ConversionFailed
			conv.ErrorMessage = err.Error()
			if uerr := o.conversions.Update(ctx, conv); uerr != nil {
				log.Error().Err(uerr).Str("conversion", conv.ID).Msg("failed to mark conversion failed")
			}
			o.countConversion(domain.ConversionFailed)
			log.Error().Err(err).Str("conversion", conv.ID).Msg("conversion attribution failed")
			continue
		}
		switch res.Status {
		case domain.ConversionAttributed:
			batch.Attributed++
		case domain.ConversionExcluded:
			batch.Excluded++
		}
	}

	log.Info().
		Int("processed", batch.Processed).
		Int("attributed", batch.Attributed).
		Int("excluded", batch.Excluded).
		Int("failed", batch.Failed).
		Msg("attribution batch complete")
	return batch, nil
}

func (o *Orchestrator) countConversion(status domain.ConversionStatus) {
	if o.metrics != nil {
		o.metrics.ConversionsProcessed.WithLabelValues(string(status)).Inc()
	}
}

func (o *Orchestrator) countUpsert(model domain.AttributionModelType, status domain.WeightStatus) {
	if o.metrics != nil {
		o.metrics.WeightUpserts.WithLabelValues(string(model), string(status)).Inc()
	}
}

func (o *Orchestrator) countModelFailure(model domain.AttributionModelType) {
	if o.metrics != nil {
		o.metrics.ModelFailures.WithLabelValues(string(model)).Inc()
	}
}
