// Package attribution distributes conversion credit across the ordered
// touchpoints of a customer journey under several competing models, and
// orchestrates running those models idempotently over stored conversions.
package attribution

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lumetric/lumetric/internal/domain"
)

// weightSumTolerance is the absolute drift allowed before renormalization
const weightSumTolerance = 1e-6

// Config carries the tunable parameters of the weighting models
type Config struct {
	HalfLifeDays float64 `yaml:"half_life_days"` // time-decay half-life
	FirstWeight  float64 `yaml:"first_weight"`   // position-based first-touch share
	LastWeight   float64 `yaml:"last_weight"`    // position-based last-touch share
}

// DefaultConfig returns the standard model parameters
func DefaultConfig() Config {
	return Config{
		HalfLifeDays: 7.0,
		FirstWeight:  0.4,
		LastWeight:   0.4,
	}
}

// Validate rejects parameter combinations that cannot produce valid weights
func (c Config) Validate() error {
	if c.HalfLifeDays <= 0 {
		return fmt.Errorf("half life %.3f days must be positive", c.HalfLifeDays)
	}
	if c.FirstWeight < 0 || c.LastWeight < 0 || c.FirstWeight+c.LastWeight > 1 {
		return fmt.Errorf("position weights %.2f/%.2f must be non-negative and sum to at most 1",
			c.FirstWeight, c.LastWeight)
	}
	return nil
}

// Engine computes attribution weight records for a journey under one model
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine creates an attribution engine with the given model parameters
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// Compute runs one model over a chronologically ordered touchpoint list and
// returns one weight record per touchpoint. Weights sum to 1 for non-empty
// journeys. An empty journey returns an empty slice, not an error.
func (e *Engine) Compute(model domain.AttributionModelType, tps []domain.Touchpoint, conv domain.Conversion) ([]domain.AttributionWeight, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownModel, model)
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	if len(tps) == 0 {
		return []domain.AttributionWeight{}, nil
	}

	var weights []float64
	switch model {
	case domain.ModelFirstTouch:
		weights = firstTouch(len(tps))
	case domain.ModelLastTouch:
		weights = lastTouch(len(tps))
	case domain.ModelLinear:
		weights = linear(len(tps))
	case domain.ModelTimeDecay:
		weights = timeDecay(tps, conv.Timestamp, e.cfg.HalfLifeDays)
	case domain.ModelPositionBased:
		weights = positionBased(len(tps), e.cfg.FirstWeight, e.cfg.LastWeight)
	case domain.ModelWShaped:
		weights = wShaped(len(tps))
	}

	renormalize(weights)
	return e.buildRecords(model, weights, tps, conv), nil
}

// renormalize divides weights by their sum when floating-point drift pushes
// the total outside tolerance of 1
func renormalize(weights []float64) {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || math.Abs(sum-1.0) <= weightSumTolerance {
		return
	}
	for i := range weights {
		weights[i] /= sum
	}
}

func (e *Engine) buildRecords(model domain.AttributionModelType, weights []float64, tps []domain.Touchpoint, conv domain.Conversion) []domain.AttributionWeight {
	records := make([]domain.AttributionWeight, len(tps))
	n := len(tps)
	for i, tp := range tps {
		records[i] = domain.AttributionWeight{
			ID:                uuid.NewString(),
			ConversionID:      conv.ID,
			TouchpointID:      tp.ID,
			ModelType:         model,
			Weight:            weights[i],
			AttributedValue:   conv.Value * weights[i],
			Position:          i + 1,
			TotalTouchpoints:  n,
			HoursToConversion: conv.Timestamp.Sub(tp.Timestamp).Hours(),
			ConfidenceScore:   confidence(model, n),
			Status:            domain.WeightCalculated,
			Channel:           tp.Channel,
			ComputedAt:        e.now(),
		}
	}
	return records
}

// confidence scores how much to trust a model's split for a journey of n
// touchpoints. Single-touch journeys are unambiguous; heuristic splits over
// long journeys are weaker.
func confidence(model domain.AttributionModelType, n int) float64 {
	if n == 1 {
		return 1.0
	}
	base := 0.5
	switch model {
	case domain.ModelTimeDecay:
		base = 0.7
	case domain.ModelPositionBased, domain.ModelWShaped:
		base = 0.65
	case domain.ModelFirstTouch, domain.ModelLastTouch:
		base = 0.6
	}
	penalty := 0.02 * float64(n-2)
	if penalty > 0.2 {
		penalty = 0.2
	}
	return base - penalty
}
