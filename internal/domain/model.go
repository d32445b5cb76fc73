package domain

import (
	"fmt"
	"time"
)

// AttributionModelType identifies one of the supported weighting algorithms
type AttributionModelType string

const (
	ModelFirstTouch    AttributionModelType = "first_touch"
	ModelLastTouch     AttributionModelType = "last_touch"
	ModelLinear        AttributionModelType = "linear"
	ModelTimeDecay     AttributionModelType = "time_decay"
	ModelPositionBased AttributionModelType = "position_based"
	ModelWShaped       AttributionModelType = "w_shaped"
)

// DefaultModelSet is the model list run when the caller does not choose one
var DefaultModelSet = []AttributionModelType{
	ModelFirstTouch,
	ModelLastTouch,
	ModelLinear,
	ModelTimeDecay,
	ModelPositionBased,
}

// Valid reports whether the model type is one of the closed set
func (m AttributionModelType) Valid() bool {
	switch m {
	case ModelFirstTouch, ModelLastTouch, ModelLinear, ModelTimeDecay, ModelPositionBased, ModelWShaped:
		return true
	}
	return false
}

// MMMStatus tracks a marketing mix model through its lifecycle
type MMMStatus string

const (
	MMMDraft     MMMStatus = "draft"
	MMMTraining  MMMStatus = "training"
	MMMTrained   MMMStatus = "trained"
	MMMValidated MMMStatus = "validated"
	MMMDeployed  MMMStatus = "deployed"
	MMMError     MMMStatus = "error"
	MMMArchived  MMMStatus = "archived"
)

// Ready reports whether the model may serve forecasts and optimizations
func (s MMMStatus) Ready() bool {
	return s == MMMTrained || s == MMMValidated || s == MMMDeployed
}

// SaturationShape selects the diminishing-returns curve for a channel
type SaturationShape string

const (
	ShapeHill     SaturationShape = "hill"
	ShapeLogistic SaturationShape = "logistic"
	ShapeLinear   SaturationShape = "linear"
)

// ChannelConfig holds the per-channel transform parameters for MMM training
type ChannelConfig struct {
	Channel       string          `json:"channel" yaml:"channel"`
	AdstockDecay  float64         `json:"adstock_decay" yaml:"adstock_decay"`
	AdstockDelay  int             `json:"adstock_delay" yaml:"adstock_delay"`
	Shape         SaturationShape `json:"shape" yaml:"shape"`
	ShapeK        float64         `json:"shape_k" yaml:"shape_k"`
	HalfSpend     *float64        `json:"half_spend,omitempty" yaml:"half_spend,omitempty"`
}

// DefaultChannelConfig returns the transform defaults for a channel
func DefaultChannelConfig(channel string) ChannelConfig {
	return ChannelConfig{
		Channel:      channel,
		AdstockDecay: 0.3,
		AdstockDelay: 0,
		Shape:        ShapeHill,
		ShapeK:       2.0,
	}
}

// Validate rejects out-of-range transform parameters at load time
func (c ChannelConfig) Validate() error {
	if c.Channel == "" {
		return fmt.Errorf("channel config missing channel name")
	}
	if c.AdstockDecay < 0 || c.AdstockDecay >= 1 {
		return fmt.Errorf("channel %s: adstock decay %.3f outside [0,1)", c.Channel, c.AdstockDecay)
	}
	if c.AdstockDelay < 0 {
		return fmt.Errorf("channel %s: adstock delay %d negative", c.Channel, c.AdstockDelay)
	}
	if c.ShapeK <= 0 {
		return fmt.Errorf("channel %s: saturation k %.3f must be positive", c.Channel, c.ShapeK)
	}
	if c.HalfSpend != nil && *c.HalfSpend <= 0 {
		return fmt.Errorf("channel %s: half spend %.3f must be positive", c.Channel, *c.HalfSpend)
	}
	return nil
}

// ChannelDay is one training row for one channel
type ChannelDay struct {
	Channel     string    `json:"channel" db:"channel"`
	Date        time.Time `json:"date" db:"date"`
	Spend       float64   `json:"spend" db:"spend"`
	Impressions float64   `json:"impressions" db:"impressions"`
	Clicks      float64   `json:"clicks" db:"clicks"`
	Conversions float64   `json:"conversions" db:"conversions"`
}

// TargetDay is one observation of the metric the MMM explains
type TargetDay struct {
	Date  time.Time `json:"date" db:"date"`
	Value float64   `json:"value" db:"value"`
}

// ChannelResult holds the fitted outputs for one channel
type ChannelResult struct {
	Coefficient     float64 `json:"coefficient"`
	ROI             float64 `json:"roi"`
	ContributionPct float64 `json:"contribution_pct"`
	TotalSpend      float64 `json:"total_spend"`
}

// FitMetrics are the in-sample diagnostics reported after training.
// These are computed on the training rows themselves; there is no held-out
// split, so they describe fit, not generalization.
type FitMetrics struct {
	RSquared    float64 `json:"r_squared"`
	AdjRSquared float64 `json:"adjusted_r_squared"`
	MAPE        float64 `json:"mape"`
	RMSE        float64 `json:"rmse"`
	MAE         float64 `json:"mae"`
}

// MarketingMixModel is the trained artifact produced by the MMM trainer
type MarketingMixModel struct {
	ID                  string                   `json:"id" db:"id"`
	Name                string                   `json:"name" db:"name"`
	TargetVariable      string                   `json:"target_variable" db:"target_variable"`
	TrainStart          time.Time                `json:"train_start" db:"train_start"`
	TrainEnd            time.Time                `json:"train_end" db:"train_end"`
	Channels            []ChannelConfig          `json:"channels"`
	Seasonality         bool                     `json:"seasonality"`
	Trend               bool                     `json:"trend"`
	Regularization      float64                  `json:"regularization"`
	Status              MMMStatus                `json:"status" db:"status"`
	Intercept           float64                  `json:"intercept"`
	Coefficients        map[string]ChannelResult `json:"coefficients"`
	FeatureCoefficients map[string]float64       `json:"feature_coefficients"`
	FeatureImportance   map[string]float64       `json:"feature_importance"`
	Metrics             FitMetrics               `json:"metrics"`
	Scaler              *Scaler                  `json:"scaler,omitempty"`
	AdstockTails        map[string]float64       `json:"adstock_tails,omitempty"`
	TrainedAt           *time.Time               `json:"trained_at,omitempty"`
	TrainDuration       time.Duration            `json:"train_duration"`
	ErrorMessage        string                   `json:"error_message,omitempty"`
}

// Scaler carries the standardization parameters fitted during training so
// forecasts can reuse the exact training-time feature scaling
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Std      []float64 `json:"std"`
	Rows     int       `json:"rows"` // training row count, continues the trend index in forecasts
}

// BudgetConstraint bounds one channel's allocation
type BudgetConstraint struct {
	Channel  string   `json:"channel" yaml:"channel"`
	MinSpend *float64 `json:"min_spend,omitempty" yaml:"min_spend,omitempty"`
	MaxSpend *float64 `json:"max_spend,omitempty" yaml:"max_spend,omitempty"`
}

// RecommendationPriority buckets a reallocation by the size of the shift
type RecommendationPriority string

const (
	PriorityHigh   RecommendationPriority = "high"
	PriorityMedium RecommendationPriority = "medium"
	PriorityLow    RecommendationPriority = "low"
)

// Recommendation describes one channel's suggested reallocation
type Recommendation struct {
	Channel        string                 `json:"channel"`
	CurrentSpend   float64                `json:"current_spend"`
	OptimizedSpend float64                `json:"optimized_spend"`
	ChangePct      float64                `json:"change_pct"`
	Priority       RecommendationPriority `json:"priority"`
}

// BudgetOptimization is the result of one allocation run
type BudgetOptimization struct {
	ID                      string             `json:"id" db:"id"`
	ModelID                 string             `json:"model_id" db:"model_id"`
	TotalBudget             float64            `json:"total_budget" db:"total_budget"`
	CurrentAllocation       map[string]float64 `json:"current_allocation"`
	OptimizedAllocation     map[string]float64 `json:"optimized_allocation"`
	CurrentPredictedTotal   float64            `json:"current_predicted_total"`
	OptimizedPredictedTotal float64            `json:"optimized_predicted_total"`
	ImprovementPct          float64            `json:"improvement_pct"`
	ImprovementAbsolute     float64            `json:"improvement_absolute"`
	Recommendations         []Recommendation   `json:"recommendations"`
	Iterations              int                `json:"iterations"`
	Tolerance               float64            `json:"tolerance"`
	Converged               bool               `json:"converged"`
	CreatedAt               time.Time          `json:"created_at" db:"created_at"`
}
