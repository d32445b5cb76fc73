package domain

import (
	"fmt"
	"time"
)

// TouchpointCategory classifies the marketing channel behind a touchpoint
type TouchpointCategory string

const (
	CategoryPaidSearch TouchpointCategory = "paid_search"
	CategoryPaidSocial TouchpointCategory = "paid_social"
	CategoryDisplay    TouchpointCategory = "display"
	CategoryEmail      TouchpointCategory = "email"
	CategoryOrganic    TouchpointCategory = "organic"
	CategoryDirect     TouchpointCategory = "direct"
	CategoryReferral   TouchpointCategory = "referral"
	CategoryAffiliate  TouchpointCategory = "affiliate"
	CategoryVideo      TouchpointCategory = "video"
	CategoryOther      TouchpointCategory = "other"
)

// Touchpoint represents one customer interaction with a marketing channel
type Touchpoint struct {
	ID              string             `json:"id" db:"id"`
	SubjectID       string             `json:"subject_id" db:"subject_id"`
	Channel         string             `json:"channel" db:"channel"`
	Category        TouchpointCategory `json:"category" db:"category"`
	Timestamp       time.Time          `json:"ts" db:"ts"`
	Cost            *float64           `json:"cost,omitempty" db:"cost"`
	EngagementScore *float64           `json:"engagement_score,omitempty" db:"engagement_score"`
	Excluded        bool               `json:"excluded" db:"excluded"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}

// ConversionStatus tracks a conversion through the attribution lifecycle
type ConversionStatus string

const (
	ConversionPending    ConversionStatus = "pending"
	ConversionProcessing ConversionStatus = "processing"
	ConversionAttributed ConversionStatus = "attributed"
	ConversionExcluded   ConversionStatus = "excluded"
	ConversionFailed     ConversionStatus = "failed"
)

// Conversion is a value-bearing outcome event
type Conversion struct {
	ID                 string           `json:"id" db:"id"`
	SubjectID          string           `json:"subject_id" db:"subject_id"`
	Value              float64          `json:"value" db:"value"`
	Currency           string           `json:"currency" db:"currency"`
	Timestamp          time.Time        `json:"ts" db:"ts"`
	LookbackWindowDays int              `json:"lookback_window_days" db:"lookback_window_days"`
	Status             ConversionStatus `json:"status" db:"status"`
	TouchpointCount    int              `json:"attributed_touchpoint_count" db:"attributed_touchpoint_count"`
	ErrorMessage       string           `json:"error_message,omitempty" db:"error_message"`
	ProcessedAt        *time.Time       `json:"processed_at,omitempty" db:"processed_at"`
}

// DefaultLookbackDays is applied when a conversion carries no explicit window
const DefaultLookbackDays = 30

// Validate checks the conversion fields attribution depends on
func (c Conversion) Validate() error {
	if c.Value < 0 {
		return fmt.Errorf("%w: value %.2f", ErrNegativeValue, c.Value)
	}
	if c.LookbackWindowDays < 0 {
		return fmt.Errorf("%w: lookback %d days", ErrInvalidLookback, c.LookbackWindowDays)
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("conversion %s has no timestamp", c.ID)
	}
	return nil
}

// WindowStart returns the earliest timestamp eligible for attribution credit
func (c Conversion) WindowStart() time.Time {
	return c.Timestamp.AddDate(0, 0, -c.LookbackWindowDays)
}

// WeightStatus distinguishes first-time from recomputed weight records
type WeightStatus string

const (
	WeightCalculated   WeightStatus = "calculated"
	WeightRecalculated WeightStatus = "recalculated"
)

// AttributionWeight is the output of one (conversion, touchpoint, model) triple.
// For a fixed conversion and model the weights across its touchpoints sum to 1.
type AttributionWeight struct {
	ID                 string               `json:"id" db:"id"`
	ConversionID       string               `json:"conversion_id" db:"conversion_id"`
	TouchpointID       string               `json:"touchpoint_id" db:"touchpoint_id"`
	ModelType          AttributionModelType `json:"model_type" db:"model_type"`
	Weight             float64              `json:"weight" db:"weight"`
	AttributedValue    float64              `json:"attributed_value" db:"attributed_value"`
	Position           int                  `json:"position" db:"position"`
	TotalTouchpoints   int                  `json:"total_touchpoints" db:"total_touchpoints"`
	HoursToConversion  float64              `json:"hours_to_conversion" db:"hours_to_conversion"`
	ConfidenceScore    float64              `json:"confidence_score" db:"confidence_score"`
	Status             WeightStatus         `json:"status" db:"status"`
	Channel            string               `json:"channel" db:"channel"`
	ComputedAt         time.Time            `json:"computed_at" db:"computed_at"`
}
