package mmm

import (
	"fmt"
	"math"
	"time"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/transform"
)

// Forecast is a predicted outcome path for a planned spend schedule
type Forecast struct {
	ModelID string      `json:"model_id"`
	Start   time.Time   `json:"start"`
	Days    []time.Time `json:"days"`
	Values  []float64   `json:"values"`
	Total   float64     `json:"total"`
}

// Predict projects the target metric over a planned per-channel daily spend
// horizon. Each channel's adstock recursion continues from its training-tail
// carry so the first forecast days still feel recent training spend, then
// spend is saturated with the training-time parameters and scaled with the
// training scaler. The trend index continues from the last training row.
//
// The model must be trained, validated, or deployed. Every plan series must
// cover the same horizon length.
func Predict(model domain.MarketingMixModel, plan map[string][]float64, start time.Time) (Forecast, error) {
	if !model.Status.Ready() {
		return Forecast{}, fmt.Errorf("%w: status %s", domain.ErrModelNotReady, model.Status)
	}
	if len(model.Channels) == 0 {
		return Forecast{}, domain.ErrNoChannels
	}
	if model.Scaler == nil {
		return Forecast{}, fmt.Errorf("model %s carries no scaler", model.ID)
	}

	horizon := -1
	for _, series := range plan {
		if horizon == -1 {
			horizon = len(series)
		} else if len(series) != horizon {
			return Forecast{}, fmt.Errorf("plan series lengths differ")
		}
	}
	if horizon <= 0 {
		return Forecast{}, fmt.Errorf("empty spend plan")
	}

	// Saturated spend column per channel over the horizon.
	columns := make(map[string][]float64, len(model.Channels))
	for _, ch := range model.Channels {
		spend, ok := plan[ch.Channel]
		if !ok {
			spend = make([]float64, horizon)
		}
		adstocked := transform.AdstockWithTail(spend, ch.AdstockDecay, model.AdstockTails[ch.Channel])
		if ch.HalfSpend != nil && *ch.HalfSpend > 0 {
			columns[ch.Channel] = transform.Saturate(adstocked, ch.Shape, ch.ShapeK, ch.HalfSpend)
		} else {
			columns[ch.Channel] = make([]float64, horizon)
		}
	}

	fc := Forecast{
		ModelID: model.ID,
		Start:   start,
		Days:    make([]time.Time, horizon),
		Values:  make([]float64, horizon),
	}
	for i := 0; i < horizon; i++ {
		day := start.AddDate(0, 0, i)
		fc.Days[i] = day

		v := model.Intercept
		for j, feature := range model.Scaler.Features {
			var raw float64
			switch feature {
			case featureSeasonality:
				raw = math.Sin(2 * math.Pi * float64(day.YearDay()) / 365.25)
			case featureTrend:
				raw = float64(model.Scaler.Rows + i)
			default:
				raw = columns[feature][i]
			}
			if model.Scaler.Std[j] > 0 {
				v += model.FeatureCoefficients[feature] * (raw - model.Scaler.Mean[j]) / model.Scaler.Std[j]
			}
		}
		fc.Values[i] = v
		fc.Total += v
	}
	return fc, nil
}
