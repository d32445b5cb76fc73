// Package mmm fits regularized marketing-mix regressions over adstocked,
// saturation-transformed channel spend and derives per-channel economics.
package mmm

import (
	"fmt"
	"math"
	"time"

	"github.com/lumetric/lumetric/internal/domain"
	"github.com/lumetric/lumetric/internal/transform"
)

const (
	featureSeasonality = "seasonality"
	featureTrend       = "trend"
)

// trainingFrame is the assembled, date-aligned training input
type trainingFrame struct {
	dates    []time.Time
	target   []float64
	spend    map[string][]float64 // raw spend per channel, aligned to dates
	features []string             // column order: channels, then seasonality/trend
	matrix   [][]float64          // row-major, len(dates) x len(features)
	// adstock carry per channel: resolved half-spend and last adstocked value
	halfSpend map[string]float64
	tails     map[string]float64
}

// buildFrame aligns channel rows to the target dates, applies the configured
// transforms, and assembles the raw (unscaled) feature matrix. Channels with
// no row on a target date contribute zero spend that day.
func buildFrame(target []domain.TargetDay, channelRows map[string][]domain.ChannelDay, channels []domain.ChannelConfig, seasonality, trend bool) (*trainingFrame, error) {
	if len(target) == 0 {
		return nil, fmt.Errorf("target series is empty")
	}

	f := &trainingFrame{
		dates:     make([]time.Time, len(target)),
		target:    make([]float64, len(target)),
		spend:     make(map[string][]float64, len(channels)),
		halfSpend: make(map[string]float64, len(channels)),
		tails:     make(map[string]float64, len(channels)),
	}
	index := make(map[string]int, len(target))
	for i, row := range target {
		f.dates[i] = row.Date
		f.target[i] = row.Value
		index[dayKey(row.Date)] = i
	}

	columns := make([][]float64, 0, len(channels)+2)
	for _, ch := range channels {
		spend := make([]float64, len(target))
		for _, row := range channelRows[ch.Channel] {
			if i, ok := index[dayKey(row.Date)]; ok {
				spend[i] += row.Spend
			}
		}
		f.spend[ch.Channel] = spend

		adstocked := transform.Adstock(spend, ch.AdstockDecay, ch.AdstockDelay)
		f.tails[ch.Channel] = adstocked[len(adstocked)-1]

		half := 0.0
		if ch.HalfSpend != nil && *ch.HalfSpend > 0 {
			half = *ch.HalfSpend
		} else {
			half = transform.Median(adstocked)
		}
		f.halfSpend[ch.Channel] = half

		var saturated []float64
		if half > 0 {
			saturated = transform.Saturate(adstocked, ch.Shape, ch.ShapeK, &half)
		} else {
			// All-zero channel: saturation is identically zero.
			saturated = make([]float64, len(adstocked))
		}

		f.features = append(f.features, ch.Channel)
		columns = append(columns, saturated)
	}

	if seasonality {
		col := make([]float64, len(target))
		for i, d := range f.dates {
			col[i] = math.Sin(2 * math.Pi * float64(d.YearDay()) / 365.25)
		}
		f.features = append(f.features, featureSeasonality)
		columns = append(columns, col)
	}
	if trend {
		col := make([]float64, len(target))
		for i := range col {
			col[i] = float64(i)
		}
		f.features = append(f.features, featureTrend)
		columns = append(columns, col)
	}

	f.matrix = make([][]float64, len(target))
	for i := range f.matrix {
		row := make([]float64, len(columns))
		for j, col := range columns {
			row[j] = col[i]
		}
		f.matrix[i] = row
	}
	return f, nil
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// fitScaler computes per-column mean and standard deviation
func fitScaler(matrix [][]float64, features []string) *domain.Scaler {
	n := len(matrix)
	p := len(features)
	mean := make([]float64, p)
	std := make([]float64, p)

	for j := 0; j < p; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += matrix[i][j]
		}
		mean[j] = sum / float64(n)

		ss := 0.0
		for i := 0; i < n; i++ {
			d := matrix[i][j] - mean[j]
			ss += d * d
		}
		std[j] = math.Sqrt(ss / float64(n))
	}

	return &domain.Scaler{Features: features, Mean: mean, Std: std, Rows: n}
}

// applyScaler standardizes a matrix in a new allocation. Zero-variance
// columns scale to zero instead of dividing by zero.
func applyScaler(s *domain.Scaler, matrix [][]float64) [][]float64 {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		scaled := make([]float64, len(row))
		for j, v := range row {
			if s.Std[j] > 0 {
				scaled[j] = (v - s.Mean[j]) / s.Std[j]
			}
		}
		out[i] = scaled
	}
	return out
}
