// Package transform implements the adstock and saturation curves applied to
// channel spend series before marketing-mix fitting.
package transform

import "math"

// Adstock applies advertising carryover to a spend series.
//
// With delay == 0 this is the geometric recursion
// out[i] = s[i] + decay*out[i-1]. With delay p > 0 each period additionally
// receives a delayed-peak echo of the previous p periods, weighted by
// (j/p)^p * e^(p-j), which concentrates the carried effect around p periods
// after the spend rather than immediately.
//
// Decay is clamped into [0,1); values at or above 1 would make the recursion
// divergent. An empty series returns an empty series.
func Adstock(spend []float64, decay float64, delay int) []float64 {
	if len(spend) == 0 {
		return []float64{}
	}
	decay = clampDecay(decay)
	if delay < 0 {
		delay = 0
	}

	out := make([]float64, len(spend))
	if delay == 0 {
		out[0] = spend[0]
		for i := 1; i < len(spend); i++ {
			out[i] = spend[i] + decay*out[i-1]
		}
		return out
	}

	p := float64(delay)
	for i := range spend {
		out[i] = spend[i]
		lags := delay
		if i < lags {
			lags = i
		}
		for j := 1; j <= lags; j++ {
			w := math.Pow(float64(j)/p, p) * math.Exp(p-float64(j))
			out[i] += decay * w * spend[i-j]
		}
	}
	return out
}

// AdstockWithTail continues the delay-0 geometric recursion from a prior
// series tail. The tail is the carried value out[-1] from previously
// transformed history, so forecast horizons decay smoothly out of the
// training window instead of restarting cold.
func AdstockWithTail(spend []float64, decay float64, tail float64) []float64 {
	if len(spend) == 0 {
		return []float64{}
	}
	decay = clampDecay(decay)
	out := make([]float64, len(spend))
	prev := tail
	for i := range spend {
		out[i] = spend[i] + decay*prev
		prev = out[i]
	}
	return out
}

func clampDecay(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d >= 1 {
		return math.Nextafter(1, 0)
	}
	return d
}
