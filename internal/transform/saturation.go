package transform

import (
	"math"
	"sort"

	"github.com/lumetric/lumetric/internal/domain"
)

// Saturate maps adstocked spend into [0,1] with diminishing returns.
//
// Shapes:
//
//	hill:     x^k / (x^k + h^k)
//	logistic: 1 / (1 + e^(-k*(x-h)/h))
//	linear:   min(x/(x+h), 1)
//
// h is the half-saturation spend; when unset it defaults to the median of the
// input series. An unknown shape name falls back to hill. Empty input returns
// an empty series.
func Saturate(x []float64, shape domain.SaturationShape, k float64, halfSpend *float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}
	if k <= 0 {
		k = 2.0
	}
	h := 0.0
	if halfSpend != nil && *halfSpend > 0 {
		h = *halfSpend
	} else {
		h = Median(x)
	}
	if h <= 0 {
		// All-zero series: hill and linear are identically zero, logistic
		// has no meaningful midpoint either. Emit zeros.
		return make([]float64, len(x))
	}

	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = saturateOne(v, shape, k, h)
	}
	return out
}

func saturateOne(x float64, shape domain.SaturationShape, k, h float64) float64 {
	if x < 0 {
		x = 0
	}
	switch shape {
	case domain.ShapeLogistic:
		return 1.0 / (1.0 + math.Exp(-k*(x-h)/h))
	case domain.ShapeLinear:
		return math.Min(x/(x+h), 1.0)
	case domain.ShapeHill:
		fallthrough
	default:
		// Unknown shapes fall back to hill.
		xk := math.Pow(x, k)
		hk := math.Pow(h, k)
		if xk+hk == 0 {
			return 0
		}
		return xk / (xk + hk)
	}
}

// Median returns the middle value of the series (mean of the two middle
// values for even lengths); 0 for an empty series.
func Median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
