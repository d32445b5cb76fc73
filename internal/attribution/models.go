package attribution

import (
	"math"
	"time"

	"github.com/lumetric/lumetric/internal/domain"
)

// firstTouch gives all credit to the oldest touchpoint
func firstTouch(n int) []float64 {
	w := make([]float64, n)
	w[0] = 1.0
	return w
}

// lastTouch gives all credit to the most recent touchpoint
func lastTouch(n int) []float64 {
	w := make([]float64, n)
	w[n-1] = 1.0
	return w
}

// linear splits credit evenly across the journey
func linear(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// timeDecay weights each touchpoint by 2^(-days_before_conversion / halfLife)
// and normalizes. More recent touchpoints earn strictly more credit. A single
// touchpoint degenerates to full credit.
func timeDecay(tps []domain.Touchpoint, convAt time.Time, halfLifeDays float64) []float64 {
	n := len(tps)
	if n == 1 {
		return []float64{1.0}
	}
	raw := make([]float64, n)
	sum := 0.0
	for i, tp := range tps {
		days := convAt.Sub(tp.Timestamp).Hours() / 24.0
		raw[i] = math.Exp2(-days / halfLifeDays)
		sum += raw[i]
	}
	for i := range raw {
		raw[i] /= sum
	}
	return raw
}

// positionBased is the U-shaped model: first and last touchpoints receive the
// configured shares, the middle splits the remainder evenly. Two touchpoints
// always split 0.5/0.5 regardless of configuration.
func positionBased(n int, first, last float64) []float64 {
	switch n {
	case 1:
		return []float64{1.0}
	case 2:
		return []float64{0.5, 0.5}
	}
	w := make([]float64, n)
	w[0] = first
	w[n-1] = last
	middle := (1.0 - first - last) / float64(n-2)
	for i := 1; i < n-1; i++ {
		w[i] = middle
	}
	return w
}

// wShaped pegs the first, middle, and last touchpoints at 0.3 each and splits
// the residual 0.1 across the rest. Journeys of three or fewer touchpoints
// split evenly: with no non-peg touchpoints the residual has nowhere to go,
// and equal split is the only assignment that keeps the weights summing to 1.
func wShaped(n int) []float64 {
	if n <= 3 {
		return linear(n)
	}
	w := make([]float64, n)
	pegs := map[int]bool{0: true, n / 2: true, n - 1: true}
	rest := float64(n - len(pegs))
	for i := range w {
		if pegs[i] {
			w[i] = 0.3
		} else {
			w[i] = 0.1 / rest
		}
	}
	return w
}
