package mmm

import (
	"math"

	"github.com/lumetric/lumetric/internal/domain"
)

// predict applies the fitted coefficients to standardized rows
func predict(x [][]float64, coefs []float64, intercept float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		v := intercept
		for j, c := range coefs {
			v += c * row[j]
		}
		out[i] = v
	}
	return out
}

// fitMetrics computes the in-sample diagnostics. MAPE skips zero-valued
// observations, which would otherwise divide by zero.
func fitMetrics(y, pred []float64, p int) domain.FitMetrics {
	n := len(y)
	if n == 0 {
		return domain.FitMetrics{}
	}

	mean := 0.0
	for _, v := range y {
		mean += v
	}
	mean /= float64(n)

	var ssRes, ssTot, sae, sse, mapeSum float64
	mapeN := 0
	for i := range y {
		resid := y[i] - pred[i]
		ssRes += resid * resid
		ssTot += (y[i] - mean) * (y[i] - mean)
		sae += math.Abs(resid)
		sse += resid * resid
		if y[i] != 0 {
			mapeSum += math.Abs(resid / y[i])
			mapeN++
		}
	}

	m := domain.FitMetrics{
		RMSE: math.Sqrt(sse / float64(n)),
		MAE:  sae / float64(n),
	}
	if ssTot > 0 {
		m.RSquared = 1 - ssRes/ssTot
	}
	if n-p-1 > 0 {
		m.AdjRSquared = 1 - (1-m.RSquared)*float64(n-1)/float64(n-p-1)
	} else {
		m.AdjRSquared = m.RSquared
	}
	if mapeN > 0 {
		m.MAPE = mapeSum / float64(mapeN) * 100
	}
	return m
}

// featureImportance is each coefficient's share of total absolute weight
func featureImportance(features []string, coefs []float64) map[string]float64 {
	total := 0.0
	for _, c := range coefs {
		total += math.Abs(c)
	}
	out := make(map[string]float64, len(features))
	for i, f := range features {
		if total > 0 {
			out[f] = math.Abs(coefs[i]) / total
		} else {
			out[f] = 0
		}
	}
	return out
}

// channelEconomics derives per-channel contribution share and ROI. The
// fitted coefficient is mapped back to the un-standardized transformed
// column (divide by the column's std) and multiplied through the channel's
// saturated series, summed over time; shares normalize against all channel
// contributions plus the intercept's bulk. Zero-spend channels report
// ROI 0 rather than dividing by zero.
func channelEconomics(f *trainingFrame, scaler *domain.Scaler, coefs []float64, intercept float64, channels []domain.ChannelConfig) map[string]domain.ChannelResult {
	n := len(f.matrix)
	contrib := make(map[string]float64, len(channels))
	totalContrib := intercept * float64(n)

	for j, ch := range channels {
		raw := 0.0
		if scaler.Std[j] > 0 {
			beta := coefs[j] / scaler.Std[j]
			for i := 0; i < n; i++ {
				raw += beta * f.matrix[i][j]
			}
		}
		contrib[ch.Channel] = raw
		totalContrib += math.Abs(raw)
	}

	out := make(map[string]domain.ChannelResult, len(channels))
	for j, ch := range channels {
		spendTotal := 0.0
		for _, v := range f.spend[ch.Channel] {
			spendTotal += v
		}
		res := domain.ChannelResult{
			Coefficient: coefs[j],
			TotalSpend:  spendTotal,
		}
		if totalContrib != 0 {
			res.ContributionPct = math.Abs(contrib[ch.Channel]) / totalContrib * 100
		}
		if spendTotal > 0 {
			res.ROI = (contrib[ch.Channel] - spendTotal) / spendTotal
		}
		out[ch.Channel] = res
	}
	return out
}
