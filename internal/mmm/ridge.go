package mmm

import "fmt"

// ridgeFit solves the L2-regularized least squares problem on standardized
// features via the normal equations (X'X + lambda*I) b = X'(y - mean(y)).
// The intercept is the target mean and is not penalized; with standardized
// columns this is the closed-form ridge solution. The feature count here is
// small (channels plus two), so direct Gaussian elimination is exact and
// cheap; no iterative solver is needed.
func ridgeFit(x [][]float64, y []float64, lambda float64) (coefs []float64, intercept float64, err error) {
	n := len(x)
	if n == 0 {
		return nil, 0, fmt.Errorf("no training rows")
	}
	p := len(x[0])
	if len(y) != n {
		return nil, 0, fmt.Errorf("target length %d does not match %d rows", len(y), n)
	}
	if lambda < 0 {
		lambda = 0
	}

	yMean := 0.0
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	// Gram matrix with ridge on the diagonal.
	a := make([][]float64, p)
	for j := range a {
		a[j] = make([]float64, p)
	}
	b := make([]float64, p)
	for i := 0; i < n; i++ {
		yc := y[i] - yMean
		for j := 0; j < p; j++ {
			b[j] += x[i][j] * yc
			for k := j; k < p; k++ {
				a[j][k] += x[i][j] * x[i][k]
			}
		}
	}
	for j := 0; j < p; j++ {
		for k := 0; k < j; k++ {
			a[j][k] = a[k][j]
		}
		a[j][j] += lambda
	}

	coefs, err = solveLinear(a, b)
	if err != nil {
		return nil, 0, err
	}
	return coefs, yMean, nil
}

// solveLinear solves a*x = b by Gaussian elimination with partial pivoting.
// The ridge diagonal keeps the system well conditioned for lambda > 0.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	p := len(a)
	// Work on copies so callers keep their matrices.
	m := make([][]float64, p)
	for i := range m {
		m[i] = append([]float64(nil), a[i]...)
	}
	v := append([]float64(nil), b...)

	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if abs(m[r][col]) > abs(m[pivot][col]) {
				pivot = r
			}
		}
		if abs(m[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular system at column %d", col)
		}
		m[col], m[pivot] = m[pivot], m[col]
		v[col], v[pivot] = v[pivot], v[col]

		for r := col + 1; r < p; r++ {
			f := m[r][col] / m[col][col]
			for c := col; c < p; c++ {
				m[r][c] -= f * m[col][c]
			}
			v[r] -= f * v[col]
		}
	}

	x := make([]float64, p)
	for r := p - 1; r >= 0; r-- {
		sum := v[r]
		for c := r + 1; c < p; c++ {
			sum -= m[r][c] * x[c]
		}
		x[r] = sum / m[r][r]
	}
	return x, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
