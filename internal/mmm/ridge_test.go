package mmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRidgeFit_RecoversKnownSlope(t *testing.T) {
	// y = 3 + 2*x with x standardized; tiny lambda should recover the slope.
	x := make([][]float64, 0, 8)
	y := make([]float64, 0, 8)
	for i := 0; i < 8; i++ {
		xv := float64(i) - 3.5 // mean zero
		x = append(x, []float64{xv})
		y = append(y, 3+2*xv)
	}

	coefs, intercept, err := ridgeFit(x, y, 1e-9)
	require.NoError(t, err)
	require.Len(t, coefs, 1)
	assert.InDelta(t, 2.0, coefs[0], 1e-6)
	assert.InDelta(t, 3.0, intercept, 1e-6)
}

func TestRidgeFit_ShrinksWithLambda(t *testing.T) {
	x := make([][]float64, 0, 20)
	y := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		xv := float64(i) - 9.5
		x = append(x, []float64{xv})
		y = append(y, 5*xv)
	}

	small, _, err := ridgeFit(x, y, 0.01)
	require.NoError(t, err)
	large, _, err := ridgeFit(x, y, 1000)
	require.NoError(t, err)

	assert.Greater(t, small[0], large[0], "heavier regularization shrinks the coefficient")
	assert.Greater(t, large[0], 0.0)
}

func TestRidgeFit_ZeroColumnGetsZeroCoefficient(t *testing.T) {
	x := [][]float64{{1, 0}, {2, 0}, {3, 0}, {4, 0}, {5, 0}}
	y := []float64{2, 4, 6, 8, 10}

	coefs, _, err := ridgeFit(x, y, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, coefs[1], 1e-12, "a dead column carries no weight")
	assert.Greater(t, coefs[0], 0.0)
}

func TestSolveLinear_SingularRejected(t *testing.T) {
	_, err := solveLinear([][]float64{{1, 2}, {2, 4}}, []float64{1, 2})
	assert.Error(t, err)
}

func TestSolveLinear_Pivoting(t *testing.T) {
	// Leading zero forces a row swap.
	x, err := solveLinear([][]float64{{0, 1}, {1, 0}}, []float64{3, 7})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, x[0], 1e-12)
	assert.InDelta(t, 3.0, x[1], 1e-12)
}
