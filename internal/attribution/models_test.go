package attribution

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumetric/lumetric/internal/domain"
)

var allModels = []domain.AttributionModelType{
	domain.ModelFirstTouch,
	domain.ModelLastTouch,
	domain.ModelLinear,
	domain.ModelTimeDecay,
	domain.ModelPositionBased,
	domain.ModelWShaped,
}

func journeyAt(convAt time.Time, hoursBefore ...float64) []domain.Touchpoint {
	tps := make([]domain.Touchpoint, len(hoursBefore))
	for i, h := range hoursBefore {
		tps[i] = domain.Touchpoint{
			ID:        fmt.Sprintf("tp-%d", i),
			SubjectID: "subj-1",
			Channel:   "google_ads",
			Category:  domain.CategoryPaidSearch,
			Timestamp: convAt.Add(-time.Duration(h * float64(time.Hour))),
		}
	}
	return tps
}

func testConversion(convAt time.Time) domain.Conversion {
	return domain.Conversion{
		ID:                 "conv-1",
		SubjectID:          "subj-1",
		Value:              100.0,
		Currency:           "USD",
		Timestamp:          convAt,
		LookbackWindowDays: 30,
	}
}

func weightsOf(records []domain.AttributionWeight) []float64 {
	w := make([]float64, len(records))
	for i, r := range records {
		w[i] = r.Weight
	}
	return w
}

func TestWeightSumInvariant(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	conv := testConversion(convAt)

	for _, model := range allModels {
		for n := 1; n <= 12; n++ {
			hours := make([]float64, n)
			for i := range hours {
				hours[i] = float64((n - i) * 13)
			}
			records, err := engine.Compute(model, journeyAt(convAt, hours...), conv)
			require.NoError(t, err, "model=%s n=%d", model, n)
			require.Len(t, records, n)

			sum := 0.0
			for _, r := range records {
				sum += r.Weight
			}
			assert.InDelta(t, 1.0, sum, 1e-6, "model=%s n=%d", model, n)
		}
	}
}

func TestEmptyJourneyReturnsEmpty(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	conv := testConversion(time.Now())

	for _, model := range allModels {
		records, err := engine.Compute(model, nil, conv)
		require.NoError(t, err, "model=%s", model)
		assert.Empty(t, records, "model=%s", model)
	}
}

func TestSingleTouchpointGetsFullCredit(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	conv := testConversion(convAt)

	for _, model := range allModels {
		records, err := engine.Compute(model, journeyAt(convAt, 6), conv)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 1.0, records[0].Weight, "model=%s", model)
		assert.Equal(t, 100.0, records[0].AttributedValue)
		assert.Equal(t, 1, records[0].Position)
		assert.Equal(t, 1, records[0].TotalTouchpoints)
	}
}

func TestFirstAndLastTouch(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	conv := testConversion(convAt)
	journey := journeyAt(convAt, 120, 96, 72, 48, 24)

	first, err := engine.Compute(domain.ModelFirstTouch, journey, conv)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0, 0}, weightsOf(first))

	last, err := engine.Compute(domain.ModelLastTouch, journey, conv)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 1}, weightsOf(last))
}

func TestLinearSymmetry(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	records, err := engine.Compute(domain.ModelLinear, journeyAt(convAt, 96, 72, 48, 24), testConversion(convAt))
	require.NoError(t, err)
	for _, r := range records {
		assert.InDelta(t, 0.25, r.Weight, 1e-9)
		assert.InDelta(t, 25.0, r.AttributedValue, 1e-9)
	}
}

func TestTimeDecayMonotonicity(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	records, err := engine.Compute(domain.ModelTimeDecay, journeyAt(convAt, 200, 150, 90, 30, 2), testConversion(convAt))
	require.NoError(t, err)

	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].Weight, records[i-1].Weight,
			"more recent touchpoints earn strictly more credit")
	}
}

func TestTimeDecayScenario(t *testing.T) {
	// Touchpoints at 72h, 24h, and 1h before conversion, half-life 7 days.
	// Expected weights follow 2^(-days/halfLife), normalized.
	engine := NewEngine(DefaultConfig())
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	hours := []float64{72, 24, 1}
	records, err := engine.Compute(domain.ModelTimeDecay, journeyAt(convAt, hours...), testConversion(convAt))
	require.NoError(t, err)
	require.Len(t, records, 3)

	raw := make([]float64, 3)
	sum := 0.0
	for i, h := range hours {
		raw[i] = math.Exp2(-(h / 24.0) / 7.0)
		sum += raw[i]
	}
	total := 0.0
	for i, r := range records {
		assert.InDelta(t, raw[i]/sum, r.Weight, 1e-9)
		assert.InDelta(t, float64(hours[i]), r.HoursToConversion, 1e-9)
		total += r.Weight
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestPositionBasedTwoTouchpointLaw(t *testing.T) {
	// Two-touchpoint journeys always split evenly, whatever the configured
	// first/last shares.
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	conv := testConversion(convAt)
	for _, cfg := range []Config{
		DefaultConfig(),
		{HalfLifeDays: 7, FirstWeight: 0.9, LastWeight: 0.1},
		{HalfLifeDays: 7, FirstWeight: 0.2, LastWeight: 0.7},
	} {
		engine := NewEngine(cfg)
		records, err := engine.Compute(domain.ModelPositionBased, journeyAt(convAt, 48, 2), conv)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.5}, weightsOf(records), "cfg=%+v", cfg)
	}
}

func TestPositionBasedUShape(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	records, err := engine.Compute(domain.ModelPositionBased, journeyAt(convAt, 96, 72, 48, 24, 2), testConversion(convAt))
	require.NoError(t, err)

	w := weightsOf(records)
	assert.InDelta(t, 0.4, w[0], 1e-9)
	assert.InDelta(t, 0.4, w[4], 1e-9)
	for i := 1; i <= 3; i++ {
		assert.InDelta(t, 0.2/3.0, w[i], 1e-9)
	}
}

func TestWShaped(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	conv := testConversion(convAt)

	// n=2 splits evenly.
	records, err := engine.Compute(domain.ModelWShaped, journeyAt(convAt, 48, 2), conv)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, weightsOf(records))

	// n=3 splits evenly: every touchpoint is a peg and there is no residual
	// recipient, so equal thirds is the only sum-preserving assignment.
	records, err = engine.Compute(domain.ModelWShaped, journeyAt(convAt, 72, 48, 2), conv)
	require.NoError(t, err)
	for _, r := range records {
		assert.InDelta(t, 1.0/3.0, r.Weight, 1e-9)
	}

	// n=5: pegs at first, middle, last get 0.3; the two others split 0.1.
	records, err = engine.Compute(domain.ModelWShaped, journeyAt(convAt, 96, 72, 48, 24, 2), conv)
	require.NoError(t, err)
	w := weightsOf(records)
	assert.InDelta(t, 0.3, w[0], 1e-9)
	assert.InDelta(t, 0.3, w[2], 1e-9)
	assert.InDelta(t, 0.3, w[4], 1e-9)
	assert.InDelta(t, 0.05, w[1], 1e-9)
	assert.InDelta(t, 0.05, w[3], 1e-9)
}

func TestUnknownModelRejected(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Now()
	_, err := engine.Compute("markov_chain", journeyAt(convAt, 5), testConversion(convAt))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
}

func TestInvalidConversionRejected(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	convAt := time.Now()

	conv := testConversion(convAt)
	conv.Value = -5
	_, err := engine.Compute(domain.ModelLinear, journeyAt(convAt, 5), conv)
	assert.ErrorIs(t, err, domain.ErrNegativeValue)

	conv = testConversion(convAt)
	conv.LookbackWindowDays = -1
	_, err = engine.Compute(domain.ModelLinear, journeyAt(convAt, 5), conv)
	assert.ErrorIs(t, err, domain.ErrInvalidLookback)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{HalfLifeDays: 0, FirstWeight: 0.4, LastWeight: 0.4}.Validate())
	assert.Error(t, Config{HalfLifeDays: 7, FirstWeight: 0.7, LastWeight: 0.5}.Validate())
	assert.Error(t, Config{HalfLifeDays: 7, FirstWeight: -0.1, LastWeight: 0.4}.Validate())
}
