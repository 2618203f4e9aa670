package montecarlo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

func TestPercentileLinearInterpolation(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3.0, Percentile(sorted, 50), 0.001)
	assert.InDelta(t, 1.0, Percentile(sorted, 0), 0.001)
	assert.InDelta(t, 5.0, Percentile(sorted, 100), 0.001)
	assert.InDelta(t, 2.2, Percentile(sorted, 30), 0.01)
}

func TestEstimateAR1ClampsToRange(t *testing.T) {
	flat := []float64{0.05, 0.05, 0.05, 0.05, 0.05}
	phi := estimateAR1(flat)
	assert.GreaterOrEqual(t, phi, 0.0)
	assert.LessOrEqual(t, phi, 0.99)
}

func TestGenerateAR1PathNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	path := GenerateAR1Path(50, 0.01, 0.05, 0.5, rng)
	for _, v := range path {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestGeneratePricePathIsDeterministicForSeed(t *testing.T) {
	rngA := rand.New(rand.NewSource(42))
	rngB := rand.New(rand.NewSource(42))
	a := GeneratePricePath(20, 0.0001, 0.01, rngA)
	b := GeneratePricePath(20, 0.0001, 0.01, rngB)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i])
	}
}

func TestSummarizeEmptyReturnsZeroValue(t *testing.T) {
	s := Summarize(nil)
	assert.Empty(t, s.Percentiles)
}

func TestSummarizeComputesVaR(t *testing.T) {
	sims := []model.BacktestResult{
		{NetPnL: -500}, {NetPnL: -100}, {NetPnL: 0}, {NetPnL: 200}, {NetPnL: 900},
	}
	s := Summarize(sims)
	require.Len(t, s.Percentiles, 5)
	assert.InDelta(t, -500.0, s.VaR99, 400.0) // 1st percentile, near the worst outcome
}
