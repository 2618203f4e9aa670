package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

func TestKellyWeightClampsToMax(t *testing.T) {
	w := kellyWeight(0.5, 0.10, 0.01, 0.5)
	assert.Equal(t, 0.5, w)
}

func TestRunNoopWithinDriftThreshold(t *testing.T) {
	mu, sigma := 0.10, 0.20
	v1 := "v1"
	node := &model.OptimizerNode{
		IDValue:        "opt1",
		KellyFraction:  0.5,
		DriftThreshold: 0.5,
		Allocations: []model.Allocation{
			{TargetNode: &v1, ExpectedReturn: &mu, Volatility: &sigma},
		},
	}
	current := map[string]float64{"v1": 100}
	res, err := Run(context.Background(), node, 0, func(id string) float64 { return current[id] }, nil)
	require.NoError(t, err)
	assert.Equal(t, venue.ResultNoop, res.Kind)
}

func TestRunProducesAdditiveAllocation(t *testing.T) {
	mu, sigma := 0.10, 0.20
	v1, v2 := "v1", "v2"
	node := &model.OptimizerNode{
		IDValue:        "opt1",
		KellyFraction:  0.5,
		DriftThreshold: 0.01,
		Allocations: []model.Allocation{
			{TargetNode: &v1, ExpectedReturn: &mu, Volatility: &sigma},
			{TargetNode: &v2, ExpectedReturn: &mu, Volatility: &sigma},
		},
	}
	res, err := Run(context.Background(), node, 1000, func(string) float64 { return 0 }, nil)
	require.NoError(t, err)
	assert.Equal(t, venue.ResultAllocations, res.Kind)
	var total float64
	for _, e := range res.Allocations {
		total += e.USD
	}
	assert.LessOrEqual(t, total, 1000.0)
	assert.Greater(t, total, 0.0)
}

func TestRunSubtractiveUnwindsOverweightTargets(t *testing.T) {
	mu, sigma := 0.0001, 1.0 // tiny Kelly weight so current >> target
	v1 := "v1"
	node := &model.OptimizerNode{
		IDValue:        "opt1",
		KellyFraction:  0.5,
		DriftThreshold: 0.01,
		Allocations: []model.Allocation{
			{TargetNode: &v1, ExpectedReturn: &mu, Volatility: &sigma},
		},
	}
	unwound := false
	unwind := func(_ context.Context, id string, fraction float64) (float64, error) {
		unwound = true
		assert.Equal(t, "v1", id)
		assert.Greater(t, fraction, 0.0)
		return 900 * fraction, nil
	}
	_, err := Run(context.Background(), node, 0, func(string) float64 { return 900 }, unwind)
	require.NoError(t, err)
	assert.True(t, unwound)
}
