package reservectl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

type fakeVault struct {
	totalAssets  float64
	idleReserves float64
	deposited    float64
}

func (f *fakeVault) TotalAssets(context.Context) (float64, error)  { return f.totalAssets, nil }
func (f *fakeVault) IdleReserves(context.Context) (float64, error) { return f.idleReserves, nil }
func (f *fakeVault) DepositToReserves(_ context.Context, usd float64) error {
	f.deposited += usd
	return nil
}

func TestRunNoopAboveTrigger(t *testing.T) {
	target, trigger, minUnwind := 0.2, 0.05, 100.0
	cfg := &model.ReserveConfig{TargetRatio: &target, TriggerThreshold: &trigger, MinUnwindUSD: &minUnwind}
	vault := &fakeVault{totalAssets: 10000, idleReserves: 1000} // ratio 0.10 >= 0.05
	action, err := Run(context.Background(), cfg, vault, vault, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, action)
}

func TestRunUnwindsWhenDeficitClearsMinUnwind(t *testing.T) {
	target, trigger, minUnwind := 0.2, 0.05, 100.0
	cfg := &model.ReserveConfig{TargetRatio: &target, TriggerThreshold: &trigger, MinUnwindUSD: &minUnwind}
	vault := &fakeVault{totalAssets: 10000, idleReserves: 200} // ratio 0.02 < trigger 0.05
	unwound := 0.0
	unwind := func(_ context.Context, target float64) (float64, error) {
		unwound = target
		return target, nil
	}
	action, err := Run(context.Background(), cfg, vault, vault, unwind, 42)
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Greater(t, unwound, 0.0)
	assert.Equal(t, unwound, action.UnwoundUSD)
	assert.Equal(t, int64(42), action.Timestamp)
	assert.InDelta(t, unwound, vault.deposited, 0.01)
}

func TestRunNoopWhenDeficitBelowMinUnwind(t *testing.T) {
	target, trigger, minUnwind := 0.2, 0.05, 500.0
	cfg := &model.ReserveConfig{TargetRatio: &target, TriggerThreshold: &trigger, MinUnwindUSD: &minUnwind}
	vault := &fakeVault{totalAssets: 1000, idleReserves: 48} // ratio 0.048, deficit ~152 < 500
	action, err := Run(context.Background(), cfg, vault, vault, nil, 0)
	require.NoError(t, err)
	assert.Nil(t, action)
}
