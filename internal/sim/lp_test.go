package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
)

func lpRows() []data.LpCsvRow {
	return []data.LpCsvRow{
		{Timestamp: 0, CurrentTick: 0, PriceA: 1, PriceB: 1, FeeAPY: 0.1, RewardRate: 0, RewardTokenPrice: 0},
		{Timestamp: 3600, CurrentTick: 0, PriceA: 1, PriceB: 1, FeeAPY: 0.1, RewardRate: 0.01, RewardTokenPrice: 1},
	}
}

func TestFeeConcentrationMultiplier(t *testing.T) {
	m := feeConcentrationMultiplier(-1000, 1000)
	assert.Greater(t, m, 1.0)
}

func TestLpAddLiquidityAndValue(t *testing.T) {
	sim := NewLpSimulator(lpRows(), -1000, 1000)
	node := &model.LpNode{IDValue: "lp1", Action: model.LpAddLiquidity}
	_, err := sim.Execute(context.Background(), node, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, sim.TotalValue(), 1.0)
}

func TestLpAccruesFeesInRange(t *testing.T) {
	clk := clock.New([]int64{0, 3600})
	sim := NewLpSimulator(lpRows(), -1000, 1000)
	node := &model.LpNode{IDValue: "lp1", Action: model.LpAddLiquidity}
	_, err := sim.Execute(context.Background(), node, 1000)
	require.NoError(t, err)

	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))
	assert.Greater(t, sim.accruedFees, 0.0)
}

func TestLpRewardsAccrueWithoutGaugeStaking(t *testing.T) {
	clk := clock.New([]int64{0, 3600})
	sim := NewLpSimulator(lpRows(), -1000, 1000)
	node := &model.LpNode{IDValue: "lp1", Action: model.LpAddLiquidity}
	_, err := sim.Execute(context.Background(), node, 1000)
	require.NoError(t, err)

	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))

	assert.False(t, sim.stakedInGauge)
	assert.Greater(t, sim.accruedRewards, 0.0)
}

func TestLpClaimRewardsEmitsAEROAtRewardTokenPrice(t *testing.T) {
	clk := clock.New([]int64{0, 3600})
	sim := NewLpSimulator(lpRows(), -1000, 1000)
	addNode := &model.LpNode{IDValue: "lp1", Action: model.LpAddLiquidity}
	_, err := sim.Execute(context.Background(), addNode, 1000)
	require.NoError(t, err)

	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))
	rewardUnits := sim.accruedRewards
	require.Greater(t, rewardUnits, 0.0)

	claimNode := &model.LpNode{IDValue: "lp1", Action: model.LpClaimRewards}
	res, err := sim.Execute(context.Background(), claimNode, 0)
	require.NoError(t, err)
	assert.Equal(t, "AERO", res.Token)
	assert.InDelta(t, rewardUnits*1.0, res.Amount, 1e-9)
	assert.Equal(t, 0.0, sim.accruedRewards)
}

func TestLpFeeAccrualDoesNotCompoundOnItself(t *testing.T) {
	rows := []data.LpCsvRow{
		{Timestamp: 0, CurrentTick: 0, PriceA: 1, PriceB: 1, FeeAPY: 0.2, RewardRate: 0, RewardTokenPrice: 0},
		{Timestamp: 3600, CurrentTick: 0, PriceA: 1, PriceB: 1, FeeAPY: 0.2, RewardRate: 0, RewardTokenPrice: 0},
		{Timestamp: 7200, CurrentTick: 0, PriceA: 1, PriceB: 1, FeeAPY: 0.2, RewardRate: 0, RewardTokenPrice: 0},
	}
	clk := clock.New([]int64{0, 3600, 7200})
	sim := NewLpSimulator(rows, -1000, 1000)
	node := &model.LpNode{IDValue: "lp1", Action: model.LpAddLiquidity}
	_, err := sim.Execute(context.Background(), node, 1000)
	require.NoError(t, err)

	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))
	firstTickFees := sim.accruedFees

	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))
	secondTickDelta := sim.accruedFees - firstTickFees

	// Equal dt/rate/position each tick: a compounding-on-itself bug would grow
	// the second tick's delta beyond the first since the base would include
	// the fees accrued so far. The raw position value base keeps them equal.
	assert.InDelta(t, firstTickFees, secondTickDelta, 1e-6)
}

func TestLpRemoveLiquidity(t *testing.T) {
	sim := NewLpSimulator(lpRows(), -1000, 1000)
	addNode := &model.LpNode{IDValue: "lp1", Action: model.LpAddLiquidity}
	_, err := sim.Execute(context.Background(), addNode, 1000)
	require.NoError(t, err)

	removeNode := &model.LpNode{IDValue: "lp1", Action: model.LpRemoveLiquidity}
	res, err := sim.Execute(context.Background(), removeNode, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, res.Amount, 1.0)
	assert.Equal(t, 0.0, sim.virtualLiquidity)
}
