package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

func perpRows() []data.PerpCsvRow {
	return []data.PerpCsvRow{
		{Symbol: "BTC", MarkPrice: 100, Bid: 99.9, Ask: 100.1, FundingAPY: 0.1, Timestamp: 0},
		{Symbol: "BTC", MarkPrice: 110, Bid: 109.9, Ask: 110.1, FundingAPY: 0.1, Timestamp: 28800},
		{Symbol: "BTC", MarkPrice: 50, Bid: 49.9, Ask: 50.1, FundingAPY: 0.1, Timestamp: 57600},
	}
}

func TestPerpOpenAndClose(t *testing.T) {
	sim := NewPerpSimulator(perpRows(), 1000, 0, 1)
	long := model.DirectionLong
	lev := 2.0
	node := &model.PerpNode{IDValue: "p1", Action: model.PerpOpen, Direction: &long, Leverage: &lev}

	res, err := sim.Execute(context.Background(), node, 200)
	require.NoError(t, err)
	assert.Equal(t, 200.0, res.Consumed)
	assert.InDelta(t, 1100.0, sim.balance, 1e-9)

	node.Action = model.PerpClose
	res, err = sim.Execute(context.Background(), node, 0)
	require.NoError(t, err)
	assert.Greater(t, res.Amount, 0.0)
}

func TestPerpLiquidation(t *testing.T) {
	clk := clock.New([]int64{0, 28800, 57600})
	sim := NewPerpSimulator(perpRows(), 1000, 0, 1)
	long := model.DirectionLong
	lev := 50.0
	node := &model.PerpNode{IDValue: "p1", Action: model.PerpOpen, Direction: &long, Leverage: &lev}
	_, err := sim.Execute(context.Background(), node, 500)
	require.NoError(t, err)

	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))
	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))

	assert.False(t, sim.position.isOpen())
	assert.GreaterOrEqual(t, sim.LiquidationCount, uint32(1))
}

func TestPerpOpenFromZeroBalanceSucceeds(t *testing.T) {
	sim := NewPerpSimulator(perpRows(), 0, 0, 1)
	long := model.DirectionLong
	lev := 2.0
	node := &model.PerpNode{IDValue: "p1", Action: model.PerpOpen, Direction: &long, Leverage: &lev}

	res, err := sim.Execute(context.Background(), node, 200)
	require.NoError(t, err)
	assert.Equal(t, 200.0, res.Consumed)
	// long fills at ask 100.1 while marked at 100: unrealized PnL is -(200/100.1)*0.1
	assert.InDelta(t, 200.0-(200.0/100.1)*0.1, sim.TotalValue(), 1e-9)
}

func TestPerpFundingAppliesToBalanceNotIsolatedMargin(t *testing.T) {
	clk := clock.New([]int64{0, 28800, 57600})
	sim := NewPerpSimulator(perpRows(), 0, 0, 1)
	long := model.DirectionLong
	lev := 2.0
	node := &model.PerpNode{IDValue: "p1", Action: model.PerpOpen, Direction: &long, Leverage: &lev}
	_, err := sim.Execute(context.Background(), node, 200)
	require.NoError(t, err)

	marginBefore := sim.position.IsolatedMargin
	balanceBefore := sim.balance

	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))

	assert.Equal(t, marginBefore, sim.position.IsolatedMargin)
	assert.NotEqual(t, balanceBefore, sim.balance)
}

func TestPerpCollectFundingSweepsBalanceAndZeroesIt(t *testing.T) {
	clk := clock.New([]int64{0, 28800, 57600})
	sim := NewPerpSimulator(perpRows(), 0, 0, 1)
	short := model.DirectionShort
	lev := 2.0
	node := &model.PerpNode{IDValue: "p1", Action: model.PerpOpen, Direction: &short, Leverage: &lev}
	_, err := sim.Execute(context.Background(), node, 200)
	require.NoError(t, err)

	clk.Advance()
	require.NoError(t, sim.Tick(context.Background(), clk))
	require.Greater(t, sim.balance, 0.0)

	node.Action = model.PerpCollectFunding
	res, err := sim.Execute(context.Background(), node, 0)
	require.NoError(t, err)
	assert.Equal(t, "USDC", res.Token)
	assert.Greater(t, res.Amount, 0.0)
	assert.Equal(t, 0.0, sim.balance)

	res, err = sim.Execute(context.Background(), node, 0)
	require.NoError(t, err)
	assert.Equal(t, venue.ResultNoop, res.Kind)
}

func TestPerpUnwindPartial(t *testing.T) {
	sim := NewPerpSimulator(perpRows(), 1000, 0, 1)
	long := model.DirectionLong
	lev := 2.0
	node := &model.PerpNode{IDValue: "p1", Action: model.PerpOpen, Direction: &long, Leverage: &lev}
	_, err := sim.Execute(context.Background(), node, 200)
	require.NoError(t, err)

	freed, err := sim.Unwind(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Greater(t, freed, 0.0)
	assert.True(t, sim.position.isOpen())
}
