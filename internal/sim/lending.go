package sim

import (
	"context"
	"fmt"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// LendingSimulator accrues supply APY, tracks borrows, and emits reward tokens.
// Direct port of original_source/src/sim/lending.rs.
type LendingSimulator struct {
	marketData []data.LendingCsvRow
	cursor     int

	Supplied              float64
	Borrowed              float64
	AccruedSupplyInterest float64
	AccruedBorrowInterest float64
	AccruedRewards        float64
}

func NewLendingSimulator(marketData []data.LendingCsvRow) *LendingSimulator {
	return &LendingSimulator{marketData: marketData}
}

func (l *LendingSimulator) currentRow() data.LendingCsvRow {
	idx := l.cursor
	if idx > len(l.marketData)-1 {
		idx = len(l.marketData) - 1
	}
	return l.marketData[idx]
}

func (l *LendingSimulator) advanceCursor(c *clock.SimClock) {
	ts := c.CurrentTimestamp()
	for l.cursor+1 < len(l.marketData) && l.marketData[l.cursor+1].Timestamp <= ts {
		l.cursor++
	}
}

func (l *LendingSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	lendingNode, ok := node.(*model.LendingNode)
	if !ok {
		return venue.ExecutionResult{}, fmt.Errorf("LendingSimulator called on non-lending node %T", node)
	}
	switch lendingNode.Action {
	case model.LendingSupply:
		l.Supplied += inputAmountUSD
		return venue.PositionUpdate(inputAmountUSD, "", 0, false), nil
	case model.LendingWithdraw:
		available := l.Supplied + l.AccruedSupplyInterest
		withdraw := inputAmountUSD
		if withdraw > available {
			withdraw = available
		}
		l.Supplied -= withdraw
		if l.Supplied < 0 {
			l.Supplied = 0
		}
		l.AccruedSupplyInterest = 0
		return venue.TokenOutput(lendingNode.Asset, withdraw), nil
	case model.LendingBorrow:
		l.Borrowed += inputAmountUSD
		return venue.TokenOutput(lendingNode.Asset, inputAmountUSD), nil
	case model.LendingRepay:
		owed := l.Borrowed + l.AccruedBorrowInterest
		repay := inputAmountUSD
		if repay > owed {
			repay = owed
		}
		l.Borrowed -= repay
		if l.Borrowed < 0 {
			l.Borrowed = 0
		}
		l.AccruedBorrowInterest = 0
		return venue.PositionUpdate(repay, "", 0, false), nil
	case model.LendingClaimRewards:
		rewards := l.AccruedRewards
		l.AccruedRewards = 0
		if rewards > 0 {
			return venue.TokenOutput("USDC", rewards), nil
		}
		return venue.Noop(), nil
	default:
		return venue.ExecutionResult{}, fmt.Errorf("lending: unknown action %q", lendingNode.Action)
	}
}

func (l *LendingSimulator) TotalValue() float64 {
	return l.Supplied + l.AccruedSupplyInterest + l.AccruedRewards - l.Borrowed - l.AccruedBorrowInterest
}

func (l *LendingSimulator) Tick(_ context.Context, c *clock.SimClock) error {
	l.advanceCursor(c)
	dt := c.DtYears()
	if dt <= 0 {
		return nil
	}
	row := l.currentRow()
	if l.Supplied > 0 {
		l.AccruedSupplyInterest += l.Supplied * row.SupplyAPY * dt
		l.AccruedRewards += l.Supplied * row.RewardAPY * dt
	}
	if l.Borrowed > 0 {
		l.AccruedBorrowInterest += l.Borrowed * row.BorrowAPY * dt
	}
	return nil
}

func (l *LendingSimulator) Unwind(_ context.Context, fraction float64) (float64, error) {
	freed := l.TotalValue() * fraction
	l.Supplied -= l.Supplied * fraction
	l.AccruedSupplyInterest -= l.AccruedSupplyInterest * fraction
	l.AccruedRewards -= l.AccruedRewards * fraction
	return freed, nil
}

func (l *LendingSimulator) Metrics() model.SimMetrics {
	return model.SimMetrics{LendingInterest: l.AccruedSupplyInterest, RewardsPnL: l.AccruedRewards}
}

var _ venue.Venue = (*LendingSimulator)(nil)
