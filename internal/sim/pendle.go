package sim

import (
	"context"
	"fmt"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// PendleSimulator models PT/YT yield tokenization: PT (principal token)
// appreciates toward 1:1 with underlying at maturity, YT (yield token) receives
// the variable yield stream. Direct port of original_source/src/sim/pendle.rs.
type PendleSimulator struct {
	marketData []data.PendleCsvRow
	cursor     int

	ptAmount     float64
	ytAmount     float64
	AccruedYield float64
}

func NewPendleSimulator(marketData []data.PendleCsvRow) *PendleSimulator {
	return &PendleSimulator{marketData: marketData}
}

func (p *PendleSimulator) currentRow() data.PendleCsvRow {
	idx := p.cursor
	if idx > len(p.marketData)-1 {
		idx = len(p.marketData) - 1
	}
	return p.marketData[idx]
}

func (p *PendleSimulator) advanceCursor(c *clock.SimClock) {
	ts := c.CurrentTimestamp()
	for p.cursor+1 < len(p.marketData) && p.marketData[p.cursor+1].Timestamp <= ts {
		p.cursor++
	}
}

func (p *PendleSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	pendleNode, ok := node.(*model.PendleNode)
	if !ok {
		return venue.ExecutionResult{}, fmt.Errorf("PendleSimulator called on non-pendle node %T", node)
	}
	row := p.currentRow()
	switch pendleNode.Action {
	case model.PendleMintPt:
		if row.PtPrice > 0 {
			p.ptAmount += inputAmountUSD / (row.PtPrice * row.UnderlyingPrice)
		}
		return venue.PositionUpdate(inputAmountUSD, "", 0, false), nil
	case model.PendleRedeemPt:
		value := p.ptAmount * row.PtPrice * row.UnderlyingPrice
		p.ptAmount = 0
		return venue.TokenOutput("USDC", value), nil
	case model.PendleMintYt:
		if row.YtPrice > 0 {
			p.ytAmount += inputAmountUSD / (row.YtPrice * row.UnderlyingPrice)
		}
		return venue.PositionUpdate(inputAmountUSD, "", 0, false), nil
	case model.PendleRedeemYt:
		value := p.ytAmount * row.YtPrice * row.UnderlyingPrice
		p.ytAmount = 0
		return venue.TokenOutput("USDC", value), nil
	case model.PendleClaimRewards:
		yieldAmount := p.AccruedYield
		p.AccruedYield = 0
		if yieldAmount > 0 {
			return venue.TokenOutput("USDC", yieldAmount), nil
		}
		return venue.Noop(), nil
	default:
		return venue.ExecutionResult{}, fmt.Errorf("pendle: unknown action %q", pendleNode.Action)
	}
}

func (p *PendleSimulator) TotalValue() float64 {
	row := p.currentRow()
	ptValue := p.ptAmount * row.PtPrice * row.UnderlyingPrice
	ytValue := p.ytAmount * row.YtPrice * row.UnderlyingPrice
	return ptValue + ytValue + p.AccruedYield
}

func (p *PendleSimulator) Tick(_ context.Context, c *clock.SimClock) error {
	p.advanceCursor(c)
	dt := c.DtYears()
	if dt <= 0 {
		return nil
	}
	row := p.currentRow()
	if p.ytAmount > 0 {
		p.AccruedYield += p.ytAmount * row.ImpliedAPY * row.UnderlyingPrice * dt
	}
	return nil
}

func (p *PendleSimulator) Unwind(_ context.Context, fraction float64) (float64, error) {
	freed := p.TotalValue() * fraction
	p.ptAmount -= p.ptAmount * fraction
	p.ytAmount -= p.ytAmount * fraction
	p.AccruedYield -= p.AccruedYield * fraction
	return freed, nil
}

func (p *PendleSimulator) Metrics() model.SimMetrics {
	return model.SimMetrics{RewardsPnL: p.AccruedYield}
}

var _ venue.Venue = (*PendleSimulator)(nil)
