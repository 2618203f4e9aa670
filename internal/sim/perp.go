package sim

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// Isolated-margin perpetual futures constants, ported from original_source/src/sim/perp.rs.
const (
	MaintMarginRate = 0.01
	LiquidationFee  = 0.02
	PeriodsPerYear  = 1095.0 // 365 days * 3 funding periods/day (8h periods)
)

// SimulatedPosition is the single open isolated-margin position a PerpSimulator
// carries at a time. PositionAmt is signed: positive is long notional, negative
// is short notional.
type SimulatedPosition struct {
	PositionAmt    float64
	EntryPrice     float64
	Leverage       float64
	IsolatedMargin float64
}

func (p SimulatedPosition) isOpen() bool { return p.PositionAmt != 0 }

// PerpSimulator models isolated-margin perpetual futures: slippage-modeled fills,
// entry-price blending on same-direction adds, pro-rata close/flip PnL
// realization, funding accrual every tick, and maintenance-margin liquidation.
// Direct port of original_source/src/sim/perp.rs.
type PerpSimulator struct {
	marketData []data.PerpCsvRow
	cursor     int

	position SimulatedPosition
	balance  float64

	maxSlippageBps float64
	rng            *rand.Rand

	LiquidationCount  uint32
	CumulativeFunding float64
}

// NewPerpSimulator seeds the fill-slippage RNG deterministically so backtests
// and Monte Carlo sims replay bit-exactly given the same seed.
func NewPerpSimulator(marketData []data.PerpCsvRow, initialBalance float64, maxSlippageBps float64, seed uint64) *PerpSimulator {
	return &PerpSimulator{
		marketData:     marketData,
		balance:        initialBalance,
		maxSlippageBps: maxSlippageBps,
		rng:            rand.New(rand.NewSource(int64(seed))),
	}
}

func (p *PerpSimulator) currentRow() data.PerpCsvRow {
	idx := p.cursor
	if idx > len(p.marketData)-1 {
		idx = len(p.marketData) - 1
	}
	return p.marketData[idx]
}

func (p *PerpSimulator) advanceCursor(c *clock.SimClock) {
	ts := c.CurrentTimestamp()
	for p.cursor+1 < len(p.marketData) && p.marketData[p.cursor+1].Timestamp <= ts {
		p.cursor++
	}
}

func (p *PerpSimulator) computeSlippage() float64 {
	return p.rng.Float64() * p.maxSlippageBps / 10000.0
}

// checkAndLiquidate closes the position and forfeits LiquidationFee of whatever
// equity remains if equity has fallen to or below the maintenance margin
// requirement on the position's notional.
func (p *PerpSimulator) checkAndLiquidate() {
	if !p.position.isOpen() {
		return
	}
	row := p.currentRow()
	notional := p.position.PositionAmt * row.MarkPrice
	absNotional := notional
	if absNotional < 0 {
		absNotional = -absNotional
	}
	unrealizedPnl := p.position.PositionAmt * (row.MarkPrice - p.position.EntryPrice)
	equity := p.position.IsolatedMargin + unrealizedPnl
	maintMargin := absNotional * MaintMarginRate
	if equity <= maintMargin {
		remainingEquity := equity
		if remainingEquity < 0 {
			remainingEquity = 0
		}
		p.balance += remainingEquity * (1 - LiquidationFee)
		p.position = SimulatedPosition{}
		p.LiquidationCount++
	}
}

// accrueFunding settles one funding period: longs pay the funding rate to
// shorts when the rate is positive (and vice versa), drawn from/credited to
// the free balance (isolated margin is untouched), and tracked cumulatively
// for reporting.
func (p *PerpSimulator) accrueFunding() {
	if !p.position.isOpen() {
		return
	}
	row := p.currentRow()
	fundingPerPeriod := row.FundingAPY / PeriodsPerYear
	notional := p.position.PositionAmt * row.MarkPrice
	payment := notional * fundingPerPeriod
	p.balance -= payment
	p.CumulativeFunding -= payment
}

// placeOrder fills a directional order against bid/ask plus slippage, blending
// into or flipping an existing position as needed.
func (p *PerpSimulator) placeOrder(direction model.Direction, leverage, amountUSD float64) (venue.ExecutionResult, error) {
	p.balance += amountUSD

	row := p.currentRow()
	slippage := p.computeSlippage()

	var fillPrice float64
	var signedAmt float64
	switch direction {
	case model.DirectionLong:
		fillPrice = row.Ask * (1 + slippage)
		signedAmt = amountUSD / fillPrice
	case model.DirectionShort:
		fillPrice = row.Bid * (1 - slippage)
		signedAmt = -amountUSD / fillPrice
	default:
		return venue.ExecutionResult{}, fmt.Errorf("perp: unknown direction %q", direction)
	}

	margin := amountUSD / leverage
	if p.balance < margin {
		return venue.ExecutionResult{}, fmt.Errorf("perp: insufficient balance for margin (need %.2f, have %.2f)", margin, p.balance)
	}

	if !p.position.isOpen() {
		p.balance -= margin
		p.position = SimulatedPosition{
			PositionAmt:    signedAmt,
			EntryPrice:     fillPrice,
			Leverage:       leverage,
			IsolatedMargin: margin,
		}
		return venue.PositionUpdate(amountUSD, "", 0, false), nil
	}

	sameDirection := (p.position.PositionAmt > 0 && signedAmt > 0) || (p.position.PositionAmt < 0 && signedAmt < 0)
	if sameDirection {
		existingNotional := p.position.PositionAmt * p.position.EntryPrice
		addedNotional := signedAmt * fillPrice
		newAmt := p.position.PositionAmt + signedAmt
		newEntry := (existingNotional + addedNotional) / newAmt
		p.balance -= margin
		p.position.PositionAmt = newAmt
		p.position.EntryPrice = newEntry
		p.position.IsolatedMargin += margin
		p.position.Leverage = leverage
		return venue.PositionUpdate(amountUSD, "", 0, false), nil
	}

	// Opposite direction: close pro-rata (or fully), realizing PnL, and flip any
	// excess into a new position in the incoming direction.
	closeAmt := signedAmt
	if abs(closeAmt) > abs(p.position.PositionAmt) {
		closeAmt = -p.position.PositionAmt
	}
	realizedPnl := -closeAmt * (fillPrice - p.position.EntryPrice)
	closeFraction := abs(closeAmt) / abs(p.position.PositionAmt)
	freedMargin := p.position.IsolatedMargin * closeFraction
	p.balance += freedMargin + realizedPnl
	p.position.PositionAmt += closeAmt
	p.position.IsolatedMargin -= freedMargin

	remaining := signedAmt - closeAmt
	if remaining != 0 && !p.position.isOpen() {
		flipMargin := abs(remaining) * fillPrice / leverage
		if p.balance < flipMargin {
			return venue.PositionUpdate(freedMargin, "", 0, false), nil
		}
		p.balance -= flipMargin
		p.position = SimulatedPosition{
			PositionAmt:    remaining,
			EntryPrice:     fillPrice,
			Leverage:       leverage,
			IsolatedMargin: flipMargin,
		}
	}
	if !p.position.isOpen() {
		p.position = SimulatedPosition{}
	}
	return venue.PositionUpdate(freedMargin, "", 0, false), nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (p *PerpSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	perpNode, ok := node.(*model.PerpNode)
	if !ok {
		return venue.ExecutionResult{}, fmt.Errorf("PerpSimulator called on non-perp node %T", node)
	}
	switch perpNode.Action {
	case model.PerpOpen, model.PerpAdjust:
		if perpNode.Direction == nil {
			return venue.ExecutionResult{}, fmt.Errorf("perp %s: direction is required", perpNode.Action)
		}
		leverage := 1.0
		if perpNode.Leverage != nil {
			leverage = *perpNode.Leverage
		}
		return p.placeOrder(*perpNode.Direction, leverage, inputAmountUSD)
	case model.PerpClose:
		if !p.position.isOpen() {
			return venue.Noop(), nil
		}
		row := p.currentRow()
		unrealizedPnl := p.position.PositionAmt * (row.MarkPrice - p.position.EntryPrice)
		freed := p.position.IsolatedMargin + unrealizedPnl
		if freed < 0 {
			freed = 0
		}
		p.balance += freed
		p.position = SimulatedPosition{}
		return venue.TokenOutput("USDC", freed), nil
	case model.PerpCollectFunding:
		collected := p.balance
		if collected < 0 {
			collected = 0
		}
		p.balance = 0
		if collected > 0 {
			return venue.TokenOutput("USDC", collected), nil
		}
		return venue.Noop(), nil
	default:
		return venue.ExecutionResult{}, fmt.Errorf("perp: unknown action %q", perpNode.Action)
	}
}

func (p *PerpSimulator) TotalValue() float64 {
	if !p.position.isOpen() {
		return p.balance
	}
	row := p.currentRow()
	unrealizedPnl := p.position.PositionAmt * (row.MarkPrice - p.position.EntryPrice)
	return p.balance + p.position.IsolatedMargin + unrealizedPnl
}

func (p *PerpSimulator) Tick(_ context.Context, c *clock.SimClock) error {
	p.advanceCursor(c)
	p.accrueFunding()
	p.checkAndLiquidate()
	return nil
}

// Unwind partially closes the open position — equivalent to a partial Close —
// at the current bid/ask plus slippage, freeing fraction * TotalValue.
func (p *PerpSimulator) Unwind(_ context.Context, fraction float64) (float64, error) {
	if fraction <= 0 {
		return 0, nil
	}
	if !p.position.isOpen() {
		freed := p.balance * fraction
		p.balance -= freed
		return freed, nil
	}
	row := p.currentRow()
	slippage := p.computeSlippage()
	var fillPrice float64
	if p.position.PositionAmt > 0 {
		fillPrice = row.Bid * (1 - slippage)
	} else {
		fillPrice = row.Ask * (1 + slippage)
	}
	closeAmt := -p.position.PositionAmt * fraction
	realizedPnl := -closeAmt * (fillPrice - p.position.EntryPrice)
	freedMargin := p.position.IsolatedMargin * fraction
	freed := freedMargin + realizedPnl
	if freed < 0 {
		freed = 0
	}
	freedBalance := p.balance * fraction
	p.balance -= freedBalance
	p.position.PositionAmt += closeAmt
	p.position.IsolatedMargin -= freedMargin
	if fraction >= 1 {
		p.position = SimulatedPosition{}
	}
	return freed + freedBalance, nil
}

func (p *PerpSimulator) Metrics() model.SimMetrics {
	return model.SimMetrics{
		FundingPnL:   p.CumulativeFunding,
		Liquidations: float64(p.LiquidationCount),
	}
}

var _ venue.Venue = (*PerpSimulator)(nil)
