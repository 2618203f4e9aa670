package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// FullTickRange is the entire Uniswap V3 tick space, used as the denominator
// of the fee concentration multiplier for a full-range (no-concentration)
// reference position. Ported from original_source/src/sim/lp.rs.
const FullTickRange = 887272 * 2

// tickToSqrtPrice computes sqrt(1.0001^tick), the V3 sqrt-price at a tick.
func tickToSqrtPrice(tick int32) float64 {
	return math.Pow(1.0001, float64(tick)/2.0)
}

// calculateAmountsFromLiquidity is the standard V3 three-branch formula for the
// token amounts backing a liquidity position at the given current tick.
func calculateAmountsFromLiquidity(liquidity float64, tickLower, tickUpper, currentTick int32) (amount0, amount1 float64) {
	sqrtLower := tickToSqrtPrice(tickLower)
	sqrtUpper := tickToSqrtPrice(tickUpper)
	sqrtCurrent := tickToSqrtPrice(currentTick)

	switch {
	case currentTick <= tickLower:
		amount0 = liquidity * (sqrtUpper - sqrtLower) / (sqrtLower * sqrtUpper)
	case currentTick >= tickUpper:
		amount1 = liquidity * (sqrtUpper - sqrtLower)
	default:
		amount0 = liquidity * (sqrtUpper - sqrtCurrent) / (sqrtCurrent * sqrtUpper)
		amount1 = liquidity * (sqrtCurrent - sqrtLower)
	}
	return amount0, amount1
}

// feeConcentrationMultiplier is the standard approximation for how much more
// fee density a narrow range earns versus a full-range position covering the
// same tick span: sqrt(FULL_TICK_RANGE / range).
func feeConcentrationMultiplier(tickLower, tickUpper int32) float64 {
	tickRange := tickUpper - tickLower
	if tickRange <= 0 {
		return 1.0
	}
	return math.Sqrt(float64(FullTickRange) / float64(tickRange))
}

func isInRange(currentTick, tickLower, tickUpper int32) bool {
	return currentTick >= tickLower && currentTick < tickUpper
}

// LpSimulator models a single concentrated-liquidity position: deposit sizing
// via virtual liquidity, in-range fee accrual scaled by the concentration
// multiplier, reward emissions, a gauge-staking flag, and compounding. Rewards
// accrue whether or not the position is staked; the flag does not change them.
// Direct port of original_source/src/sim/lp.rs.
type LpSimulator struct {
	marketData []data.LpCsvRow
	cursor     int

	tickLower     int32
	tickUpper     int32
	concentration float64

	virtualLiquidity float64
	depositUSD       float64
	accruedFees      float64
	accruedRewards   float64
	stakedInGauge    bool

	ticksInRange    int64
	ticksOutOfRange int64
}

func NewLpSimulator(marketData []data.LpCsvRow, tickLower, tickUpper int32) *LpSimulator {
	return &LpSimulator{
		marketData:    marketData,
		tickLower:     tickLower,
		tickUpper:     tickUpper,
		concentration: feeConcentrationMultiplier(tickLower, tickUpper),
	}
}

func (l *LpSimulator) currentRow() data.LpCsvRow {
	idx := l.cursor
	if idx > len(l.marketData)-1 {
		idx = len(l.marketData) - 1
	}
	return l.marketData[idx]
}

func (l *LpSimulator) advanceCursor(c *clock.SimClock) {
	ts := c.CurrentTimestamp()
	for l.cursor+1 < len(l.marketData) && l.marketData[l.cursor+1].Timestamp <= ts {
		l.cursor++
	}
}

// deposit sizes virtual liquidity so that the position's token-0/token-1 value
// at the current tick sums to depositUSD, using price_a as the token-0 USD
// price (price_b is token-1's price, almost always the USD quote asset).
func (l *LpSimulator) deposit(depositUSD float64) {
	row := l.currentRow()
	amount0, amount1 := calculateAmountsFromLiquidity(1.0, l.tickLower, l.tickUpper, row.CurrentTick)
	valuePerUnitLiquidity := amount0*row.PriceA + amount1*row.PriceB

	if valuePerUnitLiquidity > 0 {
		l.virtualLiquidity += depositUSD / valuePerUnitLiquidity
	}
	l.depositUSD += depositUSD
}

// positionValueUSD is the pure V3 amount math for the current position — no
// accrued-fee or accrued-reward buckets mixed in, matching spec §4.8's
// `position_value_usd` term used as the fee/reward accrual base.
func (l *LpSimulator) positionValueUSD() float64 {
	if l.virtualLiquidity <= 0 {
		return 0
	}
	row := l.currentRow()
	amount0, amount1 := calculateAmountsFromLiquidity(l.virtualLiquidity, l.tickLower, l.tickUpper, row.CurrentTick)
	return amount0*row.PriceA + amount1*row.PriceB
}

// totalValueUSD is spec §4.8's `total_value`: position_value_usd + accrued_fees
// + accrued_rewards (token units) converted to USD at the current reward price.
func (l *LpSimulator) totalValueUSD() float64 {
	row := l.currentRow()
	return l.positionValueUSD() + l.accruedFees + l.accruedRewards*row.RewardTokenPrice
}

func (l *LpSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	lpNode, ok := node.(*model.LpNode)
	if !ok {
		return venue.ExecutionResult{}, fmt.Errorf("LpSimulator called on non-lp node %T", node)
	}
	switch lpNode.Action {
	case model.LpAddLiquidity:
		l.deposit(inputAmountUSD)
		return venue.PositionUpdate(inputAmountUSD, "", 0, false), nil
	case model.LpRemoveLiquidity:
		value := l.positionValueUSD() + l.accruedFees
		l.virtualLiquidity = 0
		l.depositUSD = 0
		l.accruedFees = 0
		if l.stakedInGauge {
			l.stakedInGauge = false
		}
		return venue.TokenOutput("USDC", value), nil
	case model.LpClaimRewards:
		row := l.currentRow()
		rewardsUSD := l.accruedRewards * row.RewardTokenPrice
		l.accruedRewards = 0
		if rewardsUSD > 0 {
			return venue.TokenOutput("AERO", rewardsUSD), nil
		}
		return venue.Noop(), nil
	case model.LpCompound:
		fees := l.accruedFees
		l.accruedFees = 0
		if fees > 0 {
			l.deposit(fees)
		}
		return venue.PositionUpdate(fees, "", 0, false), nil
	case model.LpStakeGauge:
		l.stakedInGauge = true
		return venue.Noop(), nil
	case model.LpUnstakeGauge:
		l.stakedInGauge = false
		return venue.Noop(), nil
	default:
		return venue.ExecutionResult{}, fmt.Errorf("lp: unknown action %q", lpNode.Action)
	}
}

func (l *LpSimulator) TotalValue() float64 {
	return l.totalValueUSD()
}

func (l *LpSimulator) Tick(_ context.Context, c *clock.SimClock) error {
	l.advanceCursor(c)
	dt := c.DtYears()
	if dt <= 0 {
		return nil
	}
	row := l.currentRow()
	inRange := isInRange(row.CurrentTick, l.tickLower, l.tickUpper)
	if inRange {
		l.ticksInRange++
	} else {
		l.ticksOutOfRange++
	}
	if l.virtualLiquidity <= 0 {
		return nil
	}
	value := l.positionValueUSD()
	if inRange {
		l.accruedFees += value * row.FeeAPY * l.concentration * dt
	}
	// Gauge rewards accrue to the position whether in range or not, and are
	// not gated on stakedInGauge (spec §4.8's tick rule covers both cases).
	l.accruedRewards += value * row.RewardRate * dt
	return nil
}

func (l *LpSimulator) Unwind(_ context.Context, fraction float64) (float64, error) {
	freed := l.totalValueUSD() * fraction
	l.virtualLiquidity -= l.virtualLiquidity * fraction
	l.depositUSD -= l.depositUSD * fraction
	l.accruedFees -= l.accruedFees * fraction
	l.accruedRewards -= l.accruedRewards * fraction
	return freed, nil
}

func (l *LpSimulator) Metrics() model.SimMetrics {
	return model.SimMetrics{LpFees: l.accruedFees, RewardsPnL: l.accruedRewards}
}

var _ venue.Venue = (*LpSimulator)(nil)
