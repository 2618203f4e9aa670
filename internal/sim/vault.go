package sim

import (
	"context"
	"fmt"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// VaultSimulator models an ERC-4626-style yield vault (e.g. Morpho): deposited
// shares accrue a single blended APY plus a separate reward stream. There is no
// Rust original for this simulator (src/sim/vault.rs was absent from the
// retrieval pack); it is built by analogy to LendingSimulator's supply/accrual
// pattern, driven by the Vault CSV schema (timestamp,apy,reward_apy) from spec §6.
type VaultSimulator struct {
	marketData []data.VaultCsvRow
	cursor     int

	Deposited      float64
	AccruedYield   float64
	AccruedRewards float64
}

func NewVaultSimulator(marketData []data.VaultCsvRow) *VaultSimulator {
	return &VaultSimulator{marketData: marketData}
}

func (v *VaultSimulator) currentRow() data.VaultCsvRow {
	idx := v.cursor
	if idx > len(v.marketData)-1 {
		idx = len(v.marketData) - 1
	}
	return v.marketData[idx]
}

func (v *VaultSimulator) advanceCursor(c *clock.SimClock) {
	ts := c.CurrentTimestamp()
	for v.cursor+1 < len(v.marketData) && v.marketData[v.cursor+1].Timestamp <= ts {
		v.cursor++
	}
}

func (v *VaultSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	vaultNode, ok := node.(*model.VaultNode)
	if !ok {
		return venue.ExecutionResult{}, fmt.Errorf("VaultSimulator called on non-vault node %T", node)
	}
	switch vaultNode.Action {
	case model.VaultDeposit:
		v.Deposited += inputAmountUSD
		return venue.PositionUpdate(inputAmountUSD, "", 0, false), nil
	case model.VaultWithdraw:
		available := v.Deposited + v.AccruedYield
		withdraw := inputAmountUSD
		if withdraw > available {
			withdraw = available
		}
		v.Deposited -= withdraw
		if v.Deposited < 0 {
			v.Deposited = 0
		}
		v.AccruedYield = 0
		return venue.TokenOutput(vaultNode.Asset, withdraw), nil
	default:
		return venue.ExecutionResult{}, fmt.Errorf("vault: unknown action %q", vaultNode.Action)
	}
}

func (v *VaultSimulator) TotalValue() float64 {
	return v.Deposited + v.AccruedYield + v.AccruedRewards
}

func (v *VaultSimulator) Tick(_ context.Context, c *clock.SimClock) error {
	v.advanceCursor(c)
	dt := c.DtYears()
	if dt <= 0 {
		return nil
	}
	row := v.currentRow()
	if v.Deposited > 0 {
		v.AccruedYield += v.Deposited * row.APY * dt
		v.AccruedRewards += v.Deposited * row.RewardAPY * dt
	}
	return nil
}

func (v *VaultSimulator) Unwind(_ context.Context, fraction float64) (float64, error) {
	freed := v.TotalValue() * fraction
	v.Deposited -= v.Deposited * fraction
	v.AccruedYield -= v.AccruedYield * fraction
	v.AccruedRewards -= v.AccruedRewards * fraction
	return freed, nil
}

func (v *VaultSimulator) Metrics() model.SimMetrics {
	return model.SimMetrics{LendingInterest: v.AccruedYield, RewardsPnL: v.AccruedRewards}
}

var _ venue.Venue = (*VaultSimulator)(nil)
