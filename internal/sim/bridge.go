package sim

import (
	"context"
	"fmt"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// BridgeSimulator models a fixed-fee cross-chain bridge. Ported from
// original_source/src/sim/bridge.rs.
type BridgeSimulator struct {
	feeBps    float64
	totalCost float64
}

func NewBridgeSimulator(feeBps float64) *BridgeSimulator {
	return &BridgeSimulator{feeBps: feeBps}
}

func (b *BridgeSimulator) TotalCost() float64 { return b.totalCost }

func (b *BridgeSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	bridgeNode, ok := node.(*model.BridgeNode)
	if !ok {
		return venue.ExecutionResult{}, fmt.Errorf("BridgeSimulator called on non-bridge node %T", node)
	}
	cost := inputAmountUSD * (b.feeBps / 10000.0)
	output := inputAmountUSD - cost
	b.totalCost += cost
	return venue.TokenOutput(bridgeNode.Token, output), nil
}

func (b *BridgeSimulator) TotalValue() float64 { return 0 }

func (b *BridgeSimulator) Tick(_ context.Context, _ *clock.SimClock) error { return nil }

func (b *BridgeSimulator) Unwind(_ context.Context, _ float64) (float64, error) { return 0, nil }

func (b *BridgeSimulator) Metrics() model.SimMetrics {
	return model.SimMetrics{SwapCosts: b.totalCost}
}

var _ venue.Venue = (*BridgeSimulator)(nil)
