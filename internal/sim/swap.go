package sim

import (
	"context"
	"fmt"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// SwapSimulator models a fixed slippage+fee swap. Ported from
// original_source/src/sim/swap.rs.
type SwapSimulator struct {
	slippageBps float64
	feeBps      float64
	totalCost   float64
}

func NewSwapSimulator(slippageBps, feeBps float64) *SwapSimulator {
	return &SwapSimulator{slippageBps: slippageBps, feeBps: feeBps}
}

func (s *SwapSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	swapNode, ok := node.(*model.SwapNode)
	if !ok {
		return venue.ExecutionResult{}, fmt.Errorf("SwapSimulator called on non-swap node %T", node)
	}
	costFraction := (s.slippageBps + s.feeBps) / 10000.0
	cost := inputAmountUSD * costFraction
	output := inputAmountUSD - cost
	s.totalCost += cost
	return venue.TokenOutput(swapNode.ToToken, output), nil
}

func (s *SwapSimulator) TotalValue() float64 { return 0 }

func (s *SwapSimulator) Tick(_ context.Context, _ *clock.SimClock) error { return nil }

func (s *SwapSimulator) Unwind(_ context.Context, _ float64) (float64, error) { return 0, nil }

func (s *SwapSimulator) Metrics() model.SimMetrics {
	return model.SimMetrics{SwapCosts: s.totalCost}
}

var _ venue.Venue = (*SwapSimulator)(nil)
