package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// SpotSimulator is a slippage-modeled spot trade driver over a price/spot CSV.
// Ported from original_source/src/sim/spot.rs.
type SpotSimulator struct {
	marketData  []data.PriceCsvRow
	cursor      int
	slippageBps float64
}

func NewSpotSimulator(marketData []data.PriceCsvRow, slippageBps float64) *SpotSimulator {
	return &SpotSimulator{marketData: marketData, slippageBps: slippageBps}
}

func (s *SpotSimulator) currentRow() data.PriceCsvRow {
	idx := s.cursor
	if idx > len(s.marketData)-1 {
		idx = len(s.marketData) - 1
	}
	return s.marketData[idx]
}

func (s *SpotSimulator) advanceCursor(c *clock.SimClock) {
	ts := c.CurrentTimestamp()
	for s.cursor+1 < len(s.marketData) && s.marketData[s.cursor+1].Timestamp <= ts {
		s.cursor++
	}
}

func (s *SpotSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	spotNode, ok := node.(*model.SpotNode)
	if !ok {
		return venue.ExecutionResult{}, fmt.Errorf("SpotSimulator called on non-spot node %T", node)
	}
	row := s.currentRow()
	slippage := s.slippageBps / 10000.0
	parts := strings.Split(spotNode.Pair, "/")

	var outputToken string
	var outputAmount float64
	switch spotNode.Side {
	case model.SideBuy:
		price := row.Ask * (1.0 + slippage)
		outputAmount = inputAmountUSD / price
		outputToken = "TOKEN"
		if len(parts) > 0 {
			outputToken = parts[0]
		}
	case model.SideSell:
		price := row.Bid * (1.0 - slippage)
		outputAmount = inputAmountUSD * price
		outputToken = "USDC"
		if len(parts) > 1 {
			outputToken = parts[1]
		}
	default:
		return venue.ExecutionResult{}, fmt.Errorf("spot: unknown side %q", spotNode.Side)
	}
	return venue.TokenOutput(outputToken, outputAmount), nil
}

func (s *SpotSimulator) TotalValue() float64 { return 0 }

func (s *SpotSimulator) Tick(_ context.Context, c *clock.SimClock) error {
	s.advanceCursor(c)
	return nil
}

func (s *SpotSimulator) Unwind(_ context.Context, _ float64) (float64, error) { return 0, nil }

func (s *SpotSimulator) Metrics() model.SimMetrics { return model.SimMetrics{} }

var _ venue.Venue = (*SpotSimulator)(nil)
