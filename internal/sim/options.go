package sim

import (
	"context"
	"fmt"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// OptionsSimulator models covered-call-style option writing against the
// Markowitz-compatible OptionsCsvRow schema (spec §6). No Rust original is
// present in the retrieval pack for this venue; it is built by analogy to
// PerpSimulator's single-position tracking, restricted to the premium-collection
// half of the lifecycle the spec scopes this node to ("configuration for option
// writing").
type OptionsSimulator struct {
	marketData []data.OptionsCsvRow
	cursor     int

	collateralUSD    float64
	premiumCollected float64
	written          bool
}

func NewOptionsSimulator(marketData []data.OptionsCsvRow) *OptionsSimulator {
	return &OptionsSimulator{marketData: marketData}
}

func (o *OptionsSimulator) currentRow() data.OptionsCsvRow {
	idx := o.cursor
	if idx > len(o.marketData)-1 {
		idx = len(o.marketData) - 1
	}
	return o.marketData[idx]
}

func (o *OptionsSimulator) advanceCursor(c *clock.SimClock) {
	ts := c.CurrentTimestamp()
	for o.cursor+1 < len(o.marketData) && o.marketData[o.cursor+1].Timestamp <= ts {
		o.cursor++
	}
}

func (o *OptionsSimulator) Execute(_ context.Context, node model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	if _, ok := node.(*model.OptionsNode); !ok {
		return venue.ExecutionResult{}, fmt.Errorf("OptionsSimulator called on non-options node %T", node)
	}
	row := o.currentRow()
	o.collateralUSD += inputAmountUSD
	premium := inputAmountUSD * row.ImpliedVol * 0.01 // crude at-write premium estimate
	o.premiumCollected += premium
	o.written = true
	return venue.PositionUpdate(inputAmountUSD, "", 0, false), nil
}

func (o *OptionsSimulator) TotalValue() float64 {
	return o.collateralUSD + o.premiumCollected
}

func (o *OptionsSimulator) Tick(_ context.Context, c *clock.SimClock) error {
	o.advanceCursor(c)
	return nil
}

func (o *OptionsSimulator) Unwind(_ context.Context, fraction float64) (float64, error) {
	freed := o.TotalValue() * fraction
	o.collateralUSD -= o.collateralUSD * fraction
	o.premiumCollected -= o.premiumCollected * fraction
	return freed, nil
}

func (o *OptionsSimulator) Metrics() model.SimMetrics {
	return model.SimMetrics{PremiumPnL: o.premiumCollected}
}

var _ venue.Venue = (*OptionsSimulator)(nil)
