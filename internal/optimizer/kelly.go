// Package optimizer implements the fractional-Kelly rebalancing algorithm run
// by an OptimizerNode when the engine dispatches it (spec §4.6).
package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// Conservative defaults substituted for any target missing explicit
// expected-return/volatility stats, named explicitly so a reader never has to
// guess what the optimizer assumed.
const (
	defaultExpectedReturn = 0.05
	defaultVolatility     = 0.20
)

// target is one resolved, flattened allocation leg (a single target_node or
// one member of a target_nodes group, which share the group's Kelly weight
// equally).
type target struct {
	nodeID string
	weight float64
}

// ValueLookup reports a target venue's current USD value; supplied by the
// engine since the optimizer package has no access to the venue map itself.
type ValueLookup func(nodeID string) float64

// UnwindFunc lets the engine supply the actual venue Unwind operation without
// the optimizer package depending on the engine package, avoiding an import
// cycle. Crediting Allocations entries is left to the engine.
type UnwindFunc func(ctx context.Context, nodeID string, fraction float64) (float64, error)

// Run executes the 7-step Kelly algorithm against an OptimizerNode and
// returns the resulting ExecutionResult: Noop if no target has drifted past
// the threshold, otherwise Allocations after performing subtractive unwinds,
// or Noop when, after those unwinds, no target receives a positive deployment.
func Run(ctx context.Context, node *model.OptimizerNode, cashAvailable float64, lookup ValueLookup, unwind UnwindFunc) (venue.ExecutionResult, error) {
	targets, totalWeight := resolveWeights(node)
	if totalWeight > 1 {
		scale := 1 / totalWeight
		for i := range targets {
			targets[i].weight *= scale
		}
	}

	current := make(map[string]float64, len(targets))
	totalPortfolio := cashAvailable
	for _, t := range targets {
		v := lookup(t.nodeID)
		current[t.nodeID] = v
		totalPortfolio += v
	}

	type plan struct {
		nodeID string
		target float64
		cur    float64
	}
	plans := make([]plan, len(targets))
	maxDrift := 0.0
	for i, t := range targets {
		want := t.weight * totalPortfolio
		have := current[t.nodeID]
		plans[i] = plan{nodeID: t.nodeID, target: want, cur: have}
		denom := math.Max(want, 1.0)
		drift := math.Abs(want-have) / denom
		if drift > maxDrift {
			maxDrift = drift
		}
	}

	if maxDrift < node.DriftThreshold {
		return venue.Noop(), nil
	}

	cash := cashAvailable
	for _, p := range plans {
		if p.cur <= p.target {
			continue
		}
		unwindFraction := (p.cur - p.target) / p.cur
		freed, err := unwind(ctx, p.nodeID, unwindFraction)
		if err != nil {
			return venue.ExecutionResult{}, fmt.Errorf("optimizer %s: unwind %s: %w", node.IDValue, p.nodeID, err)
		}
		cash += freed
	}

	var entries []venue.AllocationEntry
	for _, p := range plans {
		if p.target <= p.cur {
			continue
		}
		deploy := math.Min(p.target-p.cur, cash)
		if deploy <= 0 {
			continue
		}
		entries = append(entries, venue.AllocationEntry{NodeID: p.nodeID, USD: deploy})
		cash -= deploy
	}

	if len(entries) == 0 {
		return venue.Noop(), nil
	}
	return venue.Allocations(entries), nil
}

// resolveWeights flattens grouped legs (target_nodes[]) into individual
// per-node Kelly weights, splitting a group's weight equally across members.
func resolveWeights(node *model.OptimizerNode) ([]target, float64) {
	maxAlloc := 1.0
	if node.MaxAllocation != nil {
		maxAlloc = *node.MaxAllocation
	}

	var out []target
	total := 0.0
	for _, alloc := range node.Allocations {
		mu := defaultExpectedReturn
		if alloc.ExpectedReturn != nil {
			mu = *alloc.ExpectedReturn
		}
		sigma := defaultVolatility
		if alloc.Volatility != nil {
			sigma = *alloc.Volatility
		}
		w := kellyWeight(node.KellyFraction, mu, sigma, maxAlloc)
		total += w

		members := alloc.Targets()
		if len(members) == 0 {
			continue
		}
		perMember := w / float64(len(members))
		for _, m := range members {
			out = append(out, target{nodeID: m, weight: perMember})
		}
	}
	return out, total
}

func kellyWeight(k, mu, sigma, maxAlloc float64) float64 {
	if sigma == 0 {
		return 0
	}
	w := k * mu / (sigma * sigma)
	if w < 0 {
		w = 0
	}
	if w > maxAlloc {
		w = maxAlloc
	}
	return w
}
