// Package venue declares the uniform contract every venue driver — simulator or,
// in a live deployment, a real on-chain executor — satisfies (spec §4.3).
package venue

import (
	"context"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/model"
)

// ExecutionResultKind discriminates ExecutionResult's payload, since Go has no
// native sum type. Generalized from original_source/src/engine/venue.rs's
// ExecutionResult enum.
type ExecutionResultKind string

const (
	ResultTokenOutput     ExecutionResultKind = "token_output"
	ResultPositionUpdate  ExecutionResultKind = "position_update"
	ResultAllocations     ExecutionResultKind = "allocations"
	ResultNoop            ExecutionResultKind = "noop"
)

// AllocationEntry is one (target node, USD amount) pair emitted by an optimizer.
type AllocationEntry struct {
	NodeID string
	USD    float64
}

// ExecutionResult is the tagged return value of Venue.Execute.
type ExecutionResult struct {
	Kind ExecutionResultKind

	// TokenOutput
	Token  string
	Amount float64

	// PositionUpdate
	Consumed     float64
	HasOutput    bool
	OutputToken  string
	OutputAmount float64

	// Allocations
	Allocations []AllocationEntry
}

func Noop() ExecutionResult {
	return ExecutionResult{Kind: ResultNoop}
}

func TokenOutput(token string, amount float64) ExecutionResult {
	return ExecutionResult{Kind: ResultTokenOutput, Token: token, Amount: amount}
}

func PositionUpdate(consumed float64, outputToken string, outputAmount float64, hasOutput bool) ExecutionResult {
	return ExecutionResult{
		Kind:         ResultPositionUpdate,
		Consumed:     consumed,
		HasOutput:    hasOutput,
		OutputToken:  outputToken,
		OutputAmount: outputAmount,
	}
}

func Allocations(entries []AllocationEntry) ExecutionResult {
	return ExecutionResult{Kind: ResultAllocations, Allocations: entries}
}

// Venue is the capability set every driver satisfies: execute, total_value, tick,
// unwind, metrics. Suspension points (network/chain I/O) are modeled with
// context.Context per the cooperative concurrency model in spec §5 — the engine
// never calls two Venue methods on the same driver concurrently.
type Venue interface {
	// Execute dispatches a node action with its settled input amount in USD.
	Execute(ctx context.Context, node model.Node, inputAmountUSD float64) (ExecutionResult, error)
	// TotalValue reports the driver's current USD-denominated position value.
	TotalValue() float64
	// Tick advances the driver's internal state (accruals, cursor) to the clock's
	// current position.
	Tick(ctx context.Context, c *clock.SimClock) error
	// Unwind frees fraction * current_value USD, decrementing the position
	// proportionally, and returns the USD freed. unwind(1.0) fully liquidates;
	// unwind(0.0) is a no-op.
	Unwind(ctx context.Context, fraction float64) (float64, error)
	// Metrics reports this driver's cumulative SimMetrics for the run.
	Metrics() model.SimMetrics
}
