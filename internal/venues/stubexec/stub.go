// Package stubexec provides a constant-passthrough Venue for CLI smoke tests
// and validator fixtures, grounded in the original's stub executor shape: a
// no-op driver that accepts any node action and reports deterministic results
// without consulting market data.
package stubexec

import (
	"context"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// Stub tracks only the USD it has been handed; Execute always succeeds and
// Unwind always returns exactly fraction*value.
type Stub struct {
	valueUSD float64
}

func New() *Stub { return &Stub{} }

func (s *Stub) Execute(_ context.Context, _ model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	s.valueUSD += inputAmountUSD
	return venue.PositionUpdate(inputAmountUSD, "", 0, false), nil
}

func (s *Stub) TotalValue() float64 { return s.valueUSD }

func (s *Stub) Tick(_ context.Context, _ *clock.SimClock) error { return nil }

func (s *Stub) Unwind(_ context.Context, fraction float64) (float64, error) {
	freed := s.valueUSD * fraction
	s.valueUSD -= freed
	return freed, nil
}

func (s *Stub) Metrics() model.SimMetrics { return model.SimMetrics{} }

var _ venue.Venue = (*Stub)(nil)
