package sim

import (
	"context"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// WalletSimulator is the trivial driver behind a Wallet node — it just tracks a
// balance. Ported from original_source/src/sim/wallet.rs.
type WalletSimulator struct {
	balance float64
}

// NewWalletSimulator constructs a WalletSimulator seeded with an initial balance
// (the capital the engine credits at deploy, spec §4.5 step 1).
func NewWalletSimulator(initialBalance float64) *WalletSimulator {
	return &WalletSimulator{balance: initialBalance}
}

func (w *WalletSimulator) Execute(_ context.Context, _ model.Node, inputAmountUSD float64) (venue.ExecutionResult, error) {
	w.balance += inputAmountUSD
	return venue.Noop(), nil
}

func (w *WalletSimulator) TotalValue() float64 { return w.balance }

func (w *WalletSimulator) Tick(_ context.Context, _ *clock.SimClock) error { return nil }

func (w *WalletSimulator) Unwind(_ context.Context, fraction float64) (float64, error) {
	freed := w.balance * fraction
	w.balance -= freed
	return freed, nil
}

func (w *WalletSimulator) Metrics() model.SimMetrics { return model.SimMetrics{} }

var _ venue.Venue = (*WalletSimulator)(nil)
