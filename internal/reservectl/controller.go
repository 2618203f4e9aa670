// Package reservectl runs the reserve controller: once per tick it checks a
// vault's idle-reserve ratio and pro-rata unwinds strategy venues to top it
// back up when the ratio has drifted too far below target (spec §4.9).
package reservectl

import (
	"context"
	"fmt"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

// VaultReader reads the current vault backing from the reserve collaborator.
type VaultReader interface {
	TotalAssets(ctx context.Context) (float64, error)
	IdleReserves(ctx context.Context) (float64, error)
}

// Depositor sends freed capital to the vault's idle reserves.
type Depositor interface {
	DepositToReserves(ctx context.Context, usd float64) error
}

// Unwinder performs the pro-rata unwind across every non-vault venue and
// reports the total USD freed. Supplied by the engine.
type Unwinder func(ctx context.Context, targetUSD float64) (float64, error)

// Run executes the controller's six steps for one tick. It is a no-op
// (returns a nil action) when the ratio is already at or above the trigger
// threshold, or when the computed deficit doesn't clear min_unwind.
func Run(ctx context.Context, cfg *model.ReserveConfig, vault VaultReader, dep Depositor, unwind Unwinder, now int64) (*model.ReserveAction, error) {
	cfg.Normalize()

	totalAssets, err := vault.TotalAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("reservectl: total_assets: %w", err)
	}
	idle, err := vault.IdleReserves(ctx)
	if err != nil {
		return nil, fmt.Errorf("reservectl: idle_reserves: %w", err)
	}
	if totalAssets <= 0 {
		return nil, nil
	}
	ratio := idle / totalAssets

	if ratio >= cfg.EffectiveTriggerThreshold() {
		return nil, nil
	}

	deficit := (cfg.EffectiveTargetRatio() - ratio) * totalAssets
	if deficit < cfg.EffectiveMinUnwindUSD() {
		return nil, nil
	}

	freed, err := unwind(ctx, deficit)
	if err != nil {
		return nil, fmt.Errorf("reservectl: unwind: %w", err)
	}
	if freed <= 0 {
		return nil, nil
	}

	if err := dep.DepositToReserves(ctx, freed); err != nil {
		return nil, fmt.Errorf("reservectl: deposit: %w", err)
	}

	newRatio := (idle + freed) / totalAssets
	return &model.ReserveAction{UnwoundUSD: freed, NewRatio: newRatio, Timestamp: now}, nil
}
