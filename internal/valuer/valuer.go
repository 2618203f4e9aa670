// Package valuer computes and pushes a strategy's attested NAV to its on-chain
// oracle contract, throttled to push_interval (spec §4.10).
package valuer

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

// StrategyIDFromText hashes a strategy_id string into the bytes32 the oracle
// contract expects. Grounded on original_source/tests/test_perf_and_valuer.rs's
// confirmed exact semantics (keccak256 of the UTF-8 bytes).
func StrategyIDFromText(text string) [32]byte {
	return crypto.Keccak256Hash([]byte(text))
}

// TVLToUint256 scales a USD TVL by 10^decimals and floors it to an integer,
// saturating to the uint256 max and clamping negative inputs to zero.
func TVLToUint256(tvlUSD float64, decimals uint8) *uint256.Int {
	if tvlUSD < 0 {
		tvlUSD = 0
	}
	scale := new(big.Float).SetFloat64(math.Pow(10, float64(decimals)))
	scaled := new(big.Float).Mul(big.NewFloat(tvlUSD), scale)
	floored, _ := scaled.Int(nil)
	if floored.Sign() < 0 {
		return uint256.NewInt(0)
	}
	result, overflow := uint256.FromBig(floored)
	if overflow {
		return uint256.NewInt(0).Not(uint256.NewInt(0)) // saturate to max
	}
	return result
}

// Signer signs the NAV attestation payload with the strategy wallet.
type Signer interface {
	SignHash(hash [32]byte) (r, s [32]byte, v uint8, err error)
	Address() common.Address
}

// Submitter submits a signed NAV attestation to the chain collaborator.
type Submitter interface {
	SubmitNAV(ctx context.Context, strategyID [32]byte, tvlFixed *uint256.Int, confidence uint8, expiry int64, r, s [32]byte, v uint8) error
}

// TotalTVL reports the engine's current USD TVL.
type TotalTVL func() float64

// Run executes the six-step pusher for one tick; it is a no-op when the
// throttle hasn't elapsed.
func Run(ctx context.Context, cfg *model.ValuerConfig, state *model.ValuerState, totalTVL TotalTVL, signer Signer, submitter Submitter, now int64) error {
	cfg.Normalize()

	if now-state.LastPushUnix < cfg.EffectivePushIntervalSec() {
		return nil
	}

	tvlUSD := totalTVL()
	strategyID := StrategyIDFromText(cfg.StrategyID)
	tvlFixed := TVLToUint256(tvlUSD, cfg.EffectiveUnderlyingDecimals())
	expiry := now + cfg.EffectiveTTLSec()

	payloadHash := attestationHash(strategyID, tvlFixed, cfg.EffectiveConfidence(), expiry)
	r, s, v, err := signer.SignHash(payloadHash)
	if err != nil {
		return fmt.Errorf("valuer: sign: %w", err)
	}

	if err := submitter.SubmitNAV(ctx, strategyID, tvlFixed, cfg.EffectiveConfidence(), expiry, r, s, v); err != nil {
		return fmt.Errorf("valuer: submit: %w", err)
	}

	state.LastPushUnix = now
	return nil
}

// attestationHash packs (strategy_id, tvl_fixed, confidence, expiry) the same
// way the oracle contract expects the signed digest to be constructed.
func attestationHash(strategyID [32]byte, tvlFixed *uint256.Int, confidence uint8, expiry int64) [32]byte {
	buf := make([]byte, 0, 32+32+1+8)
	buf = append(buf, strategyID[:]...)
	tvlBytes := tvlFixed.Bytes32()
	buf = append(buf, tvlBytes[:]...)
	buf = append(buf, confidence)
	expiryBytes := uint256.NewInt(uint64(expiry)).Bytes32()
	buf = append(buf, expiryBytes[:]...)
	return crypto.Keccak256Hash(buf)
}
