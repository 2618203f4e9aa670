package collab

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Chain is the opaque chain-RPC handle venue drivers are given in a live
// deployment: arbitrary eth_call, ERC-20 balance reads, and contract writes
// (spec §6). The backtest and Monte Carlo paths never construct one — every
// venue driver they use is a simulator reading CSV replay data instead.
type Chain interface {
	// Call executes a read-only contract call (eth_call) against the chain's
	// current state.
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	// ERC20BalanceOf reads an ERC-20 token balance for owner.
	ERC20BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	// SendTransaction submits a signed transaction and returns its hash.
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int) (common.Hash, error)
}
