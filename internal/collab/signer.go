// Package collab declares the collaborator interfaces this module consumes but
// does not implement: a transaction signer, a chain RPC handle, and a market-data
// provider (spec §6, "Collaborator interfaces (consumed, not implemented by the
// core)"). Live signing, chain submission, and data-fetch providers are explicit
// Non-goals (spec §1) — these are contour-only contracts so the engine, valuer,
// and CLI can be wired against a real implementation without depending on one.
package collab

import (
	"github.com/ethereum/go-ethereum/common"
)

// Signer produces an ECDSA signature over an arbitrary 32-byte hash and reports
// its own address, matching spec §6's "sign_hash(bytes32) -> (r, s, v)".
type Signer interface {
	SignHash(hash [32]byte) (r, s [32]byte, v uint8, err error)
	Address() common.Address
}
