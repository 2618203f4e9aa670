// Package validate statically checks a Workflow's graph, manifest references,
// address syntax, and reserve/valuer configuration before the engine ever
// instantiates venues for it (spec §4.1).
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

// ErrorKind names the class of a single diagnostic, mirroring the original's
// ValidationError enum variants.
type ErrorKind string

const (
	UnknownNodeRef        ErrorKind = "UnknownNodeRef"
	DuplicateNodeId       ErrorKind = "DuplicateNodeId"
	Cycle                 ErrorKind = "Cycle"
	MissingManifestEntry  ErrorKind = "MissingManifestEntry"
	InvalidAddress        ErrorKind = "InvalidAddress"
	BadReserveThresholds  ErrorKind = "BadReserveThresholds"
	NoChainRpc            ErrorKind = "NoChainRpc"
	InvalidValuerRange    ErrorKind = "InvalidValuerRange"
	OptimizerTargetMissing ErrorKind = "OptimizerTargetMissing"
)

// Error is one diagnostic: a kind plus a human-readable message naming the
// failing node id, field, and expected constraint.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e Error) Error() string { return e.Message }

func newErr(kind ErrorKind, format string, args ...any) Error {
	return Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var addressRe = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)

// Validate runs every static check against wf, accumulating diagnostics rather
// than stopping at the first failure. A nil/empty return means the workflow is
// deployable.
func Validate(wf *model.Workflow) []Error {
	var errs []Error

	errs = append(errs, checkDuplicateIDs(wf)...)
	errs = append(errs, checkEdgeEndpoints(wf)...)
	errs = append(errs, checkCycle(wf)...)
	errs = append(errs, checkAddresses(wf)...)
	errs = append(errs, checkManifestEntries(wf)...)
	errs = append(errs, checkReserve(wf)...)
	errs = append(errs, checkValuer(wf)...)
	errs = append(errs, checkOptimizerTargets(wf)...)

	return errs
}

func checkDuplicateIDs(wf *model.Workflow) []Error {
	var errs []Error
	seen := make(map[string]bool)
	for _, n := range wf.Nodes {
		if seen[n.ID()] {
			errs = append(errs, newErr(DuplicateNodeId, "node id %q is declared more than once", n.ID()))
			continue
		}
		seen[n.ID()] = true
	}
	return errs
}

func checkEdgeEndpoints(wf *model.Workflow) []Error {
	var errs []Error
	ids := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		ids[n.ID()] = true
	}
	for _, e := range wf.Edges {
		if !ids[e.FromNode] {
			errs = append(errs, newErr(UnknownNodeRef, "edge references unknown from_node %q", e.FromNode))
		}
		if !ids[e.ToNode] {
			errs = append(errs, newErr(UnknownNodeRef, "edge references unknown to_node %q", e.ToNode))
		}
	}
	return errs
}

// checkCycle runs Kahn's algorithm over the edge set; any node left with a
// nonzero in-degree after the queue drains belongs to a cycle.
func checkCycle(wf *model.Workflow) []Error {
	inDegree := make(map[string]int, len(wf.Nodes))
	adj := make(map[string][]string, len(wf.Nodes))
	for _, n := range wf.Nodes {
		inDegree[n.ID()] = 0
	}
	for _, e := range wf.Edges {
		if _, ok := inDegree[e.FromNode]; !ok {
			continue // unknown-ref errors are reported separately
		}
		if _, ok := inDegree[e.ToNode]; !ok {
			continue
		}
		adj[e.FromNode] = append(adj[e.FromNode], e.ToNode)
		inDegree[e.ToNode]++
	}

	var queue []string
	for _, n := range wf.Nodes {
		if inDegree[n.ID()] == 0 {
			queue = append(queue, n.ID())
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if visited < len(wf.Nodes) {
		var stuck []string
		for _, n := range wf.Nodes {
			if inDegree[n.ID()] > 0 {
				stuck = append(stuck, n.ID())
			}
		}
		return []Error{newErr(Cycle, "graph contains a cycle involving node(s) %s", strings.Join(stuck, ", "))}
	}
	return nil
}

func checkAddresses(wf *model.Workflow) []Error {
	var errs []Error
	for _, n := range wf.Nodes {
		wn, ok := n.(*model.WalletNode)
		if !ok {
			continue
		}
		if wn.Address == "" || !addressRe.MatchString(wn.Address) {
			errs = append(errs, newErr(InvalidAddress, "wallet node %q has invalid address %q (expect 20-byte hex, optional 0x prefix)", wn.IDValue, wn.Address))
		}
	}
	if wf.Reserve != nil && wf.Reserve.VaultAddress != "" && !addressRe.MatchString(wf.Reserve.VaultAddress) {
		errs = append(errs, newErr(InvalidAddress, "reserve vault_address %q is not a valid 20-byte hex address", wf.Reserve.VaultAddress))
	}
	return errs
}

// checkManifestEntries confirms every wallet node's token resolves in the
// token manifest for its chain. Valuer and reserve contract entries are not
// checked here.
func checkManifestEntries(wf *model.Workflow) []Error {
	var errs []Error
	for _, n := range wf.Nodes {
		wn, ok := n.(*model.WalletNode)
		if !ok {
			continue
		}
		if wf.Tokens == nil {
			continue
		}
		byChain, ok := wf.Tokens[wn.Token]
		if !ok {
			errs = append(errs, newErr(MissingManifestEntry, "wallet node %q references token %q with no manifest entry", wn.IDValue, wn.Token))
			continue
		}
		if _, ok := byChain[wn.Chain]; !ok {
			errs = append(errs, newErr(MissingManifestEntry, "wallet node %q token %q has no manifest entry for chain %q", wn.IDValue, wn.Token, wn.Chain))
		}
	}
	return errs
}

func checkReserve(wf *model.Workflow) []Error {
	if wf.Reserve == nil {
		return nil
	}
	var errs []Error
	wf.Reserve.Normalize()
	if wf.Reserve.EffectiveTriggerThreshold() >= wf.Reserve.EffectiveTargetRatio() {
		errs = append(errs, newErr(BadReserveThresholds,
			"reserve trigger_threshold (%.4f) must be < target_ratio (%.4f)",
			wf.Reserve.EffectiveTriggerThreshold(), wf.Reserve.EffectiveTargetRatio()))
	}
	if wf.Reserve.VaultChain.RPCURL == nil || *wf.Reserve.VaultChain.RPCURL == "" {
		errs = append(errs, newErr(NoChainRpc, "reserve vault_chain %q has no rpc_url configured", wf.Reserve.VaultChain.Name))
	}
	return errs
}

func checkValuer(wf *model.Workflow) []Error {
	if wf.Valuer == nil {
		return nil
	}
	var errs []Error
	wf.Valuer.Normalize()
	if wf.Valuer.EffectiveConfidence() == 0 || wf.Valuer.EffectiveConfidence() > 100 {
		errs = append(errs, newErr(InvalidValuerRange, "valuer confidence %d must be in (0, 100]", wf.Valuer.EffectiveConfidence()))
	}
	if wf.Valuer.EffectiveUnderlyingDecimals() > 77 {
		errs = append(errs, newErr(InvalidValuerRange, "valuer underlying_decimals %d is out of range", wf.Valuer.EffectiveUnderlyingDecimals()))
	}
	if wf.Valuer.EffectivePushIntervalSec() <= 0 {
		errs = append(errs, newErr(InvalidValuerRange, "valuer push_interval must be positive, got %d", wf.Valuer.EffectivePushIntervalSec()))
	}
	if wf.Valuer.EffectiveTTLSec() <= 0 {
		errs = append(errs, newErr(InvalidValuerRange, "valuer ttl must be positive, got %d", wf.Valuer.EffectiveTTLSec()))
	}
	return errs
}

// checkOptimizerTargets confirms every allocation target is a direct
// successor of its optimizer node in the edge set.
func checkOptimizerTargets(wf *model.Workflow) []Error {
	var errs []Error
	for _, n := range wf.Nodes {
		on, ok := n.(*model.OptimizerNode)
		if !ok {
			continue
		}
		successors := make(map[string]bool)
		for _, s := range wf.Successors(on.IDValue) {
			successors[s] = true
		}
		for _, alloc := range on.Allocations {
			for _, target := range alloc.Targets() {
				if !successors[target] {
					errs = append(errs, newErr(OptimizerTargetMissing,
						"optimizer %q allocates to %q, which is not a successor of the optimizer in the edge set",
						on.IDValue, target))
				}
			}
		}
	}
	return errs
}
