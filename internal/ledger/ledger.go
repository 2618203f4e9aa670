// Package ledger implements the token-typed balance ledger owned exclusively by
// the engine (spec §4.4, §9 arena-ownership note).
package ledger

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Ledger is a two-level map (node_id -> (token_symbol -> amount)). Amounts use
// decimal.Decimal rather than float64: the ledger is pure bookkeeping arithmetic
// (additions/subtractions of settled USD/token amounts across many ticks), and
// spec invariant 9 (non-negative) and invariant 10 (TVL preservation within
// $0.01) are precision-sensitive in a way the continuous-math simulators are not.
//
// Guarded by a single RwLock-equivalent mutex per spec §5 ("the design permits
// it"), even though in-process calls are already serialized by the engine's
// single cooperative task — this keeps the type safe to share with the Monte
// Carlo harness's read paths without further synchronization work.
type Ledger struct {
	mu    sync.RWMutex
	table map[string]map[string]decimal.Decimal
}

func New() *Ledger {
	return &Ledger{table: make(map[string]map[string]decimal.Decimal)}
}

// Add credits amount of token to node. Negative amounts are rejected by clamping
// to zero addition (the ledger never goes negative via Add; Remove is the only
// path that can reduce a balance, and it clamps at zero too).
func (l *Ledger) Add(node, token string, amount float64) {
	if amount <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket := l.table[node]
	if bucket == nil {
		bucket = make(map[string]decimal.Decimal)
		l.table[node] = bucket
	}
	bucket[token] = bucket[token].Add(decimal.NewFromFloat(amount))
}

// Remove clamps the removal to the available balance and returns the amount
// actually removed.
func (l *Ledger) Remove(node, token string, amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bucket := l.table[node]
	if bucket == nil {
		return 0
	}
	have := bucket[token]
	want := decimal.NewFromFloat(amount)
	removed := want
	if want.GreaterThan(have) {
		removed = have
	}
	bucket[token] = have.Sub(removed)
	f, _ := removed.Float64()
	return f
}

// Balance returns the current balance of token on node.
func (l *Ledger) Balance(node, token string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bucket := l.table[node]
	if bucket == nil {
		return 0
	}
	f, _ := bucket[token].Float64()
	return f
}

// NodeTotal sums the balance of every token held by node. Used only for
// USD-denominated accounting per spec §4.4 — tokens with non-USD semantics are
// tracked separately at the driver layer.
func (l *Ledger) NodeTotal(node string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bucket := l.table[node]
	if bucket == nil {
		return 0
	}
	total := decimal.Zero
	for _, v := range bucket {
		total = total.Add(v)
	}
	f, _ := total.Float64()
	return f
}

// Clear removes every balance held by node.
func (l *Ledger) Clear(node string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.table, node)
}

// Entry is one (token, amount) pair returned by Entries, in stable sorted order.
type Entry struct {
	Token  string
	Amount float64
}

// Entries returns a deterministic snapshot of node's balances.
func (l *Ledger) Entries(node string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bucket := l.table[node]
	entries := make([]Entry, 0, len(bucket))
	for token, amt := range bucket {
		f, _ := amt.Float64()
		entries = append(entries, Entry{Token: token, Amount: f})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Token < entries[j].Token })
	return entries
}

// TotalAcrossNodes sums NodeTotal over every node currently tracked, used by the
// engine's total_tvl idle-balance component (spec invariant 10).
func (l *Ledger) TotalAcrossNodes() float64 {
	l.mu.RLock()
	nodes := make([]string, 0, len(l.table))
	for n := range l.table {
		nodes = append(nodes, n)
	}
	l.mu.RUnlock()
	var total float64
	for _, n := range nodes {
		total += l.NodeTotal(n)
	}
	return total
}
