package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAndBalance(t *testing.T) {
	l := New()
	l.Add("wallet1", "USDC", 50000)
	assert.Equal(t, 50000.0, l.Balance("wallet1", "USDC"))
	assert.Equal(t, 50000.0, l.NodeTotal("wallet1"))
}

func TestRemoveClampsToAvailable(t *testing.T) {
	l := New()
	l.Add("n1", "USDC", 100)
	removed := l.Remove("n1", "USDC", 150)
	assert.Equal(t, 100.0, removed)
	assert.Equal(t, 0.0, l.Balance("n1", "USDC"))
}

func TestClearAndEntries(t *testing.T) {
	l := New()
	l.Add("n1", "USDC", 10)
	l.Add("n1", "WETH", 2)
	entries := l.Entries("n1")
	assert.Len(t, entries, 2)
	l.Clear("n1")
	assert.Equal(t, 0.0, l.NodeTotal("n1"))
}

func TestTotalAcrossNodes(t *testing.T) {
	l := New()
	l.Add("n1", "USDC", 100)
	l.Add("n2", "USDC", 200)
	assert.Equal(t, 300.0, l.TotalAcrossNodes())
}
