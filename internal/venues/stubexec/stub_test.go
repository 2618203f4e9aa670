package stubexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

func TestStubExecuteAccumulatesAndUnwindReleasesProportionally(t *testing.T) {
	s := New()
	wallet := &model.WalletNode{IDValue: "wallet"}

	_, err := s.Execute(context.Background(), wallet, 100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, s.TotalValue())

	freed, err := s.Unwind(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Equal(t, 50.0, freed)
	assert.Equal(t, 50.0, s.TotalValue())
}

func TestStubTickIsNoop(t *testing.T) {
	s := New()
	require.NoError(t, s.Tick(context.Background(), nil))
}
