package valuer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

func TestStrategyIDFromTextIsDeterministicAndDistinct(t *testing.T) {
	a := StrategyIDFromText("lending")
	b := StrategyIDFromText("lending")
	c := StrategyIDFromText("perp")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestTVLToUint256(t *testing.T) {
	cases := []struct {
		tvl      float64
		decimals uint8
		want     *uint256.Int
	}{
		{50000.0, 6, uint256.NewInt(50_000_000_000)},
		{1.5, 18, uint256.MustFromDecimal("1500000000000000000")},
		{0.0, 6, uint256.NewInt(0)},
		{-1000.0, 6, uint256.NewInt(0)},
		{100.123456, 6, uint256.NewInt(100_123_456)},
	}
	for _, tc := range cases {
		got := TVLToUint256(tc.tvl, tc.decimals)
		assert.True(t, tc.want.Eq(got), "tvl=%v decimals=%v got=%v want=%v", tc.tvl, tc.decimals, got, tc.want)
	}
}

type fakeSigner struct{}

func (fakeSigner) SignHash(hash [32]byte) (r, s [32]byte, v uint8, err error) {
	return [32]byte{1}, [32]byte{2}, 27, nil
}
func (fakeSigner) Address() common.Address { return common.Address{} }

type fakeSubmitter struct {
	calls int
}

func (f *fakeSubmitter) SubmitNAV(_ context.Context, _ [32]byte, _ *uint256.Int, _ uint8, _ int64, _, _ [32]byte, _ uint8) error {
	f.calls++
	return nil
}

func TestRunSkipsWhenThrottled(t *testing.T) {
	interval := int64(3600)
	cfg := &model.ValuerConfig{StrategyID: "lending", PushIntervalSec: &interval}
	state := &model.ValuerState{LastPushUnix: 1000}
	sub := &fakeSubmitter{}
	err := Run(context.Background(), cfg, state, func() float64 { return 50000 }, fakeSigner{}, sub, 2000)
	require.NoError(t, err)
	assert.Equal(t, 0, sub.calls)
	assert.Equal(t, int64(1000), state.LastPushUnix)
}

func TestRunPushesAfterIntervalElapses(t *testing.T) {
	interval := int64(3600)
	cfg := &model.ValuerConfig{StrategyID: "lending", PushIntervalSec: &interval}
	state := &model.ValuerState{LastPushUnix: 0}
	sub := &fakeSubmitter{}
	err := Run(context.Background(), cfg, state, func() float64 { return 50000 }, fakeSigner{}, sub, 3600)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, int64(3600), state.LastPushUnix)
}
