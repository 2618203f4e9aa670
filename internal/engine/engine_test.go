package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/events"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

// mockVenue is a controllable venue for engine-level tests, mirroring
// original_source/tests/test_reserve.rs's MockVenue.
type mockVenue struct {
	value float64
}

func (m *mockVenue) Execute(_ context.Context, _ model.Node, inputUSD float64) (venue.ExecutionResult, error) {
	m.value += inputUSD
	return venue.PositionUpdate(inputUSD, "", 0, false), nil
}
func (m *mockVenue) TotalValue() float64 { return m.value }
func (m *mockVenue) Tick(_ context.Context, _ *clock.SimClock) error { return nil }
func (m *mockVenue) Unwind(_ context.Context, fraction float64) (float64, error) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	freed := m.value * fraction
	m.value -= freed
	return freed, nil
}
func (m *mockVenue) Metrics() model.SimMetrics { return model.SimMetrics{} }

// failingVenue always errors on Execute, simulating a driver fault.
type failingVenue struct{ mockVenue }

func (f *failingVenue) Execute(context.Context, model.Node, float64) (venue.ExecutionResult, error) {
	return venue.ExecutionResult{}, errors.New("market data unavailable")
}

func walletNode(id string) *model.WalletNode {
	return &model.WalletNode{IDValue: id, Chain: "hyperevm", Token: "USDC", Address: "0x0000000000000000000000000000000000000000"}
}

func buildEngineWithMockVenues(values map[string]float64) *Engine {
	var nodes []model.Node
	var ids []string
	for id := range values {
		ids = append(ids, id)
	}
	for _, id := range ids {
		nodes = append(nodes, walletNode(id))
	}
	wf := &model.Workflow{Name: "test_unwind", Nodes: nodes}
	venues := make(map[string]venue.Venue, len(values))
	for id, v := range values {
		venues[id] = &mockVenue{value: v}
	}
	return New(wf, venues)
}

func TestUnwindSingleVenue(t *testing.T) {
	e := buildEngineWithMockVenues(map[string]float64{"v1": 1000})
	freed, err := e.Venues["v1"].Unwind(context.Background(), 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, freed, 0.01)
	assert.InDelta(t, 500.0, e.Venues["v1"].TotalValue(), 0.01)
}

func TestUnwindFullLiquidation(t *testing.T) {
	e := buildEngineWithMockVenues(map[string]float64{"v1": 1000})
	freed, err := e.Venues["v1"].Unwind(context.Background(), 1.0)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, freed, 0.01)
	assert.InDelta(t, 0.0, e.Venues["v1"].TotalValue(), 0.01)
}

func TestTVLAfterUnwind(t *testing.T) {
	e := buildEngineWithMockVenues(map[string]float64{"v1": 600, "v2": 400})
	assert.InDelta(t, 1000.0, e.TotalTVL(), 0.01)

	for _, v := range e.Venues {
		_, err := v.Unwind(context.Background(), 0.3)
		require.NoError(t, err)
	}
	assert.InDelta(t, 700.0, e.TotalTVL(), 0.01)
}

func TestProRataUnwindAcrossVenues(t *testing.T) {
	e := buildEngineWithMockVenues(map[string]float64{"v1": 600, "v2": 300, "v3": 100})
	freed, err := e.ProRataUnwind(context.Background(), 200, []string{"v1", "v2", "v3"})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, freed, 1.0)
	assert.InDelta(t, 480.0, e.Venues["v1"].TotalValue(), 1.0)
	assert.InDelta(t, 240.0, e.Venues["v2"].TotalValue(), 1.0)
	assert.InDelta(t, 80.0, e.Venues["v3"].TotalValue(), 1.0)
}

func TestAdditiveRebalanceViaOptimizer(t *testing.T) {
	mu, sigma := 0.10, 0.20
	v1, v2 := "v1", "v2"
	wf := &model.Workflow{
		Name: "test_optimizer",
		Nodes: []model.Node{
			walletNode("wallet"),
			&model.OptimizerNode{
				IDValue:        "optimizer",
				Strategy:       model.StrategyKelly,
				KellyFraction:  1.0,
				DriftThreshold: 0,
				Allocations: []model.Allocation{
					{TargetNode: &v1, ExpectedReturn: &mu, Volatility: &sigma},
					{TargetNode: &v2, ExpectedReturn: &mu, Volatility: &sigma},
				},
			},
			walletNode("v1"),
			walletNode("v2"),
		},
		Edges: []model.Edge{
			{FromNode: "wallet", ToNode: "optimizer", Token: "USDC", Amount: model.AmountAllOf()},
			{FromNode: "optimizer", ToNode: "v1", Token: "USDC", Amount: model.AmountAllOf()},
			{FromNode: "optimizer", ToNode: "v2", Token: "USDC", Amount: model.AmountAllOf()},
		},
	}
	venues := map[string]venue.Venue{"v1": &mockVenue{}, "v2": &mockVenue{}}
	e := New(wf, venues)
	e.Balances.Add("optimizer", "USDC", 1000)

	tvlBefore := e.TotalTVL()
	require.NoError(t, e.ExecuteNode(context.Background(), "optimizer"))

	v1Value := e.Venues["v1"].TotalValue() + e.Balances.NodeTotal("v1")
	v2Value := e.Venues["v2"].TotalValue() + e.Balances.NodeTotal("v2")
	assert.InDelta(t, v1Value, v2Value, 1.0)
	assert.Greater(t, v1Value+v2Value, 0.0)

	tvlAfter := e.TotalTVL()
	assert.InDelta(t, tvlBefore, tvlAfter, 1.0)
}

func TestDeployDisablesFaultingNodeInsteadOfAbortingRun(t *testing.T) {
	wf := &model.Workflow{
		Name: "test_disable",
		Nodes: []model.Node{
			walletNode("wallet"),
			walletNode("good"),
		},
		Edges: []model.Edge{
			{FromNode: "wallet", ToNode: "good", Token: "USDC", Amount: model.AmountAllOf()},
		},
	}
	wf.Nodes = append(wf.Nodes, &model.WalletNode{IDValue: "bad", Chain: "hyperevm", Token: "USDC", Address: "0x0000000000000000000000000000000000000001"})
	wf.Edges = append(wf.Edges, model.Edge{FromNode: "wallet", ToNode: "bad", Token: "USDC", Amount: model.AmountAllOf()})

	venues := map[string]venue.Venue{"good": &mockVenue{}, "bad": &failingVenue{}}
	e := New(wf, venues)
	ch := make(chan events.Event, 16)
	e.Events = ch
	e.Balances.Add("wallet", "USDC", 1000)

	require.NoError(t, e.Deploy(context.Background(), 0))
	assert.True(t, e.disabledNodes["bad"])
	assert.False(t, e.disabledNodes["good"])

	close(ch)
	var sawDeployed, sawErr bool
	for ev := range ch {
		switch ev.Kind {
		case events.KindDeployed:
			sawDeployed = true
		case events.KindError:
			sawErr = true
			assert.Equal(t, "bad", ev.NodeID)
		}
	}
	assert.True(t, sawDeployed)
	assert.True(t, sawErr)
}
