package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

func baseWorkflow() *model.Workflow {
	return &model.Workflow{
		Name: "test",
		Nodes: []model.Node{
			&model.WalletNode{IDValue: "w1", Chain: "base", Token: "USDC", Address: "0x1111111111111111111111111111111111111111"},
			&model.LendingNode{IDValue: "lend1", Action: model.LendingSupply},
		},
		Edges: []model.Edge{
			{FromNode: "w1", ToNode: "lend1", Token: "USDC", Amount: model.AmountAllOf()},
		},
	}
}

func TestValidWorkflowPasses(t *testing.T) {
	wf := baseWorkflow()
	errs := Validate(wf)
	assert.Empty(t, errs)
}

func TestDuplicateNodeId(t *testing.T) {
	wf := baseWorkflow()
	wf.Nodes = append(wf.Nodes, &model.LendingNode{IDValue: "lend1", Action: model.LendingWithdraw})
	errs := Validate(wf)
	assert.Contains(t, kinds(errs), DuplicateNodeId)
}

func TestUnknownNodeRef(t *testing.T) {
	wf := baseWorkflow()
	wf.Edges = append(wf.Edges, model.Edge{FromNode: "ghost", ToNode: "lend1", Token: "USDC", Amount: model.AmountAllOf()})
	errs := Validate(wf)
	assert.Contains(t, kinds(errs), UnknownNodeRef)
}

func TestCycleDetected(t *testing.T) {
	wf := baseWorkflow()
	wf.Edges = append(wf.Edges, model.Edge{FromNode: "lend1", ToNode: "w1", Token: "USDC", Amount: model.AmountAllOf()})
	errs := Validate(wf)
	assert.Contains(t, kinds(errs), Cycle)
}

func TestBadReserveThresholds(t *testing.T) {
	wf := baseWorkflow()
	target := 0.1
	trigger := 0.2
	rpc := "https://rpc"
	wf.Reserve = &model.ReserveConfig{
		VaultAddress: "0x1234567890123456789012345678901234567890",
		VaultChain:   model.Chain{Name: "base", RPCURL: &rpc},
		TargetRatio:  &target,
		TriggerThreshold: &trigger,
	}
	errs := Validate(wf)
	assert.Contains(t, kinds(errs), BadReserveThresholds)
}

func TestOptimizerTargetMissing(t *testing.T) {
	wf := baseWorkflow()
	target := "nonexistent"
	wf.Nodes = append(wf.Nodes, &model.OptimizerNode{
		IDValue:     "opt1",
		Strategy:    model.StrategyKelly,
		Allocations: []model.Allocation{{TargetNode: &target}},
	})
	errs := Validate(wf)
	assert.Contains(t, kinds(errs), OptimizerTargetMissing)
}

func kinds(errs []Error) []ErrorKind {
	out := make([]ErrorKind, len(errs))
	for i, e := range errs {
		out[i] = e.Kind
	}
	return out
}
