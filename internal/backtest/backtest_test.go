package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
)

func writeWorkflow(t *testing.T, dir string, wf *model.Workflow) string {
	t.Helper()
	body, err := json.Marshal(wf)
	require.NoError(t, err)
	path := filepath.Join(dir, "workflow.json")
	require.NoError(t, os.WriteFile(path, body, 0o644))
	return path
}

func writeManifestAndCSV(t *testing.T, dir string) {
	t.Helper()
	var buf bytes.Buffer
	rows := []data.PerpCsvRow{
		{Symbol: "BTC-PERP", MarkPrice: 100, IndexPrice: 100, FundingRate: 0.0001, Bid: 99.9, Ask: 100.1, MidPrice: 100, LastPrice: 100, Timestamp: 0},
		{Symbol: "BTC-PERP", MarkPrice: 101, IndexPrice: 101, FundingRate: 0.0001, Bid: 100.9, Ask: 101.1, MidPrice: 101, LastPrice: 101, Timestamp: 28800},
		{Symbol: "BTC-PERP", MarkPrice: 102, IndexPrice: 102, FundingRate: 0.0001, Bid: 101.9, Ask: 102.1, MidPrice: 102, LastPrice: 102, Timestamp: 57600},
	}
	require.NoError(t, data.WritePerpCSV(&buf, rows))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "btc_perp.csv"), buf.Bytes(), 0o644))

	manifest := &data.Manifest{Files: map[string]map[string]string{
		"perp": {"BTC-PERP": "btc_perp.csv"},
	}}
	require.NoError(t, data.WriteManifest(filepath.Join(dir, "manifest.json"), manifest))
}

func TestRunSingleDeploysAndTicksThroughPerpVenue(t *testing.T) {
	dir := t.TempDir()
	writeManifestAndCSV(t, dir)

	direction := model.DirectionLong
	leverage := 2.0
	wf := &model.Workflow{
		Name: "perp-only",
		Nodes: []model.Node{
			&model.WalletNode{IDValue: "wallet", Chain: "hyperevm", Token: "USDC", Address: "0x1111111111111111111111111111111111111111"},
			&model.PerpNode{IDValue: "perp-1", Venue: "hyperliquid", Pair: "BTC-PERP", Action: model.PerpOpen, Direction: &direction, Leverage: &leverage},
		},
		Edges: []model.Edge{
			{FromNode: "wallet", ToNode: "perp-1", Token: "USDC", Amount: model.AmountAllOf()},
		},
	}
	workflowPath := writeWorkflow(t, dir, wf)

	result, err := RunSingle(context.Background(), Config{
		WorkflowPath: workflowPath,
		DataDir:      dir,
		Capital:      1000,
		SlippageBps:  5,
		Seed:         1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, result.InitialCapital)
	assert.Greater(t, result.TickCount, int64(0))
	assert.Greater(t, result.FinalTVL, 0.0)
}

func TestLoadWorkflowReportsValidationErrors(t *testing.T) {
	dir := t.TempDir()
	wf := &model.Workflow{
		Name: "broken",
		Nodes: []model.Node{
			&model.WalletNode{IDValue: "wallet", Chain: "hyperevm", Token: "USDC", Address: "0x1111111111111111111111111111111111111111"},
		},
		Edges: []model.Edge{
			{FromNode: "wallet", ToNode: "nonexistent", Token: "USDC", Amount: model.AmountAllOf()},
		},
	}
	path := writeWorkflow(t, dir, wf)

	_, errs, err := LoadWorkflow(path)
	require.NoError(t, err)
	require.NotEmpty(t, errs)
}
