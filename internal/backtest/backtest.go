// Package backtest drives one end-to-end simulation run: load workflow and
// market data, deploy capital, tick the engine across the data's timestamp
// range, and summarize the run into a BacktestResult (spec §4.12).
package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/defi-flow/defi-flow-go/internal/clock"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/engine"
	"github.com/defi-flow/defi-flow-go/internal/errs"
	"github.com/defi-flow/defi-flow-go/internal/model"
	"github.com/defi-flow/defi-flow-go/internal/reservectl"
	"github.com/defi-flow/defi-flow-go/internal/sim"
	"github.com/defi-flow/defi-flow-go/internal/validate"
	"github.com/defi-flow/defi-flow-go/internal/venue"
)

const periodsPerYear = 1095.0 // matches sim.PeriodsPerYear's 8h cadence

// Config describes one backtest invocation (spec §6's CLI surface).
type Config struct {
	WorkflowPath string
	DataDir      string
	Capital      float64
	SlippageBps  float64
	Seed         uint64
	Verbose      bool
}

// LoadWorkflow reads and validates a workflow document, returning every
// validation diagnostic rather than failing on the first (spec §4.1).
func LoadWorkflow(path string) (*model.Workflow, []validate.Error, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading workflow: %w", err)
	}
	var wf model.Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, nil, fmt.Errorf("parsing workflow: %w", err)
	}
	if errs := validate.Validate(&wf); len(errs) > 0 {
		return &wf, errs, nil
	}
	return &wf, nil, nil
}

// RunSingle executes one full backtest against cfg.DataDir's CSVs and returns
// the aggregated result.
func RunSingle(ctx context.Context, cfg Config) (*model.BacktestResult, error) {
	start := time.Now()

	wf, validationErrs, err := LoadWorkflow(cfg.WorkflowPath)
	if err != nil {
		return nil, err
	}
	if len(validationErrs) > 0 {
		return nil, fmt.Errorf("workflow failed validation: %v", validationErrs)
	}

	manifest, err := data.LoadManifest(filepath.Join(cfg.DataDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}

	venues, timestamps, err := buildVenues(wf, manifest, cfg)
	if err != nil {
		return nil, err
	}

	c := clock.New(timestamps)
	e := engine.New(wf, venues)

	walletNodes := walletNodeIDs(wf)
	if len(walletNodes) == 0 {
		return nil, fmt.Errorf("workflow has no wallet node to seed capital into")
	}
	perWallet := cfg.Capital / float64(len(walletNodes))
	for _, id := range walletNodes {
		e.Balances.Add(id, "USDC", perWallet)
	}

	if err := e.Deploy(ctx, c.CurrentTimestamp()); err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}

	peakTVL := e.TotalTVL()
	var tvlSeries []float64
	tvlSeries = append(tvlSeries, peakTVL)
	var metrics model.SimMetrics
	tickCount := int64(0)

	for {
		tickMetrics, err := e.RunTick(ctx, c, func(n model.Node) bool { return shouldFire(n, c) })
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", c.TickIndex(), err)
		}
		metrics = tickMetrics
		tickCount++

		tvl := e.TotalTVL()
		tvlSeries = append(tvlSeries, tvl)
		if tvl > peakTVL {
			peakTVL = tvl
		}

		if wf.Reserve != nil {
			if _, err := reservectl.Run(ctx, wf.Reserve, noopVault{}, noopVault{}, noopUnwind(e), c.CurrentTimestamp()); err != nil {
				return nil, fmt.Errorf("reserve controller: %w", errs.Reserve(err))
			}
		}

		if !c.Advance() {
			break
		}
	}

	finalTVL := e.TotalTVL()
	return &model.BacktestResult{
		InitialCapital: cfg.Capital,
		FinalTVL:       finalTVL,
		NetPnL:         finalTVL - cfg.Capital,
		TWRRPct:        twrrPct(tvlSeries),
		MaxDrawdownPct: maxDrawdownPct(tvlSeries),
		Sharpe:         sharpe(tvlSeries),
		Metrics:        metrics,
		TickCount:      tickCount,
		RuntimeSeconds: time.Since(start).Seconds(),
	}, nil
}

func walletNodeIDs(wf *model.Workflow) []string {
	var ids []string
	for _, n := range wf.Nodes {
		if n.Kind() == model.NodeWallet {
			ids = append(ids, n.ID())
		}
	}
	return ids
}

// shouldFire evaluates a node's trigger against the clock's current tick.
// Nodes without a trigger (e.g. wallets) never re-fire after deploy; cron
// triggers fire on the interval boundary measured from the clock's first
// timestamp; a price-oracle trigger fires every tick, since the market-data
// replay itself is the oracle update.
func shouldFire(n model.Node, c *clock.SimClock) bool {
	trig := triggerOf(n)
	if trig == nil {
		return false
	}
	switch trig.Kind {
	case model.TriggerPriceOracle:
		return true
	case model.TriggerCron:
		elapsed := c.CurrentTimestamp() - c.FirstTimestamp()
		step := cronIntervalSeconds(trig.Interval)
		return step > 0 && elapsed%step == 0
	default:
		return false
	}
}

func cronIntervalSeconds(interval model.CronInterval) int64 {
	switch interval {
	case model.CronHourly:
		return 3600
	case model.CronDaily:
		return 86400
	case model.CronWeekly:
		return 604800
	default:
		return 0
	}
}

func triggerOf(n model.Node) *model.Trigger {
	switch v := n.(type) {
	case *model.OptimizerNode:
		return v.Trigger
	case *model.SpotNode:
		return v.Trigger
	case *model.PerpNode:
		return v.Trigger
	case *model.LendingNode:
		return v.Trigger
	case *model.VaultNode:
		return v.Trigger
	case *model.LpNode:
		return v.Trigger
	case *model.SwapNode:
		return v.Trigger
	case *model.BridgeNode:
		return v.Trigger
	case *model.OptionsNode:
		return v.Trigger
	case *model.PendleNode:
		return v.Trigger
	default:
		return nil
	}
}

// buildVenues instantiates the venue driver backing every non-wallet,
// non-optimizer node, loading each node's market-data CSV via the manifest,
// and returns the union of every timestamp observed (the clock's domain).
func buildVenues(wf *model.Workflow, manifest *data.Manifest, cfg Config) (map[string]venue.Venue, []int64, error) {
	venues := make(map[string]venue.Venue)
	var timestamps []int64
	seed := cfg.Seed

	for _, n := range wf.Nodes {
		switch node := n.(type) {
		case *model.PerpNode:
			filename, err := manifest.LookupFile("perp", node.Pair)
			if err != nil {
				return nil, nil, err
			}
			rows, err := readPerpCSV(cfg.DataDir, filename)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				timestamps = append(timestamps, r.Timestamp)
			}
			seed++
			venues[node.IDValue] = sim.NewPerpSimulator(rows, 0, cfg.SlippageBps, seed)

		case *model.LpNode:
			filename, err := manifest.LookupFile("lp", node.Pool)
			if err != nil {
				return nil, nil, err
			}
			rows, err := readLpCSV(cfg.DataDir, filename)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				timestamps = append(timestamps, r.Timestamp)
			}
			tickLower, tickUpper := int32(0), int32(0)
			if node.TickLower != nil {
				tickLower = *node.TickLower
			}
			if node.TickUpper != nil {
				tickUpper = *node.TickUpper
			}
			venues[node.IDValue] = sim.NewLpSimulator(rows, tickLower, tickUpper)

		case *model.LendingNode:
			filename, err := manifest.LookupFile("lending", node.Asset)
			if err != nil {
				return nil, nil, err
			}
			rows, err := readLendingCSV(cfg.DataDir, filename)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				timestamps = append(timestamps, r.Timestamp)
			}
			venues[node.IDValue] = sim.NewLendingSimulator(rows)

		case *model.VaultNode:
			filename, err := manifest.LookupFile("vault", node.Asset)
			if err != nil {
				return nil, nil, err
			}
			rows, err := readVaultCSV(cfg.DataDir, filename)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				timestamps = append(timestamps, r.Timestamp)
			}
			venues[node.IDValue] = sim.NewVaultSimulator(rows)

		case *model.SpotNode:
			filename, err := manifest.LookupFile("price", node.Pair)
			if err != nil {
				return nil, nil, err
			}
			rows, err := readPriceCSV(cfg.DataDir, filename)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				timestamps = append(timestamps, r.Timestamp)
			}
			venues[node.IDValue] = sim.NewSpotSimulator(rows, cfg.SlippageBps)

		case *model.PendleNode:
			filename, err := manifest.LookupFile("pendle", node.Market)
			if err != nil {
				return nil, nil, err
			}
			rows, err := readPendleCSV(cfg.DataDir, filename)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				timestamps = append(timestamps, r.Timestamp)
			}
			venues[node.IDValue] = sim.NewPendleSimulator(rows)

		case *model.OptionsNode:
			filename, err := manifest.LookupFile("options", node.Underlying)
			if err != nil {
				return nil, nil, err
			}
			rows, err := readOptionsCSV(cfg.DataDir, filename)
			if err != nil {
				return nil, nil, err
			}
			for _, r := range rows {
				timestamps = append(timestamps, r.Timestamp)
			}
			venues[node.IDValue] = sim.NewOptionsSimulator(rows)

		case *model.SwapNode:
			venues[node.IDValue] = sim.NewSwapSimulator(cfg.SlippageBps, 30)

		case *model.BridgeNode:
			venues[node.IDValue] = sim.NewBridgeSimulator(10)

		case *model.WalletNode:
			// handled separately: wallets are credited directly on the ledger.
		case *model.OptimizerNode:
			// the optimizer has no venue of its own; the engine dispatches it.
		}
	}

	return venues, timestamps, nil
}

func readPerpCSV(dir, filename string) ([]data.PerpCsvRow, error) {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return data.ReadPerpCSV(f)
}

func readLpCSV(dir, filename string) ([]data.LpCsvRow, error) {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return data.ReadLpCSV(f)
}

func readLendingCSV(dir, filename string) ([]data.LendingCsvRow, error) {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return data.ReadLendingCSV(f)
}

func readVaultCSV(dir, filename string) ([]data.VaultCsvRow, error) {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return data.ReadVaultCSV(f)
}

func readPriceCSV(dir, filename string) ([]data.PriceCsvRow, error) {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return data.ReadPriceCSV(f)
}

func readPendleCSV(dir, filename string) ([]data.PendleCsvRow, error) {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return data.ReadPendleCSV(f)
}

func readOptionsCSV(dir, filename string) ([]data.OptionsCsvRow, error) {
	f, err := os.Open(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return data.ReadOptionsCSV(f)
}

// noopVault is used when no external vault collaborator is wired in a
// backtest: it reports zero total assets, so the reserve controller returns
// without unwinding anything.
type noopVault struct{}

func (noopVault) TotalAssets(context.Context) (float64, error)  { return 0, nil }
func (noopVault) IdleReserves(context.Context) (float64, error) { return 0, nil }
func (noopVault) DepositToReserves(context.Context, float64) error { return nil }

func noopUnwind(e *engine.Engine) reservectl.Unwinder {
	return func(ctx context.Context, targetUSD float64) (float64, error) {
		ids := make([]string, 0, len(e.Venues))
		for id := range e.Venues {
			ids = append(ids, id)
		}
		return e.ProRataUnwind(ctx, targetUSD, ids)
	}
}

// twrrPct compounds per-tick returns into a time-weighted rate of return.
func twrrPct(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	growth := 1.0
	for i := 1; i < len(series); i++ {
		if series[i-1] <= 0 {
			continue
		}
		growth *= series[i] / series[i-1]
	}
	return (growth - 1.0) * 100.0
}

// maxDrawdownPct is the largest peak-to-trough decline observed in series.
func maxDrawdownPct(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	peak := series[0]
	maxDD := 0.0
	for _, v := range series {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100.0
}

// sharpe annualizes the per-tick return series assuming an 8h tick cadence
// (periodsPerYear), with a zero risk-free rate.
func sharpe(series []float64) float64 {
	if len(series) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] <= 0 {
			continue
		}
		returns = append(returns, series[i]/series[i-1]-1.0)
	}
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	m := sum / float64(len(returns))
	var sumSq float64
	for _, r := range returns {
		d := r - m
		sumSq += d * d
	}
	std := math.Sqrt(sumSq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return (m / std) * math.Sqrt(periodsPerYear)
}
