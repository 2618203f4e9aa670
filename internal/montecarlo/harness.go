package montecarlo

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/defi-flow/defi-flow-go/internal/backtest"
	"github.com/defi-flow/defi-flow-go/internal/data"
	"github.com/defi-flow/defi-flow-go/internal/model"
)

// Config controls how many synthetic simulations the harness runs.
type Config struct {
	NSimulations uint32
}

// Result bundles the historical baseline result alongside every successful
// synthetic simulation's result.
type Result struct {
	Historical  model.BacktestResult
	Simulations []model.BacktestResult
}

// Run estimates parameters from every CSV named in cfg.DataDir's manifest,
// then fans out n_simulations synthetic backtests in parallel, each from a
// GBM/OU/AR1-generated market-data directory seeded deterministically from
// base_seed+sim_index+1 (spec §4.11).
func Run(ctx context.Context, cfg backtest.Config, mcCfg Config, historical model.BacktestResult) (*Result, error) {
	manifest, err := data.LoadManifest(filepath.Join(cfg.DataDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("monte carlo: loading manifest: %w", err)
	}

	type fileParams struct {
		filename string
		params   Params
	}
	seen := make(map[string]bool)
	var files []fileParams
	var perpParams *PerpParams

	for _, bySymbol := range manifest.Files {
		for _, filename := range bySymbol {
			if seen[filename] {
				continue
			}
			seen[filename] = true
			kind := kindForFile(manifest, filename)
			raw, err := os.ReadFile(filepath.Join(cfg.DataDir, filename))
			if err != nil {
				return nil, fmt.Errorf("monte carlo: reading %s: %w", filename, err)
			}
			params, err := EstimateParams(bytes.NewReader(raw), kind, raw)
			if err != nil {
				// per-file estimation failures are swallowed; that file passes through untouched in sims that reach it
				params = Params{Passthrough: raw}
			}
			if params.Perp != nil && perpParams == nil {
				perpParams = params.Perp
			}
			files = append(files, fileParams{filename: filename, params: params})
		}
	}

	sharedDrift, sharedVol, sharedN := 0.0, 0.01, 100
	var sharedTimestamps []int64
	var perpStartPrice *float64
	if perpParams != nil {
		sharedDrift = perpParams.PriceDrift
		sharedVol = perpParams.PriceVol
		sharedN = perpParams.NPeriods
		sharedTimestamps = perpParams.Timestamps
		startPrice := perpParams.StartPrice
		perpStartPrice = &startPrice
	} else {
		for _, f := range files {
			if n := f.params.NPeriods(); n > sharedN {
				sharedN = n
			}
		}
	}
	tsToGBMIdx := make(map[int64]int, len(sharedTimestamps))
	for i, ts := range sharedTimestamps {
		tsToGBMIdx[ts] = i
	}

	manifestBytes, err := os.ReadFile(filepath.Join(cfg.DataDir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("monte carlo: reading manifest: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]*model.BacktestResult, mcCfg.NSimulations)

	for i := uint32(0); i < mcCfg.NSimulations; i++ {
		i := i
		g.Go(func() error {
			simSeed := cfg.Seed + uint64(i) + 1
			rng := rand.New(rand.NewSource(int64(simSeed)))

			tempDir, err := os.MkdirTemp("", fmt.Sprintf("defi-flow-mc-%d-%d-", cfg.Seed, i))
			if err != nil {
				return nil // directory-creation failure for one sim is swallowed, not fatal to the batch
			}
			defer os.RemoveAll(tempDir)

			sharedGBM := GeneratePricePath(sharedN, sharedDrift, sharedVol, rng)

			for _, f := range files {
				body, err := GenerateSyntheticCSV(f.params, sharedGBM, tsToGBMIdx, perpStartPrice, rng)
				if err != nil {
					return nil
				}
				if err := os.WriteFile(filepath.Join(tempDir, f.filename), body, 0o644); err != nil {
					return nil
				}
			}
			if err := os.WriteFile(filepath.Join(tempDir, "manifest.json"), manifestBytes, 0o644); err != nil {
				return nil
			}

			simCfg := cfg
			simCfg.DataDir = tempDir
			simCfg.Seed = simSeed
			simCfg.Verbose = false

			result, err := backtest.RunSingle(gctx, simCfg)
			if err != nil {
				return nil // per-sim failures are swallowed (spec §7's Monte Carlo error level)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("monte carlo: %w", err)
	}

	out := &Result{Historical: historical}
	for _, r := range results {
		if r != nil {
			out.Simulations = append(out.Simulations, *r)
		}
	}
	return out, nil
}

func kindForFile(manifest *data.Manifest, filename string) string {
	for kind, bySymbol := range manifest.Files {
		for _, f := range bySymbol {
			if f == filename {
				return kind
			}
		}
	}
	return "unknown"
}
