// Command defi-flow is the operator CLI: backtest a workflow document against
// replayed market data, or validate it with `run` (this build wires no live
// collaborators, so `run` executes nothing) (spec §6's CLI surface). Exit codes: 0 success, 2 validation failure, 3 runtime
// failure, 4 rate-limited.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/defi-flow/defi-flow-go/configs"
	"github.com/defi-flow/defi-flow-go/internal/backtest"
	"github.com/defi-flow/defi-flow-go/internal/errs"
	"github.com/defi-flow/defi-flow-go/internal/montecarlo"
)

const (
	exitOK              = 0
	exitValidationError = 2
	exitRuntimeError    = 3
	exitRateLimited     = 4
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "defi-flow",
	Short: "Automated DeFi portfolio operator",
}

func init() {
	_ = godotenv.Load(".env.local")
	configs.BindFlags(v)

	backtestCmd.Flags().String("workflow", "", "path to the workflow JSON document")
	backtestCmd.Flags().String("data-dir", "", "market-data directory (manifest.json + CSVs)")
	backtestCmd.Flags().Float64("capital", 0, "initial capital in USD")
	backtestCmd.Flags().Float64("slippage-bps", 0, "slippage in basis points")
	backtestCmd.Flags().Uint64("seed", 1, "RNG seed")
	backtestCmd.Flags().Uint32("monte-carlo", 0, "number of synthetic Monte Carlo simulations to run")
	_ = backtestCmd.MarkFlagRequired("workflow")
	_ = backtestCmd.MarkFlagRequired("data-dir")
	_ = v.BindPFlags(backtestCmd.Flags())

	runCmd.Flags().String("workflow", "", "path to the workflow JSON document")
	runCmd.Flags().Bool("dry-run", false, "validate the workflow and exit without executing")
	runCmd.Flags().Bool("once", false, "run a single tick instead of looping")
	_ = runCmd.MarkFlagRequired("workflow")

	rootCmd.AddCommand(backtestCmd, runCmd)
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a workflow against historical market data",
	RunE:  runBacktest,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate, and optionally execute, a workflow",
	RunE:  runLive,
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	opCfg := configs.FromViper(v)
	cfg := backtest.Config{
		WorkflowPath: v.GetString("workflow"),
		DataDir:      v.GetString("data-dir"),
		Capital:      opCfg.Capital,
		SlippageBps:  opCfg.SlippageBps,
		Seed:         v.GetUint64("seed"),
	}
	if cfg.DataDir == "" {
		cfg.DataDir = opCfg.DataDir
	}
	if cmd.Flags().Changed("slippage-bps") {
		cfg.SlippageBps = v.GetFloat64("slippage-bps")
	}

	wf, validationErrs, err := backtest.LoadWorkflow(cfg.WorkflowPath)
	if err != nil {
		log.Printf("error loading workflow: %v", err)
		os.Exit(exitRuntimeError)
	}
	if len(validationErrs) > 0 {
		for _, e := range validationErrs {
			fmt.Fprintf(os.Stderr, "validation: %s: %s\n", e.Kind, e.Message)
		}
		os.Exit(exitValidationError)
	}
	_ = wf

	result, err := backtest.RunSingle(cmd.Context(), cfg)
	if err != nil {
		log.Printf("backtest failed: %v", err)
		os.Exit(exitRuntimeError)
	}
	log.Printf("backtest complete: ticks=%d final_tvl=%.2f net_pnl=%.2f twrr=%.2f%% max_dd=%.2f%% sharpe=%.3f",
		result.TickCount, result.FinalTVL, result.NetPnL, result.TWRRPct, result.MaxDrawdownPct, result.Sharpe)

	if n := v.GetUint32("monte-carlo"); n > 0 {
		mcResult, err := montecarlo.Run(cmd.Context(), cfg, montecarlo.Config{NSimulations: n}, *result)
		if err != nil {
			log.Printf("monte carlo failed: %v", err)
			os.Exit(exitRuntimeError)
		}
		fmt.Println(montecarlo.FormatSummary(montecarlo.Summarize(mcResult.Simulations)))
	}
	return nil
}

func runLive(cmd *cobra.Command, _ []string) error {
	workflowPath, _ := cmd.Flags().GetString("workflow")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	wf, validationErrs, err := backtest.LoadWorkflow(workflowPath)
	if err != nil {
		log.Printf("error loading workflow: %v", err)
		os.Exit(exitRuntimeError)
	}
	if len(validationErrs) > 0 {
		for _, e := range validationErrs {
			fmt.Fprintf(os.Stderr, "validation: %s: %s\n", e.Kind, e.Message)
		}
		os.Exit(exitValidationError)
	}
	if dryRun {
		log.Printf("workflow %q is valid (%d nodes, %d edges)", wf.Name, len(wf.Nodes), len(wf.Edges))
		return nil
	}

	log.Printf("run: live execution requires a configured Signer/Chain/DataProvider collaborator " +
		"(internal/collab) — none is wired into this CLI build; use `defi-flow backtest` against " +
		"replayed market data instead")
	os.Exit(exitRuntimeError)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var flowErr *errs.Error
		if errAs(err, &flowErr) && flowErr.Level == errs.LevelRateLimit {
			os.Exit(exitRateLimited)
		}
		os.Exit(exitRuntimeError)
	}
	os.Exit(exitOK)
}

func errAs(err error, target **errs.Error) bool {
	for err != nil {
		if fe, ok := err.(*errs.Error); ok {
			*target = fe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
