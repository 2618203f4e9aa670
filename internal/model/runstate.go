package model

// SimMetrics are the USD-denominated accumulators reported by a venue driver
// for the run (spec §4.3).
type SimMetrics struct {
	FundingPnL      float64 `json:"funding_pnl"`
	PremiumPnL      float64 `json:"premium_pnl"`
	LpFees          float64 `json:"lp_fees"`
	LendingInterest float64 `json:"lending_interest"`
	SwapCosts       float64 `json:"swap_costs"`
	RewardsPnL      float64 `json:"rewards_pnl"`
	Liquidations    float64 `json:"liquidations"`
}

// Add accumulates another SimMetrics into the receiver, used by the engine's
// collect_metrics aggregation (spec §4.5).
func (m *SimMetrics) Add(o SimMetrics) {
	m.FundingPnL += o.FundingPnL
	m.PremiumPnL += o.PremiumPnL
	m.LpFees += o.LpFees
	m.LendingInterest += o.LendingInterest
	m.SwapCosts += o.SwapCosts
	m.RewardsPnL += o.RewardsPnL
	m.Liquidations += o.Liquidations
}

// ReserveAction records one pro-rata unwind performed by the reserve controller.
type ReserveAction struct {
	UnwoundUSD float64 `json:"unwound_usd"`
	NewRatio   float64 `json:"new_ratio"`
	Timestamp  int64   `json:"timestamp"`
}

// RunState is persisted between ticks (spec §3, §4.12). All cumulative fields
// default to zero when absent from a loaded snapshot, so older snapshots without
// the newer fields still load cleanly — Go's zero value already satisfies this
// for plain float64/int64 fields, so no pointer indirection is needed here (unlike
// ReserveConfig/ValuerConfig, whose defaults are non-zero).
type RunState struct {
	DeployCompleted    bool              `json:"deploy_completed"`
	LastTick           int64             `json:"last_tick"`
	Balances           map[string]float64 `json:"balances"`
	ReserveActions     []ReserveAction   `json:"reserve_actions"`
	InitialCapital     float64           `json:"initial_capital"`
	PeakTVL            float64           `json:"peak_tvl"`
	CumulativeFunding  float64           `json:"cumulative_funding"`
	CumulativeInterest float64           `json:"cumulative_interest"`
	CumulativeRewards  float64           `json:"cumulative_rewards"`
	CumulativeCosts    float64           `json:"cumulative_costs"`
}

// NewRunState returns a freshly created RunState, matching the "created on first
// tick" lifecycle in spec §3.
func NewRunState() *RunState {
	return &RunState{Balances: make(map[string]float64)}
}

// RecordPeakTVL enforces invariant 11: peak_tvl is monotone non-decreasing.
func (s *RunState) RecordPeakTVL(tvl float64) {
	if tvl > s.PeakTVL {
		s.PeakTVL = tvl
	}
}

// BacktestResult aggregates a completed backtest run (spec §4.12).
type BacktestResult struct {
	InitialCapital   float64    `json:"initial_capital"`
	FinalTVL         float64    `json:"final_tvl"`
	NetPnL           float64    `json:"net_pnl"`
	TWRRPct          float64    `json:"twrr_pct"`
	MaxDrawdownPct   float64    `json:"max_drawdown_pct"`
	Sharpe           float64    `json:"sharpe"`
	Metrics          SimMetrics `json:"metrics"`
	TickCount        int64      `json:"tick_count"`
	RuntimeSeconds   float64    `json:"runtime_seconds"`
}
