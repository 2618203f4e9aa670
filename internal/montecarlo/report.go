package montecarlo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/defi-flow/defi-flow-go/internal/model"
)

// Summary holds the sorted percentile bands and VaR figures computed over a
// batch of simulation results (spec §4.11's reporting step).
type Summary struct {
	Percentiles []PercentileRow
	VaR95       float64
	VaR99       float64
}

// PercentileRow is one row of the percentile table: {5th, 25th, 50th, 75th, 95th}.
type PercentileRow struct {
	Label          string
	TWRRPct        float64
	MaxDrawdownPct float64
	Sharpe         float64
	NetPnL         float64
}

var percentileLevels = []struct {
	label string
	pct   float64
}{
	{"5th", 5}, {"25th", 25}, {"50th", 50}, {"75th", 75}, {"95th", 95},
}

// Summarize computes the percentile table and VaR figures over sims. Returns
// the zero Summary if sims is empty.
func Summarize(sims []model.BacktestResult) Summary {
	if len(sims) == 0 {
		return Summary{}
	}
	twrrs := make([]float64, len(sims))
	drawdowns := make([]float64, len(sims))
	sharpes := make([]float64, len(sims))
	pnls := make([]float64, len(sims))
	for i, s := range sims {
		twrrs[i] = s.TWRRPct
		drawdowns[i] = s.MaxDrawdownPct
		sharpes[i] = s.Sharpe
		pnls[i] = s.NetPnL
	}
	sort.Float64s(twrrs)
	sort.Float64s(drawdowns)
	sort.Float64s(sharpes)
	sort.Float64s(pnls)

	rows := make([]PercentileRow, len(percentileLevels))
	for i, lvl := range percentileLevels {
		rows[i] = PercentileRow{
			Label:          lvl.label,
			TWRRPct:        Percentile(twrrs, lvl.pct),
			MaxDrawdownPct: Percentile(drawdowns, lvl.pct),
			Sharpe:         Percentile(sharpes, lvl.pct),
			NetPnL:         Percentile(pnls, lvl.pct),
		}
	}

	return Summary{
		Percentiles: rows,
		VaR95:       Percentile(pnls, 5.0),
		VaR99:       Percentile(pnls, 1.0),
	}
}

// FormatSummary renders a Summary as the fixed-width table a CLI surfaces
// to stdout.
func FormatSummary(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s  %8s  %8s  %8s  %10s\n", "Percentiles", "TWRR%", "MxDD%", "Sharpe", "NetPnL")
	for _, row := range s.Percentiles {
		fmt.Fprintf(&b, "%12s  %+8.2f  %8.2f  %8.3f  %+10.0f\n", row.Label, row.TWRRPct, row.MaxDrawdownPct, row.Sharpe, row.NetPnL)
	}
	fmt.Fprintf(&b, "\nVaR(95%%): %+.0f   VaR(99%%): %+.0f\n", s.VaR95, s.VaR99)
	return b.String()
}
