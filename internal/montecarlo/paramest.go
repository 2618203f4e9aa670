package montecarlo

import (
	"fmt"
	"io"
	"math"

	"github.com/defi-flow/defi-flow-go/internal/data"
)

// PerpParams are the statistical parameters estimated from a historical perp
// CSV for synthetic path generation.
type PerpParams struct {
	NPeriods     int
	StartPrice   float64
	PriceDrift   float64
	PriceVol     float64
	FundingMean  float64
	FundingTheta float64
	FundingSigma float64
	RewardsMean  float64
	SpreadFrac   float64
	Symbol       string
	Timestamps   []int64
}

// PriceParams are estimated from a spot/price CSV.
type PriceParams struct {
	NPeriods   int
	StartPrice float64
	SpreadFrac float64
	Timestamps []int64
}

// LendingParams are estimated from a lending-pool CSV.
type LendingParams struct {
	NPeriods        int
	SupplyAPYMean   float64
	SupplyAPYStd    float64
	BorrowAPYMean   float64
	RewardAPYMean   float64
	RewardAPYStd    float64
	UtilizationMean float64
	AR1Coeff        float64
	Timestamps      []int64
}

// VaultParams are estimated from a vault CSV.
type VaultParams struct {
	NPeriods      int
	APYMean       float64
	APYStd        float64
	RewardAPYMean float64
	RewardAPYStd  float64
	AR1Coeff      float64
	Timestamps    []int64
}

// LpParams are estimated from a concentrated-liquidity CSV.
type LpParams struct {
	NPeriods         int
	TickStart        int32
	TickTheta        float64
	TickSigma        float64
	StartPriceA      float64
	PriceB           float64
	FeeAPYMean       float64
	FeeAPYStd        float64
	FeeAR1           float64
	RewardRateMean   float64
	RewardRateStd    float64
	RewardAR1        float64
	RewardTokenPrice float64
	Timestamps       []int64
}

// Params is the tagged union of per-kind estimated parameters, or a
// Passthrough for CSV kinds the estimator doesn't model (copied verbatim).
type Params struct {
	Perp        *PerpParams
	Price       *PriceParams
	Lending     *LendingParams
	Vault       *VaultParams
	Lp          *LpParams
	Passthrough []byte // raw CSV bytes, copied unmodified into every sim
}

// NPeriods reports the estimated period count, 0 for a passthrough.
func (p Params) NPeriods() int {
	switch {
	case p.Perp != nil:
		return p.Perp.NPeriods
	case p.Price != nil:
		return p.Price.NPeriods
	case p.Lending != nil:
		return p.Lending.NPeriods
	case p.Vault != nil:
		return p.Vault.NPeriods
	case p.Lp != nil:
		return p.Lp.NPeriods
	default:
		return 0
	}
}

// EstimateParams dispatches to the per-kind estimator named by kind ("perp",
// "price"/"spot", "lending", "vault", "lp"), copying raw bytes through for
// anything else.
func EstimateParams(r io.Reader, kind string, raw []byte) (Params, error) {
	switch kind {
	case "perp":
		p, err := estimatePerpParams(r)
		return Params{Perp: p}, err
	case "price", "spot":
		p, err := estimatePriceParams(r)
		return Params{Price: p}, err
	case "lending":
		p, err := estimateLendingParams(r)
		return Params{Lending: p}, err
	case "vault":
		p, err := estimateVaultParams(r)
		return Params{Vault: p}, err
	case "lp":
		p, err := estimateLpParams(r)
		return Params{Lp: p}, err
	default:
		return Params{Passthrough: raw}, nil
	}
}

func estimatePerpParams(r io.Reader) (*PerpParams, error) {
	rows, err := data.ReadPerpCSV(r)
	if err != nil {
		return nil, fmt.Errorf("reading perp csv: %w", err)
	}
	if len(rows) < 10 {
		return nil, fmt.Errorf("too few rows for perp params estimation")
	}

	timestamps := make([]int64, len(rows))
	var logReturns []float64
	for i, row := range rows {
		timestamps[i] = row.Timestamp
		if i > 0 && rows[i-1].MarkPrice > 0 && row.MarkPrice > 0 {
			logReturns = append(logReturns, math.Log(row.MarkPrice/rows[i-1].MarkPrice))
		}
	}

	fundingRates := make([]float64, len(rows))
	rewards := make([]float64, len(rows))
	var spreads []float64
	for i, row := range rows {
		fundingRates[i] = row.FundingRate
		rewards[i] = row.RewardsAPY
		if row.MarkPrice > 0 {
			spreads = append(spreads, (row.Ask-row.Bid)/row.MarkPrice)
		}
	}

	theta, sigma := estimateOU(fundingRates)

	return &PerpParams{
		NPeriods:     len(rows),
		StartPrice:   rows[0].MarkPrice,
		PriceDrift:   mean(logReturns),
		PriceVol:     stdDev(logReturns),
		FundingMean:  mean(fundingRates),
		FundingTheta: theta,
		FundingSigma: sigma,
		RewardsMean:  mean(rewards),
		SpreadFrac:   math.Max(mean(spreads), 0.0001),
		Symbol:       rows[0].Symbol,
		Timestamps:   timestamps,
	}, nil
}

func estimatePriceParams(r io.Reader) (*PriceParams, error) {
	rows, err := data.ReadPriceCSV(r)
	if err != nil {
		return nil, fmt.Errorf("reading price csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("too few rows for price params")
	}
	timestamps := make([]int64, len(rows))
	var spreads []float64
	for i, row := range rows {
		timestamps[i] = row.Timestamp
		if row.Price > 0 {
			spreads = append(spreads, (row.Ask-row.Bid)/row.Price)
		}
	}
	return &PriceParams{
		NPeriods:   len(rows),
		StartPrice: rows[0].Price,
		SpreadFrac: math.Max(mean(spreads), 0.0001),
		Timestamps: timestamps,
	}, nil
}

func estimateLendingParams(r io.Reader) (*LendingParams, error) {
	rows, err := data.ReadLendingCSV(r)
	if err != nil {
		return nil, fmt.Errorf("reading lending csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("too few rows for lending params")
	}
	timestamps := make([]int64, len(rows))
	supply := make([]float64, len(rows))
	borrow := make([]float64, len(rows))
	reward := make([]float64, len(rows))
	util := make([]float64, len(rows))
	for i, row := range rows {
		timestamps[i] = row.Timestamp
		supply[i] = row.SupplyAPY
		borrow[i] = row.BorrowAPY
		reward[i] = row.RewardAPY
		util[i] = row.Utilization
	}
	return &LendingParams{
		NPeriods:        len(rows),
		SupplyAPYMean:   mean(supply),
		SupplyAPYStd:    stdDev(supply),
		BorrowAPYMean:   mean(borrow),
		RewardAPYMean:   mean(reward),
		RewardAPYStd:    stdDev(reward),
		UtilizationMean: mean(util),
		AR1Coeff:        estimateAR1(supply),
		Timestamps:      timestamps,
	}, nil
}

func estimateVaultParams(r io.Reader) (*VaultParams, error) {
	rows, err := data.ReadVaultCSV(r)
	if err != nil {
		return nil, fmt.Errorf("reading vault csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("too few rows for vault params")
	}
	timestamps := make([]int64, len(rows))
	apys := make([]float64, len(rows))
	rewards := make([]float64, len(rows))
	for i, row := range rows {
		timestamps[i] = row.Timestamp
		apys[i] = row.APY
		rewards[i] = row.RewardAPY
	}
	return &VaultParams{
		NPeriods:      len(rows),
		APYMean:       mean(apys),
		APYStd:        stdDev(apys),
		RewardAPYMean: mean(rewards),
		RewardAPYStd:  stdDev(rewards),
		AR1Coeff:      estimateAR1(apys),
		Timestamps:    timestamps,
	}, nil
}

func estimateLpParams(r io.Reader) (*LpParams, error) {
	rows, err := data.ReadLpCSV(r)
	if err != nil {
		return nil, fmt.Errorf("reading lp csv: %w", err)
	}
	if len(rows) < 10 {
		return nil, fmt.Errorf("too few rows for LP params estimation")
	}
	timestamps := make([]int64, len(rows))
	ticks := make([]float64, len(rows))
	feeAPYs := make([]float64, len(rows))
	rewardRates := make([]float64, len(rows))
	rewardPrices := make([]float64, len(rows))
	for i, row := range rows {
		timestamps[i] = row.Timestamp
		ticks[i] = float64(row.CurrentTick)
		feeAPYs[i] = row.FeeAPY
		rewardRates[i] = row.RewardRate
		rewardPrices[i] = row.RewardTokenPrice
	}
	tickTheta, tickSigma := estimateOU(ticks)
	return &LpParams{
		NPeriods:         len(rows),
		TickStart:        rows[0].CurrentTick,
		TickTheta:        tickTheta,
		TickSigma:        tickSigma,
		StartPriceA:      rows[0].PriceA,
		PriceB:           rows[0].PriceB,
		FeeAPYMean:       mean(feeAPYs),
		FeeAPYStd:        stdDev(feeAPYs),
		FeeAR1:           estimateAR1(feeAPYs),
		RewardRateMean:   mean(rewardRates),
		RewardRateStd:    stdDev(rewardRates),
		RewardAR1:        estimateAR1(rewardRates),
		RewardTokenPrice: mean(rewardPrices),
		Timestamps:       timestamps,
	}, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// estimateAR1 computes phi = corr(x_t, x_{t-1}) and clamps to [0, 0.99].
func estimateAR1(xs []float64) float64 {
	if len(xs) < 3 {
		return 0.5
	}
	m := mean(xs)
	var num, den float64
	for i := 1; i < len(xs); i++ {
		num += (xs[i] - m) * (xs[i-1] - m)
		den += (xs[i-1] - m) * (xs[i-1] - m)
	}
	if den < 1e-12 {
		return 0.5
	}
	phi := num / den
	return math.Max(0, math.Min(0.99, phi))
}

// estimateOU regresses dx on (mu-x) to estimate the mean-reversion speed
// theta, then estimates sigma from the regression residuals.
func estimateOU(xs []float64) (theta, sigma float64) {
	if len(xs) < 3 {
		return 0.1, stdDev(xs)
	}
	mu := mean(xs)
	var sumXY, sumX2 float64
	for i := 1; i < len(xs); i++ {
		dx := xs[i] - xs[i-1]
		deviation := mu - xs[i-1]
		sumXY += dx * deviation
		sumX2 += deviation * deviation
	}
	if sumX2 > 1e-20 {
		theta = math.Max(0.001, math.Min(1.0, sumXY/sumX2))
	} else {
		theta = 0.1
	}
	residuals := make([]float64, 0, len(xs)-1)
	for i := 1; i < len(xs); i++ {
		dx := xs[i] - xs[i-1]
		predicted := theta * (mu - xs[i-1])
		residuals = append(residuals, dx-predicted)
	}
	sigma = math.Max(stdDev(residuals), 1e-10)
	return theta, sigma
}
