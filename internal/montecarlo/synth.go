package montecarlo

import (
	"bytes"
	"math/rand"

	"github.com/defi-flow/defi-flow-go/internal/data"
)

const secondsPerPeriod = 28800 // 8h, matches the perp funding cadence

func extrapolateTimestamp(timestamps []int64, i int) int64 {
	if i < len(timestamps) {
		return timestamps[i]
	}
	if len(timestamps) == 0 {
		return int64(i) * secondsPerPeriod
	}
	return timestamps[len(timestamps)-1] + int64(i)*secondsPerPeriod
}

// GenerateSyntheticCSV renders one synthetic CSV for params, using sharedGBM
// (indexed directly for perp/lp, or via tsToGBMIdx for price/spot so spot
// tracks the same calendar-time price factor as perp) for cross-file price
// correlation. perpStartPrice aligns spot's absolute price level with perp's
// so delta-neutral legs trade the same notional at the same price.
func GenerateSyntheticCSV(params Params, sharedGBM []float64, tsToGBMIdx map[int64]int, perpStartPrice *float64, rng *rand.Rand) ([]byte, error) {
	switch {
	case params.Perp != nil:
		return generatePerpCSV(params.Perp, sharedGBM, rng)
	case params.Price != nil:
		return generatePriceCSV(params.Price, sharedGBM, tsToGBMIdx, perpStartPrice)
	case params.Lending != nil:
		return generateLendingCSV(params.Lending, rng)
	case params.Vault != nil:
		return generateVaultCSV(params.Vault, rng)
	case params.Lp != nil:
		return generateLpCSV(params.Lp, sharedGBM, rng)
	default:
		return params.Passthrough, nil
	}
}

func generatePerpCSV(p *PerpParams, sharedGBM []float64, rng *rand.Rand) ([]byte, error) {
	n := p.NPeriods
	fundingPath := GenerateOUPath(n, p.FundingMean, p.FundingTheta, p.FundingSigma, rng)
	rows := make([]data.PerpCsvRow, n)
	for i := 0; i < n; i++ {
		factor := 1.0
		if i < len(sharedGBM) {
			factor = sharedGBM[i]
		}
		price := p.StartPrice * factor
		halfSpread := price * p.SpreadFrac * 0.5
		fr := fundingPath[i]
		rows[i] = data.PerpCsvRow{
			Symbol:      p.Symbol,
			MarkPrice:   price,
			IndexPrice:  price,
			FundingRate: fr,
			Bid:         price - halfSpread,
			Ask:         price + halfSpread,
			MidPrice:    price,
			LastPrice:   price,
			Timestamp:   extrapolateTimestamp(p.Timestamps, i),
			FundingAPY:  fr * 8760.0,
			RewardsAPY:  p.RewardsMean,
		}
	}
	var buf bytes.Buffer
	if err := data.WritePerpCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func generatePriceCSV(p *PriceParams, sharedGBM []float64, tsToGBMIdx map[int64]int, perpStartPrice *float64) ([]byte, error) {
	n := p.NPeriods
	basePrice := p.StartPrice
	if perpStartPrice != nil {
		basePrice = *perpStartPrice
	}
	rows := make([]data.PriceCsvRow, n)
	for i := 0; i < n; i++ {
		ts := extrapolateTimestamp(p.Timestamps, i)
		gbmIdx := i
		if idx, ok := tsToGBMIdx[ts]; ok {
			gbmIdx = idx
		}
		factor := 1.0
		if gbmIdx < len(sharedGBM) {
			factor = sharedGBM[gbmIdx]
		}
		price := basePrice * factor
		halfSpread := price * p.SpreadFrac * 0.5
		rows[i] = data.PriceCsvRow{Timestamp: ts, Price: price, Bid: price - halfSpread, Ask: price + halfSpread}
	}
	var buf bytes.Buffer
	if err := data.WritePriceCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func generateLendingCSV(p *LendingParams, rng *rand.Rand) ([]byte, error) {
	n := p.NPeriods
	supplyPath := GenerateAR1Path(n, p.SupplyAPYMean, p.SupplyAPYStd, p.AR1Coeff, rng)
	rewardPath := GenerateAR1Path(n, p.RewardAPYMean, p.RewardAPYStd, p.AR1Coeff, rng)
	borrowRatio := 1.5
	if p.SupplyAPYMean > 0 {
		borrowRatio = p.BorrowAPYMean / p.SupplyAPYMean
	}
	rows := make([]data.LendingCsvRow, n)
	for i := 0; i < n; i++ {
		borrow := supplyPath[i] * borrowRatio
		if borrow < 0 {
			borrow = 0
		}
		rows[i] = data.LendingCsvRow{
			Timestamp:   extrapolateTimestamp(p.Timestamps, i),
			SupplyAPY:   supplyPath[i],
			BorrowAPY:   borrow,
			Utilization: p.UtilizationMean,
			RewardAPY:   rewardPath[i],
		}
	}
	var buf bytes.Buffer
	if err := data.WriteLendingCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func generateVaultCSV(p *VaultParams, rng *rand.Rand) ([]byte, error) {
	n := p.NPeriods
	apyPath := GenerateAR1Path(n, p.APYMean, p.APYStd, p.AR1Coeff, rng)
	rewardPath := GenerateAR1Path(n, p.RewardAPYMean, p.RewardAPYStd, p.AR1Coeff, rng)
	rows := make([]data.VaultCsvRow, n)
	for i := 0; i < n; i++ {
		rows[i] = data.VaultCsvRow{Timestamp: extrapolateTimestamp(p.Timestamps, i), APY: apyPath[i], RewardAPY: rewardPath[i]}
	}
	var buf bytes.Buffer
	if err := data.WriteVaultCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func generateLpCSV(p *LpParams, sharedGBM []float64, rng *rand.Rand) ([]byte, error) {
	n := p.NPeriods
	tickPath := GenerateOUPath(n, float64(p.TickStart), p.TickTheta, p.TickSigma, rng)
	feePath := GenerateAR1Path(n, p.FeeAPYMean, p.FeeAPYStd, p.FeeAR1, rng)
	rewardPath := GenerateAR1Path(n, p.RewardRateMean, p.RewardRateStd, p.RewardAR1, rng)
	rows := make([]data.LpCsvRow, n)
	for i := 0; i < n; i++ {
		factor := 1.0
		if i < len(sharedGBM) {
			factor = sharedGBM[i]
		}
		rows[i] = data.LpCsvRow{
			Timestamp:        extrapolateTimestamp(p.Timestamps, i),
			CurrentTick:      int32(tickPath[i]),
			PriceA:           p.StartPriceA * factor,
			PriceB:           p.PriceB,
			FeeAPY:           feePath[i],
			RewardRate:       rewardPath[i],
			RewardTokenPrice: p.RewardTokenPrice,
		}
	}
	var buf bytes.Buffer
	if err := data.WriteLpCSV(&buf, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
