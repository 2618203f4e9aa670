// Package data defines the market-data CSV row schemas (spec §6, bit-exact for
// replay) and their readers/writers.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// PerpCsvRow mirrors the perp CSV schema:
// symbol,mark_price,index_price,funding_rate,open_interest,volume_24h,bid,ask,
// mid_price,last_price,premium,basis,timestamp,funding_apy,rewards_apy
type PerpCsvRow struct {
	Symbol       string
	MarkPrice    float64
	IndexPrice   float64
	FundingRate  float64
	OpenInterest float64
	Volume24h    float64
	Bid          float64
	Ask          float64
	MidPrice     float64
	LastPrice    float64
	Premium      float64
	Basis        float64
	Timestamp    int64
	FundingAPY   float64
	RewardsAPY   float64
}

var perpColumns = []string{
	"symbol", "mark_price", "index_price", "funding_rate", "open_interest", "volume_24h",
	"bid", "ask", "mid_price", "last_price", "premium", "basis", "timestamp", "funding_apy", "rewards_apy",
}

// PriceCsvRow mirrors the price/spot CSV schema: timestamp,price,bid,ask
type PriceCsvRow struct {
	Timestamp int64
	Price     float64
	Bid       float64
	Ask       float64
}

var priceColumns = []string{"timestamp", "price", "bid", "ask"}

// LendingCsvRow mirrors: timestamp,supply_apy,borrow_apy,utilization,reward_apy
type LendingCsvRow struct {
	Timestamp   int64
	SupplyAPY   float64
	BorrowAPY   float64
	Utilization float64
	RewardAPY   float64
}

var lendingColumns = []string{"timestamp", "supply_apy", "borrow_apy", "utilization", "reward_apy"}

// VaultCsvRow mirrors: timestamp,apy,reward_apy
type VaultCsvRow struct {
	Timestamp int64
	APY       float64
	RewardAPY float64
}

var vaultColumns = []string{"timestamp", "apy", "reward_apy"}

// LpCsvRow mirrors: timestamp,current_tick,price_a,price_b,fee_apy,reward_rate,reward_token_price
type LpCsvRow struct {
	Timestamp       int64
	CurrentTick     int32
	PriceA          float64
	PriceB          float64
	FeeAPY          float64
	RewardRate      float64
	RewardTokenPrice float64
}

var lpColumns = []string{
	"timestamp", "current_tick", "price_a", "price_b", "fee_apy", "reward_rate", "reward_token_price",
}

// PendleCsvRow mirrors: timestamp,pt_price,yt_price,underlying_price,implied_apy
type PendleCsvRow struct {
	Timestamp        int64
	PtPrice          float64
	YtPrice          float64
	UnderlyingPrice  float64
	ImpliedAPY       float64
}

var pendleColumns = []string{"timestamp", "pt_price", "yt_price", "underlying_price", "implied_apy"}

func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
func parseInt(s string) (int64, error)     { return strconv.ParseInt(s, 10, 64) }

func readHeader(r *csv.Reader, expect []string) error {
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	if len(header) < len(expect) {
		return fmt.Errorf("csv header: expected columns %v, got %v", expect, header)
	}
	return nil
}

// ReadPerpCSV parses a perp CSV in the exact column order above.
func ReadPerpCSV(r io.Reader) ([]PerpCsvRow, error) {
	cr := csv.NewReader(r)
	if err := readHeader(cr, perpColumns); err != nil {
		return nil, err
	}
	var rows []PerpCsvRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("perp csv: %w", err)
		}
		row, err := parsePerpRow(rec)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parsePerpRow(rec []string) (PerpCsvRow, error) {
	var row PerpCsvRow
	var err error
	row.Symbol = rec[0]
	if row.MarkPrice, err = parseFloat(rec[1]); err != nil {
		return row, err
	}
	if row.IndexPrice, err = parseFloat(rec[2]); err != nil {
		return row, err
	}
	if row.FundingRate, err = parseFloat(rec[3]); err != nil {
		return row, err
	}
	if row.OpenInterest, err = parseFloat(rec[4]); err != nil {
		return row, err
	}
	if row.Volume24h, err = parseFloat(rec[5]); err != nil {
		return row, err
	}
	if row.Bid, err = parseFloat(rec[6]); err != nil {
		return row, err
	}
	if row.Ask, err = parseFloat(rec[7]); err != nil {
		return row, err
	}
	if row.MidPrice, err = parseFloat(rec[8]); err != nil {
		return row, err
	}
	if row.LastPrice, err = parseFloat(rec[9]); err != nil {
		return row, err
	}
	if row.Premium, err = parseFloat(rec[10]); err != nil {
		return row, err
	}
	if row.Basis, err = parseFloat(rec[11]); err != nil {
		return row, err
	}
	if row.Timestamp, err = parseInt(rec[12]); err != nil {
		return row, err
	}
	if row.FundingAPY, err = parseFloat(rec[13]); err != nil {
		return row, err
	}
	if row.RewardsAPY, err = parseFloat(rec[14]); err != nil {
		return row, err
	}
	return row, nil
}

// WritePerpCSV writes rows in the exact column order, for Monte Carlo synthesis output.
func WritePerpCSV(w io.Writer, rows []PerpCsvRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(perpColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Symbol,
			strconv.FormatFloat(r.MarkPrice, 'f', -1, 64),
			strconv.FormatFloat(r.IndexPrice, 'f', -1, 64),
			strconv.FormatFloat(r.FundingRate, 'f', -1, 64),
			strconv.FormatFloat(r.OpenInterest, 'f', -1, 64),
			strconv.FormatFloat(r.Volume24h, 'f', -1, 64),
			strconv.FormatFloat(r.Bid, 'f', -1, 64),
			strconv.FormatFloat(r.Ask, 'f', -1, 64),
			strconv.FormatFloat(r.MidPrice, 'f', -1, 64),
			strconv.FormatFloat(r.LastPrice, 'f', -1, 64),
			strconv.FormatFloat(r.Premium, 'f', -1, 64),
			strconv.FormatFloat(r.Basis, 'f', -1, 64),
			strconv.FormatInt(r.Timestamp, 10),
			strconv.FormatFloat(r.FundingAPY, 'f', -1, 64),
			strconv.FormatFloat(r.RewardsAPY, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPriceCSV parses a price/spot CSV.
func ReadPriceCSV(r io.Reader) ([]PriceCsvRow, error) {
	cr := csv.NewReader(r)
	if err := readHeader(cr, priceColumns); err != nil {
		return nil, err
	}
	var rows []PriceCsvRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("price csv: %w", err)
		}
		ts, err := parseInt(rec[0])
		if err != nil {
			return nil, err
		}
		price, err := parseFloat(rec[1])
		if err != nil {
			return nil, err
		}
		bid, err := parseFloat(rec[2])
		if err != nil {
			return nil, err
		}
		ask, err := parseFloat(rec[3])
		if err != nil {
			return nil, err
		}
		rows = append(rows, PriceCsvRow{Timestamp: ts, Price: price, Bid: bid, Ask: ask})
	}
	return rows, nil
}

// WritePriceCSV writes price rows.
func WritePriceCSV(w io.Writer, rows []PriceCsvRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(priceColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.Timestamp, 10),
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			strconv.FormatFloat(r.Bid, 'f', -1, 64),
			strconv.FormatFloat(r.Ask, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadLendingCSV parses a lending CSV.
func ReadLendingCSV(r io.Reader) ([]LendingCsvRow, error) {
	cr := csv.NewReader(r)
	if err := readHeader(cr, lendingColumns); err != nil {
		return nil, err
	}
	var rows []LendingCsvRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lending csv: %w", err)
		}
		ts, err := parseInt(rec[0])
		if err != nil {
			return nil, err
		}
		supply, err := parseFloat(rec[1])
		if err != nil {
			return nil, err
		}
		borrow, err := parseFloat(rec[2])
		if err != nil {
			return nil, err
		}
		util, err := parseFloat(rec[3])
		if err != nil {
			return nil, err
		}
		reward, err := parseFloat(rec[4])
		if err != nil {
			return nil, err
		}
		rows = append(rows, LendingCsvRow{Timestamp: ts, SupplyAPY: supply, BorrowAPY: borrow, Utilization: util, RewardAPY: reward})
	}
	return rows, nil
}

// WriteLendingCSV writes lending rows.
func WriteLendingCSV(w io.Writer, rows []LendingCsvRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(lendingColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.Timestamp, 10),
			strconv.FormatFloat(r.SupplyAPY, 'f', -1, 64),
			strconv.FormatFloat(r.BorrowAPY, 'f', -1, 64),
			strconv.FormatFloat(r.Utilization, 'f', -1, 64),
			strconv.FormatFloat(r.RewardAPY, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadVaultCSV parses a vault CSV.
func ReadVaultCSV(r io.Reader) ([]VaultCsvRow, error) {
	cr := csv.NewReader(r)
	if err := readHeader(cr, vaultColumns); err != nil {
		return nil, err
	}
	var rows []VaultCsvRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vault csv: %w", err)
		}
		ts, err := parseInt(rec[0])
		if err != nil {
			return nil, err
		}
		apy, err := parseFloat(rec[1])
		if err != nil {
			return nil, err
		}
		reward, err := parseFloat(rec[2])
		if err != nil {
			return nil, err
		}
		rows = append(rows, VaultCsvRow{Timestamp: ts, APY: apy, RewardAPY: reward})
	}
	return rows, nil
}

// WriteVaultCSV writes vault rows.
func WriteVaultCSV(w io.Writer, rows []VaultCsvRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(vaultColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.Timestamp, 10),
			strconv.FormatFloat(r.APY, 'f', -1, 64),
			strconv.FormatFloat(r.RewardAPY, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadLpCSV parses an LP CSV.
func ReadLpCSV(r io.Reader) ([]LpCsvRow, error) {
	cr := csv.NewReader(r)
	if err := readHeader(cr, lpColumns); err != nil {
		return nil, err
	}
	var rows []LpCsvRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lp csv: %w", err)
		}
		ts, err := parseInt(rec[0])
		if err != nil {
			return nil, err
		}
		tick, err := strconv.ParseInt(rec[1], 10, 32)
		if err != nil {
			return nil, err
		}
		priceA, err := parseFloat(rec[2])
		if err != nil {
			return nil, err
		}
		priceB, err := parseFloat(rec[3])
		if err != nil {
			return nil, err
		}
		feeAPY, err := parseFloat(rec[4])
		if err != nil {
			return nil, err
		}
		rewardRate, err := parseFloat(rec[5])
		if err != nil {
			return nil, err
		}
		rewardPrice, err := parseFloat(rec[6])
		if err != nil {
			return nil, err
		}
		rows = append(rows, LpCsvRow{
			Timestamp: ts, CurrentTick: int32(tick), PriceA: priceA, PriceB: priceB,
			FeeAPY: feeAPY, RewardRate: rewardRate, RewardTokenPrice: rewardPrice,
		})
	}
	return rows, nil
}

// WriteLpCSV writes LP rows.
func WriteLpCSV(w io.Writer, rows []LpCsvRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(lpColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.Timestamp, 10),
			strconv.FormatInt(int64(r.CurrentTick), 10),
			strconv.FormatFloat(r.PriceA, 'f', -1, 64),
			strconv.FormatFloat(r.PriceB, 'f', -1, 64),
			strconv.FormatFloat(r.FeeAPY, 'f', -1, 64),
			strconv.FormatFloat(r.RewardRate, 'f', -1, 64),
			strconv.FormatFloat(r.RewardTokenPrice, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadPendleCSV parses a pendle CSV.
func ReadPendleCSV(r io.Reader) ([]PendleCsvRow, error) {
	cr := csv.NewReader(r)
	if err := readHeader(cr, pendleColumns); err != nil {
		return nil, err
	}
	var rows []PendleCsvRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pendle csv: %w", err)
		}
		ts, err := parseInt(rec[0])
		if err != nil {
			return nil, err
		}
		pt, err := parseFloat(rec[1])
		if err != nil {
			return nil, err
		}
		yt, err := parseFloat(rec[2])
		if err != nil {
			return nil, err
		}
		underlying, err := parseFloat(rec[3])
		if err != nil {
			return nil, err
		}
		impliedAPY, err := parseFloat(rec[4])
		if err != nil {
			return nil, err
		}
		rows = append(rows, PendleCsvRow{
			Timestamp: ts, PtPrice: pt, YtPrice: yt, UnderlyingPrice: underlying, ImpliedAPY: impliedAPY,
		})
	}
	return rows, nil
}

// WritePendleCSV writes pendle rows.
func WritePendleCSV(w io.Writer, rows []PendleCsvRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(pendleColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.Timestamp, 10),
			strconv.FormatFloat(r.PtPrice, 'f', -1, 64),
			strconv.FormatFloat(r.YtPrice, 'f', -1, 64),
			strconv.FormatFloat(r.UnderlyingPrice, 'f', -1, 64),
			strconv.FormatFloat(r.ImpliedAPY, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var optionsColumns = []string{
	"timestamp", "underlying_price", "strike", "implied_vol", "premium_received", "days_to_expiry",
}

// ReadOptionsCSV parses an options-writing CSV (timestamp,underlying_price,strike,
// implied_vol,premium_received,days_to_expiry).
func ReadOptionsCSV(r io.Reader) ([]OptionsCsvRow, error) {
	cr := csv.NewReader(r)
	if err := readHeader(cr, optionsColumns); err != nil {
		return nil, err
	}
	var rows []OptionsCsvRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("options csv: %w", err)
		}
		ts, err := parseInt(rec[0])
		if err != nil {
			return nil, err
		}
		underlying, err := parseFloat(rec[1])
		if err != nil {
			return nil, err
		}
		strike, err := parseFloat(rec[2])
		if err != nil {
			return nil, err
		}
		iv, err := parseFloat(rec[3])
		if err != nil {
			return nil, err
		}
		premium, err := parseFloat(rec[4])
		if err != nil {
			return nil, err
		}
		expiry, err := parseInt(rec[5])
		if err != nil {
			return nil, err
		}
		rows = append(rows, OptionsCsvRow{
			Timestamp: ts, UnderlyingPrice: underlying, Strike: strike,
			ImpliedVol: iv, PremiumReceived: premium, DaysToExpiry: expiry,
		})
	}
	return rows, nil
}

// WriteOptionsCSV writes options rows.
func WriteOptionsCSV(w io.Writer, rows []OptionsCsvRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(optionsColumns); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatInt(r.Timestamp, 10),
			strconv.FormatFloat(r.UnderlyingPrice, 'f', -1, 64),
			strconv.FormatFloat(r.Strike, 'f', -1, 64),
			strconv.FormatFloat(r.ImpliedVol, 'f', -1, 64),
			strconv.FormatFloat(r.PremiumReceived, 'f', -1, 64),
			strconv.FormatInt(r.DaysToExpiry, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
