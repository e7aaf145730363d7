package core

import (
	"math"
	"math/big"
)

// PortfolioValue returns bal0*price + bal1, expressed in token1 units.
// Non-finite or non-positive prices return 0 rather than error: the risk
// gates are permissive by design, to avoid tripping a loss limit on a bad
// oracle read rather than a real loss. Assumes token1 is the numeraire,
// which only holds for a stable/stable pair; a non-stable pair needs an
// external USD oracle instead.
func PortfolioValue(bal0, bal1 *big.Int, price float64) float64 {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0
	}
	b0, _ := new(big.Float).SetInt(bal0).Float64()
	b1, _ := new(big.Float).SetInt(bal1).Float64()
	return b0*price + b1
}

// ImpermanentLossPercent compares currentValue against holdValue, the value
// a buy-and-hold of the original deposit would be worth at the current
// price. Positive means the position underperformed holding. No risk gate
// uses it.
func ImpermanentLossPercent(currentValue, holdValue float64) float64 {
	if holdValue <= 0 {
		return 0
	}
	return (holdValue - currentValue) / holdValue * 100
}

// GasLedger accumulates the TransactionRecords issued by one engine across
// its lifetime, for cumulative gas-cost accounting.
type GasLedger struct {
	records []TransactionRecord
}

// Append records one transaction.
func (g *GasLedger) Append(rec TransactionRecord) {
	g.records = append(g.records, rec)
}

// CumulativeGasCostUsd sums GasCostUsd across every recorded transaction.
func (g *GasLedger) CumulativeGasCostUsd() float64 {
	total := 0.0
	for _, r := range g.records {
		total += r.GasCostUsd
	}
	return total
}

// Records returns a copy of the recorded transactions, most recent last.
func (g *GasLedger) Records() []TransactionRecord {
	out := make([]TransactionRecord, len(g.records))
	copy(out, g.records)
	return out
}
