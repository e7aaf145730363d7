package core

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortfolioValue(t *testing.T) {
	v := PortfolioValue(big.NewInt(100), big.NewInt(50), 2.0)
	assert.Equal(t, 250.0, v)
}

func TestPortfolioValue_RejectsBadPrice(t *testing.T) {
	assert.Equal(t, 0.0, PortfolioValue(big.NewInt(100), big.NewInt(50), 0))
	assert.Equal(t, 0.0, PortfolioValue(big.NewInt(100), big.NewInt(50), -1))
	assert.Equal(t, 0.0, PortfolioValue(big.NewInt(100), big.NewInt(50), math.NaN()))
	assert.Equal(t, 0.0, PortfolioValue(big.NewInt(100), big.NewInt(50), math.Inf(1)))
}

func TestImpermanentLossPercent(t *testing.T) {
	assert.InDelta(t, 10.0, ImpermanentLossPercent(900, 1000), 1e-9)
	assert.InDelta(t, -5.0, ImpermanentLossPercent(1050, 1000), 1e-9)
	assert.Equal(t, 0.0, ImpermanentLossPercent(900, 0))
}

func TestGasLedger_Accumulates(t *testing.T) {
	g := &GasLedger{}
	g.Append(TransactionRecord{Operation: "mint", GasCostUsd: 1.5})
	g.Append(TransactionRecord{Operation: "swap", GasCostUsd: 0.75})
	assert.InDelta(t, 2.25, g.CumulativeGasCostUsd(), 1e-9)
	assert.Len(t, g.Records(), 2)
}
