package amm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickToSqrtPriceX96_TickZeroIsOne(t *testing.T) {
	// price(0) == 1, so sqrtPrice(0) * 2^96 == 2^96 exactly (within rounding).
	sqrtP := TickToSqrtPriceX96(0)
	diff := new(big.Int).Sub(sqrtP, q96)
	diff.Abs(diff)
	assert.True(t, diff.Cmp(big.NewInt(2)) <= 0, "sqrtPrice(0) should be ~2^96, got %s vs %s", sqrtP, q96)
}

func TestSqrtPriceToPrice_MatchesTickToPrice(t *testing.T) {
	for _, tick := range []int{-1000, 0, 1000, 50000} {
		sqrtP := TickToSqrtPriceX96(tick)
		price := SqrtPriceToPrice(sqrtP, 18, 18)
		f, _ := price.Float64()
		assert.InEpsilon(t, TickToPrice(tick), f, 1e-6)
	}
}

func TestGetAmountDelta_OrderIndependent(t *testing.T) {
	a := TickToSqrtPriceX96(-100)
	b := TickToSqrtPriceX96(100)
	liquidity := big.NewInt(1_000_000_000_000)

	ab0 := GetAmount0Delta(a, b, liquidity, false)
	ba0 := GetAmount0Delta(b, a, liquidity, false)
	assert.Equal(t, ab0, ba0)

	ab1 := GetAmount1Delta(a, b, liquidity, false)
	ba1 := GetAmount1Delta(b, a, liquidity, false)
	assert.Equal(t, ab1, ba1)

	assert.True(t, ab0.Sign() > 0)
	assert.True(t, ab1.Sign() > 0)
}

func TestComputeAmounts_BelowRangeUsesOnlyToken0(t *testing.T) {
	sqrtPrice := TickToSqrtPriceX96(-1000)
	bal0 := big.NewInt(1_000_000_000)
	bal1 := big.NewInt(1_000_000_000)

	amount0, amount1, liquidity := ComputeAmounts(sqrtPrice, -1000, 0, 1000, bal0, bal1)
	assert.True(t, amount0.Sign() > 0)
	assert.Equal(t, big.NewInt(0), amount1)
	assert.True(t, liquidity.Sign() > 0)
}

func TestComputeAmounts_AboveRangeUsesOnlyToken1(t *testing.T) {
	sqrtPrice := TickToSqrtPriceX96(2000)
	bal0 := big.NewInt(1_000_000_000)
	bal1 := big.NewInt(1_000_000_000)

	amount0, amount1, liquidity := ComputeAmounts(sqrtPrice, 2000, 0, 1000, bal0, bal1)
	assert.Equal(t, big.NewInt(0), amount0)
	assert.True(t, amount1.Sign() > 0)
	assert.True(t, liquidity.Sign() > 0)
}

func TestComputeAmounts_InRangeUsesBothTokens(t *testing.T) {
	sqrtPrice := TickToSqrtPriceX96(500)
	bal0 := big.NewInt(1_000_000_000)
	bal1 := big.NewInt(1_000_000_000)

	amount0, amount1, liquidity := ComputeAmounts(sqrtPrice, 500, 0, 1000, bal0, bal1)
	assert.True(t, amount0.Sign() > 0)
	assert.True(t, amount1.Sign() > 0)
	assert.True(t, liquidity.Sign() > 0)
	assert.True(t, amount0.Cmp(bal0) <= 0)
	assert.True(t, amount1.Cmp(bal1) <= 0)
}

func TestCalculateTokenAmountsFromLiquidity_RoundTrip(t *testing.T) {
	sqrtPrice := TickToSqrtPriceX96(500)
	bal0 := big.NewInt(5_000_000_000)
	bal1 := big.NewInt(5_000_000_000)

	_, _, liquidity := ComputeAmounts(sqrtPrice, 500, 0, 1000, bal0, bal1)
	amount0, amount1 := CalculateTokenAmountsFromLiquidity(liquidity, 0, 1000)
	assert.True(t, amount0.Sign() > 0)
	assert.True(t, amount1.Sign() > 0)
}
