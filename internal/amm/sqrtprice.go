package amm

import "math/big"

// q96 is 2^96, the fixed-point base the AMM encodes sqrt-prices in.
var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// precision bits used for the big.Float intermediate sqrt computation;
// comfortably above the 160 bits a Q96-scaled 128-bit sqrt-price needs.
const floatPrec = 256

// TickToSqrtPriceX96 returns sqrt(1.0001^tick) * 2^96 as an integer, the
// AMM's on-chain sqrt-price encoding for the given tick.
func TickToSqrtPriceX96(tick int) *big.Int {
	price := new(big.Float).SetPrec(floatPrec).SetFloat64(TickToPrice(tick))
	sqrtPrice := new(big.Float).SetPrec(floatPrec).Sqrt(price)
	scaled := new(big.Float).SetPrec(floatPrec).Mul(sqrtPrice, new(big.Float).SetInt(q96))
	out, _ := scaled.Int(nil)
	return out
}

// SqrtPriceToPrice converts a Q96 sqrt-price into the human price of token0
// in terms of token1, adjusted for each token's decimals.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int, dec0, dec1 uint8) *big.Float {
	sp := new(big.Float).SetPrec(floatPrec).SetInt(sqrtPriceX96)
	ratio := new(big.Float).SetPrec(floatPrec).Quo(sp, new(big.Float).SetInt(q96))
	price := new(big.Float).SetPrec(floatPrec).Mul(ratio, ratio)

	if dec0 != dec1 {
		diff := int(dec0) - int(dec1)
		adj := new(big.Float).SetPrec(floatPrec).SetFloat64(pow10(diff))
		price.Mul(price, adj)
	}
	return price
}

func pow10(exp int) float64 {
	result := 1.0
	neg := exp < 0
	if neg {
		exp = -exp
	}
	for i := 0; i < exp; i++ {
		result *= 10
	}
	if neg {
		return 1 / result
	}
	return result
}

// GetAmount0Delta returns the amount of token0 required to move the price
// between sqrtA and sqrtB at the given liquidity:
//
//	amount0 = liquidity * 2^96 * (sqrtB - sqrtA) / (sqrtA * sqrtB)
//
// sqrtA and sqrtB may be given in either order. roundUp rounds the result
// up instead of truncating, matching the AMM's convention for amounts owed
// by the caller (mint) versus amounts returned to the caller (burn).
func GetAmount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	if lo.Sign() == 0 {
		return big.NewInt(0)
	}

	numerator := new(big.Int).Mul(liquidity, q96)
	numerator.Mul(numerator, new(big.Int).Sub(hi, lo))

	denominator := new(big.Int).Mul(lo, hi)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}

	return divRound(numerator, denominator, roundUp)
}

// GetAmount1Delta returns the amount of token1 required to move the price
// between sqrtA and sqrtB at the given liquidity:
//
//	amount1 = liquidity * (sqrtB - sqrtA) / 2^96
func GetAmount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	lo, hi := orderSqrt(sqrtA, sqrtB)
	numerator := new(big.Int).Mul(liquidity, new(big.Int).Sub(hi, lo))
	return divRound(numerator, q96, roundUp)
}

func orderSqrt(a, b *big.Int) (lo, hi *big.Int) {
	if a.Cmp(b) <= 0 {
		return a, b
	}
	return b, a
}

func divRound(numerator, denominator *big.Int, roundUp bool) *big.Int {
	quo, rem := new(big.Int).QuoRem(numerator, denominator, new(big.Int))
	if roundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// liquidityForAmount0 returns the liquidity that amount0 of token0 buys
// between sqrtA and sqrtB (sqrtA < sqrtB assumed by caller).
func liquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	intermediate := new(big.Int).Mul(sqrtA, sqrtB)
	intermediate.Div(intermediate, q96)
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(amount0, intermediate)
	return new(big.Int).Div(num, diff)
}

// liquidityForAmount1 returns the liquidity that amount1 of token1 buys
// between sqrtA and sqrtB (sqrtA < sqrtB assumed by caller).
func liquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if diff.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(amount1, q96)
	return new(big.Int).Div(num, diff)
}

// ComputeAmounts determines the maximum liquidity obtainable for a position
// in [tickLower, tickUpper] given available balances bal0/bal1 at the
// current tick/sqrtPriceX96, and the corresponding token amounts actually
// consumed at that liquidity. Mirrors the AMM's LiquidityAmounts helper:
// below the range only token0 is needed, above it only token1, and inside
// it the binding side (the one yielding the smaller liquidity) determines
// the final amounts.
func ComputeAmounts(sqrtPriceX96 *big.Int, tick, tickLower, tickUpper int, bal0, bal1 *big.Int) (amount0, amount1, liquidity *big.Int) {
	sqrtLower := TickToSqrtPriceX96(tickLower)
	sqrtUpper := TickToSqrtPriceX96(tickUpper)

	switch {
	case tick < tickLower:
		liquidity = liquidityForAmount0(sqrtLower, sqrtUpper, bal0)
		amount0 = GetAmount0Delta(sqrtLower, sqrtUpper, liquidity, true)
		amount1 = big.NewInt(0)
	case tick >= tickUpper:
		liquidity = liquidityForAmount1(sqrtLower, sqrtUpper, bal1)
		amount0 = big.NewInt(0)
		amount1 = GetAmount1Delta(sqrtLower, sqrtUpper, liquidity, true)
	default:
		l0 := liquidityForAmount0(sqrtPriceX96, sqrtUpper, bal0)
		l1 := liquidityForAmount1(sqrtLower, sqrtPriceX96, bal1)
		if l0.Cmp(l1) < 0 {
			liquidity = l0
		} else {
			liquidity = l1
		}
		amount0 = GetAmount0Delta(sqrtPriceX96, sqrtUpper, liquidity, true)
		amount1 = GetAmount1Delta(sqrtLower, sqrtPriceX96, liquidity, true)
	}
	return amount0, amount1, liquidity
}

// CalculateTokenAmountsFromLiquidity returns the token0/token1 amounts that
// a given liquidity represents at rest between tickLower and tickUpper,
// independent of the current price (used when dissolving a band whose
// price has moved fully to one side).
func CalculateTokenAmountsFromLiquidity(liquidity *big.Int, tickLower, tickUpper int) (amount0, amount1 *big.Int) {
	sqrtLower := TickToSqrtPriceX96(tickLower)
	sqrtUpper := TickToSqrtPriceX96(tickUpper)
	amount0 = GetAmount0Delta(sqrtLower, sqrtUpper, liquidity, false)
	amount1 = GetAmount1Delta(sqrtLower, sqrtUpper, liquidity, false)
	return amount0, amount1
}
