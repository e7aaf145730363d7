package core

import (
	"math/big"

	"github.com/rangekeeper/rangekeeper/internal/amm"
)

// idealShareTolerance is the smallest imbalance worth acting on; below this
// the planner returns no plan rather than churn a negligible swap.
const idealShareTolerance = 0.01

// SwapPlan describes one swap the engine should issue before minting a new
// band. A nil *SwapPlan from Plan means no swap is needed.
type SwapPlan struct {
	TokenIn  string
	TokenOut string
	AmountIn *big.Int
}

// Plan computes, for a target band [tickLower, tickUpper] at current tick,
// which side of the caller's (bal0, bal1) balances to swap so the post-swap
// balances approximate the target band's token0:token1 ratio.
//
// If the band lies entirely above the current tick the band needs only
// token1, so the plan swaps all of token0; entirely below, the mirror.
// Otherwise the ideal share is computed from getAmount0Delta/getAmount1Delta
// at unit liquidity and compared against the current share; a difference
// under idealShareTolerance returns no plan.
func Plan(tick, tickLower, tickUpper int, bal0, bal1 *big.Int, token0, token1 string) *SwapPlan {
	switch {
	case tickLower >= tick:
		if bal0.Sign() <= 0 {
			return nil
		}
		return &SwapPlan{TokenIn: token0, TokenOut: token1, AmountIn: new(big.Int).Set(bal0)}
	case tickUpper <= tick:
		if bal1.Sign() <= 0 {
			return nil
		}
		return &SwapPlan{TokenIn: token1, TokenOut: token0, AmountIn: new(big.Int).Set(bal1)}
	}

	price := amm.TickToPrice(tick)
	unitLiquidity := big.NewInt(1_000_000_000_000)
	sqrtLower := amm.TickToSqrtPriceX96(tickLower)
	sqrtUpper := amm.TickToSqrtPriceX96(tickUpper)
	sqrtCurrent := amm.TickToSqrtPriceX96(tick)

	idealAmount0 := amm.GetAmount0Delta(sqrtCurrent, sqrtUpper, unitLiquidity, false)
	idealAmount1 := amm.GetAmount1Delta(sqrtLower, sqrtCurrent, unitLiquidity, false)

	idealShare0 := tokenShare0(bigToFloat(idealAmount0), bigToFloat(idealAmount1), price)
	currentShare0 := tokenShare0(bigToFloat(bal0), bigToFloat(bal1), price)

	diff := idealShare0 - currentShare0
	if diff > -idealShareTolerance && diff < idealShareTolerance {
		return nil
	}

	if diff < 0 {
		// currentShare0 too high: excess is in token0, swap some of it into token1.
		amountIn := excessAmount(bal0, currentShare0-idealShare0)
		if amountIn.Sign() <= 0 || amountIn.Cmp(bal0) > 0 {
			amountIn = new(big.Int).Set(bal0)
		}
		if amountIn.Sign() <= 0 {
			return nil
		}
		return &SwapPlan{TokenIn: token0, TokenOut: token1, AmountIn: amountIn}
	}

	amountIn := excessAmount(bal1, idealShare0-currentShare0)
	if amountIn.Sign() <= 0 || amountIn.Cmp(bal1) > 0 {
		amountIn = new(big.Int).Set(bal1)
	}
	if amountIn.Sign() <= 0 {
		return nil
	}
	return &SwapPlan{TokenIn: token1, TokenOut: token0, AmountIn: amountIn}
}

// tokenShare0 returns token0's share of the total position value, with
// token1 converted to token0 terms via price (token1 per token0).
func tokenShare0(amount0, amount1, price float64) float64 {
	value1InToken0 := 0.0
	if price > 0 {
		value1InToken0 = amount1 / price
	}
	total := amount0 + value1InToken0
	if total <= 0 {
		return 0
	}
	return amount0 / total
}

// excessAmount estimates an amount-in proportional to how far off the
// current ratio is from ideal, scaled against the relevant balance. This is
// a linear approximation; callers clamp the result to the available
// balance.
func excessAmount(balance *big.Int, shareDiff float64) *big.Int {
	if shareDiff <= 0 {
		return big.NewInt(0)
	}
	f := new(big.Float).SetInt(balance)
	f.Mul(f, big.NewFloat(shareDiff))
	out, _ := f.Int(nil)
	return out
}

func bigToFloat(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}

// RebalanceSwapDirection returns the token-in/token-out pair for the
// simpler band-rebalance swap rule: dissolving the opposite band yields
// exactly the token needed, so the engine swaps all of that token into the
// other side through the same pool. Lower rebalances swap token0->token1;
// Upper rebalances swap token1->token0.
func RebalanceSwapDirection(dir Direction, token0, token1 string) (tokenIn, tokenOut string) {
	if dir == DirectionLower {
		return token0, token1
	}
	return token1, token0
}
