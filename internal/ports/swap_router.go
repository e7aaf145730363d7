package ports

import (
	"context"
	"math/big"
)

// SwapResult is the outcome of a successful swap. AmountOut is always
// non-zero; a swap that would return zero or fall below the
// slippage-adjusted minimum reverts instead of returning a zero result.
type SwapResult struct {
	AmountOut   *big.Int
	TxHash      string
	GasUsed     uint64
	GasPriceWei *big.Int
}

// SwapRouter wraps the on-chain swap router contract.
type SwapRouter interface {
	ExecuteSwap(ctx context.Context, tokenIn, tokenOut string, feeTier int, amountIn *big.Int, slippagePercent float64) (SwapResult, error)
	Approve(ctx context.Context, token0, token1 string) error
}
