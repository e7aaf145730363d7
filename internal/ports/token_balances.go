package ports

import (
	"context"
	"math/big"
)

// TokenBalances reads a wallet's on-chain ERC-20 balances, grounded on the
// teacher's OrderExecutor.GetBalance/TokenBalance methods — the ground
// truth the engine reads before sizing a mint or a swap, since mint and
// swap results report only what they consumed, not what remains.
type TokenBalances interface {
	BalanceOf(ctx context.Context, token string) (*big.Int, error)
}
