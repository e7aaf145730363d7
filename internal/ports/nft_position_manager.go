package ports

import (
	"context"
	"math/big"
)

// MintParams describes a position to mint.
type MintParams struct {
	Token0        string
	Token1        string
	FeeTier       int
	TickLower     int
	TickUpper     int
	Amount0Desired *big.Int
	Amount1Desired *big.Int
	SlippagePercent float64
}

// MintResult is the outcome of a successful mint. TokenID is a decimal
// string, never a float64, and is always non-zero on success.
type MintResult struct {
	TokenID     string
	Liquidity   *big.Int
	Amount0     *big.Int
	Amount1     *big.Int
	TxHash      string
	GasUsed     uint64
	GasPriceWei *big.Int
}

// RemoveResult is the outcome of removing a position: decrease liquidity,
// collect owed tokens, burn the NFT. TxHashes is populated up to the last
// transaction that succeeded, even on partial failure.
type RemoveResult struct {
	Amount0     *big.Int
	Amount1     *big.Int
	Fee0        *big.Int
	Fee1        *big.Int
	TxHashes    RemoveTxHashes
	GasUsed     uint64
	GasPriceWei *big.Int
}

// RemoveTxHashes names the three chained transactions RemovePosition
// issues.
type RemoveTxHashes struct {
	Decrease string
	Collect  string
	Burn     string
}

// PositionInfo is a position's current on-chain state.
type PositionInfo struct {
	TokenID     string
	Liquidity   *big.Int
	TickLower   int
	TickUpper   int
	TokensOwed0 *big.Int
	TokensOwed1 *big.Int
}

// NftPositionManager wraps the on-chain NFT position manager contract: mint,
// remove (decrease+collect+burn), query.
type NftPositionManager interface {
	// Mint creates a new position. Atomic: any on-chain revert fails the
	// whole call with a typed error, never a partial MintResult.
	Mint(ctx context.Context, params MintParams) (MintResult, error)

	// RemovePosition decreases liquidity, collects owed tokens, and burns
	// the NFT, in that order. Partial success surfaces as a failure with
	// TxHashes populated up to the last transaction that succeeded.
	RemovePosition(ctx context.Context, tokenID string, liquidity *big.Int, slippagePercent float64) (RemoveResult, error)

	GetPosition(ctx context.Context, tokenID string) (PositionInfo, error)

	// FindPositionsFor returns every position owned by owner in the given
	// pool, used on recovery to adopt pre-existing positions.
	FindPositionsFor(ctx context.Context, owner, token0, token1 string, feeTier int) ([]PositionInfo, error)

	// Approve ensures the manager contract can move owner's token0/token1.
	Approve(ctx context.Context, token0, token1 string) error
}
