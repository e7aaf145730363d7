package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rangekeeper/rangekeeper/internal/ports"
)

var _ ports.TokenBalances = (*Balances)(nil)

// Balances implements ports.TokenBalances by reading ERC-20 balanceOf
// directly off chain, so recovery and health reporting always see the
// wallet's true holdings rather than a value tracked locally.
type Balances struct {
	client *Client
}

// NewBalances wraps client for balance reads.
func NewBalances(client *Client) *Balances {
	return &Balances{client: client}
}

// BalanceOf returns the wallet's current balance of token.
func (b *Balances) BalanceOf(ctx context.Context, token string) (*big.Int, error) {
	callData, err := erc20ABI.Pack("balanceOf", b.client.Address())
	if err != nil {
		return nil, fmt.Errorf("onchain.BalanceOf: pack: %w", err)
	}
	result, err := b.client.call(ctx, common.HexToAddress(token), callData)
	if err != nil {
		return nil, fmt.Errorf("onchain.BalanceOf: call: %w", err)
	}
	vals, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("onchain.BalanceOf: unpack: %w", err)
	}
	return vals[0].(*big.Int), nil
}
