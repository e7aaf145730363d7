package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rangekeeper/rangekeeper/internal/ports"
)

var _ ports.NftPositionManager = (*NftManager)(nil)

// NftManager implements ports.NftPositionManager over a Uniswap V3-style
// NonfungiblePositionManager contract.
type NftManager struct {
	client  *Client
	address common.Address
}

// NewNftManager wraps client for the position manager deployed at address.
func NewNftManager(client *Client, address string) *NftManager {
	return &NftManager{client: client, address: common.HexToAddress(address)}
}

// Mint creates a new position. Atomic: a revert surfaces as an error, never
// a partial MintResult.
func (m *NftManager) Mint(ctx context.Context, params ports.MintParams) (ports.MintResult, error) {
	token0 := common.HexToAddress(params.Token0)
	token1 := common.HexToAddress(params.Token1)

	if err := m.client.ensureErc20Allowance(ctx, token0, m.address, params.Amount0Desired); err != nil {
		return ports.MintResult{}, fmt.Errorf("onchain.Mint: token0 allowance: %w", err)
	}
	if err := m.client.ensureErc20Allowance(ctx, token1, m.address, params.Amount1Desired); err != nil {
		return ports.MintResult{}, fmt.Errorf("onchain.Mint: token1 allowance: %w", err)
	}

	amount0Min := slippageFloor(params.Amount0Desired, params.SlippagePercent)
	amount1Min := slippageFloor(params.Amount1Desired, params.SlippagePercent)

	callData, err := positionManagerABI.Pack("mint", struct {
		Token0         common.Address
		Token1         common.Address
		Fee            *big.Int
		TickLower      *big.Int
		TickUpper      *big.Int
		Amount0Desired *big.Int
		Amount1Desired *big.Int
		Amount0Min     *big.Int
		Amount1Min     *big.Int
		Recipient      common.Address
		Deadline       *big.Int
	}{
		Token0:         token0,
		Token1:         token1,
		Fee:            big.NewInt(int64(params.FeeTier)),
		TickLower:      big.NewInt(int64(params.TickLower)),
		TickUpper:      big.NewInt(int64(params.TickUpper)),
		Amount0Desired: params.Amount0Desired,
		Amount1Desired: params.Amount1Desired,
		Amount0Min:     amount0Min,
		Amount1Min:     amount1Min,
		Recipient:      m.client.Address(),
		Deadline:       deadlineFromNow(mintDeadline),
	})
	if err != nil {
		return ports.MintResult{}, fmt.Errorf("onchain.Mint: pack calldata: %w", err)
	}

	receipt, err := m.client.sendAndWait(ctx, m.address, callData, mintGasLimit)
	if err != nil {
		return ports.MintResult{}, fmt.Errorf("onchain.Mint: %w", err)
	}

	tokenID, liquidity, amount0, amount1, err := decodeMintLog(receipt)
	if err != nil {
		return ports.MintResult{}, fmt.Errorf("onchain.Mint: decode result: %w", err)
	}

	return ports.MintResult{
		TokenID:     tokenID.String(),
		Liquidity:   liquidity,
		Amount0:     amount0,
		Amount1:     amount1,
		TxHash:      receipt.TxHash.Hex(),
		GasUsed:     receipt.GasUsed,
		GasPriceWei: receipt.EffectiveGasPrice,
	}, nil
}

// RemovePosition decreases liquidity, collects owed tokens, and burns the
// NFT, in that order. TxHashes records progress up to the last
// transaction that succeeded, so a caller can checkpoint a partial
// failure instead of losing track of a half-torn-down position.
func (m *NftManager) RemovePosition(ctx context.Context, tokenID string, liquidity *big.Int, slippagePercent float64) (ports.RemoveResult, error) {
	var result ports.RemoveResult
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return result, fmt.Errorf("onchain.RemovePosition: invalid tokenID %q", tokenID)
	}

	principal0, principal1 := big.NewInt(0), big.NewInt(0)
	if liquidity != nil && liquidity.Sign() > 0 {
		// No pre-known principal amounts to floor a slippage target against
		// here — the position's current tick may have drifted since the
		// caller decided to withdraw — so amountMin is always zero and
		// slippage is enforced downstream, on the swap that follows.
		_ = slippagePercent

		callData, err := positionManagerABI.Pack("decreaseLiquidity", struct {
			TokenId    *big.Int
			Liquidity  *big.Int
			Amount0Min *big.Int
			Amount1Min *big.Int
			Deadline   *big.Int
		}{
			TokenId:    id,
			Liquidity:  liquidity,
			Amount0Min: big.NewInt(0),
			Amount1Min: big.NewInt(0),
			Deadline:   deadlineFromNow(mintDeadline),
		})
		if err != nil {
			return result, fmt.Errorf("onchain.RemovePosition: pack decreaseLiquidity: %w", err)
		}

		receipt, err := m.client.sendAndWait(ctx, m.address, callData, decreaseLiquidityGasLimit)
		if err != nil {
			return result, fmt.Errorf("onchain.RemovePosition: decreaseLiquidity: %w", err)
		}
		result.TxHashes.Decrease = receipt.TxHash.Hex()
		result.GasUsed += receipt.GasUsed
		result.GasPriceWei = receipt.EffectiveGasPrice

		principal0, principal1, err = decodeDecreaseLog(receipt)
		if err != nil {
			return result, fmt.Errorf("onchain.RemovePosition: decode decreaseLiquidity result: %w", err)
		}
	}

	collectData, err := positionManagerABI.Pack("collect", struct {
		TokenId     *big.Int
		Recipient   common.Address
		Amount0Max  *big.Int
		Amount1Max  *big.Int
	}{
		TokenId:    id,
		Recipient:  m.client.Address(),
		Amount0Max: maxUint128(),
		Amount1Max: maxUint128(),
	})
	if err != nil {
		return result, fmt.Errorf("onchain.RemovePosition: pack collect: %w", err)
	}
	collectReceipt, err := m.client.sendAndWait(ctx, m.address, collectData, collectGasLimit)
	if err != nil {
		return result, fmt.Errorf("onchain.RemovePosition: collect: %w", err)
	}
	result.TxHashes.Collect = collectReceipt.TxHash.Hex()
	result.GasUsed += collectReceipt.GasUsed
	result.GasPriceWei = collectReceipt.EffectiveGasPrice

	collected0, collected1, err := decodeCollectLog(collectReceipt)
	if err != nil {
		return result, fmt.Errorf("onchain.RemovePosition: decode collect result: %w", err)
	}
	result.Amount0, result.Amount1 = collected0, collected1
	result.Fee0 = new(big.Int).Sub(collected0, principal0)
	result.Fee1 = new(big.Int).Sub(collected1, principal1)

	burnData, err := positionManagerABI.Pack("burn", id)
	if err != nil {
		return result, fmt.Errorf("onchain.RemovePosition: pack burn: %w", err)
	}
	burnReceipt, err := m.client.sendAndWait(ctx, m.address, burnData, burnGasLimit)
	if err != nil {
		return result, fmt.Errorf("onchain.RemovePosition: burn: %w", err)
	}
	result.TxHashes.Burn = burnReceipt.TxHash.Hex()
	result.GasUsed += burnReceipt.GasUsed

	return result, nil
}

// rawPosition queries the position manager's positions() accessor and
// returns its fields needed to both build a PositionInfo and filter by
// pool identity.
func (m *NftManager) rawPosition(ctx context.Context, id *big.Int) (token0, token1 common.Address, fee int, info ports.PositionInfo, err error) {
	callData, err := positionManagerABI.Pack("positions", id)
	if err != nil {
		return token0, token1, 0, info, fmt.Errorf("pack: %w", err)
	}
	result, err := m.client.call(ctx, m.address, callData)
	if err != nil {
		return token0, token1, 0, info, fmt.Errorf("call: %w", err)
	}
	vals, err := positionManagerABI.Unpack("positions", result)
	if err != nil || len(vals) < 12 {
		return token0, token1, 0, info, fmt.Errorf("unpack: %w", err)
	}

	info = ports.PositionInfo{
		TokenID:     id.String(),
		TickLower:   int(vals[5].(*big.Int).Int64()),
		TickUpper:   int(vals[6].(*big.Int).Int64()),
		Liquidity:   vals[7].(*big.Int),
		TokensOwed0: vals[10].(*big.Int),
		TokensOwed1: vals[11].(*big.Int),
	}
	return vals[2].(common.Address), vals[3].(common.Address), int(vals[4].(*big.Int).Int64()), info, nil
}

// GetPosition queries the position manager's on-chain state for tokenID.
func (m *NftManager) GetPosition(ctx context.Context, tokenID string) (ports.PositionInfo, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return ports.PositionInfo{}, fmt.Errorf("onchain.GetPosition: invalid tokenID %q", tokenID)
	}
	_, _, _, info, err := m.rawPosition(ctx, id)
	if err != nil {
		return ports.PositionInfo{}, fmt.Errorf("onchain.GetPosition: %w", err)
	}
	return info, nil
}

// FindPositionsFor enumerates every NFT owner holds via the ERC-721
// enumeration extension, then filters to the given token0/token1/feeTier.
// Used on recovery to adopt positions the engine doesn't yet track.
func (m *NftManager) FindPositionsFor(ctx context.Context, owner, token0, token1 string, feeTier int) ([]ports.PositionInfo, error) {
	ownerAddr := common.HexToAddress(owner)

	balanceData, err := erc721ABI.Pack("balanceOf", ownerAddr)
	if err != nil {
		return nil, fmt.Errorf("onchain.FindPositionsFor: pack balanceOf: %w", err)
	}
	balanceResult, err := m.client.call(ctx, m.address, balanceData)
	if err != nil {
		return nil, fmt.Errorf("onchain.FindPositionsFor: call balanceOf: %w", err)
	}
	balanceVals, err := erc721ABI.Unpack("balanceOf", balanceResult)
	if err != nil || len(balanceVals) == 0 {
		return nil, fmt.Errorf("onchain.FindPositionsFor: unpack balanceOf: %w", err)
	}
	count := balanceVals[0].(*big.Int).Int64()

	var matches []ports.PositionInfo
	for i := int64(0); i < count; i++ {
		idxData, err := erc721ABI.Pack("tokenOfOwnerByIndex", ownerAddr, big.NewInt(i))
		if err != nil {
			return nil, fmt.Errorf("onchain.FindPositionsFor: pack tokenOfOwnerByIndex: %w", err)
		}
		idxResult, err := m.client.call(ctx, m.address, idxData)
		if err != nil {
			return nil, fmt.Errorf("onchain.FindPositionsFor: call tokenOfOwnerByIndex(%d): %w", i, err)
		}
		idxVals, err := erc721ABI.Unpack("tokenOfOwnerByIndex", idxResult)
		if err != nil || len(idxVals) == 0 {
			return nil, fmt.Errorf("onchain.FindPositionsFor: unpack tokenOfOwnerByIndex(%d): %w", i, err)
		}
		tokenID := idxVals[0].(*big.Int)

		posToken0, posToken1, posFee, pos, err := m.rawPosition(ctx, tokenID)
		if err != nil {
			return nil, fmt.Errorf("onchain.FindPositionsFor: get position %s: %w", tokenID, err)
		}
		if posToken0 != common.HexToAddress(token0) || posToken1 != common.HexToAddress(token1) || posFee != feeTier {
			continue
		}
		matches = append(matches, pos)
	}
	return matches, nil
}

// Approve ensures the position manager can pull token0/token1 from the
// wallet, pre-approving a generous allowance so individual mints don't each
// pay a fresh approval transaction.
func (m *NftManager) Approve(ctx context.Context, token0, token1 string) error {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := m.client.ensureErc20Allowance(ctx, common.HexToAddress(token0), m.address, maxUint256); err != nil {
		return fmt.Errorf("onchain.Approve: token0: %w", err)
	}
	if err := m.client.ensureErc20Allowance(ctx, common.HexToAddress(token1), m.address, maxUint256); err != nil {
		return fmt.Errorf("onchain.Approve: token1: %w", err)
	}
	return nil
}
