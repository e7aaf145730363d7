package onchain

// events.go — decodes the position manager's IncreaseLiquidity,
// DecreaseLiquidity, and Collect logs out of a mined transaction receipt.
// Uniswap V3's NonfungiblePositionManager returns these values only as
// function return data in an eth_call simulation, not from a mined
// transaction — the receipt only carries logs — so every write path reads
// its result back out of the matching event instead.

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func findLog(receipt *types.Receipt, eventName string) (*types.Log, error) {
	event, ok := positionManagerABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("onchain: unknown event %s", eventName)
	}
	for _, log := range receipt.Logs {
		if len(log.Topics) > 0 && log.Topics[0] == event.ID {
			return log, nil
		}
	}
	return nil, fmt.Errorf("onchain: %s log not found in receipt %s", eventName, receipt.TxHash.Hex())
}

// decodeMintLog reads the tokenId, liquidity, amount0, and amount1 a mint
// produced from its IncreaseLiquidity log.
func decodeMintLog(receipt *types.Receipt) (tokenID, liquidity, amount0, amount1 *big.Int, err error) {
	log, err := findLog(receipt, "IncreaseLiquidity")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return decodeLiquidityLog(log)
}

// decodeDecreaseLog reads the amount0 and amount1 a decreaseLiquidity call
// produced from its DecreaseLiquidity log.
func decodeDecreaseLog(receipt *types.Receipt) (amount0, amount1 *big.Int, err error) {
	log, err := findLog(receipt, "DecreaseLiquidity")
	if err != nil {
		return nil, nil, err
	}
	_, _, a0, a1, err := decodeLiquidityLog(log)
	return a0, a1, err
}

func decodeLiquidityLog(log *types.Log) (tokenID, liquidity, amount0, amount1 *big.Int, err error) {
	if len(log.Topics) < 2 {
		return nil, nil, nil, nil, fmt.Errorf("onchain: liquidity log missing indexed tokenId topic")
	}
	tokenID = new(big.Int).SetBytes(log.Topics[1].Bytes())

	var decoded struct {
		Liquidity *big.Int
		Amount0   *big.Int
		Amount1   *big.Int
	}
	if err := positionManagerABI.UnpackIntoInterface(&decoded, "IncreaseLiquidity", log.Data); err != nil {
		// DecreaseLiquidity shares the same (liquidity, amount0, amount1) data layout.
		if err2 := positionManagerABI.UnpackIntoInterface(&decoded, "DecreaseLiquidity", log.Data); err2 != nil {
			return nil, nil, nil, nil, fmt.Errorf("onchain: unpack liquidity log data: %w", err)
		}
	}
	return tokenID, decoded.Liquidity, decoded.Amount0, decoded.Amount1, nil
}

// decodeSwapAmountOut reads the amount a swap delivered to recipient out of
// the output token's Transfer log. exactInputSingle returns amountOut
// directly from a simulated call, but a mined transaction's receipt never
// carries a function's return value, so the actual amount received is read
// back out of the ERC-20 transfer the router's pool emits instead.
func decodeSwapAmountOut(receipt *types.Receipt, tokenOut, recipient common.Address) (*big.Int, error) {
	transferID := erc20ABI.Events["Transfer"].ID
	recipientTopic := common.BytesToHash(common.LeftPadBytes(recipient.Bytes(), 32))

	for _, log := range receipt.Logs {
		if log.Address != tokenOut {
			continue
		}
		if len(log.Topics) < 3 || log.Topics[0] != transferID {
			continue
		}
		if log.Topics[2] != recipientTopic {
			continue
		}
		var decoded struct {
			Value *big.Int
		}
		if err := erc20ABI.UnpackIntoInterface(&decoded, "Transfer", log.Data); err != nil {
			return nil, fmt.Errorf("onchain: unpack transfer log data: %w", err)
		}
		return decoded.Value, nil
	}
	return nil, fmt.Errorf("onchain: no Transfer log to recipient found in receipt %s", receipt.TxHash.Hex())
}

// decodeCollectLog reads the amount0 and amount1 a collect call produced
// from its Collect log.
func decodeCollectLog(receipt *types.Receipt) (amount0, amount1 *big.Int, err error) {
	log, err := findLog(receipt, "Collect")
	if err != nil {
		return nil, nil, err
	}
	var decoded struct {
		Recipient common.Address
		Amount0   *big.Int
		Amount1   *big.Int
	}
	if err := positionManagerABI.UnpackIntoInterface(&decoded, "Collect", log.Data); err != nil {
		return nil, nil, fmt.Errorf("onchain: unpack collect log data: %w", err)
	}
	return decoded.Amount0, decoded.Amount1, nil
}
