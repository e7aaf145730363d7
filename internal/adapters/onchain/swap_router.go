package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rangekeeper/rangekeeper/internal/amm"
	"github.com/rangekeeper/rangekeeper/internal/ports"
)

var _ ports.SwapRouter = (*SwapRouterClient)(nil)

// SwapRouterClient implements ports.SwapRouter over a Uniswap V3-style
// swap router contract's exactInputSingle entry point.
type SwapRouterClient struct {
	client    *Client
	address   common.Address
	pool      common.Address
	token0    common.Address
	decimals0 uint8
	decimals1 uint8
}

// NewSwapRouterClient wraps client for the router deployed at address.
// poolAddress/token0 identify the pool ExecuteSwap reads slot0 from to
// floor its amountOutMinimum against the current price. decimals0/decimals1
// are stored on the client; the quote works in raw base units and does not
// use them.
func NewSwapRouterClient(client *Client, address, poolAddress, token0 string, decimals0, decimals1 uint8) *SwapRouterClient {
	return &SwapRouterClient{
		client:    client,
		address:   common.HexToAddress(address),
		pool:      common.HexToAddress(poolAddress),
		token0:    common.HexToAddress(token0),
		decimals0: decimals0,
		decimals1: decimals1,
	}
}

// ExecuteSwap swaps amountIn of tokenIn for tokenOut at feeTier, reverting
// if the output would fall below the slippage-adjusted minimum.
func (s *SwapRouterClient) ExecuteSwap(ctx context.Context, tokenIn, tokenOut string, feeTier int, amountIn *big.Int, slippagePercent float64) (ports.SwapResult, error) {
	tokenInAddr := common.HexToAddress(tokenIn)
	tokenOutAddr := common.HexToAddress(tokenOut)

	if err := s.client.ensureErc20Allowance(ctx, tokenInAddr, s.address, amountIn); err != nil {
		return ports.SwapResult{}, fmt.Errorf("onchain.ExecuteSwap: allowance: %w", err)
	}

	amountOutMinimum, err := s.quoteAmountOutMinimum(ctx, tokenInAddr, amountIn, slippagePercent)
	if err != nil {
		return ports.SwapResult{}, fmt.Errorf("onchain.ExecuteSwap: quote: %w", err)
	}

	callData, err := swapRouterABI.Pack("exactInputSingle", struct {
		TokenIn           common.Address
		TokenOut          common.Address
		Fee               *big.Int
		Recipient         common.Address
		Deadline          *big.Int
		AmountIn          *big.Int
		AmountOutMinimum  *big.Int
		SqrtPriceLimitX96 *big.Int
	}{
		TokenIn:           tokenInAddr,
		TokenOut:          tokenOutAddr,
		Fee:               big.NewInt(int64(feeTier)),
		Recipient:         s.client.Address(),
		Deadline:          deadlineFromNow(swapDeadline),
		AmountIn:          amountIn,
		AmountOutMinimum:  amountOutMinimum,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return ports.SwapResult{}, fmt.Errorf("onchain.ExecuteSwap: pack calldata: %w", err)
	}

	receipt, err := s.client.sendAndWait(ctx, s.address, callData, swapGasLimit)
	if err != nil {
		return ports.SwapResult{}, fmt.Errorf("onchain.ExecuteSwap: %w", err)
	}

	amountOut, err := decodeSwapAmountOut(receipt, tokenOutAddr, s.client.Address())
	if err != nil {
		return ports.SwapResult{}, fmt.Errorf("onchain.ExecuteSwap: decode result: %w", err)
	}
	if amountOut.Sign() == 0 {
		return ports.SwapResult{}, fmt.Errorf("onchain.ExecuteSwap: swap produced zero output")
	}

	return ports.SwapResult{
		AmountOut:   amountOut,
		TxHash:      receipt.TxHash.Hex(),
		GasUsed:     receipt.GasUsed,
		GasPriceWei: receipt.EffectiveGasPrice,
	}, nil
}

// quoteAmountOutMinimum reads the pool's current slot0 price and floors the
// expected output for amountIn of tokenIn by slippagePercent, the same
// slippageFloor pattern nft_manager.go uses for Mint's amount0Min/amount1Min.
func (s *SwapRouterClient) quoteAmountOutMinimum(ctx context.Context, tokenIn common.Address, amountIn *big.Int, slippagePercent float64) (*big.Int, error) {
	sqrtPriceX96, err := s.readPoolSqrtPriceX96(ctx)
	if err != nil {
		return nil, fmt.Errorf("read pool price: %w", err)
	}

	// amountIn and the floor are raw base units, so the price is taken
	// without decimal adjustment.
	price := amm.SqrtPriceToPrice(sqrtPriceX96, 0, 0)
	amountInFloat := new(big.Float).SetInt(amountIn)

	var expectedOutFloat *big.Float
	if tokenIn == s.token0 {
		expectedOutFloat = new(big.Float).Mul(amountInFloat, price)
	} else {
		expectedOutFloat = new(big.Float).Quo(amountInFloat, price)
	}

	expectedOut, _ := expectedOutFloat.Int(nil)
	return slippageFloor(expectedOut, slippagePercent), nil
}

// readPoolSqrtPriceX96 calls the pool's slot0 accessor, decodes all of its
// outputs, and returns only the first, sqrtPriceX96.
func (s *SwapRouterClient) readPoolSqrtPriceX96(ctx context.Context) (*big.Int, error) {
	callData, err := poolStateABI.Pack("slot0")
	if err != nil {
		return nil, fmt.Errorf("pack slot0: %w", err)
	}
	result, err := s.client.call(ctx, s.pool, callData)
	if err != nil {
		return nil, fmt.Errorf("call slot0: %w", err)
	}
	vals, err := poolStateABI.Unpack("slot0", result)
	if err != nil || len(vals) == 0 {
		return nil, fmt.Errorf("unpack slot0: %w", err)
	}
	return vals[0].(*big.Int), nil
}

// Approve ensures the router can pull token0/token1 from the wallet.
func (s *SwapRouterClient) Approve(ctx context.Context, token0, token1 string) error {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := s.client.ensureErc20Allowance(ctx, common.HexToAddress(token0), s.address, maxUint256); err != nil {
		return fmt.Errorf("onchain.Approve: token0: %w", err)
	}
	if err := s.client.ensureErc20Allowance(ctx, common.HexToAddress(token1), s.address, maxUint256); err != nil {
		return fmt.Errorf("onchain.Approve: token1: %w", err)
	}
	return nil
}
