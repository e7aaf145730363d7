package onchain

// abi.go — contract ABIs for the Uniswap V3-style position manager, swap
// router, and ERC-20 token, parsed once at package init like the teacher's
// CTF/ERC1155/ERC20 ABIs.

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	positionManagerABI abi.ABI
	swapRouterABI      abi.ABI
	erc20ABI           abi.ABI
	erc721ABI          abi.ABI
	poolStateABI       abi.ABI
)

func init() {
	var err error

	positionManagerABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "mint",
			"type": "function",
			"inputs": [{
				"name": "params",
				"type": "tuple",
				"components": [
					{"name": "token0", "type": "address"},
					{"name": "token1", "type": "address"},
					{"name": "fee", "type": "uint24"},
					{"name": "tickLower", "type": "int24"},
					{"name": "tickUpper", "type": "int24"},
					{"name": "amount0Desired", "type": "uint256"},
					{"name": "amount1Desired", "type": "uint256"},
					{"name": "amount0Min", "type": "uint256"},
					{"name": "amount1Min", "type": "uint256"},
					{"name": "recipient", "type": "address"},
					{"name": "deadline", "type": "uint256"}
				]
			}],
			"outputs": [
				{"name": "tokenId", "type": "uint256"},
				{"name": "liquidity", "type": "uint128"},
				{"name": "amount0", "type": "uint256"},
				{"name": "amount1", "type": "uint256"}
			]
		},
		{
			"name": "decreaseLiquidity",
			"type": "function",
			"inputs": [{
				"name": "params",
				"type": "tuple",
				"components": [
					{"name": "tokenId", "type": "uint256"},
					{"name": "liquidity", "type": "uint128"},
					{"name": "amount0Min", "type": "uint256"},
					{"name": "amount1Min", "type": "uint256"},
					{"name": "deadline", "type": "uint256"}
				]
			}],
			"outputs": [
				{"name": "amount0", "type": "uint256"},
				{"name": "amount1", "type": "uint256"}
			]
		},
		{
			"name": "collect",
			"type": "function",
			"inputs": [{
				"name": "params",
				"type": "tuple",
				"components": [
					{"name": "tokenId", "type": "uint256"},
					{"name": "recipient", "type": "address"},
					{"name": "amount0Max", "type": "uint128"},
					{"name": "amount1Max", "type": "uint128"}
				]
			}],
			"outputs": [
				{"name": "amount0", "type": "uint256"},
				{"name": "amount1", "type": "uint256"}
			]
		},
		{
			"name": "burn",
			"type": "function",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": []
		},
		{
			"name": "positions",
			"type": "function",
			"inputs": [{"name": "tokenId", "type": "uint256"}],
			"outputs": [
				{"name": "nonce", "type": "uint96"},
				{"name": "operator", "type": "address"},
				{"name": "token0", "type": "address"},
				{"name": "token1", "type": "address"},
				{"name": "fee", "type": "uint24"},
				{"name": "tickLower", "type": "int24"},
				{"name": "tickUpper", "type": "int24"},
				{"name": "liquidity", "type": "uint128"},
				{"name": "feeGrowthInside0LastX128", "type": "uint256"},
				{"name": "feeGrowthInside1LastX128", "type": "uint256"},
				{"name": "tokensOwed0", "type": "uint128"},
				{"name": "tokensOwed1", "type": "uint128"}
			]
		},
		{
			"name": "IncreaseLiquidity",
			"type": "event",
			"inputs": [
				{"name": "tokenId", "type": "uint256", "indexed": true},
				{"name": "liquidity", "type": "uint128", "indexed": false},
				{"name": "amount0", "type": "uint256", "indexed": false},
				{"name": "amount1", "type": "uint256", "indexed": false}
			]
		},
		{
			"name": "DecreaseLiquidity",
			"type": "event",
			"inputs": [
				{"name": "tokenId", "type": "uint256", "indexed": true},
				{"name": "liquidity", "type": "uint128", "indexed": false},
				{"name": "amount0", "type": "uint256", "indexed": false},
				{"name": "amount1", "type": "uint256", "indexed": false}
			]
		},
		{
			"name": "Collect",
			"type": "event",
			"inputs": [
				{"name": "tokenId", "type": "uint256", "indexed": true},
				{"name": "recipient", "type": "address", "indexed": false},
				{"name": "amount0", "type": "uint256", "indexed": false},
				{"name": "amount1", "type": "uint256", "indexed": false}
			]
		}
	]`))
	if err != nil {
		panic("position manager abi parse: " + err.Error())
	}

	erc721ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "owner", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "tokenOfOwnerByIndex",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "index", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc721 abi parse: " + err.Error())
	}

	swapRouterABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "exactInputSingle",
			"type": "function",
			"inputs": [{
				"name": "params",
				"type": "tuple",
				"components": [
					{"name": "tokenIn", "type": "address"},
					{"name": "tokenOut", "type": "address"},
					{"name": "fee", "type": "uint24"},
					{"name": "recipient", "type": "address"},
					{"name": "deadline", "type": "uint256"},
					{"name": "amountIn", "type": "uint256"},
					{"name": "amountOutMinimum", "type": "uint256"},
					{"name": "sqrtPriceLimitX96", "type": "uint160"}
				]
			}],
			"outputs": [{"name": "amountOut", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("swap router abi parse: " + err.Error())
	}

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "balanceOf",
			"type": "function",
			"inputs": [{"name": "account", "type": "address"}],
			"outputs": [{"name": "", "type": "uint256"}]
		},
		{
			"name": "Transfer",
			"type": "event",
			"inputs": [
				{"name": "from", "type": "address", "indexed": true},
				{"name": "to", "type": "address", "indexed": true},
				{"name": "value", "type": "uint256", "indexed": false}
			]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}

	poolStateABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "slot0",
			"type": "function",
			"inputs": [],
			"outputs": [
				{"name": "sqrtPriceX96", "type": "uint160"},
				{"name": "tick", "type": "int24"},
				{"name": "observationIndex", "type": "uint16"},
				{"name": "observationCardinality", "type": "uint16"},
				{"name": "observationCardinalityNext", "type": "uint16"},
				{"name": "feeProtocol", "type": "uint8"},
				{"name": "unlocked", "type": "bool"}
			]
		}
	]`))
	if err != nil {
		panic("pool state abi parse: " + err.Error())
	}
}
