package pricefeed

// abi.go — the pool-state read surface: slot0 and liquidity, parsed once at
// package init like the onchain package's contract ABIs.

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var poolABI abi.ABI

func init() {
	var err error
	poolABI, err = abi.JSON(strings.NewReader(`[
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
		},
		{
			"name": "liquidity",
			"type": "function",
			"inputs": [],
			"outputs": [{"name": "", "type": "uint128"}]
		}
	]`))
	if err != nil {
		panic("pool abi parse: " + err.Error())
	}
}
