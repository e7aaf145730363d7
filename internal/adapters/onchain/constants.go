package onchain

import "time"

// Conservative gas-limit ceilings for each transaction kind, mirrored on
// the teacher's fixed per-operation gas limits rather than trusting
// eth_estimateGas alone under volatile mempool conditions.
const (
	mintGasLimit              = uint64(500_000)
	decreaseLiquidityGasLimit = uint64(250_000)
	collectGasLimit           = uint64(200_000)
	burnGasLimit              = uint64(100_000)
	swapGasLimit              = uint64(300_000)
	approvalGasLimit          = uint64(80_000)
)

// mintDeadline and swapDeadline bound how long a submitted transaction has
// to be included before the router/position manager rejects it.
const (
	mintDeadline = 10 * time.Minute
	swapDeadline = 5 * time.Minute
)
