package onchain

import (
	"math/big"
	"time"
)

// slippageFloor returns desired reduced by percent/100, the minimum amount
// a caller will accept before a transaction reverts instead of executing
// at a worse price. A nil or zero desired, or a non-positive percent, yields
// a zero floor.
func slippageFloor(desired *big.Int, percent float64) *big.Int {
	if desired == nil || desired.Sign() == 0 || percent <= 0 {
		return big.NewInt(0)
	}
	bps := big.NewInt(int64((100 - percent) * 100))
	floor := new(big.Int).Mul(desired, bps)
	floor.Div(floor, big.NewInt(10_000))
	return floor
}

// deadlineFromNow returns the unix timestamp d from now, as the deadline
// argument every position-manager/router call requires.
func deadlineFromNow(d time.Duration) *big.Int {
	return big.NewInt(time.Now().Add(d).Unix())
}

// maxUint128 returns 2^128 - 1, used as an amountMax to collect() meaning
// "collect everything owed".
func maxUint128() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
}
