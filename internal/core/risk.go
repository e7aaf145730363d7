package core

import (
	"math"
	"time"

	"github.com/rangekeeper/rangekeeper/internal/amm"
)

// maxConsecutiveErrors is the error budget before the engine transitions to
// Error and triggers an emergency stop.
const maxConsecutiveErrors = 3

// singleRebalanceLossPercent is the fixed threshold on a single rebalance's
// value drop before the engine halts rather than continuing to rebalance.
const singleRebalanceLossPercent = 2.0

// gasSpikeMultiplier is how far above the EMA baseline a gas reading must
// be to count as a spike.
const gasSpikeMultiplier = 10.0

// gasEmaWeight is the weight given to the existing baseline on each update
// (0.95 old / 0.05 new), matching the gas oracle's smoothing convention.
const gasEmaWeight = 0.95

// gasBudgetUnits is the fixed gas-unit estimate used for a rebalance's cost
// projection (three withdraw txs, a swap, a mint, roughly).
const gasBudgetUnits = 800_000

// circuitBreaker tracks consecutive chain-call failures and enforces a
// cooldown: every failed chain-writing operation records a failure; any
// success resets the counter.
type circuitBreaker struct {
	ConsecutiveFailures int
	MaxFailures         int
	CooldownUntil       time.Time
	CooldownDuration    time.Duration
	Triggered           bool
	TriggeredReason     string
}

func newCircuitBreaker(cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{MaxFailures: maxConsecutiveErrors, CooldownDuration: cooldown}
}

// IsOpen reports whether chain-writing operations are currently allowed.
func (cb *circuitBreaker) IsOpen() bool {
	if cb.Triggered {
		return false
	}
	if time.Now().Before(cb.CooldownUntil) {
		return false
	}
	return true
}

// RecordFailure increments the consecutive-failure count and trips the
// breaker once MaxFailures is reached.
func (cb *circuitBreaker) RecordFailure(reason string) {
	cb.ConsecutiveFailures++
	if cb.ConsecutiveFailures >= cb.MaxFailures {
		cb.Triggered = true
		cb.TriggeredReason = reason
		cb.CooldownUntil = time.Now().Add(cb.CooldownDuration)
	}
}

// RecordSuccess resets the consecutive-failure count. It does not clear an
// already-tripped breaker — that requires an explicit reset after recovery.
func (cb *circuitBreaker) RecordSuccess() {
	cb.ConsecutiveFailures = 0
}

// gasBaseline is the gas oracle's EMA baseline tracker, smoothing 95% the
// prior baseline against 5% of each new reading.
type gasBaseline struct {
	value float64
	seen  bool
}

// Update folds a new gas-price reading into the EMA baseline.
func (g *gasBaseline) Update(gasPriceGwei float64) {
	if !g.seen {
		g.value = gasPriceGwei
		g.seen = true
		return
	}
	g.value = gasEmaWeight*g.value + (1-gasEmaWeight)*gasPriceGwei
}

// IsSpike reports whether x exceeds the baseline by gasSpikeMultiplier.
func (g *gasBaseline) IsSpike(x float64) bool {
	if !g.seen || g.value <= 0 {
		return false
	}
	return x > g.value*gasSpikeMultiplier
}

// EstimateGasCostUsd projects the USD cost of a rebalance's fixed gas
// budget at the given gas price and ETH/native-token price.
func EstimateGasCostUsd(gasPriceGwei, nativeTokenPriceUsd float64) float64 {
	return gasPriceGwei * 1e-9 * gasBudgetUnits * nativeTokenPriceUsd
}

// DepegResult is the outcome of a depeg check.
type DepegResult struct {
	Triggered  bool
	Deviation  float64
	CurrentPrice float64
}

// CheckDepeg compares the pool's current price against the configured
// expected ratio. Only meaningful when ExpectedPriceRatio is set; a pool
// with no expected ratio never depegs by this check.
func CheckDepeg(cfg PoolConfig, tick int) DepegResult {
	if cfg.ExpectedPriceRatio == nil {
		return DepegResult{}
	}
	expected := *cfg.ExpectedPriceRatio
	if expected <= 0 {
		return DepegResult{}
	}
	current := amm.TickToPrice(tick)
	deviation := math.Abs(current-expected) / expected * 100
	return DepegResult{
		Triggered:    deviation > cfg.DepegThreshold(),
		Deviation:    deviation,
		CurrentPrice: current,
	}
}

// CheckSingleRebalanceLoss reports whether postValue dropped more than
// singleRebalanceLossPercent below preValue.
func CheckSingleRebalanceLoss(preValue, postValue float64) bool {
	if preValue <= 0 {
		return false
	}
	return postValue < preValue*(1-singleRebalanceLossPercent/100)
}

// CheckPortfolioLoss reports whether currentValue dropped more than
// maxTotalLossPercent below initialValue.
func CheckPortfolioLoss(currentValue, initialValue, maxTotalLossPercent float64) bool {
	if initialValue <= 0 || maxTotalLossPercent <= 0 {
		return false
	}
	return currentValue < initialValue*(1-maxTotalLossPercent/100)
}

// ShouldSkipForGas reports whether a rebalance should be skipped given the
// current gas reading, budget, and whether the position is still in range.
// A spike or an over-budget estimate only skips the rebalance while the
// position remains in range; a position that is fully out of range must
// never be starved by gas conditions indefinitely, so it proceeds
// regardless.
func ShouldSkipForGas(spike bool, estimatedCostUsd, maxGasCostUsd float64, inRange bool) bool {
	if !inRange {
		return false
	}
	overBudget := maxGasCostUsd > 0 && estimatedCostUsd > maxGasCostUsd
	return spike || overBudget
}
