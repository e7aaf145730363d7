package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_TripsAfterMaxFailures(t *testing.T) {
	cb := newCircuitBreaker(time.Minute)
	assert.True(t, cb.IsOpen())

	cb.RecordFailure("chain call failed")
	assert.True(t, cb.IsOpen())
	cb.RecordFailure("chain call failed")
	assert.True(t, cb.IsOpen())
	cb.RecordFailure("chain call failed")

	assert.False(t, cb.IsOpen())
	assert.True(t, cb.Triggered)
	assert.Equal(t, "chain call failed", cb.TriggeredReason)
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := newCircuitBreaker(time.Minute)
	cb.RecordFailure("x")
	cb.RecordFailure("x")
	cb.RecordSuccess()
	cb.RecordFailure("x")
	assert.Equal(t, 1, cb.ConsecutiveFailures)
	assert.True(t, cb.IsOpen())
}

func TestGasBaseline_IsSpike(t *testing.T) {
	g := &gasBaseline{}
	g.Update(20)
	g.Update(21)
	g.Update(19)
	assert.False(t, g.IsSpike(50))
	assert.True(t, g.IsSpike(500))
}

func TestCheckDepeg_NoExpectedRatio(t *testing.T) {
	cfg := PoolConfig{}
	result := CheckDepeg(cfg, 600)
	assert.False(t, result.Triggered)
}

func TestCheckDepeg_Triggers(t *testing.T) {
	expected := 1.0
	cfg := PoolConfig{ExpectedPriceRatio: &expected}
	// tick=600 -> price ~= 1.0001^600 ~= 1.062, deviation > 5%
	result := CheckDepeg(cfg, 600)
	assert.True(t, result.Triggered)
	assert.Greater(t, result.Deviation, 5.0)
}

func TestCheckDepeg_WithinThreshold(t *testing.T) {
	expected := 1.0
	cfg := PoolConfig{ExpectedPriceRatio: &expected}
	result := CheckDepeg(cfg, 10)
	assert.False(t, result.Triggered)
}

func TestCheckSingleRebalanceLoss(t *testing.T) {
	assert.True(t, CheckSingleRebalanceLoss(1000, 970))
	assert.False(t, CheckSingleRebalanceLoss(1000, 990))
}

func TestCheckPortfolioLoss(t *testing.T) {
	assert.True(t, CheckPortfolioLoss(800, 1000, 10))
	assert.False(t, CheckPortfolioLoss(950, 1000, 10))
}

func TestShouldSkipForGas(t *testing.T) {
	assert.True(t, ShouldSkipForGas(true, 0, 0, true))
	assert.False(t, ShouldSkipForGas(true, 0, 0, false), "out of range always proceeds")
	assert.True(t, ShouldSkipForGas(false, 10, 5, true))
	assert.False(t, ShouldSkipForGas(false, 4, 5, true))
}
