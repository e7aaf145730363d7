package core

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangekeeper/rangekeeper/internal/ports"
)

// fakeNftManager is an in-memory NftPositionManager: every Mint hands back
// an incrementing decimal tokenID, every RemovePosition succeeds unless
// failRemove is set. failMint, if positive, fails that many calls before
// succeeding.
type fakeNftManager struct {
	nextTokenID    int
	mintCalls      int
	removeCalls    int
	failMint       int
	failRemove     bool
	foundPositions []ports.PositionInfo
}

func (f *fakeNftManager) Mint(ctx context.Context, params ports.MintParams) (ports.MintResult, error) {
	f.mintCalls++
	if f.failMint > 0 {
		f.failMint--
		return ports.MintResult{}, errors.New("mint reverted")
	}
	f.nextTokenID++
	return ports.MintResult{
		TokenID:     fmt.Sprintf("%d", f.nextTokenID),
		Liquidity:   big.NewInt(1_000),
		Amount0:     params.Amount0Desired,
		Amount1:     params.Amount1Desired,
		TxHash:      fmt.Sprintf("0xmint%d", f.nextTokenID),
		GasUsed:     210_000,
		GasPriceWei: big.NewInt(20_000_000_000),
	}, nil
}

func (f *fakeNftManager) RemovePosition(ctx context.Context, tokenID string, liquidity *big.Int, slippagePercent float64) (ports.RemoveResult, error) {
	f.removeCalls++
	if f.failRemove {
		return ports.RemoveResult{}, errors.New("remove reverted")
	}
	return ports.RemoveResult{
		Amount0: big.NewInt(500),
		Amount1: big.NewInt(500),
		Fee0:    big.NewInt(1),
		Fee1:    big.NewInt(1),
		TxHashes: ports.RemoveTxHashes{
			Decrease: "0xdecrease",
			Collect:  "0xcollect",
			Burn:     "0xburn",
		},
		GasUsed:     180_000,
		GasPriceWei: big.NewInt(20_000_000_000),
	}, nil
}

func (f *fakeNftManager) GetPosition(ctx context.Context, tokenID string) (ports.PositionInfo, error) {
	return ports.PositionInfo{}, errors.New("not implemented")
}

func (f *fakeNftManager) FindPositionsFor(ctx context.Context, owner, token0, token1 string, feeTier int) ([]ports.PositionInfo, error) {
	return f.foundPositions, nil
}

func (f *fakeNftManager) Approve(ctx context.Context, token0, token1 string) error { return nil }

// fakeSwapRouter records every swap it executes.
type fakeSwapRouter struct {
	swapCalls int
	lastIn    string
	lastOut   string
}

func (f *fakeSwapRouter) ExecuteSwap(ctx context.Context, tokenIn, tokenOut string, feeTier int, amountIn *big.Int, slippagePercent float64) (ports.SwapResult, error) {
	f.swapCalls++
	f.lastIn, f.lastOut = tokenIn, tokenOut
	return ports.SwapResult{
		AmountOut:   new(big.Int).Div(amountIn, big.NewInt(2)),
		TxHash:      "0xswap",
		GasUsed:     150_000,
		GasPriceWei: big.NewInt(20_000_000_000),
	}, nil
}

func (f *fakeSwapRouter) Approve(ctx context.Context, token0, token1 string) error { return nil }

// fakeGasOracle reports a flat, never-spiking gas price.
type fakeGasOracle struct{}

func (fakeGasOracle) GetGasInfo(ctx context.Context) (ports.GasInfo, error) {
	return ports.GasInfo{GasPriceGwei: 20}, nil
}

func (fakeGasOracle) IsSpike(gasPriceGwei float64) bool { return false }

// fakePersistence is an in-memory, single-pool Persistence.
type fakePersistence struct {
	state       PersistedPoolState
	updateCalls int
}

func (f *fakePersistence) GetPoolState(ctx context.Context, poolID string) (PersistedPoolState, error) {
	return f.state, nil
}

func (f *fakePersistence) UpdatePoolState(ctx context.Context, poolID string, partial PersistedPoolState) error {
	f.updateCalls++
	f.state = partial
	return nil
}

func (f *fakePersistence) Save(ctx context.Context) error        { return nil }
func (f *fakePersistence) SaveOrThrow(ctx context.Context) error { return nil }

// fakeHistoryLog records every entry appended to it.
type fakeHistoryLog struct {
	entries []ports.HistoryEntry
}

func (f *fakeHistoryLog) Append(ctx context.Context, entry ports.HistoryEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

// fakeNotifier records every message it was asked to deliver.
type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(ctx context.Context, msg string) error {
	f.messages = append(f.messages, msg)
	return nil
}

// fakeHealthSurface records the last status pushed to it.
type fakeHealthSurface struct {
	last HealthStatus
}

func (f *fakeHealthSurface) UpdatePoolStatus(ctx context.Context, poolID string, status HealthStatus) error {
	f.last = status
	return nil
}

// fakeBalances returns a fixed balance for every token.
type fakeBalances struct {
	bal0, bal1 *big.Int
}

func (f *fakeBalances) BalanceOf(ctx context.Context, token string) (*big.Int, error) {
	if token == "token0" {
		return new(big.Int).Set(f.bal0), nil
	}
	return new(big.Int).Set(f.bal1), nil
}

// bandsWithLiquidity returns sevenContiguousBands with a non-zero liquidity
// on every band, so removal paths actually issue a RemovePosition call.
func bandsWithLiquidity(width int) []Band {
	bands := sevenContiguousBands(width)
	for i := range bands {
		bands[i].Liquidity = big.NewInt(1_000)
	}
	return bands
}

type testRig struct {
	nft     *fakeNftManager
	router  *fakeSwapRouter
	persist *fakePersistence
	history *fakeHistoryLog
	notify  *fakeNotifier
	health  *fakeHealthSurface
	bal     *fakeBalances
}

func newTestRig(bal0, bal1 int64) (*Engine, *testRig, PoolConfig) {
	rig := &testRig{
		nft:     &fakeNftManager{},
		router:  &fakeSwapRouter{},
		persist: &fakePersistence{},
		history: &fakeHistoryLog{},
		notify:  &fakeNotifier{},
		health:  &fakeHealthSurface{},
		bal:     &fakeBalances{bal0: big.NewInt(bal0), bal1: big.NewInt(bal1)},
	}
	cfg := PoolConfig{
		PoolID:                   "pool-1",
		WalletAddress:            "0xwallet",
		Token0:                   "token0",
		Token1:                   "token1",
		FeeTier:                  100,
		RangeWidthPercent:        3.0,
		SlippageTolerancePercent: 1.0,
		NativeTokenPriceUsd:      2000,
	}
	engine := NewEngine(cfg, Collaborators{
		NftManager:  rig.nft,
		Router:      rig.router,
		GasOracle:   fakeGasOracle{},
		Persistence: rig.persist,
		History:     rig.history,
		Notifier:    rig.notify,
		Health:      rig.health,
		Balances:    rig.bal,
	})
	return engine, rig, cfg
}

// Scenario 1: initial mint at tick=0, width=3%, feeTier=100 lays out and
// mints all 7 bands with a 42-tick width.
func TestEngine_InitialMintAtTickZero(t *testing.T) {
	ctx := context.Background()
	engine, rig, _ := newTestRig(7_000_000, 7_000_000)
	engine.state = StateMonitoring

	engine.OnPriceTick(ctx, PriceTick{Tick: 0})

	assert.Equal(t, 7, engine.ledger.Len())
	assert.Equal(t, 42, engine.ledger.BandTickWidth())
	assert.Equal(t, 7, rig.nft.mintCalls)
	assert.Equal(t, StateMonitoring, engine.state)
	require.NotEmpty(t, rig.history.entries)
	assert.Equal(t, ports.EventMint, rig.history.entries[len(rig.history.entries)-1].Type)
}

// Scenario 2: a tick inside the center three bands is a safe-zone no-op.
func TestEngine_SafeZoneTickIsNoOp(t *testing.T) {
	ctx := context.Background()
	engine, rig, _ := newTestRig(1_000, 1_000)
	require.NoError(t, engine.ledger.SetBands(sevenContiguousBands(42), 42))
	engine.state = StateMonitoring

	engine.OnPriceTick(ctx, PriceTick{Tick: 0})

	assert.Equal(t, 0, rig.nft.mintCalls)
	assert.Equal(t, 0, rig.nft.removeCalls)
	assert.Equal(t, 0, rig.router.swapCalls)
	assert.Equal(t, StateMonitoring, engine.state)
	assert.Equal(t, "1", engine.ledger.Bands()[0].TokenID)
}

// Scenario 3: a lower-trigger tick dissolves the highest band, swaps token0
// into token1, and mints a new band below the lowest existing one.
func TestEngine_LowerTriggerRebalances(t *testing.T) {
	ctx := context.Background()
	engine, rig, _ := newTestRig(1_000, 0)
	require.NoError(t, engine.ledger.SetBands(bandsWithLiquidity(42), 42))
	engine.state = StateMonitoring

	engine.OnPriceTick(ctx, PriceTick{Tick: -100})

	assert.Equal(t, 1, rig.nft.removeCalls)
	assert.Equal(t, 1, rig.router.swapCalls)
	assert.Equal(t, "token0", rig.router.lastIn)
	assert.Equal(t, "token1", rig.router.lastOut)
	assert.Equal(t, 1, rig.nft.mintCalls)
	assert.Equal(t, 7, engine.ledger.Len())
	assert.Equal(t, -3*42-42, engine.ledger.Bands()[0].TickLower)
	assert.Equal(t, StateMonitoring, engine.state)
	assert.NotZero(t, engine.lastRebalanceTimeMs)
}

// Scenario 4: an upper-trigger tick mirrors scenario 3 on the other side.
func TestEngine_UpperTriggerMirrorsLower(t *testing.T) {
	ctx := context.Background()
	engine, rig, _ := newTestRig(0, 1_000)
	require.NoError(t, engine.ledger.SetBands(bandsWithLiquidity(42), 42))
	engine.state = StateMonitoring

	engine.OnPriceTick(ctx, PriceTick{Tick: 100})

	assert.Equal(t, 1, rig.nft.removeCalls)
	assert.Equal(t, 1, rig.router.swapCalls)
	assert.Equal(t, "token1", rig.router.lastIn)
	assert.Equal(t, "token0", rig.router.lastOut)
	assert.Equal(t, 1, rig.nft.mintCalls)
	assert.Equal(t, 7, engine.ledger.Len())
	lastBand := engine.ledger.Bands()[6]
	assert.Equal(t, 5*42, lastBand.TickUpper)
	assert.Equal(t, StateMonitoring, engine.state)
}

// Scenario 5: a tick far enough from the configured expected ratio trips
// the depeg gate and triggers an emergency withdraw of every band.
func TestEngine_DepegTriggersEmergencyWithdraw(t *testing.T) {
	ctx := context.Background()
	engine, rig, cfg := newTestRig(0, 0)
	expected := 1.0
	cfg.ExpectedPriceRatio = &expected
	engine.cfg = cfg
	require.NoError(t, engine.ledger.SetBands(bandsWithLiquidity(42), 42))
	engine.state = StateMonitoring

	engine.OnPriceTick(ctx, PriceTick{Tick: 600})

	assert.Equal(t, 7, rig.nft.removeCalls)
	assert.Equal(t, 0, engine.ledger.Len())
	assert.Equal(t, StateStopped, engine.state)
	assert.True(t, engine.emergencyStop)
	found := false
	for _, m := range rig.notify.messages {
		if strings.HasPrefix(m, "ALERT: DEPEG") {
			found = true
		}
	}
	assert.True(t, found, "expected a depeg ALERT notification")
}

// Scenario 6: restarting with a persisted in-flight checkpoint clears the
// ledger and the checkpoint rather than resuming mid-rebalance.
func TestEngine_CrashRecoveryClearsCheckpoint(t *testing.T) {
	ctx := context.Background()
	engine, rig, _ := newTestRig(0, 0)
	rig.persist.state = PersistedPoolState{
		Bands:         sevenContiguousBands(42),
		BandTickWidth: 42,
		Checkpoint: &RebalanceCheckpoint{
			Stage:           StageWithdrawn,
			PendingTxHashes: []string{"0xdecrease", "0xcollect", "0xburn"},
		},
	}

	err := engine.Initialize(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, engine.ledger.Len())
	assert.Equal(t, StateMonitoring, engine.state)
	assert.Nil(t, rig.persist.state.Checkpoint)
	require.NotEmpty(t, rig.notify.messages)
	assert.Contains(t, rig.notify.messages[0], "RECOVERY")
	require.NotEmpty(t, rig.history.entries)
	assert.Equal(t, ports.EventRecovery, rig.history.entries[0].Type)
}

// Scenario 7: three consecutive mint failures trip the error budget and
// force an emergency stop.
func TestEngine_ThreeConsecutiveMintFailuresTripCircuit(t *testing.T) {
	ctx := context.Background()
	engine, rig, _ := newTestRig(7_000_000, 7_000_000)
	rig.nft.failMint = 3
	engine.state = StateMonitoring

	engine.OnPriceTick(ctx, PriceTick{Tick: 0})
	engine.OnPriceTick(ctx, PriceTick{Tick: 0})
	engine.OnPriceTick(ctx, PriceTick{Tick: 0})

	assert.Equal(t, 3, engine.consecutiveErrors)
	assert.Equal(t, StateStopped, engine.state)
	assert.True(t, engine.emergencyStop)
	assert.True(t, engine.cb.Triggered)
}
