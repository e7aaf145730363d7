package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rangekeeper/rangekeeper/internal/amm"
	"github.com/rangekeeper/rangekeeper/internal/ports"
)

// Engine is the per-pool rebalance state machine. It owns the BandLedger,
// the EngineState, and a non-reentrant rebalance lock; every external
// collaborator is reached only through the ports interfaces, so the engine
// itself is domain-pure and has no chain, SQL, or HTTP dependency.
type Engine struct {
	cfg PoolConfig

	collaborators Collaborators

	mu    sync.Mutex
	state EngineState

	ledger *BandLedger
	gas    gasBaseline
	cb     circuitBreaker
	gasLedger GasLedger

	lastRebalanceTimeMs int64
	initialValueUsd     *float64
	consecutiveErrors   int
	lastError           string
	emergencyStop       bool
}

// Collaborators bundles every port an Engine needs. Grounded on the
// teacher's constructor-injection style (live.Engine's New takes one
// argument per port).
type Collaborators struct {
	NftManager  ports.NftPositionManager
	Router      ports.SwapRouter
	GasOracle   ports.GasOracle
	Persistence ports.Persistence
	History     ports.HistoryLog
	Notifier    ports.Notifier
	Health      ports.HealthSurface
	Balances    ports.TokenBalances
}

// NewEngine constructs an Engine for one pool, initially in StateIdle.
func NewEngine(cfg PoolConfig, collaborators Collaborators) *Engine {
	return &Engine{
		cfg:           cfg,
		collaborators: collaborators,
		state:         StateIdle,
		ledger:        NewBandLedger(),
		cb:            circuitBreaker{MaxFailures: maxConsecutiveErrors, CooldownDuration: 30 * time.Minute},
	}
}

// State returns the engine's current state.
func (e *Engine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Initialize loads persisted state, resolves any in-flight checkpoint, and
// adopts or awaits bands before transitioning to Monitoring. Idempotent:
// calling it again with no intervening state change repeats only the
// approval/query side effects.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	persisted, err := e.collaborators.Persistence.GetPoolState(ctx, e.cfg.PoolID)
	if err != nil {
		return fmt.Errorf("core: initialize: load pool state: %w", err)
	}

	if len(persisted.Bands) > 0 {
		if err := e.ledger.SetBands(persisted.Bands, persisted.BandTickWidth); err != nil {
			slog.Warn("core: initialize: persisted bands failed validation, discarding", "pool", e.cfg.PoolID, "err", err)
			e.ledger.Clear()
		}
	}
	e.lastRebalanceTimeMs = persisted.LastRebalanceTimeMs
	e.initialValueUsd = persisted.InitialValueUsd

	if persisted.Checkpoint != nil {
		e.recoverFromCheckpoint(ctx, *persisted.Checkpoint)
	} else if e.ledger.Len() == 0 {
		e.adoptExistingPositions(ctx)
	}

	if err := e.collaborators.NftManager.Approve(ctx, e.cfg.Token0, e.cfg.Token1); err != nil {
		slog.Warn("core: initialize: nft manager approve failed", "pool", e.cfg.PoolID, "err", err)
	}
	if err := e.collaborators.Router.Approve(ctx, e.cfg.Token0, e.cfg.Token1); err != nil {
		slog.Warn("core: initialize: router approve failed", "pool", e.cfg.PoolID, "err", err)
	}

	e.state = StateMonitoring
	e.pushHealth(ctx)
	return nil
}

// recoverFromCheckpoint logs each pending tx hash for visibility, then
// clears the ledger and the checkpoint in persistence and emits a RECOVERY
// notification. It never tries to resume the rebalance itself: restarting
// accepts a brief no-liquidity window in exchange for zero risk of
// double-spending on a tx that may or may not have landed.
func (e *Engine) recoverFromCheckpoint(ctx context.Context, cp RebalanceCheckpoint) {
	for _, hash := range cp.PendingTxHashes {
		slog.Info("core: recovery: pending tx", "pool", e.cfg.PoolID, "hash", hash, "stage", cp.Stage)
	}

	e.ledger.Clear()
	if err := e.collaborators.Persistence.UpdatePoolState(ctx, e.cfg.PoolID, PersistedPoolState{}); err != nil {
		slog.Error("core: recovery: failed clearing persisted state", "pool", e.cfg.PoolID, "err", err)
	}

	msg := fmt.Sprintf("RECOVERY: pool %s recovering from stage %s", e.cfg.PoolID, cp.Stage)
	e.notify(ctx, msg)
	e.logHistory(ctx, ports.EventRecovery, msg, cp.PendingTxHashes)
}

// adoptExistingPositions runs when the ledger is empty and nothing is
// persisted: it queries the NFT manager for positions already owned by the
// wallet in this pool and adopts them only when exactly 7 have non-zero
// liquidity. A partial set (≠ 7) is logged and not adopted: the ledger
// stays empty and those positions are left untracked.
func (e *Engine) adoptExistingPositions(ctx context.Context) {
	positions, err := e.collaborators.NftManager.FindPositionsFor(ctx, e.cfg.WalletAddress, e.cfg.Token0, e.cfg.Token1, e.cfg.FeeTier)
	if err != nil {
		slog.Warn("core: initialize: find existing positions failed", "pool", e.cfg.PoolID, "err", err)
		return
	}
	if len(positions) == 0 {
		return
	}

	var bands []Band
	for i, p := range positions {
		if p.Liquidity == nil || p.Liquidity.Sign() == 0 {
			continue
		}
		bands = append(bands, Band{Index: i, TokenID: p.TokenID, TickLower: p.TickLower, TickUpper: p.TickUpper, Liquidity: p.Liquidity})
	}
	if len(bands) != amm.BandCount {
		slog.Info("core: initialize: partial position set not adopted", "pool", e.cfg.PoolID, "count", len(bands))
		return
	}
	width := bands[0].Width()
	if err := e.ledger.SetBands(bands, width); err != nil {
		slog.Warn("core: initialize: adopted positions failed validation", "pool", e.cfg.PoolID, "err", err)
	}
}

// OnPriceTick is the engine's main event entry point. Non-reentrant: if the
// rebalance lock is held or the engine is not in Idle/Monitoring, the tick
// is dropped silently.
func (e *Engine) OnPriceTick(ctx context.Context, tick PriceTick) {
	if !e.mu.TryLock() {
		return
	}
	defer e.mu.Unlock()

	if e.state != StateIdle && e.state != StateMonitoring {
		return
	}

	depeg := CheckDepeg(e.cfg, tick.Tick)
	if depeg.Triggered {
		msg := fmt.Sprintf("ALERT: DEPEG pool=%s price=%.6f deviation=%.2f%%", e.cfg.PoolID, depeg.CurrentPrice, depeg.Deviation)
		e.notify(ctx, msg)
		e.logHistory(ctx, ports.EventDepeg, msg, nil)
		e.emergencyWithdrawLocked(ctx)
		return
	}

	if e.ledger.Len() == 0 {
		e.mintInitialBandsLocked(ctx, tick.Tick)
		return
	}

	classification := e.ledger.Classify(tick.Tick)
	if classification == amm.Safe || classification == amm.NoAction {
		return
	}

	dir := DirectionLower
	if classification == amm.Upper {
		dir = DirectionUpper
	}
	e.executeBandRebalanceLocked(ctx, tick.Tick, dir)
}

// mintInitialBandsLocked lays out and mints 7 fresh bands around tick.
// Callers must hold e.mu for the entire dispatch; it re-asserts the ledger
// is still empty rather than trusting the caller's earlier check.
func (e *Engine) mintInitialBandsLocked(ctx context.Context, tick int) {
	if e.ledger.Len() != 0 {
		return
	}

	e.state = StateMint
	layout, err := amm.Layout(tick, e.cfg.RangeWidthPercent, e.cfg.FeeTier)
	if err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("layout failed: %v", err))
		return
	}

	bal0, bal1 := e.readBalancesLocked(ctx)
	bands := make([]Band, 0, amm.BandCount)
	txHashes := make([]string, 0, amm.BandCount)

	for i, r := range layout.Bands {
		share := new(big.Int).Div(bal0, big.NewInt(int64(amm.BandCount-i)))
		shareOther := new(big.Int).Div(bal1, big.NewInt(int64(amm.BandCount-i)))

		result, err := e.collaborators.NftManager.Mint(ctx, ports.MintParams{
			Token0: e.cfg.Token0, Token1: e.cfg.Token1, FeeTier: e.cfg.FeeTier,
			TickLower: r.Lower, TickUpper: r.Upper,
			Amount0Desired: share, Amount1Desired: shareOther,
			SlippagePercent: e.cfg.SlippageTolerancePercent,
		})
		if err != nil {
			e.recordFailureLocked(ctx, fmt.Sprintf("mint band %d failed: %v", i, err))
			return
		}

		bands = append(bands, Band{Index: i, TokenID: result.TokenID, TickLower: r.Lower, TickUpper: r.Upper, Liquidity: result.Liquidity})
		txHashes = append(txHashes, result.TxHash)
		e.recordGasLocked("mint", result.TxHash, result.GasUsed, result.GasPriceWei)

		bal0 = new(big.Int).Sub(bal0, result.Amount0)
		bal1 = new(big.Int).Sub(bal1, result.Amount1)
	}

	if err := e.ledger.SetBands(bands, layout.BandTickWidth); err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("initial mint produced invalid ledger: %v", err))
		return
	}

	price := amm.TickToPrice(tick)
	initialValue := PortfolioValue(bal0, bal1, price)
	e.initialValueUsd = &initialValue

	e.persistLocked(ctx, nil)
	msg := fmt.Sprintf("MINT pool=%s bands=%d", e.cfg.PoolID, len(bands))
	e.logHistory(ctx, ports.EventMint, msg, txHashes)
	e.notify(ctx, msg)

	e.cb.RecordSuccess()
	e.consecutiveErrors = 0
	e.state = StateMonitoring
	e.pushHealthLocked(ctx)
}

// rebalanceOutcome folds the result of each phase of executeBandRebalanceLocked:
// one struct threaded through a sequence of small phase methods.
type rebalanceOutcome struct {
	skipped    bool
	skipReason string
	txHashes   []string
	preValue   float64
	postValue  float64
}

// executeBandRebalanceLocked drives one dissolve/swap/mint cycle in the
// given direction: gate checks, withdraw, swap, mint, then post-rebalance
// bookkeeping, as one driving method calling small phase helpers. Callers
// must hold e.mu for the entire dispatch; it re-asserts the engine is
// still in Idle/Monitoring and holding bands rather than trusting the
// caller's earlier check.
func (e *Engine) executeBandRebalanceLocked(ctx context.Context, tick int, dir Direction) {
	if e.state != StateIdle && e.state != StateMonitoring {
		return
	}
	if e.ledger.Len() == 0 {
		return
	}

	e.state = StateEvaluating
	outcome := &rebalanceOutcome{}

	// Phase 1+2: gates.
	if e.gateTimingLocked() {
		outcome.skipped = true
		outcome.skipReason = "min rebalance interval not elapsed"
	}
	if !outcome.skipped && e.emergencyStop {
		outcome.skipped = true
		outcome.skipReason = "emergency stop set"
	}
	if !outcome.skipped && e.gateGasLocked(ctx) {
		outcome.skipped = true
		outcome.skipReason = "gas gate"
	}
	if outcome.skipped {
		slog.Info("core: rebalance skipped", "pool", e.cfg.PoolID, "reason", outcome.skipReason)
		e.state = StateMonitoring
		return
	}

	// Phase 3: pre-rebalance valuation.
	bal0, bal1 := e.readBalancesLocked(ctx)
	price := amm.TickToPrice(tick)
	outcome.preValue = PortfolioValue(bal0, bal1, price)

	// Phase 4: withdraw.
	if !e.withdrawPhaseLocked(ctx, dir, outcome) {
		return
	}

	// Phase 5: swap.
	if !e.swapPhaseLocked(ctx, dir, outcome) {
		return
	}

	// Phase 6: mint.
	if !e.mintPhaseLocked(ctx, dir, outcome) {
		return
	}

	// Phase 7: bookkeeping.
	e.lastRebalanceTimeMs = time.Now().UnixMilli()
	e.cb.RecordSuccess()
	e.consecutiveErrors = 0

	// Phase 8: post-rebalance risk checks, persistence, logging.
	bal0, bal1 = e.readBalancesLocked(ctx)
	outcome.postValue = PortfolioValue(bal0, bal1, price)
	e.postRebalanceChecksLocked(ctx, outcome)

	e.persistLocked(ctx, nil)
	msg := fmt.Sprintf("REBALANCE pool=%s direction=%s", e.cfg.PoolID, dir)
	e.logHistory(ctx, ports.EventRebalance, msg, outcome.txHashes)
	e.notify(ctx, msg)

	if e.state != StateStopped {
		e.state = StateMonitoring
	}
	e.pushHealthLocked(ctx)
}

func (e *Engine) gateTimingLocked() bool {
	if e.cfg.MinRebalanceIntervalMinutes <= 0 {
		return false
	}
	minIntervalMs := int64(e.cfg.MinRebalanceIntervalMinutes) * 60_000
	return time.Now().UnixMilli()-e.lastRebalanceTimeMs < minIntervalMs
}

func (e *Engine) gateGasLocked(ctx context.Context) bool {
	info, err := e.collaborators.GasOracle.GetGasInfo(ctx)
	if err != nil {
		slog.Warn("core: gas gate: oracle read failed, proceeding", "pool", e.cfg.PoolID, "err", err)
		return false
	}
	e.gas.Update(info.GasPriceGwei)
	spike := e.collaborators.GasOracle.IsSpike(info.GasPriceGwei)
	estimatedCost := EstimateGasCostUsd(info.GasPriceGwei, e.cfg.NativeTokenPriceUsd)
	// This gate only ever runs for a trigger-band classification, so it
	// always passes inRange=false to ShouldSkipForGas: a gas spike should
	// never be able to starve a position stuck outside its bands.
	return ShouldSkipForGas(spike, estimatedCost, e.cfg.MaxGasCostUsd, false)
}

func (e *Engine) withdrawPhaseLocked(ctx context.Context, dir Direction, outcome *rebalanceOutcome) bool {
	e.state = StateWithdraw
	band, err := e.ledger.BandToDissolve(dir)
	if err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("no band to dissolve: %v", err))
		return false
	}
	if band.Liquidity == nil || band.Liquidity.Sign() == 0 {
		if err := e.ledger.Remove(band.TokenID); err != nil {
			e.recordFailureLocked(ctx, fmt.Sprintf("remove empty band failed: %v", err))
			return false
		}
		return true
	}

	result, err := e.collaborators.NftManager.RemovePosition(ctx, band.TokenID, band.Liquidity, e.cfg.SlippageTolerancePercent)
	if err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("remove position failed: %v", err))
		return false
	}
	if err := e.ledger.Remove(band.TokenID); err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("ledger remove after chain success failed: %v", err))
		return false
	}

	outcome.txHashes = append(outcome.txHashes, result.TxHashes.Decrease, result.TxHashes.Collect, result.TxHashes.Burn)
	e.recordGasLocked("withdraw", result.TxHashes.Burn, result.GasUsed, result.GasPriceWei)

	cp := RebalanceCheckpoint{Stage: StageWithdrawn, PendingTxHashes: outcome.txHashes}
	if err := e.persistCheckpointLocked(ctx, cp); err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("checkpoint write (Withdrawn) failed: %v", err))
		return false
	}
	return true
}

func (e *Engine) swapPhaseLocked(ctx context.Context, dir Direction, outcome *rebalanceOutcome) bool {
	e.state = StateSwap
	bal0, bal1 := e.readBalancesLocked(ctx)

	var plan *SwapPlan
	switch {
	case dir == DirectionLower && bal0.Sign() > 0:
		tokenIn, tokenOut := RebalanceSwapDirection(dir, e.cfg.Token0, e.cfg.Token1)
		plan = &SwapPlan{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: bal0}
	case dir == DirectionUpper && bal1.Sign() > 0:
		tokenIn, tokenOut := RebalanceSwapDirection(dir, e.cfg.Token0, e.cfg.Token1)
		plan = &SwapPlan{TokenIn: tokenIn, TokenOut: tokenOut, AmountIn: bal1}
	}

	if plan == nil {
		cp := RebalanceCheckpoint{Stage: StageSwapped, PendingTxHashes: outcome.txHashes}
		if err := e.persistCheckpointLocked(ctx, cp); err != nil {
			e.recordFailureLocked(ctx, fmt.Sprintf("checkpoint write (Swapped, no-op) failed: %v", err))
			return false
		}
		return true
	}

	result, err := e.collaborators.Router.ExecuteSwap(ctx, plan.TokenIn, plan.TokenOut, e.cfg.FeeTier, plan.AmountIn, e.cfg.SlippageTolerancePercent)
	if err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("swap failed: %v", err))
		return false
	}
	outcome.txHashes = append(outcome.txHashes, result.TxHash)
	e.recordGasLocked("swap", result.TxHash, result.GasUsed, result.GasPriceWei)

	cp := RebalanceCheckpoint{Stage: StageSwapped, PendingTxHashes: outcome.txHashes}
	if err := e.persistCheckpointLocked(ctx, cp); err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("checkpoint write (Swapped) failed: %v", err))
		return false
	}
	return true
}

func (e *Engine) mintPhaseLocked(ctx context.Context, dir Direction, outcome *rebalanceOutcome) bool {
	e.state = StateMint
	newTicks, err := e.ledger.NewBandTicks(dir)
	if err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("new band ticks failed: %v", err))
		return false
	}
	bal0, bal1 := e.readBalancesLocked(ctx)

	result, err := e.collaborators.NftManager.Mint(ctx, ports.MintParams{
		Token0: e.cfg.Token0, Token1: e.cfg.Token1, FeeTier: e.cfg.FeeTier,
		TickLower: newTicks.Lower, TickUpper: newTicks.Upper,
		Amount0Desired: bal0, Amount1Desired: bal1,
		SlippagePercent: e.cfg.SlippageTolerancePercent,
	})
	if err != nil {
		e.recordFailureLocked(ctx, fmt.Sprintf("mint new band failed: %v", err))
		return false
	}
	outcome.txHashes = append(outcome.txHashes, result.TxHash)
	e.recordGasLocked("mint", result.TxHash, result.GasUsed, result.GasPriceWei)

	newBand := Band{TokenID: result.TokenID, TickLower: newTicks.Lower, TickUpper: newTicks.Upper, Liquidity: result.Liquidity}
	position := InsertEnd
	if dir == DirectionLower {
		position = InsertStart
	}
	e.ledger.Add(newBand, position)

	if err := e.clearCheckpointLocked(ctx); err != nil {
		slog.Warn("core: clearing checkpoint after mint failed", "pool", e.cfg.PoolID, "err", err)
	}
	return true
}

// postRebalanceChecksLocked implements step 8 of executeBandRebalanceLocked: the
// single-rebalance and portfolio loss gates. A single-rebalance loss halts
// the engine without auto-withdrawing; a portfolio loss triggers a full
// emergency withdraw.
func (e *Engine) postRebalanceChecksLocked(ctx context.Context, outcome *rebalanceOutcome) {
	if CheckSingleRebalanceLoss(outcome.preValue, outcome.postValue) {
		msg := fmt.Sprintf("ALERT: Rebalance loss too high pool=%s pre=%.2f post=%.2f", e.cfg.PoolID, outcome.preValue, outcome.postValue)
		e.notify(ctx, msg)
		e.state = StateStopped
		return
	}

	if e.initialValueUsd != nil {
		if CheckPortfolioLoss(outcome.postValue, *e.initialValueUsd, e.cfg.MaxTotalLoss()) {
			msg := fmt.Sprintf("ALERT: Portfolio loss limit pool=%s value=%.2f initial=%.2f", e.cfg.PoolID, outcome.postValue, *e.initialValueUsd)
			e.notify(ctx, msg)
			e.emergencyWithdrawLocked(ctx)
		}
	}
}

// EmergencyWithdraw removes every band and transitions to Stopped. Exported
// wrapper for external callers (graceful shutdown, operator command); the
// internal risk gates call emergencyWithdrawLocked directly while already
// holding the lock.
func (e *Engine) EmergencyWithdraw(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emergencyWithdrawLocked(ctx)
}

func (e *Engine) emergencyWithdraw(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emergencyWithdrawLocked(ctx)
}

// emergencyWithdrawLocked best-effort removes every band. Failures during
// the loop do not abort it; the engine still transitions to Stopped and
// emits a CRITICAL notification asking for manual intervention.
func (e *Engine) emergencyWithdrawLocked(ctx context.Context) {
	bands := e.ledger.Bands()
	failed := 0
	for _, b := range bands {
		if b.Liquidity != nil && b.Liquidity.Sign() > 0 {
			if _, err := e.collaborators.NftManager.RemovePosition(ctx, b.TokenID, b.Liquidity, e.cfg.SlippageTolerancePercent); err != nil {
				failed++
				slog.Error("core: emergency withdraw: band removal failed", "pool", e.cfg.PoolID, "tokenId", b.TokenID, "err", err)
				continue
			}
		}
		_ = e.ledger.Remove(b.TokenID)
	}

	if failed > 0 {
		e.notify(ctx, fmt.Sprintf("CRITICAL: Emergency withdraw FAILED for %d/%d bands pool=%s, manual intervention required", failed, len(bands), e.cfg.PoolID))
	} else {
		e.notify(ctx, fmt.Sprintf("EMERGENCY: All %d bands closed pool=%s", len(bands), e.cfg.PoolID))
	}

	e.ledger.Clear()
	e.emergencyStop = true
	e.state = StateStopped
	e.persistLocked(ctx, nil)
	e.pushHealthLocked(ctx)
}

// Stop transitions the engine to Stopped at the next reachable boundary.
// Any in-flight rebalance runs to completion or failure; Stop only takes
// effect between ticks.
func (e *Engine) Stop(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateStopped
	e.logHistory(ctx, ports.EventShutdown, fmt.Sprintf("pool %s stopped", e.cfg.PoolID), nil)
}

func (e *Engine) recordFailureLocked(ctx context.Context, reason string) {
	e.consecutiveErrors++
	e.lastError = reason
	e.cb.RecordFailure(reason)
	slog.Error("core: rebalance step failed", "pool", e.cfg.PoolID, "reason", reason, "consecutiveErrors", e.consecutiveErrors)

	if e.consecutiveErrors >= maxConsecutiveErrors {
		e.state = StateError
		msg := fmt.Sprintf("ALERT: pool %s stopped after %d errors: %s", e.cfg.PoolID, e.consecutiveErrors, reason)
		e.notify(ctx, msg)
		e.logHistory(ctx, ports.EventError, msg, nil)
		e.emergencyStop = true
		e.emergencyWithdrawLocked(ctx)
		return
	}
	e.state = StateMonitoring
	e.pushHealthLocked(ctx)
}

// readBalancesLocked reads the wallet's current token0/token1 balances
// between phases of a rebalance. A read failure is treated as a zero balance
// rather than aborting the phase — the swap phase skips its swap on a zero
// balance and the mint phase mints with whatever balances it reads, so no
// separate error path is needed here.
func (e *Engine) readBalancesLocked(ctx context.Context) (*big.Int, *big.Int) {
	if e.collaborators.Balances == nil {
		return big.NewInt(0), big.NewInt(0)
	}
	bal0, err := e.collaborators.Balances.BalanceOf(ctx, e.cfg.Token0)
	if err != nil {
		slog.Warn("core: read token0 balance failed", "pool", e.cfg.PoolID, "err", err)
		bal0 = big.NewInt(0)
	}
	bal1, err := e.collaborators.Balances.BalanceOf(ctx, e.cfg.Token1)
	if err != nil {
		slog.Warn("core: read token1 balance failed", "pool", e.cfg.PoolID, "err", err)
		bal1 = big.NewInt(0)
	}
	return bal0, bal1
}

// recordGasLocked appends a TransactionRecord for one chain-mutating
// operation, converting gas used and gas price into a USD estimate against
// the pool's configured native-token price. A zero gas price (unset by the
// adapter) yields a zero-cost record rather than skipping it, so the
// operation still shows up in the history for its tx hash.
func (e *Engine) recordGasLocked(operation, txHash string, gasUsed uint64, gasPriceWei *big.Int) {
	if txHash == "" {
		return
	}
	costUsd := 0.0
	if gasPriceWei != nil && e.cfg.NativeTokenPriceUsd > 0 {
		gwei := new(big.Float).Quo(new(big.Float).SetInt(gasPriceWei), big.NewFloat(1e9))
		gweiF, _ := gwei.Float64()
		costUsd = gweiF * 1e-9 * float64(gasUsed) * e.cfg.NativeTokenPriceUsd
	}
	e.gasLedger.Append(TransactionRecord{
		Operation:   operation,
		TxHash:      txHash,
		GasUsed:     gasUsed,
		GasPriceWei: gasPriceWei,
		GasCostUsd:  costUsd,
		Timestamp:   time.Now(),
	})
}

func (e *Engine) persistLocked(ctx context.Context, checkpoint *RebalanceCheckpoint) {
	state := PersistedPoolState{
		Bands:               e.ledger.Bands(),
		BandTickWidth:       e.ledger.BandTickWidth(),
		LastRebalanceTimeMs: e.lastRebalanceTimeMs,
		Checkpoint:          checkpoint,
		InitialValueUsd:     e.initialValueUsd,
	}
	if err := e.collaborators.Persistence.UpdatePoolState(ctx, e.cfg.PoolID, state); err != nil {
		slog.Error("core: persist pool state failed", "pool", e.cfg.PoolID, "err", err)
		return
	}
	if err := e.collaborators.Persistence.Save(ctx); err != nil {
		slog.Error("core: lossy save failed", "pool", e.cfg.PoolID, "err", err)
	}
}

// persistCheckpointLocked writes a mid-rebalance checkpoint using the
// fail-fast path: an error here must abort the rebalance before any further
// chain call is issued.
func (e *Engine) persistCheckpointLocked(ctx context.Context, cp RebalanceCheckpoint) error {
	state := PersistedPoolState{
		Bands:               e.ledger.Bands(),
		BandTickWidth:       e.ledger.BandTickWidth(),
		LastRebalanceTimeMs: e.lastRebalanceTimeMs,
		Checkpoint:          &cp,
		InitialValueUsd:     e.initialValueUsd,
	}
	if err := e.collaborators.Persistence.UpdatePoolState(ctx, e.cfg.PoolID, state); err != nil {
		return fmt.Errorf("update pool state: %w", err)
	}
	return e.collaborators.Persistence.SaveOrThrow(ctx)
}

func (e *Engine) clearCheckpointLocked(ctx context.Context) error {
	e.persistLocked(ctx, nil)
	return nil
}

func (e *Engine) notify(ctx context.Context, msg string) {
	if e.collaborators.Notifier == nil {
		return
	}
	if err := e.collaborators.Notifier.Notify(ctx, msg); err != nil {
		slog.Warn("core: notify failed", "pool", e.cfg.PoolID, "err", err)
	}
}

func (e *Engine) logHistory(ctx context.Context, eventType ports.HistoryEventType, msg string, txHashes []string) {
	if e.collaborators.History == nil {
		return
	}
	entry := ports.HistoryEntry{ID: uuid.New().String(), PoolID: e.cfg.PoolID, Type: eventType, Message: msg, TxHashes: txHashes, Timestamp: time.Now()}
	if err := e.collaborators.History.Append(ctx, entry); err != nil {
		slog.Warn("core: history log append failed", "pool", e.cfg.PoolID, "err", err)
	}
}

func (e *Engine) pushHealth(ctx context.Context) {
	e.pushHealthLocked(ctx)
}

func (e *Engine) pushHealthLocked(ctx context.Context) {
	if e.collaborators.Health == nil {
		return
	}
	status := HealthStatus{
		PoolID:               e.cfg.PoolID,
		State:                e.state,
		BandsCount:           e.ledger.Len(),
		LastRebalanceTimeMs:  e.lastRebalanceTimeMs,
		ConsecutiveErrors:    e.consecutiveErrors,
		LastError:            e.lastError,
		CumulativeGasCostUsd: e.gasLedger.CumulativeGasCostUsd(),
	}
	if err := e.collaborators.Health.UpdatePoolStatus(ctx, e.cfg.PoolID, status); err != nil {
		slog.Warn("core: health surface update failed", "pool", e.cfg.PoolID, "err", err)
	}
}
