package storage_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rangekeeper/rangekeeper/internal/adapters/storage"
	"github.com/rangekeeper/rangekeeper/internal/core"
	"github.com/rangekeeper/rangekeeper/internal/ports"
)

func TestSQLiteStorage_GetPoolState_NotFound(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	state, err := db.GetPoolState(context.Background(), "pool-unknown")
	require.NoError(t, err)
	assert.Empty(t, state.Bands)
	assert.Nil(t, state.Checkpoint)
	assert.Nil(t, state.LastNonce)
}

func TestSQLiteStorage_UpdateAndGetPoolState_RoundTrip(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	nonce := uint64(42)
	initialValue := 12345.67
	state := core.PersistedPoolState{
		Bands: []core.Band{
			{Index: 0, TokenID: "101", TickLower: -84, TickUpper: -42, Liquidity: big.NewInt(1_000_000)},
			{Index: 1, TokenID: "102", TickLower: -42, TickUpper: 0, Liquidity: big.NewInt(2_000_000)},
		},
		BandTickWidth:       42,
		LastRebalanceTimeMs: 1_700_000_000_000,
		LastNonce:           &nonce,
		Checkpoint:          &core.RebalanceCheckpoint{Stage: core.StageSwapped, PendingTxHashes: []string{"0xabc", "0xdef"}},
		InitialValueUsd:     &initialValue,
	}

	require.NoError(t, db.UpdatePoolState(ctx, "pool-1", state))

	loaded, err := db.GetPoolState(ctx, "pool-1")
	require.NoError(t, err)

	require.Len(t, loaded.Bands, 2)
	assert.Equal(t, "101", loaded.Bands[0].TokenID)
	assert.Equal(t, -84, loaded.Bands[0].TickLower)
	assert.Equal(t, big.NewInt(1_000_000), loaded.Bands[0].Liquidity)
	assert.Equal(t, 42, loaded.BandTickWidth)
	assert.Equal(t, int64(1_700_000_000_000), loaded.LastRebalanceTimeMs)
	require.NotNil(t, loaded.LastNonce)
	assert.Equal(t, uint64(42), *loaded.LastNonce)
	require.NotNil(t, loaded.Checkpoint)
	assert.Equal(t, core.StageSwapped, loaded.Checkpoint.Stage)
	assert.Equal(t, []string{"0xabc", "0xdef"}, loaded.Checkpoint.PendingTxHashes)
	require.NotNil(t, loaded.InitialValueUsd)
	assert.InDelta(t, initialValue, *loaded.InitialValueUsd, 0.001)
}

func TestSQLiteStorage_UpdatePoolState_OverwritesPreviousCheckpoint(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	withCheckpoint := core.PersistedPoolState{
		Checkpoint: &core.RebalanceCheckpoint{Stage: core.StageWithdrawn, PendingTxHashes: []string{"0x1"}},
	}
	require.NoError(t, db.UpdatePoolState(ctx, "pool-2", withCheckpoint))

	// Clearing the checkpoint (the crash-recovery path) must actually persist nil.
	require.NoError(t, db.UpdatePoolState(ctx, "pool-2", core.PersistedPoolState{}))

	loaded, err := db.GetPoolState(ctx, "pool-2")
	require.NoError(t, err)
	assert.Nil(t, loaded.Checkpoint)
	assert.Empty(t, loaded.Bands)
}

func TestSQLiteStorage_Append_And_GetHistory_NewestFirst(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	require.NoError(t, db.Append(ctx, ports.HistoryEntry{
		PoolID: "pool-1", Type: ports.EventMint, Message: "minted band 0",
		Timestamp: base,
	}))
	require.NoError(t, db.Append(ctx, ports.HistoryEntry{
		PoolID: "pool-1", Type: ports.EventRebalance, Message: "rebalanced lower",
		TxHashes: []string{"0xaaa", "0xbbb"}, Timestamp: base.Add(time.Minute),
	}))
	require.NoError(t, db.Append(ctx, ports.HistoryEntry{
		PoolID: "pool-other", Type: ports.EventMint, Message: "different pool",
		Timestamp: base,
	}))

	entries, err := db.GetHistory(ctx, "pool-1", base.Add(-time.Minute), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ports.EventRebalance, entries[0].Type)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, entries[0].TxHashes)
	assert.Equal(t, ports.EventMint, entries[1].Type)
	assert.NotEmpty(t, entries[0].ID, "Append should generate an entry ID when the caller doesn't supply one")
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestSQLiteStorage_UpdatePoolStatus_RoundTrip(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	status := core.HealthStatus{
		PoolID:               "pool-1",
		State:                core.StateMonitoring,
		BandsCount:           7,
		ConsecutiveErrors:    1,
		LastError:            "rpc timeout",
		CumulativeGasCostUsd: 3.21,
	}
	require.NoError(t, db.UpdatePoolStatus(ctx, "pool-1", status))

	loaded, err := db.GetPoolStatus(ctx, "pool-1")
	require.NoError(t, err)
	assert.Equal(t, "pool-1", loaded.PoolID)
	assert.Equal(t, core.StateMonitoring, loaded.State)
	assert.Equal(t, 7, loaded.BandsCount)
	assert.Equal(t, 1, loaded.ConsecutiveErrors)
	assert.Equal(t, "rpc timeout", loaded.LastError)
	assert.InDelta(t, 3.21, loaded.CumulativeGasCostUsd, 0.001)
}

func TestSQLiteStorage_GetPoolStatus_NotFound(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	status, err := db.GetPoolStatus(context.Background(), "pool-unknown")
	require.NoError(t, err)
	assert.Equal(t, "pool-unknown", status.PoolID)
	assert.Equal(t, core.EngineState(""), status.State)
}
