// Package storage persists pool engine state, history, and health snapshots
// to SQLite: a single durable-state table keyed by pool ID, an append-only
// history log, and a health-snapshot table, grounded on the teacher's
// single-writer SQLite adapter.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rangekeeper/rangekeeper/internal/core"
	"github.com/rangekeeper/rangekeeper/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS pool_state (
    pool_id            TEXT PRIMARY KEY,
    bands_json         TEXT    NOT NULL DEFAULT '[]',
    band_tick_width    INTEGER NOT NULL DEFAULT 0,
    last_rebalance_ms  INTEGER NOT NULL DEFAULT 0,
    last_nonce         INTEGER,
    checkpoint_json    TEXT,
    initial_value_usd  REAL,
    updated_at         DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id    TEXT NOT NULL DEFAULT '',
    pool_id     TEXT NOT NULL,
    event_type  TEXT NOT NULL,
    message     TEXT NOT NULL,
    tx_hashes   TEXT NOT NULL DEFAULT '[]',
    occurred_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_pool_time ON history(pool_id, occurred_at DESC);

CREATE TABLE IF NOT EXISTS health_status (
    pool_id                 TEXT PRIMARY KEY,
    state                   TEXT    NOT NULL,
    bands_count             INTEGER NOT NULL DEFAULT 0,
    last_rebalance_ms       INTEGER NOT NULL DEFAULT 0,
    consecutive_errors      INTEGER NOT NULL DEFAULT 0,
    last_error              TEXT    NOT NULL DEFAULT '',
    cumulative_gas_cost_usd REAL    NOT NULL DEFAULT 0,
    updated_at              DATETIME NOT NULL
);
`

const retentionHistory = 30 * 24 * time.Hour

// SQLiteStorage implements ports.Persistence, ports.HistoryLog, and
// ports.HealthSurface over a single SQLite file.
type SQLiteStorage struct {
	db *sql.DB
	mu sync.Mutex // serializes upserts; modernc.org/sqlite allows one writer at a time
}

var (
	_ ports.Persistence   = (*SQLiteStorage)(nil)
	_ ports.HistoryLog    = (*SQLiteStorage)(nil)
	_ ports.HealthSurface = (*SQLiteStorage)(nil)
)

// NewSQLiteStorage opens (or creates) the database at path, applies the
// schema, and prunes history rows past retentionHistory.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// GetPoolState loads the persisted state for poolID. A pool with no row yet
// returns a zero-value state and a nil error — there is nothing to recover
// from on a brand-new pool.
func (s *SQLiteStorage) GetPoolState(ctx context.Context, poolID string) (core.PersistedPoolState, error) {
	var bandsJSON, checkpointJSON sql.NullString
	var bandTickWidth int
	var lastRebalanceMs int64
	var lastNonce sql.NullInt64
	var initialValueUsd sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT bands_json, band_tick_width, last_rebalance_ms, last_nonce, checkpoint_json, initial_value_usd
		FROM pool_state WHERE pool_id = ?`, poolID,
	).Scan(&bandsJSON, &bandTickWidth, &lastRebalanceMs, &lastNonce, &checkpointJSON, &initialValueUsd)

	if err == sql.ErrNoRows {
		return core.PersistedPoolState{}, nil
	}
	if err != nil {
		return core.PersistedPoolState{}, fmt.Errorf("storage.GetPoolState: query %s: %w", poolID, err)
	}

	state := core.PersistedPoolState{
		BandTickWidth:       bandTickWidth,
		LastRebalanceTimeMs: lastRebalanceMs,
	}
	if bandsJSON.Valid && bandsJSON.String != "" {
		if err := json.Unmarshal([]byte(bandsJSON.String), &state.Bands); err != nil {
			return core.PersistedPoolState{}, fmt.Errorf("storage.GetPoolState: decode bands for %s: %w", poolID, err)
		}
	}
	if lastNonce.Valid {
		n := uint64(lastNonce.Int64)
		state.LastNonce = &n
	}
	if checkpointJSON.Valid && checkpointJSON.String != "" {
		var cp core.RebalanceCheckpoint
		if err := json.Unmarshal([]byte(checkpointJSON.String), &cp); err != nil {
			return core.PersistedPoolState{}, fmt.Errorf("storage.GetPoolState: decode checkpoint for %s: %w", poolID, err)
		}
		state.Checkpoint = &cp
	}
	if initialValueUsd.Valid {
		v := initialValueUsd.Float64
		state.InitialValueUsd = &v
	}
	return state, nil
}

// UpdatePoolState overwrites poolID's persisted state with partial. Every
// call performs a real write: this is the checkpoint path between
// chain-mutating operations, so a cache-based skip would risk silently
// dropping a checkpoint the caller believes is durable.
func (s *SQLiteStorage) UpdatePoolState(ctx context.Context, poolID string, partial core.PersistedPoolState) error {
	bandsJSON, err := json.Marshal(partial.Bands)
	if err != nil {
		return fmt.Errorf("storage.UpdatePoolState: encode bands: %w", err)
	}
	var checkpointJSON []byte
	if partial.Checkpoint != nil {
		checkpointJSON, err = json.Marshal(partial.Checkpoint)
		if err != nil {
			return fmt.Errorf("storage.UpdatePoolState: encode checkpoint: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastNonce any
	if partial.LastNonce != nil {
		lastNonce = int64(*partial.LastNonce)
	}
	var initialValueUsd any
	if partial.InitialValueUsd != nil {
		initialValueUsd = *partial.InitialValueUsd
	}
	var checkpointArg any
	if len(checkpointJSON) > 0 {
		checkpointArg = string(checkpointJSON)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pool_state (pool_id, bands_json, band_tick_width, last_rebalance_ms, last_nonce, checkpoint_json, initial_value_usd, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pool_id) DO UPDATE SET
		  bands_json        = excluded.bands_json,
		  band_tick_width   = excluded.band_tick_width,
		  last_rebalance_ms = excluded.last_rebalance_ms,
		  last_nonce        = excluded.last_nonce,
		  checkpoint_json   = excluded.checkpoint_json,
		  initial_value_usd = excluded.initial_value_usd,
		  updated_at        = excluded.updated_at`,
		poolID, string(bandsJSON), partial.BandTickWidth, partial.LastRebalanceTimeMs,
		lastNonce, checkpointArg, initialValueUsd, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.UpdatePoolState: upsert %s: %w", poolID, err)
	}
	return nil
}

// Save is the lossy write path: it returns any error, and the engine logs
// it without aborting.
func (s *SQLiteStorage) Save(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`); err != nil {
		return fmt.Errorf("storage.Save: checkpoint: %w", err)
	}
	return nil
}

// SaveOrThrow is the fail-fast write path used between chain-mutating
// operations: it behaves identically to Save, but callers propagate its
// error rather than swallowing it.
func (s *SQLiteStorage) SaveOrThrow(ctx context.Context) error {
	return s.Save(ctx)
}

// Append inserts one history entry. An entry arriving without an ID (a
// caller that didn't generate one) gets a fresh uuid so every row has a
// stable external identifier, not just the table's internal autoincrement.
func (s *SQLiteStorage) Append(ctx context.Context, entry ports.HistoryEntry) error {
	txHashesJSON, err := json.Marshal(entry.TxHashes)
	if err != nil {
		return fmt.Errorf("storage.Append: encode tx hashes: %w", err)
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	entryID := entry.ID
	if entryID == "" {
		entryID = uuid.New().String()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (entry_id, pool_id, event_type, message, tx_hashes, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entryID, entry.PoolID, string(entry.Type), entry.Message, string(txHashesJSON), ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.Append: insert: %w", err)
	}
	return nil
}

// GetHistory returns poolID's history entries in [from, to], newest first.
func (s *SQLiteStorage) GetHistory(ctx context.Context, poolID string, from, to time.Time) ([]ports.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, pool_id, event_type, message, tx_hashes, occurred_at
		FROM history WHERE pool_id = ? AND occurred_at BETWEEN ? AND ?
		ORDER BY occurred_at DESC`, poolID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.GetHistory: query: %w", err)
	}
	defer rows.Close()

	var entries []ports.HistoryEntry
	for rows.Next() {
		var e ports.HistoryEntry
		var typeStr, txHashesJSON string
		var occurredAt time.Time
		if err := rows.Scan(&e.ID, &e.PoolID, &typeStr, &e.Message, &txHashesJSON, &occurredAt); err != nil {
			return nil, fmt.Errorf("storage.GetHistory: scan: %w", err)
		}
		e.Type = ports.HistoryEventType(typeStr)
		e.Timestamp = occurredAt
		if txHashesJSON != "" {
			if err := json.Unmarshal([]byte(txHashesJSON), &e.TxHashes); err != nil {
				return nil, fmt.Errorf("storage.GetHistory: decode tx hashes: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdatePoolStatus upserts poolID's health snapshot.
func (s *SQLiteStorage) UpdatePoolStatus(ctx context.Context, poolID string, status core.HealthStatus) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO health_status (pool_id, state, bands_count, last_rebalance_ms, consecutive_errors, last_error, cumulative_gas_cost_usd, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pool_id) DO UPDATE SET
		  state                   = excluded.state,
		  bands_count             = excluded.bands_count,
		  last_rebalance_ms       = excluded.last_rebalance_ms,
		  consecutive_errors      = excluded.consecutive_errors,
		  last_error              = excluded.last_error,
		  cumulative_gas_cost_usd = excluded.cumulative_gas_cost_usd,
		  updated_at              = excluded.updated_at`,
		poolID, string(status.State), status.BandsCount, status.LastRebalanceTimeMs,
		status.ConsecutiveErrors, status.LastError, status.CumulativeGasCostUsd, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.UpdatePoolStatus: upsert %s: %w", poolID, err)
	}
	return nil
}

// GetPoolStatus returns the last health snapshot pushed for poolID.
func (s *SQLiteStorage) GetPoolStatus(ctx context.Context, poolID string) (core.HealthStatus, error) {
	var status core.HealthStatus
	var stateStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT state, bands_count, last_rebalance_ms, consecutive_errors, last_error, cumulative_gas_cost_usd
		FROM health_status WHERE pool_id = ?`, poolID,
	).Scan(&stateStr, &status.BandsCount, &status.LastRebalanceTimeMs, &status.ConsecutiveErrors, &status.LastError, &status.CumulativeGasCostUsd)
	if err == sql.ErrNoRows {
		return core.HealthStatus{PoolID: poolID}, nil
	}
	if err != nil {
		return core.HealthStatus{}, fmt.Errorf("storage.GetPoolStatus: query %s: %w", poolID, err)
	}
	status.PoolID = poolID
	status.State = core.EngineState(stateStr)
	return status, nil
}

// pruneOld deletes history rows older than retentionHistory.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionHistory)
	s.db.ExecContext(ctx, `DELETE FROM history WHERE occurred_at < ?`, cutoff)
}
