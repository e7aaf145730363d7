package ports

import (
	"context"
	"time"
)

// HistoryEventType names one kind of history-log / notifier event.
type HistoryEventType string

const (
	EventMint      HistoryEventType = "mint"
	EventRebalance HistoryEventType = "rebalance"
	EventGasCost   HistoryEventType = "gas_cost"
	EventDepeg     HistoryEventType = "depeg"
	EventRecovery  HistoryEventType = "recovery"
	EventError     HistoryEventType = "error"
	EventHalt      HistoryEventType = "halt"
	EventShutdown  HistoryEventType = "shutdown"
)

// HistoryEntry is one append-only history-log record.
type HistoryEntry struct {
	ID        string
	PoolID    string
	Type      HistoryEventType
	Message   string
	TxHashes  []string
	Timestamp time.Time
}

// HistoryLog is an append-only record of engine events. Loss of entries is
// tolerated: the engine logs write errors rather than propagating them,
// since a missing history row must never block a rebalance.
type HistoryLog interface {
	Append(ctx context.Context, entry HistoryEntry) error
}
