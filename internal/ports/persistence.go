package ports

import (
	"context"

	"github.com/rangekeeper/rangekeeper/internal/core"
)

// Persistence is the durable-state contract for one pool's engine state.
type Persistence interface {
	GetPoolState(ctx context.Context, poolID string) (core.PersistedPoolState, error)

	// UpdatePoolState overwrites poolID's persisted state with partial.
	UpdatePoolState(ctx context.Context, poolID string, partial core.PersistedPoolState) error

	// Save is the lossy write path: the caller logs a returned error and
	// does not propagate it. Used for the terminal persist that clears a
	// checkpoint — a lost write there only costs a redundant recovery pass
	// on next boot, which is safe.
	Save(ctx context.Context) error

	// SaveOrThrow is the fail-fast write path: an error is propagated to the
	// caller, who must abort the rebalance before issuing the next chain
	// call. Used for checkpoint writes between chain-mutating operations.
	SaveOrThrow(ctx context.Context) error
}
