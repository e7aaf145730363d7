package ports

import (
	"context"

	"github.com/rangekeeper/rangekeeper/internal/core"
)

// HealthSurface is a process-wide observability sink: the engine pushes its
// HealthStatus on every transition but never reads it back.
type HealthSurface interface {
	UpdatePoolStatus(ctx context.Context, poolID string, status core.HealthStatus) error
}
