package ports

import (
	"context"

	"github.com/rangekeeper/rangekeeper/internal/core"
)

// PriceSource delivers PriceTick events for one pool roughly every
// configured poll interval. It may lose events but never delivers them
// out of order; on RPC failure it logs and keeps polling rather than
// surfacing the error to the core.
type PriceSource interface {
	Subscribe(ctx context.Context) (<-chan core.PriceTick, error)
}
