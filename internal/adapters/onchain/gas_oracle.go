package onchain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/rangekeeper/rangekeeper/internal/ports"
)

// gasEmaWeight is the weight given to the existing baseline on each update
// (0.95 old / 0.05 new).
const gasEmaWeight = 0.95

// gasSpikeMultiplier is how far above the EMA baseline a reading must climb
// to count as a spike.
const gasSpikeMultiplier = 10.0

var _ ports.GasOracle = (*GasOracle)(nil)

// GasOracle implements ports.GasOracle over the chain's own suggested gas
// price, smoothing readings into an exponential moving-average baseline so
// a transient spike can be told apart from a genuine price-regime shift.
// The engine's risk checks keep their own baseline; this one tracks the
// same statistic independently because it lives across the port boundary.
type GasOracle struct {
	client *Client

	mu       sync.Mutex
	baseline float64
	seen     bool
}

// NewGasOracle wraps client for gas-price polling.
func NewGasOracle(client *Client) *GasOracle {
	return &GasOracle{client: client}
}

// GetGasInfo returns the chain's current suggested gas price in gwei,
// folding the reading into the EMA baseline before returning it.
func (g *GasOracle) GetGasInfo(ctx context.Context) (ports.GasInfo, error) {
	priceWei, err := g.client.gasPrice(ctx)
	if err != nil {
		return ports.GasInfo{}, fmt.Errorf("onchain.GetGasInfo: %w", err)
	}

	gwei := weiToGwei(priceWei)

	g.mu.Lock()
	if !g.seen {
		g.baseline = gwei
		g.seen = true
	} else {
		g.baseline = gasEmaWeight*g.baseline + (1-gasEmaWeight)*gwei
	}
	g.mu.Unlock()

	return ports.GasInfo{GasPriceGwei: gwei, IsEip1559: true}, nil
}

// IsSpike reports whether gasPriceGwei exceeds the tracked baseline by
// gasSpikeMultiplier. Before any reading has been taken, nothing is a
// spike — there is no baseline yet to compare against.
func (g *GasOracle) IsSpike(gasPriceGwei float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seen || g.baseline <= 0 {
		return false
	}
	return gasPriceGwei > g.baseline*gasSpikeMultiplier
}

func weiToGwei(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e9))
	out, _ := f.Float64()
	return out
}
