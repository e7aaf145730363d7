package ports

import "context"

// GasInfo is one gas-price reading.
type GasInfo struct {
	GasPriceGwei float64
	IsEip1559    bool
}

// GasOracle reports current gas prices and flags spikes against a rolling
// EMA baseline (0.95/0.05 weighting, 10x spike multiplier by default).
type GasOracle interface {
	GetGasInfo(ctx context.Context) (GasInfo, error)
	IsSpike(gasPriceGwei float64) bool
}
