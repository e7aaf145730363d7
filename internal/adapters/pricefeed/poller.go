// Package pricefeed implements ports.PriceSource by polling a Uniswap
// V3-style pool's slot0/liquidity accessors on a fixed interval, grounded
// on the teacher's Scanner.Run loop (run once immediately, then tick) and
// on blackholedex's read-only eth_call pattern for pool state.
package pricefeed

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rangekeeper/rangekeeper/internal/core"
	"github.com/rangekeeper/rangekeeper/internal/ports"
)

var _ ports.PriceSource = (*Poller)(nil)

// Poller implements ports.PriceSource over a direct RPC connection,
// independent of the signing onchain.Client — it only ever reads.
type Poller struct {
	eth      *ethclient.Client
	pool     common.Address
	interval time.Duration
}

// NewPoller polls poolAddress on the given ethclient connection every
// interval.
func NewPoller(eth *ethclient.Client, poolAddress string, interval time.Duration) *Poller {
	return &Poller{eth: eth, pool: common.HexToAddress(poolAddress), interval: interval}
}

// Subscribe starts the polling loop and returns a channel of PriceTicks.
// The channel has capacity 1 and drops the oldest pending tick rather than
// blocking a slow consumer — the port's contract allows losing events but
// never delivering them out of order, and a backed-up channel would mean
// feeding the engine a stale tick anyway. The channel is closed when ctx
// is done.
func (p *Poller) Subscribe(ctx context.Context) (<-chan core.PriceTick, error) {
	ch := make(chan core.PriceTick, 1)

	go func() {
		defer close(ch)

		if tick, ok := p.poll(ctx); ok {
			p.publish(ch, tick)
		}

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if tick, ok := p.poll(ctx); ok {
					p.publish(ch, tick)
				}
			}
		}
	}()

	return ch, nil
}

// publish delivers tick, discarding any stale pending tick to make room
// rather than blocking.
func (p *Poller) publish(ch chan core.PriceTick, tick core.PriceTick) {
	select {
	case ch <- tick:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- tick:
		default:
		}
	}
}

// poll reads slot0 and liquidity off the pool. On RPC failure it logs and
// reports no tick rather than surfacing the error — the engine simply
// waits for the next interval.
func (p *Poller) poll(ctx context.Context) (core.PriceTick, bool) {
	sqrtPriceX96, tick, err := p.readSlot0(ctx)
	if err != nil {
		slog.Warn("pricefeed: slot0 read failed", "pool", p.pool.Hex(), "err", err)
		return core.PriceTick{}, false
	}

	liquidity, err := p.readLiquidity(ctx)
	if err != nil {
		slog.Warn("pricefeed: liquidity read failed", "pool", p.pool.Hex(), "err", err)
		return core.PriceTick{}, false
	}

	return core.PriceTick{
		Tick:         tick,
		SqrtPriceX96: sqrtPriceX96,
		Liquidity:    liquidity,
		TimestampMs:  time.Now().UnixMilli(),
	}, true
}

func (p *Poller) readSlot0(ctx context.Context) (*big.Int, int, error) {
	callData, err := poolABI.Pack("slot0")
	if err != nil {
		return nil, 0, err
	}
	result, err := p.call(ctx, callData)
	if err != nil {
		return nil, 0, err
	}
	vals, err := poolABI.Unpack("slot0", result)
	if err != nil || len(vals) < 2 {
		return nil, 0, err
	}
	sqrtPriceX96 := vals[0].(*big.Int)
	tick := int(vals[1].(*big.Int).Int64())
	return sqrtPriceX96, tick, nil
}

func (p *Poller) readLiquidity(ctx context.Context) (*big.Int, error) {
	callData, err := poolABI.Pack("liquidity")
	if err != nil {
		return nil, err
	}
	result, err := p.call(ctx, callData)
	if err != nil {
		return nil, err
	}
	vals, err := poolABI.Unpack("liquidity", result)
	if err != nil || len(vals) == 0 {
		return nil, err
	}
	return vals[0].(*big.Int), nil
}

func (p *Poller) call(ctx context.Context, data []byte) ([]byte, error) {
	return p.eth.CallContract(ctx, ethereum.CallMsg{To: &p.pool, Data: data}, nil)
}
