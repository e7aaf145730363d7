// Package amm implements the tick/price and liquidity math shared by the
// rebalance engine: tick <-> price conversion, tick-spacing alignment, band
// layout, and concentrated-liquidity amount math. All functions are pure.
package amm

import "math"

// tickBase is the AMM's per-tick price ratio: price = tickBase^tick.
const tickBase = 1.0001

// MinTick and MaxTick bound the usable tick range (Uniswap V3 convention).
const (
	MinTick = -887272
	MaxTick = 887272
)

// TickToPrice converts a tick to its price ratio (token1 per token0, before
// decimal adjustment).
func TickToPrice(tick int) float64 {
	return math.Pow(tickBase, float64(tick))
}

// PriceToTick is the inverse of TickToPrice. Returns the (possibly
// fractional) tick; callers align it to spacing with AlignTick.
func PriceToTick(price float64) float64 {
	return math.Log(price) / math.Log(tickBase)
}

// FeeToTickSpacing returns the tick spacing for a pool fee tier, in the
// AMM's standard fee/spacing table. Unknown fee tiers fall back to the
// widest spacing (200), matching the AMM's conservative default.
func FeeToTickSpacing(feeTier int) int {
	switch feeTier {
	case 100:
		return 1
	case 500:
		return 10
	case 3000:
		return 60
	case 10000:
		return 200
	default:
		return 200
	}
}

// AlignTick rounds t to the nearest multiple of spacing, breaking ties away
// from zero, matching the AMM's nearestUsableTick convention.
func AlignTick(t, spacing int) int {
	if spacing <= 0 {
		return t
	}
	q := float64(t) / float64(spacing)
	var rounded float64
	if q >= 0 {
		rounded = math.Floor(q + 0.5)
	} else {
		rounded = math.Ceil(q - 0.5)
	}
	return int(rounded) * spacing
}

// BandCount is the fixed number of concentrated-liquidity positions the
// engine maintains around the market price.
const BandCount = 7

// centerBandIndex is the index of the band straddling the aligned center
// tick; three bands sit on either side of it.
const centerBandIndex = BandCount / 2

// TickRange is a half-open tick interval [Lower, Upper).
type TickRange struct {
	Lower int
	Upper int
}

// BandLayout is the result of laying 7 contiguous, equal-width bands around
// a center tick.
type BandLayout struct {
	Bands         [BandCount]TickRange
	BandTickWidth int
}

// Layout computes the 7-band layout around centerTick for a total range
// width of widthPercent (e.g. 3.0 for +/-~1.5%), at the given fee tier.
//
// Mirrors the AMM's own layout algorithm:
//  1. tickOffset = floor(log(1 + w/200) / log(1.0001))          (half-width)
//  2. rawBandWidth = floor(2*tickOffset / 7)
//  3. bandTickWidth = max(floor(rawBandWidth/spacing)*spacing, spacing)
//  4. align center, place band 3 symmetrically, remaining six contiguous
//  5. clamp to [MinTick, MaxTick]; a collapsed band fails the layout
func Layout(centerTick int, widthPercent float64, feeTier int) (BandLayout, error) {
	spacing := FeeToTickSpacing(feeTier)

	tickOffset := int(math.Floor(math.Log(1+widthPercent/200) / math.Log(tickBase)))
	rawBandWidth := (2 * tickOffset) / BandCount
	bandTickWidth := (rawBandWidth / spacing) * spacing
	if bandTickWidth < spacing {
		bandTickWidth = spacing
	}

	alignedCenter := AlignTick(centerTick, spacing)

	var layout BandLayout
	layout.BandTickWidth = bandTickWidth

	centerLower := alignedCenter - bandTickWidth/2
	centerLower = AlignTick(centerLower, spacing)

	layout.Bands[centerBandIndex] = TickRange{
		Lower: centerLower,
		Upper: centerLower + bandTickWidth,
	}

	for i := centerBandIndex - 1; i >= 0; i-- {
		upper := layout.Bands[i+1].Lower
		layout.Bands[i] = TickRange{Lower: upper - bandTickWidth, Upper: upper}
	}
	for i := centerBandIndex + 1; i < BandCount; i++ {
		lower := layout.Bands[i-1].Upper
		layout.Bands[i] = TickRange{Lower: lower, Upper: lower + bandTickWidth}
	}

	for i := range layout.Bands {
		if layout.Bands[i].Lower < MinTick {
			layout.Bands[i].Lower = MinTick
		}
		if layout.Bands[i].Upper > MaxTick {
			layout.Bands[i].Upper = MaxTick
		}
		if layout.Bands[i].Lower >= layout.Bands[i].Upper {
			return BandLayout{}, ErrLayoutCollapsed
		}
	}

	return layout, nil
}

// Classification describes where a tick sits relative to the band ledger.
type Classification int

const (
	// Safe means the tick is in the center three bands (index 2,3,4).
	Safe Classification = iota
	// Lower means price drifted down into the two lower bands (index 0,1)
	// or below all bands — a rebalance toward lower ticks is due.
	Lower
	// Upper means price drifted up into the two upper bands (index 5,6)
	// or above all bands — a rebalance toward upper ticks is due.
	Upper
	// NoAction is reserved for band counts other than the steady-state 7;
	// classify never returns it while the ledger holds exactly 7 bands.
	NoAction
)

// ClassifyIndex maps a band index (0..6, or -1 for "outside all bands") to
// a Classification: center 3 (2,3,4) are safe; 0,1 (or below all bands) are
// a lower trigger; 5,6 (or above all bands) are an upper trigger.
func ClassifyIndex(index int, belowAll bool) Classification {
	switch {
	case index < 0:
		if belowAll {
			return Lower
		}
		return Upper
	case index == 2 || index == 3 || index == 4:
		return Safe
	case index == 0 || index == 1:
		return Lower
	case index == 5 || index == 6:
		return Upper
	default:
		return NoAction
	}
}
