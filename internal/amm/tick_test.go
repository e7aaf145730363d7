package amm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeToTickSpacing(t *testing.T) {
	cases := map[int]int{
		100:   1,
		500:   10,
		3000:  60,
		10000: 200,
		1234:  200, // unknown fee tier falls back to widest spacing
	}
	for fee, want := range cases {
		assert.Equal(t, want, FeeToTickSpacing(fee), "fee=%d", fee)
	}
}

func TestAlignTick(t *testing.T) {
	cases := []struct {
		tick, spacing, want int
	}{
		{100, 60, 120},
		{89, 60, 60},
		{90, 60, 120}, // tie breaks away from zero
		{-90, 60, -120},
		{-89, 60, -60},
		{0, 60, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, AlignTick(c.tick, c.spacing), "tick=%d spacing=%d", c.tick, c.spacing)
	}
}

func TestTickToPriceRoundTrip(t *testing.T) {
	for _, tick := range []int{-10000, -1, 0, 1, 10000} {
		price := TickToPrice(tick)
		back := PriceToTick(price)
		assert.InDelta(t, float64(tick), back, 1e-6)
	}
}

func TestLayout_InitialMintAtTickZero(t *testing.T) {
	// feeTier=100 -> spacing=1, width=3% -> bandTickWidth should come out
	// to 42.
	layout, err := Layout(0, 3.0, 100)
	require.NoError(t, err)
	assert.Equal(t, 42, layout.BandTickWidth)
	assert.Len(t, layout.Bands, BandCount)

	for i := 0; i < BandCount-1; i++ {
		assert.Equal(t, layout.Bands[i].Upper, layout.Bands[i+1].Lower, "band %d not contiguous with %d", i, i+1)
		assert.Equal(t, layout.BandTickWidth, layout.Bands[i].Upper-layout.Bands[i].Lower)
	}
}

func TestLayout_SymmetricAroundCenter(t *testing.T) {
	layout, err := Layout(1000, 5.0, 500)
	require.NoError(t, err)

	totalLower := layout.Bands[0].Lower
	totalUpper := layout.Bands[BandCount-1].Upper
	mid := (totalLower + totalUpper) / 2

	alignedCenter := AlignTick(1000, FeeToTickSpacing(500))
	assert.InDelta(t, alignedCenter, mid, float64(layout.BandTickWidth))
}

func TestLayout_CollapsesNearTickBounds(t *testing.T) {
	_, err := Layout(MaxTick, 50.0, 10000)
	assert.ErrorIs(t, err, ErrLayoutCollapsed)
}

func TestClassifyIndex(t *testing.T) {
	cases := []struct {
		name     string
		index    int
		belowAll bool
		want     Classification
	}{
		{"center", 3, false, Safe},
		{"safe left", 2, false, Safe},
		{"safe right", 4, false, Safe},
		{"lower trigger near", 1, false, Lower},
		{"lower trigger far", 0, false, Lower},
		{"upper trigger near", 5, false, Upper},
		{"upper trigger far", 6, false, Upper},
		{"below all bands", -1, true, Lower},
		{"above all bands", -1, false, Upper},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, ClassifyIndex(c.index, c.belowAll))
		})
	}
}
