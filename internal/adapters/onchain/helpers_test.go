package onchain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlippageFloor(t *testing.T) {
	cases := []struct {
		name    string
		desired *big.Int
		percent float64
		want    *big.Int
	}{
		{"zero percent", big.NewInt(1000), 0, big.NewInt(0)},
		{"half percent", big.NewInt(1000), 0.5, big.NewInt(995)},
		{"five percent", big.NewInt(2000), 5, big.NewInt(1900)},
		{"nil desired", nil, 5, big.NewInt(0)},
		{"zero desired", big.NewInt(0), 5, big.NewInt(0)},
		{"negative percent", big.NewInt(1000), -1, big.NewInt(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, slippageFloor(tc.desired, tc.percent))
		})
	}
}

func TestDeadlineFromNow(t *testing.T) {
	before := time.Now().Add(5 * time.Minute).Unix()
	got := deadlineFromNow(5 * time.Minute)
	after := time.Now().Add(5 * time.Minute).Unix()
	assert.GreaterOrEqual(t, got.Int64(), before)
	assert.LessOrEqual(t, got.Int64(), after)
}

func TestMaxUint128(t *testing.T) {
	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	assert.Equal(t, want, maxUint128())
}

func TestWeiToGwei(t *testing.T) {
	assert.Equal(t, 0.0, weiToGwei(nil))
	assert.Equal(t, 1.0, weiToGwei(big.NewInt(1_000_000_000)))
	assert.Equal(t, 2.5, weiToGwei(big.NewInt(2_500_000_000)))
}
