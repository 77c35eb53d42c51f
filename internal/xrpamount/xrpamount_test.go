package xrpamount

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDropsConversion(t *testing.T) {
	tt := []struct {
		description string
		xrp         float64
		drops       int64
	}{
		{"one XRP", 1.0, 1_000_000},
		{"fractional XRP", 100.5, 100_500_000},
		{"zero", 0, 0},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			require.Equal(t, tc.drops, FromDecimalXRP(tc.xrp).Drops())
			require.Equal(t, tc.xrp, FromDrops(tc.drops).DecimalXRP())
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := FromDrops(300)
	b := FromDrops(100)

	require.Equal(t, FromDrops(400), a.Add(b))
	require.Equal(t, FromDrops(200), a.Sub(b))
	require.True(t, a.IsPositive())
	require.True(t, b.Sub(a).IsNegative())
	require.True(t, a.Sub(a).IsZero())
}

func TestFormatXRP(t *testing.T) {
	require.Equal(t, "100.500000 XRP", FromDrops(100_500_000).FormatXRP())
	require.Equal(t, "1000000", FromDrops(1_000_000).String())
}
