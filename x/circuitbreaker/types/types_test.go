package types

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestNewLiquidityRange(t *testing.T) {
	tests := []struct {
		name     string
		initial  uint64
		limit    string
		min, max uint64
	}{
		{"twenty percent", 1000, "0.2", 800, 1200},
		{"rounds the difference down", 999, "0.1", 900, 1098},
		{"full limit", 1000, "1", 0, 2000},
		{"empty pool", 0, "0.2", 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewLiquidityRange(math.NewUint(tc.initial), math.LegacyMustNewDecFromStr(tc.limit))
			require.Equal(t, math.NewUint(tc.min), r.MinLimit)
			require.Equal(t, math.NewUint(tc.max), r.MaxLimit)
			require.True(t, r.Contains(math.NewUint(tc.initial)))
		})
	}
}

func TestValidateTradeVolumeLimit(t *testing.T) {
	require.NoError(t, ValidateTradeVolumeLimit(math.LegacyOneDec()))
	require.NoError(t, ValidateTradeVolumeLimit(math.LegacyMustNewDecFromStr("0.0001")))
	require.Error(t, ValidateTradeVolumeLimit(math.LegacyZeroDec()))
	require.Error(t, ValidateTradeVolumeLimit(math.LegacyMustNewDecFromStr("-0.1")))
	require.Error(t, ValidateTradeVolumeLimit(math.LegacyMustNewDecFromStr("1.01")))
	require.Error(t, ValidateTradeVolumeLimit(math.LegacyDec{}))
}
