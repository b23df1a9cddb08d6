package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openalpha/omnipool/api/types"
)

func TestTradeTapeNewestFirst(t *testing.T) {
	tape := NewTradeTape(10)
	for i := 0; i < 3; i++ {
		trade := tape.Append(types.Trade{Kind: "sell", AmountIn: "1000"})
		require.Equal(t, uint64(i+1), trade.Sequence)
	}

	latest := tape.Latest(2)
	require.Len(t, latest, 2)
	require.Equal(t, uint64(3), latest[0].Sequence)
	require.Equal(t, uint64(2), latest[1].Sequence)

	require.Len(t, tape.Latest(100), 3)
	require.Empty(t, tape.Latest(0))
}

func TestTradeTapeEvictsOldest(t *testing.T) {
	tape := NewTradeTape(3)
	for i := 0; i < 5; i++ {
		tape.Append(types.Trade{})
	}
	require.Equal(t, 3, tape.Len())

	latest := tape.Latest(10)
	require.Len(t, latest, 3)
	require.Equal(t, uint64(5), latest[0].Sequence)
	require.Equal(t, uint64(3), latest[2].Sequence)
}

func TestTradeTapeDefaultCapacity(t *testing.T) {
	tape := NewTradeTape(0)
	for i := 0; i < 1001; i++ {
		tape.Append(types.Trade{})
	}
	require.Equal(t, 1000, tape.Len())
	require.Equal(t, uint64(2), tape.Latest(1000)[999].Sequence)
}
