package grpcclient

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:1"
	cfg.PoolSize = 2
	cfg.BatchSize = 2
	c, err := NewClient(cfg, nil, secp256k1.GenPrivKey())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNewClientFromHex(t *testing.T) {
	key := secp256k1.GenPrivKey()
	c, err := NewClientFromHex(nil, nil, hex.EncodeToString(key.Key))
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, sdk.AccAddress(key.PubKey().Address()).String(), c.Address())

	_, err = NewClientFromHex(nil, nil, "zz")
	require.Error(t, err)
	_, err = NewClientFromHex(nil, nil, "abcd")
	require.ErrorContains(t, err, "32 bytes")
}

func TestBroadcastRejectsInvalidMessages(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	res := c.Sell(ctx, 1000, 0, "not-a-number", "0")
	require.ErrorIs(t, res.Error, omnipooltypes.ErrInvalidAmount)
	require.False(t, res.Success)

	res = c.Broadcast(ctx)
	require.ErrorContains(t, res.Error, "no messages")

	msg := &omnipooltypes.MsgSell{Who: c.Address(), AssetIn: 1000, Amount: "1", MinBuyAmount: "0"}
	res = c.Broadcast(ctx, msg, msg, msg)
	require.ErrorContains(t, res.Error, "exceeds max")

	// nothing reached the signing stage
	require.Zero(t, c.GetMetrics().Transactions)
}

func TestFailedBuildRewindsSequence(t *testing.T) {
	c := newTestClient(t)
	c.sequence = 7

	res := c.Buy(context.Background(), 1000, 0, "1000", "5000")
	require.ErrorContains(t, res.Error, "no tx config")

	stats := c.GetMetrics()
	require.Equal(t, uint64(1), stats.Transactions)
	require.Equal(t, uint64(1), stats.Failed)

	_, seq := c.nextSequence()
	require.Equal(t, uint64(7), seq)

	c.ResetMetrics()
	require.Zero(t, c.GetMetrics().Failed)
}
