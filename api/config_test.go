package api

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omnipool.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
port = 9090
block_time = "2s"
faucet_limit = "1000000"

[params]
asset_fee = "0.0025"
max_in_ratio = 5
dca_max_retries = 2

[seed]
stable_price = "0.5"
stable_reserve = "1000000000000000"
native_price = "1"
native_reserve = "10000000000000000"

[[seed.assets]]
name = "DOT"
price = "0.65"
amount = "2000000000000000"

[[seed.accounts]]
address = "cosmos1abc"
balances = { DOT = "1000" }
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 2*time.Second, cfg.BlockTime)
	require.Equal(t, "1000000", cfg.FaucetLimit)
	require.Len(t, cfg.Seed.Assets, 1)
	require.Equal(t, "1000", cfg.Seed.Accounts[0].Balances["DOT"])
	require.NotNil(t, cfg.RateLimit)

	chainCfg, err := cfg.ChainConfig()
	require.NoError(t, err)
	require.Equal(t, "0.002500000000000000", chainCfg.Omnipool.AssetFee.String())
	require.Equal(t, uint64(5), chainCfg.Omnipool.MaxInRatio)
	require.Equal(t, uint64(3), chainCfg.Omnipool.MaxOutRatio)
	require.Equal(t, uint32(2), chainCfg.DCA.MaxRetries)
	require.Equal(t, 2*time.Second, chainCfg.BlockTime)
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "port = 9090\nunknown_key = true\n")
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "unknown_key")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Port, cfg.Port)
}

func TestChainConfigRejectsBadParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Params.TradeVolumeLimit = "1.5"
	_, err := cfg.ChainConfig()
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Params.AssetFee = "fee"
	_, err = cfg.ChainConfig()
	require.Error(t, err)

	chainCfg, err := DefaultConfig().ChainConfig()
	require.NoError(t, err)
	require.Equal(t, 6*time.Second, chainCfg.BlockTime)
	require.Equal(t, "0.200000000000000000", chainCfg.CircuitBreaker.DefaultTradeVolumeLimit.String())
}
