package api

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cosmossdk.io/math"
	"github.com/BurntSushi/toml"

	"github.com/openalpha/omnipool/api/middleware"
	"github.com/openalpha/omnipool/api/websocket"
	"github.com/openalpha/omnipool/pkg/sim"
	cbtypes "github.com/openalpha/omnipool/x/circuitbreaker/types"
	dcatypes "github.com/openalpha/omnipool/x/dca/types"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// Config contains server configuration
type Config struct {
	Host             string        `toml:"host"`
	Port             int           `toml:"port"`
	ReadTimeout      time.Duration `toml:"read_timeout"`
	WriteTimeout     time.Duration `toml:"write_timeout"`
	DisableRateLimit bool          `toml:"disable_rate_limit"`

	// BlockTime advances the chain on a timer. Zero leaves block production
	// to POST /blocks/next.
	BlockTime   time.Duration `toml:"block_time"`
	TapeSize    int           `toml:"tape_size"`
	FaucetLimit string        `toml:"faucet_limit"`

	Params    ParamsConfig                `toml:"params"`
	RateLimit *middleware.RateLimitConfig `toml:"rate_limit"`
	WebSocket *websocket.ServerConfig     `toml:"websocket"`
	Seed      SeedConfig                  `toml:"seed"`
}

// ParamsConfig overrides module params. Empty fields keep the defaults.
type ParamsConfig struct {
	AssetFee         string `toml:"asset_fee"`
	ProtocolFee      string `toml:"protocol_fee"`
	WithdrawalFee    string `toml:"withdrawal_fee"`
	MaxInRatio       uint64 `toml:"max_in_ratio"`
	MaxOutRatio      uint64 `toml:"max_out_ratio"`
	TradeVolumeLimit string `toml:"trade_volume_limit"`
	MaxRetries       uint32 `toml:"dca_max_retries"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		TapeSize:     1000,
		FaucetLimit:  "0",
		RateLimit:    middleware.DefaultRateLimitConfig(),
		WebSocket:    websocket.DefaultServerConfig(),
		Seed:         DefaultSeedConfig(),
	}
}

// LoadConfig reads a TOML file over the defaults. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ChainConfig builds the simulated chain configuration
func (c *Config) ChainConfig() (sim.Config, error) {
	omnipoolParams := omnipooltypes.DefaultParams()
	cbParams := cbtypes.DefaultParams()
	dcaParams := dcatypes.DefaultParams()

	for _, fee := range []struct {
		name   string
		raw    string
		target *math.LegacyDec
	}{
		{"asset_fee", c.Params.AssetFee, &omnipoolParams.AssetFee},
		{"protocol_fee", c.Params.ProtocolFee, &omnipoolParams.ProtocolFee},
		{"withdrawal_fee", c.Params.WithdrawalFee, &omnipoolParams.WithdrawalFee},
		{"trade_volume_limit", c.Params.TradeVolumeLimit, &cbParams.DefaultTradeVolumeLimit},
	} {
		if fee.raw == "" {
			continue
		}
		v, err := omnipooltypes.ParseRatio(fee.name, fee.raw)
		if err != nil {
			return sim.Config{}, err
		}
		*fee.target = v
	}
	if c.Params.MaxInRatio != 0 {
		omnipoolParams.MaxInRatio = c.Params.MaxInRatio
	}
	if c.Params.MaxOutRatio != 0 {
		omnipoolParams.MaxOutRatio = c.Params.MaxOutRatio
	}
	dcaParams.MaxRetries = c.Params.MaxRetries

	if err := omnipoolParams.Validate(); err != nil {
		return sim.Config{}, err
	}
	if err := cbParams.Validate(); err != nil {
		return sim.Config{}, err
	}
	if err := dcaParams.Validate(); err != nil {
		return sim.Config{}, err
	}

	blockTime := c.BlockTime
	if blockTime == 0 {
		blockTime = 6 * time.Second
	}
	return sim.Config{
		Omnipool:       &omnipoolParams,
		CircuitBreaker: &cbParams,
		DCA:            &dcaParams,
		BlockTime:      blockTime,
	}, nil
}
