package api

import (
	"fmt"
	"strconv"

	"cosmossdk.io/math"

	"github.com/openalpha/omnipool/pkg/sim"
	omnipooltypes "github.com/openalpha/omnipool/x/omnipool/types"
)

// SeedConfig describes the pool a sandbox starts with
type SeedConfig struct {
	StablePrice   string `toml:"stable_price"`
	StableReserve string `toml:"stable_reserve"`
	NativePrice   string `toml:"native_price"`
	NativeReserve string `toml:"native_reserve"`

	Assets   []SeedAsset   `toml:"assets"`
	Accounts []SeedAccount `toml:"accounts"`
}

// SeedAsset is an asset created and listed at startup
type SeedAsset struct {
	Name      string `toml:"name"`
	Price     string `toml:"price"`
	Amount    string `toml:"amount"`
	WeightCap string `toml:"weight_cap"`
}

// SeedAccount is an account funded at startup. Balances are keyed by asset id
// or by the name of a seeded asset.
type SeedAccount struct {
	Address  string            `toml:"address"`
	Balances map[string]string `toml:"balances"`
}

// DefaultSeedConfig lists the stable and native assets only
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		StablePrice:   "0.5",
		StableReserve: "1000000000000000",
		NativePrice:   "1",
		NativeReserve: "10000000000000000",
	}
}

// Seed initializes the pool on chain and lists every seeded asset. It returns
// the ids assigned to the seeded assets by name.
func Seed(chain *sim.Chain, cfg SeedConfig) (map[string]uint32, error) {
	ctx := chain.Ctx
	params := chain.Omnipool.GetParams(ctx)

	stableReserve, err := omnipooltypes.ParseAmount("stable_reserve", cfg.StableReserve)
	if err != nil {
		return nil, err
	}
	nativeReserve, err := omnipooltypes.ParseAmount("native_reserve", cfg.NativeReserve)
	if err != nil {
		return nil, err
	}
	stablePrice, err := omnipooltypes.ParseRatio("stable_price", cfg.StablePrice)
	if err != nil {
		return nil, err
	}
	nativePrice, err := omnipooltypes.ParseRatio("native_price", cfg.NativePrice)
	if err != nil {
		return nil, err
	}

	if err := chain.Fund(params.StableAssetID, chain.PoolAccount, stableReserve); err != nil {
		return nil, err
	}
	if err := chain.Fund(params.NativeAssetID, chain.PoolAccount, nativeReserve); err != nil {
		return nil, err
	}
	if err := chain.Omnipool.InitializePool(ctx, chain.Authority,
		stablePrice, nativePrice, math.LegacyOneDec(), math.LegacyOneDec()); err != nil {
		return nil, fmt.Errorf("failed to initialize pool: %w", err)
	}

	ids := make(map[string]uint32, len(cfg.Assets))
	for _, asset := range cfg.Assets {
		if _, dup := ids[asset.Name]; dup || asset.Name == "" {
			return nil, fmt.Errorf("seed asset name %q is empty or repeated", asset.Name)
		}
		amount, err := omnipooltypes.ParseAmount(asset.Name+".amount", asset.Amount)
		if err != nil {
			return nil, err
		}
		price, err := omnipooltypes.ParseRatio(asset.Name+".price", asset.Price)
		if err != nil {
			return nil, err
		}
		weightCap := math.LegacyOneDec()
		if asset.WeightCap != "" {
			if weightCap, err = omnipooltypes.ParseRatio(asset.Name+".weight_cap", asset.WeightCap); err != nil {
				return nil, err
			}
		}

		id, err := chain.Registry.CreateAsset(ctx, asset.Name, math.ZeroUint())
		if err != nil {
			return nil, err
		}
		if err := chain.Fund(id, chain.PoolAccount, amount); err != nil {
			return nil, err
		}
		if _, err := chain.Omnipool.AddToken(ctx, chain.Authority, id, price, weightCap, chain.PoolAccount); err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", asset.Name, err)
		}
		ids[asset.Name] = id
	}

	for _, account := range cfg.Accounts {
		for key, raw := range account.Balances {
			id, err := resolveAsset(key, ids)
			if err != nil {
				return nil, err
			}
			if id == params.HubAssetID {
				return nil, fmt.Errorf("account %s: hub asset cannot be seeded", account.Address)
			}
			amount, err := omnipooltypes.ParseAmount(account.Address, raw)
			if err != nil {
				return nil, err
			}
			if err := chain.Fund(id, account.Address, amount); err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}

func resolveAsset(key string, ids map[string]uint32) (uint32, error) {
	if id, ok := ids[key]; ok {
		return id, nil
	}
	id, err := strconv.ParseUint(key, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown seed asset %q", key)
	}
	return uint32(id), nil
}
