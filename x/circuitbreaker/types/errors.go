package types

import (
	"cosmossdk.io/errors"
)

var (
	ErrLiquidityLimitNotStoredForAsset = errors.Register(ModuleName, 2, "liquidity limit not stored for asset")
	ErrMinTradeVolumePerBlockReached   = errors.Register(ModuleName, 3, "minimum pool trade volume per block has been reached")
	ErrMaxTradeVolumePerBlockReached   = errors.Register(ModuleName, 4, "maximum pool trade volume per block has been reached")
	ErrInvalidTradeVolumeLimit         = errors.Register(ModuleName, 5, "invalid trade volume limit")
	ErrUnauthorized                    = errors.Register(ModuleName, 6, "unauthorized")
	ErrInvalidParams                   = errors.Register(ModuleName, 7, "invalid params")
)
