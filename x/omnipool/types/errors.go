package types

import (
	"cosmossdk.io/errors"
)

// Module error codes
var (
	ErrInsufficientBalance       = errors.Register(ModuleName, 2, "insufficient balance")
	ErrAssetAlreadyAdded         = errors.Register(ModuleName, 3, "asset already added to the pool")
	ErrAssetNotFound             = errors.Register(ModuleName, 4, "asset not found in the pool")
	ErrMissingBalance            = errors.Register(ModuleName, 5, "protocol account is missing the initial asset balance")
	ErrInvalidInitialAssetPrice  = errors.Register(ModuleName, 6, "invalid initial asset price")
	ErrAssetNotRegistered        = errors.Register(ModuleName, 7, "asset is not registered in the asset registry")
	ErrInsufficientTradingAmount = errors.Register(ModuleName, 8, "trade amount below minimum trading limit")
	ErrNotAllowed                = errors.Register(ModuleName, 9, "operation not allowed by asset tradability")
	ErrBuyLimitNotReached        = errors.Register(ModuleName, 10, "amount out is below the buy limit")
	ErrSellLimitExceeded         = errors.Register(ModuleName, 11, "amount in exceeds the sell limit")
	ErrSameAssetTradeNotAllowed  = errors.Register(ModuleName, 12, "asset in and asset out must differ")
	ErrMaxInRatioExceeded        = errors.Register(ModuleName, 13, "trade amount exceeds max in ratio")
	ErrMaxOutRatioExceeded       = errors.Register(ModuleName, 14, "trade amount exceeds max out ratio")
	ErrPriceDifferenceTooHigh    = errors.Register(ModuleName, 15, "pool price differs too much from the oracle price")
	ErrInsufficientLiquidity     = errors.Register(ModuleName, 16, "insufficient liquidity")
	ErrAssetWeightCapExceeded    = errors.Register(ModuleName, 17, "asset weight cap exceeded")
	ErrTVLCapExceeded            = errors.Register(ModuleName, 18, "pool TVL cap exceeded")
	ErrPositionNotFound          = errors.Register(ModuleName, 19, "position not found")
	ErrForbidden                 = errors.Register(ModuleName, 20, "caller does not own the position")
	ErrInsufficientShares        = errors.Register(ModuleName, 21, "insufficient shares in position")
	ErrUnauthorized              = errors.Register(ModuleName, 22, "unauthorized")
	ErrInvalidWeightCap          = errors.Register(ModuleName, 23, "weight cap must be within (0, 1]")
	ErrPoolNotInitialized        = errors.Register(ModuleName, 24, "omnipool is not initialized")
	ErrInvalidParams             = errors.Register(ModuleName, 25, "invalid params")
	ErrInvalidAmount             = errors.Register(ModuleName, 26, "invalid amount")
	ErrInvalidAddress            = errors.Register(ModuleName, 27, "invalid address")

	// Arithmetic errors
	ErrMathOverflow     = errors.Register(ModuleName, 40, "arithmetic overflow")
	ErrMathUnderflow    = errors.Register(ModuleName, 41, "arithmetic underflow")
	ErrDivisionByZero   = errors.Register(ModuleName, 42, "division by zero")
	ErrInvalidPoolState = errors.Register(ModuleName, 43, "invalid pool state")
)
