package types

// Event types
const (
	EventTypePoolInitialized      = "omnipool_initialized"
	EventTypeTokenAdded           = "omnipool_token_added"
	EventTypeLiquidityAdded       = "omnipool_liquidity_added"
	EventTypeLiquidityRemoved     = "omnipool_liquidity_removed"
	EventTypeSellExecuted         = "omnipool_sell_executed"
	EventTypeBuyExecuted          = "omnipool_buy_executed"
	EventTypeTradableStateUpdated = "omnipool_tradable_state_updated"
	EventTypeWeightCapUpdated     = "omnipool_asset_weight_cap_updated"
	EventTypeTVLCapUpdated        = "omnipool_tvl_cap_updated"
	EventTypePositionCreated      = "omnipool_position_created"
	EventTypePositionUpdated      = "omnipool_position_updated"
	EventTypePositionDestroyed    = "omnipool_position_destroyed"
)

// Event attribute keys
const (
	AttributeKeyWho         = "who"
	AttributeKeyOwner       = "owner"
	AttributeKeyAssetID     = "asset_id"
	AttributeKeyAssetIn     = "asset_in"
	AttributeKeyAssetOut    = "asset_out"
	AttributeKeyAmount      = "amount"
	AttributeKeyAmountIn    = "amount_in"
	AttributeKeyAmountOut   = "amount_out"
	AttributeKeyHubAmount   = "hub_amount"
	AttributeKeyAssetFee    = "asset_fee"
	AttributeKeyProtocolFee = "protocol_fee"
	AttributeKeyPositionID  = "position_id"
	AttributeKeyShares      = "shares"
	AttributeKeyPrice       = "price"
	AttributeKeyTradable    = "tradable"
	AttributeKeyCap         = "cap"
)
