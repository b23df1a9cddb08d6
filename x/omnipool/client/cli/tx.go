package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"

	"github.com/openalpha/omnipool/x/omnipool/types"
)

const (
	FlagLimit     = "limit"
	FlagAuthority = "authority"
)

// GetTxCmd returns the transaction commands for the omnipool module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "Omnipool transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdSell(),
		CmdBuy(),
		CmdAddLiquidity(),
		CmdRemoveLiquidity(),
		CmdInitializePool(),
		CmdAddToken(),
		CmdSetTradableState(),
		CmdSetWeightCap(),
		CmdSetTVLCap(),
	)

	return cmd
}

func parseAssetID(arg string) (uint32, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid asset id %q: %v", arg, err)
	}
	return uint32(id), nil
}

// authorityOrSender returns the --authority flag, defaulting to the signer.
func authorityOrSender(cmd *cobra.Command, clientCtx client.Context) string {
	authority, _ := cmd.Flags().GetString(FlagAuthority)
	if authority == "" {
		return clientCtx.GetFromAddress().String()
	}
	return authority
}

// CmdSell returns the command to sell an exact amount
func CmdSell() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sell [asset-in] [asset-out] [amount]",
		Short: "Sell an exact amount of asset-in for asset-out",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			assetIn, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			assetOut, err := parseAssetID(args[1])
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetString(FlagLimit)

			msg := &types.MsgSell{
				Who:          clientCtx.GetFromAddress().String(),
				AssetIn:      assetIn,
				AssetOut:     assetOut,
				Amount:       args[2],
				MinBuyAmount: limit,
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(FlagLimit, "0", "Minimum amount of asset-out to receive")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdBuy returns the command to buy an exact amount
func CmdBuy() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy [asset-out] [asset-in] [amount] [max-sell-amount]",
		Short: "Buy an exact amount of asset-out paying with asset-in",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			assetOut, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			assetIn, err := parseAssetID(args[1])
			if err != nil {
				return err
			}

			msg := &types.MsgBuy{
				Who:           clientCtx.GetFromAddress().String(),
				AssetOut:      assetOut,
				AssetIn:       assetIn,
				Amount:        args[2],
				MaxSellAmount: args[3],
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdAddLiquidity returns the command to provide liquidity
func CmdAddLiquidity() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-liquidity [asset] [amount]",
		Short: "Deposit liquidity and receive a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			asset, err := parseAssetID(args[0])
			if err != nil {
				return err
			}

			msg := &types.MsgAddLiquidity{
				Who:     clientCtx.GetFromAddress().String(),
				AssetID: asset,
				Amount:  args[1],
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdRemoveLiquidity returns the command to withdraw liquidity
func CmdRemoveLiquidity() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-liquidity [position-id] [shares]",
		Short: "Burn shares of a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			positionID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid position id: %v", err)
			}

			msg := &types.MsgRemoveLiquidity{
				Who:        clientCtx.GetFromAddress().String(),
				PositionID: positionID,
				Shares:     args[1],
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdInitializePool returns the command to bootstrap the pool
func CmdInitializePool() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initialize-pool [stable-price] [native-price] [stable-cap] [native-cap]",
		Short: "Initialize the pool with the stable and native assets (authority only)",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			msg := &types.MsgInitializePool{
				Authority:   authorityOrSender(cmd, clientCtx),
				StablePrice: args[0],
				NativePrice: args[1],
				StableCap:   args[2],
				NativeCap:   args[3],
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(FlagAuthority, "", "Authority address, defaults to the signer")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdAddToken returns the command to list an asset
func CmdAddToken() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-token [asset] [initial-price] [weight-cap] [owner]",
		Short: "List a new asset (authority only)",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			asset, err := parseAssetID(args[0])
			if err != nil {
				return err
			}

			msg := &types.MsgAddToken{
				Authority:    authorityOrSender(cmd, clientCtx),
				AssetID:      asset,
				InitialPrice: args[1],
				WeightCap:    args[2],
				Owner:        args[3],
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(FlagAuthority, "", "Authority address, defaults to the signer")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdSetTradableState returns the command to change asset tradability
func CmdSetTradableState() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-tradable-state [asset] [state]",
		Short: "Set tradability flags, e.g. \"sell|buy\" or \"frozen\" (authority only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			asset, err := parseAssetID(args[0])
			if err != nil {
				return err
			}

			msg := &types.MsgSetAssetTradableState{
				Authority: authorityOrSender(cmd, clientCtx),
				AssetID:   asset,
				State:     args[1],
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(FlagAuthority, "", "Authority address, defaults to the signer")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdSetWeightCap returns the command to change an asset weight cap
func CmdSetWeightCap() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-weight-cap [asset] [cap]",
		Short: "Set the weight cap of an asset (authority only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			asset, err := parseAssetID(args[0])
			if err != nil {
				return err
			}

			msg := &types.MsgSetAssetWeightCap{
				Authority: authorityOrSender(cmd, clientCtx),
				AssetID:   asset,
				Cap:       args[1],
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(FlagAuthority, "", "Authority address, defaults to the signer")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdSetTVLCap returns the command to change the pool TVL cap
func CmdSetTVLCap() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-tvl-cap [cap]",
		Short: "Set the pool TVL cap in stable units (authority only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}

			msg := &types.MsgSetTVLCap{
				Authority: authorityOrSender(cmd, clientCtx),
				Cap:       args[0],
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String(FlagAuthority, "", "Authority address, defaults to the signer")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}
