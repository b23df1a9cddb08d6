package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"

	"github.com/openalpha/omnipool/x/circuitbreaker/types"
)

// GetTxCmd returns the transaction commands for the circuit breaker module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "Circuit breaker transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(CmdSetTradeVolumeLimit())
	return cmd
}

// CmdSetTradeVolumeLimit returns the command to override an asset's per-block limit
func CmdSetTradeVolumeLimit() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-trade-volume-limit [asset] [limit]",
		Short: "Set the net per-block liquidity change allowed for an asset, e.g. 0.2 (authority only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			asset, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid asset id: %v", err)
			}
			authority, _ := cmd.Flags().GetString("authority")
			if authority == "" {
				authority = clientCtx.GetFromAddress().String()
			}

			msg := &types.MsgSetTradeVolumeLimit{
				Authority: authority,
				AssetID:   uint32(asset),
				Limit:     args[1],
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().String("authority", "", "Authority address, defaults to the signer")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}
