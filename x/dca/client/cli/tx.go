package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"
	"github.com/cosmos/cosmos-sdk/client/tx"

	"github.com/openalpha/omnipool/x/dca/types"
)

const (
	FlagRecurrences = "recurrences"
	FlagStartBlock  = "start-block"
	FlagNextBlock   = "next-block"
	FlagBlock       = "block"
)

// GetTxCmd returns the transaction commands for the dca module
func GetTxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "DCA transaction commands",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdSchedule(),
		CmdPause(),
		CmdResume(),
		CmdTerminate(),
	)

	return cmd
}

// CmdSchedule returns the command to create a recurring order
func CmdSchedule() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [sell|buy] [asset-in] [asset-out] [amount] [limit] [period]",
		Short: "Schedule a trade repeated every period blocks",
		Long: `Schedule a trade repeated every period blocks.
For a sell, amount is sold each time and limit is the minimum received.
For a buy, amount is bought each time and limit is the maximum paid.
Without --recurrences the schedule runs until terminated.`,
		Args: cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			assetIn, err := parseAssetID(args[1])
			if err != nil {
				return err
			}
			assetOut, err := parseAssetID(args[2])
			if err != nil {
				return err
			}
			period, err := strconv.ParseUint(args[5], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid period: %v", err)
			}
			recurrences, _ := cmd.Flags().GetUint32(FlagRecurrences)
			startBlock, _ := cmd.Flags().GetUint64(FlagStartBlock)

			recurrence := types.Perpetual()
			if recurrences > 0 {
				recurrence = types.Fixed(recurrences)
			}

			msg := &types.MsgSchedule{
				Owner:      clientCtx.GetFromAddress().String(),
				Period:     period,
				OrderType:  args[0],
				AssetIn:    assetIn,
				AssetOut:   assetOut,
				Amount:     args[3],
				Limit:      args[4],
				Recurrence: recurrence,
				StartBlock: startBlock,
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().Uint32(FlagRecurrences, 0, "Number of executions, 0 for perpetual")
	cmd.Flags().Uint64(FlagStartBlock, 0, "First execution block, defaults to the next block")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdPause returns the command to suspend a schedule
func CmdPause() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pause [schedule-id] [resume-block]",
		Short: "Suspend a schedule and release its execution bond",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid schedule id: %v", err)
			}
			block, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid block: %v", err)
			}

			msg := &types.MsgPause{
				Owner:       clientCtx.GetFromAddress().String(),
				ScheduleID:  id,
				ResumeBlock: block,
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

// CmdResume returns the command to re-plan a suspended schedule
func CmdResume() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [schedule-id]",
		Short: "Resume a suspended schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid schedule id: %v", err)
			}
			next, _ := cmd.Flags().GetUint64(FlagNextBlock)

			msg := &types.MsgResume{
				Owner:      clientCtx.GetFromAddress().String(),
				ScheduleID: id,
				NextBlock:  next,
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().Uint64(FlagNextBlock, 0, "Next execution block, defaults to the next block")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

// CmdTerminate returns the command to remove a schedule
func CmdTerminate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terminate [schedule-id]",
		Short: "Terminate a schedule and release its bond",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientCtx, err := client.GetClientTxContext(cmd)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid schedule id: %v", err)
			}
			block, _ := cmd.Flags().GetUint64(FlagBlock)

			msg := &types.MsgTerminate{
				Caller:     clientCtx.GetFromAddress().String(),
				ScheduleID: id,
				Block:      block,
			}
			if err := msg.ValidateBasic(); err != nil {
				return err
			}
			return tx.GenerateOrBroadcastTxCLI(clientCtx, cmd.Flags(), msg)
		},
	}

	cmd.Flags().Uint64(FlagBlock, 0, "Block the schedule is planned in")
	flags.AddTxFlagsToCmd(cmd)
	return cmd
}

func parseAssetID(s string) (uint32, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid asset id %q: %v", s, err)
	}
	return uint32(id), nil
}
