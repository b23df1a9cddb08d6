package cli

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"

	"github.com/openalpha/omnipool/x/dca/types"
)

// Store prefixes, mirrored from the keeper.
var (
	paramsKey               = []byte{0x01}
	scheduleKeyPrefix       = []byte{0x03}
	blockSchedulesKeyPrefix = []byte{0x04}
)

// GetQueryCmd returns the cli query commands for the dca module
func GetQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "Querying commands for the dca module",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdQuerySchedule(),
		CmdQueryPlanned(),
		CmdQueryParams(),
	)

	return cmd
}

func idKey(prefix []byte, id uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], id)
	return key
}

func queryRecord(cmd *cobra.Command, key []byte, into interface{}) error {
	clientCtx, err := client.GetClientQueryContext(cmd)
	if err != nil {
		return err
	}
	bz, _, err := clientCtx.QueryStore(key, types.StoreKey)
	if err != nil {
		return err
	}
	if len(bz) == 0 {
		return fmt.Errorf("not found")
	}
	if err := json.Unmarshal(bz, into); err != nil {
		return err
	}
	output, _ := json.MarshalIndent(into, "", "  ")
	return clientCtx.PrintBytes(output)
}

// CmdQuerySchedule returns the command to query a schedule
func CmdQuerySchedule() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule [schedule-id]",
		Short: "Query a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid schedule id: %v", err)
			}
			var s types.Schedule
			return queryRecord(cmd, idKey(scheduleKeyPrefix, id), &s)
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryPlanned returns the command to list the schedules due in a block
func CmdQueryPlanned() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "planned [block]",
		Short: "List the schedule ids due in a block, in execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			block, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid block: %v", err)
			}
			var ids []uint64
			return queryRecord(cmd, idKey(blockSchedulesKeyPrefix, block), &ids)
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryParams returns the command to query the module params
func CmdQueryParams() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Query the dca module params",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var params types.Params
			return queryRecord(cmd, paramsKey, &params)
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}
