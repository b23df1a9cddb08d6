package cli

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cosmos/cosmos-sdk/client"
	"github.com/cosmos/cosmos-sdk/client/flags"

	"github.com/openalpha/omnipool/x/omnipool/types"
)

// Store prefixes, mirrored from the keeper to keep the CLI free of keeper imports.
var (
	assetKeyPrefix    = []byte{0x01}
	positionKeyPrefix = []byte{0x02}
	poolStateKey      = []byte{0x03}
	paramsKey         = []byte{0x04}
)

// GetQueryCmd returns the cli query commands for the omnipool module
func GetQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                        types.ModuleName,
		Short:                      "Querying commands for the omnipool module",
		DisableFlagParsing:         true,
		SuggestionsMinimumDistance: 2,
		RunE:                       client.ValidateCmd,
	}

	cmd.AddCommand(
		CmdQueryAsset(),
		CmdQueryPool(),
		CmdQueryParams(),
		CmdQueryPosition(),
	)

	return cmd
}

// queryRecord reads one raw JSON record from the module store and prints it.
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

// CmdQueryAsset returns the command to query an asset's reserve state
func CmdQueryAsset() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset [asset-id]",
		Short: "Query the reserve state of a listed asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			key := make([]byte, len(assetKeyPrefix)+4)
			copy(key, assetKeyPrefix)
			binary.BigEndian.PutUint32(key[len(assetKeyPrefix):], id)

			var asset types.AssetReserveState
			return queryRecord(cmd, key, &asset)
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryPool returns the command to query the pool-wide state
func CmdQueryPool() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Query hub liquidity, imbalance and caps",
		RunE: func(cmd *cobra.Command, args []string) error {
			var pool types.PoolState
			return queryRecord(cmd, poolStateKey, &pool)
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryParams returns the command to query module params
func CmdQueryParams() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Query omnipool params",
		RunE: func(cmd *cobra.Command, args []string) error {
			var params types.Params
			return queryRecord(cmd, paramsKey, &params)
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}

// CmdQueryPosition returns the command to query a liquidity position
func CmdQueryPosition() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position [position-id]",
		Short: "Query a liquidity position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid position id: %v", err)
			}
			key := make([]byte, len(positionKeyPrefix)+8)
			copy(key, positionKeyPrefix)
			binary.BigEndian.PutUint64(key[len(positionKeyPrefix):], id)

			var position types.Position
			return queryRecord(cmd, key, &position)
		},
	}

	flags.AddQueryFlagsToCmd(cmd)
	return cmd
}
