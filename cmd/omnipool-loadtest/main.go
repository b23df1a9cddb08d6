package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openalpha/omnipool/app"
	"github.com/openalpha/omnipool/pkg/grpcclient"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd returns the load test command
func NewRootCmd() *cobra.Command {
	var (
		url         string
		grpcAddr    string
		chainID     string
		keyHex      string
		fees        string
		concurrency int
		duration    time.Duration
		rampUp      time.Duration
		assets      string
		amount      string
		fund        string
		traders     int
		output      string
	)

	cmd := &cobra.Command{
		Use:   "omnipool-loadtest",
		Short: "Fire random sells at the sandbox API or a node",
		Long: `Fires random sells between the given assets for a fixed duration and reports
latency percentiles and outcomes. Against the sandbox API (--url) every worker
trades from faucet funded accounts. Against a node (--grpc) a single funded key
signs every transaction, so only one worker runs.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.SetAddressPrefixes()

			assetIDs, err := parseAssets(assets)
			if err != nil {
				return err
			}
			cfg := &Config{
				Target:      url,
				Concurrency: concurrency,
				Duration:    duration,
				RampUp:      rampUp,
				Assets:      assetIDs,
				Amount:      amount,
				TraderCount: traders,
			}

			var trader Trader
			if grpcAddr != "" {
				if keyHex == "" {
					return fmt.Errorf("--key is required with --grpc")
				}
				clientCfg := grpcclient.DefaultConfig()
				clientCfg.GRPCAddr = grpcAddr
				clientCfg.ChainID = chainID
				clientCfg.Fees = fees
				client, err := grpcclient.NewClientFromHex(clientCfg, app.MakeEncodingConfig().TxConfig, keyHex)
				if err != nil {
					return err
				}
				defer client.Close()

				trader = &grpcTrader{client: client}
				cfg.Target = grpcAddr
				cfg.Concurrency = 1
			} else {
				trader = newHTTPTrader(strings.TrimSuffix(url, "/"), fund)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tester := NewLoadTester(cfg, trader, cmd.OutOrStdout())
			if err := tester.Run(ctx); err != nil {
				return err
			}
			if output != "" {
				if err := tester.SaveReport(output); err != nil {
					return fmt.Errorf("save report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report saved to: %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://localhost:8080", "Sandbox API base URL")
	cmd.Flags().StringVar(&grpcAddr, "grpc", "", "Node gRPC address; switches to signed transactions")
	cmd.Flags().StringVar(&chainID, "chain-id", "omnipool-1", "Chain id used for signing")
	cmd.Flags().StringVar(&keyHex, "key", "", "Hex encoded secp256k1 key of the funded signer")
	cmd.Flags().StringVar(&fees, "fees", "", "Fees attached to each transaction")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 20, "Number of concurrent workers")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 30*time.Second, "Test duration")
	cmd.Flags().DurationVar(&rampUp, "ramp", 2*time.Second, "Ramp-up time")
	cmd.Flags().StringVar(&assets, "assets", "0,2,1000", "Comma separated asset ids to trade between")
	cmd.Flags().StringVar(&amount, "amount", "1000000000", "Amount sold per trade")
	cmd.Flags().StringVar(&fund, "fund", "1000000000000000", "Faucet amount per asset for each trader")
	cmd.Flags().IntVar(&traders, "traders", 20, "Number of sandbox accounts")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write a JSON report to this file")

	cmd.SetContext(context.Background())
	return cmd
}

func parseAssets(raw string) ([]uint32, error) {
	var ids []uint32
	seen := make(map[uint32]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid asset id %q", part)
		}
		if seen[uint32(id)] {
			return nil, fmt.Errorf("asset %d listed twice", id)
		}
		seen[uint32(id)] = true
		ids = append(ids, uint32(id))
	}
	if len(ids) < 2 {
		return nil, fmt.Errorf("at least two assets are required")
	}
	return ids, nil
}
