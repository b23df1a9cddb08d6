package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openalpha/omnipool/api"
	"github.com/openalpha/omnipool/app"
)

const (
	flagConfig           = "config"
	flagHost             = "host"
	flagPort             = "port"
	flagBlockTime        = "block-time"
	flagDisableRateLimit = "disable-rate-limit"
	flagLogLevel         = "log-level"
	flagLogJSON          = "log-json"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd returns the sandbox API command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "omnipool-api",
		Short: "Omnipool sandbox API",
		Long: `Runs an in-memory Omnipool seeded from a TOML config and serves it over
HTTP and WebSocket. State is lost on exit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.SetAddressPrefixes()

			logger, err := newLogger(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			server, err := api.NewServer(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := server.Start(ctx); err != nil {
				return err
			}
			logger.Info("Sandbox API stopped")
			return nil
		},
	}

	cmd.Flags().String(flagConfig, "", "Path to a TOML config file")
	cmd.Flags().String(flagHost, "", "Listen host (overrides config)")
	cmd.Flags().Int(flagPort, 0, "Listen port (overrides config)")
	cmd.Flags().Duration(flagBlockTime, 0, "Produce a block every interval (overrides config)")
	cmd.Flags().Bool(flagDisableRateLimit, false, "Disable per-IP rate limiting")
	cmd.Flags().String(flagLogLevel, "info", "Log level (debug, info, warn, error)")
	cmd.Flags().Bool(flagLogJSON, false, "Log as JSON")

	cmd.AddCommand(newDefaultConfigCmd())
	cmd.SetContext(context.Background())
	return cmd
}

func loadConfig(cmd *cobra.Command) (*api.Config, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := api.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed(flagHost) {
		cfg.Host, _ = cmd.Flags().GetString(flagHost)
	}
	if cmd.Flags().Changed(flagPort) {
		cfg.Port, _ = cmd.Flags().GetInt(flagPort)
	}
	if cmd.Flags().Changed(flagBlockTime) {
		cfg.BlockTime, _ = cmd.Flags().GetDuration(flagBlockTime)
	}
	if cmd.Flags().Changed(flagDisableRateLimit) {
		cfg.DisableRateLimit, _ = cmd.Flags().GetBool(flagDisableRateLimit)
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) (log.Logger, error) {
	rawLevel, _ := cmd.Flags().GetString(flagLogLevel)
	level, err := zerolog.ParseLevel(rawLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", rawLevel, err)
	}
	opts := []log.Option{log.LevelOption(level)}
	if asJSON, _ := cmd.Flags().GetBool(flagLogJSON); asJSON {
		opts = append(opts, log.OutputJSONOption())
	}
	return log.NewLogger(os.Stdout, opts...), nil
}
