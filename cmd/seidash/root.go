package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"seidash/internal/config"
	"seidash/internal/metrics"
	"seidash/internal/rpcclient"
)

type rootOptions struct {
	configPath string
	envFile    string
	debug      bool
	asJSON     bool
}

// app holds what every command needs once flags are parsed
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	client   *rpcclient.Client
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "seidash",
		Short:         "Query the dashboard RPC service from the terminal",
		Long:          "seidash talks to the dashboard JSON-RPC service: connection status, raw calls, balance lookups and live event streaming.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a JSON, YAML or TOML config file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before the config (ignored if missing)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable verbose diagnostic logging")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Render JSON output")

	rootCmd.AddCommand(
		newStatusCmd(a, opts),
		newCallCmd(a),
		newBalanceCmd(a, opts),
		newWatchCmd(a),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command, opts *rootOptions) error {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.debug {
		cfg.Debug = true
	}

	a.cfg = cfg
	a.logger = setupLogger(cfg.EffectiveLogLevel(), cmd.ErrOrStderr())
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewWithRegistry(a.registry)

	client, err := rpcclient.New(cfg, a.logger, rpcclient.WithMetrics(a.metrics))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	a.client = client

	a.logger.Debug().
		Str("url", cfg.Server.URL).
		Int("timeoutMs", cfg.Server.TimeoutMs).
		Int("maxRetries", cfg.Server.MaxRetries).
		Bool("stream", cfg.Server.IsStreamEnabled()).
		Msg("client configured")
	return nil
}

// close ends the session on a best-effort basis
func (a *app) close() {
	if a.client != nil {
		a.client.Disconnect(context.Background())
	}
}
