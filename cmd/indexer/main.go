package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"evmindexer/internal/chains"
	"evmindexer/internal/config"
	"evmindexer/internal/logging"
	"evmindexer/internal/poller"
	"evmindexer/internal/rpcclient"
	"evmindexer/internal/store"
	"evmindexer/internal/supervisor"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var sqlitePath, logLevel string
	var ttlSecs, cleanupIntervalSecs int64

	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Multi-chain EVM event indexer for Fusion and Fusion+ swaps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runOverrides{
				sqlitePath:          sqlitePath,
				logLevel:            logLevel,
				ttlSecs:             ttlSecs,
				cleanupIntervalSecs: cleanupIntervalSecs,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sqlitePath, "sqlite-path", "", "override SQLITE_PATH")
	flags.StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	flags.Int64Var(&ttlSecs, "ttl-secs", 0, "override TTL_SECS")
	flags.Int64Var(&cleanupIntervalSecs, "cleanup-interval-secs", 0, "override CLEANUP_INTERVAL_SECS")

	return cmd
}

// runOverrides holds flag values that, when non-zero, take precedence over
// the corresponding environment-derived config.Config field.
type runOverrides struct {
	sqlitePath          string
	logLevel            string
	ttlSecs             int64
	cleanupIntervalSecs int64
}

func run(ctx context.Context, o runOverrides) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, o)

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	repo, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	var chainConfigs []supervisor.ChainConfig
	for _, n := range chains.Supported {
		url, ok := cfg.ChainRPCURLs[n.ChainID]
		if !ok || url == "" {
			logger.Warn("no RPC url resolved for chain, skipping", zap.String("chain", n.Name))
			continue
		}
		chainConfigs = append(chainConfigs, supervisor.ChainConfig{
			ChainID:   n.ChainID,
			ChainName: n.Name,
			RPCURL:    url,
		})
	}

	sup := supervisor.New(supervisor.Config{
		Chains:          chainConfigs,
		Repo:            repo,
		Logger:          logger,
		PollerConfig:    poller.DefaultConfig(),
		RPCConfig:       rpcclient.DefaultConfig(),
		CleanupInterval: cfg.CleanupInterval,
		TTL:             cfg.TTL,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting indexer", zap.Int("chains", len(chainConfigs)))
	return sup.Run(ctx)
}

func applyOverrides(cfg *config.Config, o runOverrides) {
	if o.sqlitePath != "" {
		cfg.SQLitePath = o.sqlitePath
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.ttlSecs != 0 {
		cfg.TTL = secondsToDuration(o.ttlSecs)
	}
	if o.cleanupIntervalSecs != 0 {
		cfg.CleanupInterval = secondsToDuration(o.cleanupIntervalSecs)
	}
}

func secondsToDuration(secs int64) time.Duration {
	return time.Duration(secs) * time.Second
}
