// Package supervisor owns process lifecycle: it builds one ChainPoller per
// configured chain, runs a periodic TTL sweep, and brings everything down
// cleanly on cancellation.
package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"evmindexer/internal/correlator"
	"evmindexer/internal/poller"
	"evmindexer/internal/rpcclient"
	"evmindexer/internal/store"
)

// ChainConfig is one configured chain's identity and RPC endpoint.
type ChainConfig struct {
	ChainID   uint32
	ChainName string
	RPCURL    string
}

// Config wires together everything the Supervisor needs to run.
type Config struct {
	Chains          []ChainConfig
	Repo            store.Repository
	Logger          *zap.Logger
	PollerConfig    poller.Config
	RPCConfig       rpcclient.Config
	CleanupInterval time.Duration
	TTL             time.Duration
}

// Supervisor spawns and supervises every long-running task in the indexer:
// one poller goroutine per chain, plus one TTL cleanup goroutine.
type Supervisor struct {
	cfg Config
}

// New builds a Supervisor from cfg.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Run spawns every poller and the cleanup task via errgroup, and blocks
// until ctx is cancelled and every goroutine has returned. errgroup gives
// structured cancellation for free: the first goroutine to return an error
// cancels the group's derived context, and Run always waits for every
// goroutine to exit before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, chain := range s.cfg.Chains {
		chain := chain
		g.Go(func() error {
			logger := s.cfg.Logger.With(zap.String("chain", chain.ChainName), zap.Uint32("chain_id", chain.ChainID))
			rpc := rpcclient.New(chain.RPCURL, chain.ChainName, s.cfg.RPCConfig)
			corr := correlator.New(s.cfg.Repo)
			p := poller.New(chain.ChainID, chain.ChainName, rpc, s.cfg.Repo, corr, s.cfg.PollerConfig, logger)

			if err := p.Run(gctx); err != nil && gctx.Err() == nil {
				logger.Error("poller exited with error", zap.Error(err))
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return s.runCleanup(gctx)
	})

	return g.Wait()
}

// runCleanup invokes cleanup_by_created_at on the configured interval until
// ctx is cancelled, logging how many rows were swept from each table.
func (s *Supervisor) runCleanup(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cutoff := uint64(time.Now().Add(-s.cfg.TTL).Unix())
			counts, err := s.cfg.Repo.CleanupByCreatedAt(ctx, cutoff)
			if err != nil {
				s.cfg.Logger.Warn("cleanup sweep failed", zap.Error(err))
				continue
			}
			s.cfg.Logger.Info("cleanup sweep complete",
				zap.Int64("transfers", counts.Transfers),
				zap.Int64("fusion_plus", counts.FusionPlus),
				zap.Int64("fusion_swaps", counts.FusionSwaps),
				zap.Int64("crypto2fiat", counts.Crypto2Fiat),
			)
		}
	}
}
