// Package poller runs the per-chain ingestion loop: checkpoint, fetch logs,
// decode, persist, advance.
package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"evmindexer/internal/chains"
	"evmindexer/internal/correlator"
	"evmindexer/internal/decode"
	"evmindexer/internal/rpcclient"
	"evmindexer/internal/store"
)

// tsCacheRetention keeps the timestamp cache bounded to a small multiple of
// the confirmation window.
const tsCacheRetention = 200

// RPCClient is the subset of *rpcclient.Client a poller depends on. Declared
// here, at the consumer, so tests can drive a poller against a fake without
// spinning up an HTTP server.
type RPCClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	Block(ctx context.Context, number uint64) (rpcclient.Block, error)
	TransferLogs(ctx context.Context, fromBlock, toBlock uint64, transferTopic string) ([]rpcclient.Log, error)
	Logs(ctx context.Context, fromBlock, toBlock uint64, addr string, topic0Options []string) ([]rpcclient.Log, error)
}

// ChainPoller is one independent ingestion loop for a single chain.
type ChainPoller struct {
	chainID   uint32
	chainName string

	rpc  RPCClient
	repo store.Repository
	corr *correlator.Correlator
	cfg  Config
	log  *zap.Logger

	last    uint64
	tsCache map[uint64]uint64
}

// New builds a ChainPoller. The logger should already carry the chain's
// identity (e.g. via logger.With(zap.String("chain", name))) so every log
// line this poller emits is attributable without per-call annotation.
func New(chainID uint32, chainName string, rpc RPCClient, repo store.Repository, corr *correlator.Correlator, cfg Config, log *zap.Logger) *ChainPoller {
	return &ChainPoller{
		chainID:   chainID,
		chainName: chainName,
		rpc:       rpc,
		repo:      repo,
		corr:      corr,
		cfg:       cfg,
		log:       log,
		tsCache:   make(map[uint64]uint64),
	}
}

// Run retries initialize_checkpoint until it succeeds or ctx is cancelled,
// then loops poll_once on the configured interval until ctx is cancelled.
func (p *ChainPoller) Run(ctx context.Context) error {
	p.waitForCheckpoint(ctx)
	if ctx.Err() != nil {
		return nil
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := p.pollOnce(ctx); err != nil {
			p.log.Warn("poll iteration failed, will retry next tick", zap.Error(err))
		}
		p.evictStaleTimestamps()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// waitForCheckpoint retries initializeCheckpoint, backing off by the
// configured poll interval between attempts, until it succeeds or ctx is
// cancelled. A chain's RPC endpoint being briefly unreachable at startup
// must never return an error out of Run: every chain's poller runs inside
// the same supervisor errgroup, so a single failed return here would cancel
// every other chain's poller too.
func (p *ChainPoller) waitForCheckpoint(ctx context.Context) {
	for {
		err := p.initializeCheckpoint(ctx)
		if err == nil {
			return
		}
		p.log.Warn("failed to initialize checkpoint, will retry", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// initializeCheckpoint decides where this chain's ingestion loop should
// resume: the saved checkpoint if it's recent enough, or a fresh starting
// point just behind the chain head otherwise.
func (p *ChainPoller) initializeCheckpoint(ctx context.Context) error {
	head, err := p.rpc.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fetch head: %w", err)
	}

	saved, ok, err := p.repo.GetCheckpoint(ctx, p.chainID)
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}

	switch {
	case !ok:
		p.last = saturatingSub(head, p.cfg.ReorgSafetyBlocks)
	case head-saved > p.cfg.MaxBackfillBlocks:
		p.log.Warn("checkpoint too far behind head, skipping forward",
			zap.Uint64("checkpoint", saved), zap.Uint64("head", head))
		p.last = saturatingSub(head, p.cfg.ReorgSafetyBlocks)
	default:
		p.last = saved
	}

	return p.repo.SetCheckpoint(ctx, p.chainID, p.last)
}

// pollOnce fetches and ingests exactly one window of blocks, then advances
// the checkpoint to the end of that window.
func (p *ChainPoller) pollOnce(ctx context.Context) error {
	head, err := p.rpc.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("fetch head: %w", err)
	}

	to := saturatingSub(head, p.cfg.ConfirmationBlocks)
	// Re-scan the last reorg_safety_blocks blocks on every iteration rather
	// than resuming strictly after the checkpoint, so a shallow reorg that
	// replaced recently-seen blocks gets picked back up. Dedup at the store
	// layer makes re-processing already-seen blocks a no-op.
	from := maxU64(1, saturatingSub(p.last, p.cfg.ReorgSafetyBlocks)+1)
	if from > to {
		return nil
	}
	windowTo := minU64(to, from+p.cfg.MaxBlocksPerQuery-1)

	if err := p.ingestTransfers(ctx, from, windowTo); err != nil {
		return fmt.Errorf("transfers: %w", err)
	}
	if err := p.ingestFusionPlus(ctx, from, windowTo); err != nil {
		return fmt.Errorf("fusion+: %w", err)
	}
	if err := p.ingestFusion(ctx, from, windowTo); err != nil {
		return fmt.Errorf("fusion: %w", err)
	}

	if err := p.repo.SetCheckpoint(ctx, p.chainID, windowTo); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	p.last = windowTo
	return nil
}

func (p *ChainPoller) ingestTransfers(ctx context.Context, from, to uint64) error {
	logs, err := p.rpc.TransferLogs(ctx, from, to, chains.TransferTopic)
	if err != nil {
		return err
	}

	transfers := make([]store.Transfer, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 3 {
			continue
		}
		blockNumber, err := l.BlockNumberUint64()
		if err != nil {
			p.log.Warn("skipping log with unparseable block number", zap.Error(err))
			continue
		}
		logIndex, err := l.LogIndexUint32()
		if err != nil {
			p.log.Warn("skipping log with unparseable log index", zap.Error(err))
			continue
		}
		ts, err := p.blockTimestamp(ctx, blockNumber)
		if err != nil {
			return fmt.Errorf("block timestamp: %w", err)
		}

		transfers = append(transfers, store.Transfer{
			ChainID:        p.chainID,
			TxHash:         l.TransactionHash,
			LogIndex:       logIndex,
			Token:          l.Address,
			FromAddr:       addressFromTopic(l.Topics[1]),
			ToAddr:         addressFromTopic(l.Topics[2]),
			Value:          l.Data,
			BlockNumber:    blockNumber,
			BlockTimestamp: ts,
		})
	}

	_, err = p.repo.InsertTransfersBatch(ctx, transfers)
	return err
}

func (p *ChainPoller) ingestFusionPlus(ctx context.Context, from, to uint64) error {
	factoryLogs, err := p.rpc.Logs(ctx, from, to, chains.EscrowFactory,
		[]string{chains.SrcEscrowCreatedTopic, chains.DstEscrowCreatedTopic})
	if err != nil {
		return err
	}
	for _, l := range factoryLogs {
		if err := p.handleFactoryLog(ctx, l); err != nil {
			p.log.Warn("failed to handle fusion+ factory log", zap.String("tx", l.TransactionHash), zap.Error(err))
		}
	}

	escrowLogs, err := p.rpc.Logs(ctx, from, to, "", []string{chains.EscrowWithdrawalTopic, chains.EscrowCancelledTopic})
	if err != nil {
		return err
	}
	for _, l := range escrowLogs {
		if err := p.handleEscrowLog(ctx, l); err != nil {
			p.log.Warn("failed to handle fusion+ escrow log", zap.String("tx", l.TransactionHash), zap.Error(err))
		}
	}
	return nil
}

func (p *ChainPoller) handleFactoryLog(ctx context.Context, l rpcclient.Log) error {
	if len(l.Topics) == 0 {
		return nil
	}
	coords, err := p.txCoords(ctx, l)
	if err != nil {
		return err
	}

	switch l.Topics[0] {
	case chains.SrcEscrowCreatedTopic:
		f, ok := decode.SrcEscrowCreatedFields(l.Data)
		if !ok {
			return nil
		}
		if _, err := p.corr.SrcEscrowCreated(ctx, p.chainID, coords, f); err != nil {
			return err
		}
	case chains.DstEscrowCreatedTopic:
		f, ok := decode.DstEscrowCreatedFields(l.Data)
		if !ok {
			return nil
		}
		if _, err := p.corr.DstEscrowCreated(ctx, p.chainID, coords, l.Address, f); err != nil {
			return err
		}
	default:
		return nil
	}

	if _, err := p.repo.LabelTransfers(ctx, p.chainID, l.TransactionHash, store.SwapTypeFusionPlus); err != nil {
		return fmt.Errorf("label transfers: %w", err)
	}
	return nil
}

func (p *ChainPoller) handleEscrowLog(ctx context.Context, l rpcclient.Log) error {
	if len(l.Topics) == 0 {
		return nil
	}
	coords, err := p.txCoords(ctx, l)
	if err != nil {
		return err
	}

	switch l.Topics[0] {
	case chains.EscrowWithdrawalTopic:
		f, ok := decode.EscrowWithdrawalFields(l.Data)
		if !ok {
			return nil
		}
		if _, err := p.corr.EscrowWithdrawal(ctx, p.chainID, coords, f); err != nil {
			return err
		}
	case chains.EscrowCancelledTopic:
		if err := p.corr.EscrowCancelled(ctx, p.chainID, l.TransactionHash); err != nil {
			return err
		}
		return nil
	default:
		return nil
	}

	if _, err := p.repo.LabelTransfers(ctx, p.chainID, l.TransactionHash, store.SwapTypeFusionPlus); err != nil {
		return fmt.Errorf("label transfers: %w", err)
	}
	return nil
}

func (p *ChainPoller) ingestFusion(ctx context.Context, from, to uint64) error {
	router := chains.RouterAddress(p.chainID)
	logs, err := p.rpc.Logs(ctx, from, to, router, []string{chains.OrderFilledTopic, chains.OrderCancelledTopic})
	if err != nil {
		return err
	}

	for _, l := range logs {
		if err := p.handleRouterLog(ctx, l); err != nil {
			p.log.Warn("failed to handle fusion router log", zap.String("tx", l.TransactionHash), zap.Error(err))
		}
	}
	return nil
}

func (p *ChainPoller) handleRouterLog(ctx context.Context, l rpcclient.Log) error {
	if len(l.Topics) == 0 {
		return nil
	}
	f, ok := decode.OrderFilledFields(l.Data)
	if !ok {
		return nil
	}

	coords, err := p.txCoords(ctx, l)
	if err != nil {
		return err
	}

	status := store.FusionFilled
	if l.Topics[0] != chains.OrderFilledTopic && l.Topics[0] == chains.OrderCancelledTopic {
		status = store.FusionCancelled
	}

	transfers, err := p.repo.TransfersByTxHash(ctx, p.chainID, l.TransactionHash)
	if err != nil {
		return fmt.Errorf("transfers by tx hash: %w", err)
	}
	enriched := enrichMakerTaker(transfers, p.chainID)

	swap := store.FusionSwap{
		OrderHash:      f.OrderHash,
		ChainID:        p.chainID,
		TxHash:         coords.TxHash,
		BlockNumber:    coords.BlockNumber,
		BlockTimestamp: coords.BlockTimestamp,
		LogIndex:       coords.LogIndex,
		Remaining:      f.Remaining,
		IsPartialFill:  f.Remaining != "" && f.Remaining != zeroWord,
		Status:         status,
	}
	if enriched != nil {
		swap.Maker = enriched.Maker
		swap.MakerToken = enriched.MakerToken
		swap.TakerToken = enriched.TakerToken
		swap.MakerAmount = enriched.MakerAmount
		swap.TakerAmount = enriched.TakerAmount
	}

	if _, err := p.repo.InsertFusionSwap(ctx, swap); err != nil {
		return fmt.Errorf("insert fusion swap: %w", err)
	}
	if _, err := p.repo.LabelTransfers(ctx, p.chainID, l.TransactionHash, store.SwapTypeFusion); err != nil {
		return fmt.Errorf("label transfers: %w", err)
	}
	return nil
}

var zeroWord = "0x" + strings.Repeat("0", 64)

func (p *ChainPoller) txCoords(ctx context.Context, l rpcclient.Log) (correlator.TxCoords, error) {
	blockNumber, err := l.BlockNumberUint64()
	if err != nil {
		return correlator.TxCoords{}, err
	}
	logIndex, err := l.LogIndexUint32()
	if err != nil {
		return correlator.TxCoords{}, err
	}
	ts, err := p.blockTimestamp(ctx, blockNumber)
	if err != nil {
		return correlator.TxCoords{}, err
	}
	return correlator.TxCoords{
		TxHash:         l.TransactionHash,
		BlockNumber:    blockNumber,
		BlockTimestamp: ts,
		LogIndex:       logIndex,
	}, nil
}

// blockTimestamp resolves a block's Unix timestamp via the poller's private
// cache, fetching and memoizing it on first use.
func (p *ChainPoller) blockTimestamp(ctx context.Context, blockNumber uint64) (uint64, error) {
	if ts, ok := p.tsCache[blockNumber]; ok {
		return ts, nil
	}
	b, err := p.rpc.Block(ctx, blockNumber)
	if err != nil {
		return 0, err
	}
	ts, err := b.TimestampUint64()
	if err != nil {
		return 0, err
	}
	p.tsCache[blockNumber] = ts
	return ts, nil
}

// evictStaleTimestamps drops cache entries older than last-200, bounding
// the cache to a small multiple of the confirmation window.
func (p *ChainPoller) evictStaleTimestamps() {
	floor := saturatingSub(p.last, tsCacheRetention)
	for n := range p.tsCache {
		if n < floor {
			delete(p.tsCache, n)
		}
	}
}

// addressFromTopic extracts the low 20 bytes (last 40 hex chars) of an
// indexed address topic.
func addressFromTopic(topic string) string {
	h := strings.TrimPrefix(topic, "0x")
	if len(h) < 40 {
		return "0x" + strings.ToLower(h)
	}
	return "0x" + strings.ToLower(h[len(h)-40:])
}
