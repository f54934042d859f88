package poller

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evmindexer/internal/chains"
	"evmindexer/internal/correlator"
	"evmindexer/internal/rpcclient"
	"evmindexer/internal/store"
)

// fakeRPC serves canned transfer-log responses keyed by the exact
// [from,to] window requested, letting tests script a precise sequence of
// windows. Fusion/Fusion+ queries always return empty, keeping these tests
// scoped to transfer ingestion.
type fakeRPC struct {
	head         uint64
	transferLogs map[[2]uint64][]rpcclient.Log
	blockTimes   map[uint64]uint64
}

func newFakeRPC(head uint64) *fakeRPC {
	return &fakeRPC{head: head, transferLogs: make(map[[2]uint64][]rpcclient.Log), blockTimes: make(map[uint64]uint64)}
}

func (f *fakeRPC) BlockNumber(ctx context.Context) (uint64, error) { return f.head, nil }

func (f *fakeRPC) Block(ctx context.Context, number uint64) (rpcclient.Block, error) {
	return rpcclient.Block{NumberHex: hexOf(number), TimestampHex: hexOf(f.blockTimes[number])}, nil
}

func (f *fakeRPC) TransferLogs(ctx context.Context, from, to uint64, topic string) ([]rpcclient.Log, error) {
	return f.transferLogs[[2]uint64{from, to}], nil
}

func (f *fakeRPC) Logs(ctx context.Context, from, to uint64, addr string, topics []string) ([]rpcclient.Log, error) {
	return nil, nil
}

func hexOf(n uint64) string { return fmt.Sprintf("0x%x", n) }

// flakyHeadRPC wraps a fakeRPC and fails BlockNumber a configurable number
// of times before delegating to it, letting tests script a chain whose RPC
// endpoint is briefly unreachable at startup.
type flakyHeadRPC struct {
	*fakeRPC
	failures int32
}

func (f *flakyHeadRPC) BlockNumber(ctx context.Context) (uint64, error) {
	if atomic.AddInt32(&f.failures, -1) >= 0 {
		return 0, errors.New("connection refused")
	}
	return f.fakeRPC.BlockNumber(ctx)
}

func transferLog(txHash string, logIndex, blockNumber uint64, from, to string) rpcclient.Log {
	return rpcclient.Log{
		Address:         "0xtoken",
		Topics:          []string{chains.TransferTopic, topicFromAddr(from), topicFromAddr(to)},
		Data:            "0x01",
		BlockNumberHex:  hexOf(blockNumber),
		TransactionHash: txHash,
		LogIndexHex:     hexOf(logIndex),
	}
}

func topicFromAddr(addr string) string {
	return "0x000000000000000000000000" + addr[2:]
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "poller.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestChainPoller(repo store.Repository, rpc RPCClient, cfg Config) *ChainPoller {
	return New(1, "test", rpc, repo, correlator.New(repo), cfg, zap.NewNop())
}

// TestPollOnceTransferDedup asserts that feeding the same log response
// twice for the same window must not duplicate rows.
func TestPollOnceTransferDedup(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	rpc := newFakeRPC(113) // head=113, confirmation=3 => to=110
	rpc.transferLogs[[2]uint64{100, 110}] = []rpcclient.Log{
		transferLog("0xtx1", 0, 100, "0xfrom1", "0xto1"),
		transferLog("0xtx2", 1, 105, "0xfrom2", "0xto2"),
	}

	cfg := Config{ReorgSafetyBlocks: 0, ConfirmationBlocks: 3, MaxBlocksPerQuery: 1000, MaxBackfillBlocks: 500}
	p := newTestChainPoller(repo, rpc, cfg)
	p.last = 99

	require.NoError(t, p.pollOnce(ctx))
	require.EqualValues(t, 110, p.last)

	count, err := repo.TransferCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// rewind as if the same window were requested again (e.g. the chain
	// poller restarted before its checkpoint write landed): identical
	// response, identical window.
	p.last = 99
	require.NoError(t, p.pollOnce(ctx))

	count, err = repo.TransferCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count, "repeated identical window must not duplicate rows")
}

// TestPollOnceReorgOverlap asserts that after processing up to block 200,
// a subsequent window [191,210] containing two already-seen logs plus
// three new ones inserts exactly the three new rows.
func TestPollOnceReorgOverlap(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	rpc := newFakeRPC(203) // confirmation=3 => to=200 on the first pass
	rpc.transferLogs[[2]uint64{191, 200}] = []rpcclient.Log{
		transferLog("0xold1", 0, 195, "0xa", "0xb"),
		transferLog("0xold2", 0, 198, "0xc", "0xd"),
	}

	cfg := Config{ReorgSafetyBlocks: 10, ConfirmationBlocks: 3, MaxBlocksPerQuery: 1000, MaxBackfillBlocks: 500}
	p := newTestChainPoller(repo, rpc, cfg)
	p.last = 200 // simulate "already processed up to block 200"

	require.NoError(t, p.pollOnce(ctx))
	require.EqualValues(t, 200, p.last)

	count, err := repo.TransferCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// now the head has advanced and the next response re-delivers the two
	// already-seen logs from [191,200] plus three new ones in [201,210].
	rpc.head = 213
	rpc.transferLogs[[2]uint64{191, 210}] = []rpcclient.Log{
		transferLog("0xold1", 0, 195, "0xa", "0xb"),
		transferLog("0xold2", 0, 198, "0xc", "0xd"),
		transferLog("0xnew1", 0, 202, "0xe", "0xf"),
		transferLog("0xnew2", 0, 205, "0xg", "0xh"),
		transferLog("0xnew3", 0, 208, "0xi", "0xj"),
	}

	require.NoError(t, p.pollOnce(ctx))
	require.EqualValues(t, 210, p.last)

	count, err = repo.TransferCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 5, count, "exactly three new rows should have been added")
}

// TestInitializeCheckpointSkipsForwardWhenStale asserts that a checkpoint
// far behind the current head is abandoned in favor of a fresh starting
// point, rather than triggering a multi-million-block backfill.
func TestInitializeCheckpointSkipsForwardWhenStale(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	require.NoError(t, repo.SetCheckpoint(ctx, 1, 1000))

	rpc := newFakeRPC(2_000_000)
	cfg := Config{ReorgSafetyBlocks: 10, ConfirmationBlocks: 3, MaxBlocksPerQuery: 100, MaxBackfillBlocks: 500}
	p := newTestChainPoller(repo, rpc, cfg)

	require.NoError(t, p.initializeCheckpoint(ctx))
	require.EqualValues(t, 1_999_990, p.last)

	saved, ok, err := repo.GetCheckpoint(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1_999_990, saved)
}

func TestInitializeCheckpointUsesSavedWhenWithinBackfillWindow(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)
	require.NoError(t, repo.SetCheckpoint(ctx, 1, 900))

	rpc := newFakeRPC(1000)
	cfg := Config{ReorgSafetyBlocks: 10, ConfirmationBlocks: 3, MaxBlocksPerQuery: 100, MaxBackfillBlocks: 500}
	p := newTestChainPoller(repo, rpc, cfg)

	require.NoError(t, p.initializeCheckpoint(ctx))
	require.EqualValues(t, 900, p.last)
}

func TestInitializeCheckpointFreshChainStartsBehindHead(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	rpc := newFakeRPC(1000)
	cfg := Config{ReorgSafetyBlocks: 10, ConfirmationBlocks: 3, MaxBlocksPerQuery: 100, MaxBackfillBlocks: 500}
	p := newTestChainPoller(repo, rpc, cfg)

	require.NoError(t, p.initializeCheckpoint(ctx))
	require.EqualValues(t, 990, p.last)
}

// TestWaitForCheckpointToleratesTransientStartupFailure asserts that a few
// initial BlockNumber failures delay but never fail checkpoint
// initialization: waitForCheckpoint must not return an error, because Run
// propagating one would cancel every other chain's poller sharing the
// supervisor's errgroup.
func TestWaitForCheckpointToleratesTransientStartupFailure(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore(t)

	rpc := &flakyHeadRPC{fakeRPC: newFakeRPC(1000), failures: 3}
	cfg := Config{ReorgSafetyBlocks: 10, ConfirmationBlocks: 3, PollInterval: time.Millisecond, MaxBlocksPerQuery: 100, MaxBackfillBlocks: 500}
	p := newTestChainPoller(repo, rpc, cfg)

	p.waitForCheckpoint(ctx)
	require.NoError(t, ctx.Err())
	require.EqualValues(t, 990, p.last)

	saved, ok, err := repo.GetCheckpoint(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 990, saved)
}

// TestWaitForCheckpointStopsOnCancellationWhenRPCNeverRecovers asserts that
// a persistently failing RPC endpoint at startup makes waitForCheckpoint
// keep retrying until ctx is cancelled, rather than ever returning an error.
func TestWaitForCheckpointStopsOnCancellationWhenRPCNeverRecovers(t *testing.T) {
	repo := newTestStore(t)

	rpc := &flakyHeadRPC{fakeRPC: newFakeRPC(1000), failures: 1 << 30}
	cfg := Config{ReorgSafetyBlocks: 10, ConfirmationBlocks: 3, PollInterval: time.Millisecond, MaxBlocksPerQuery: 100, MaxBackfillBlocks: 500}
	p := newTestChainPoller(repo, rpc, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.waitForCheckpoint(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitForCheckpoint did not return after ctx cancellation")
	}
	require.Error(t, ctx.Err())
}
