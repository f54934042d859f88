package supervisor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evmindexer/internal/poller"
	"evmindexer/internal/rpcclient"
	"evmindexer/internal/store"
	"evmindexer/internal/supervisor"
)

func TestRunStopsOnCancellation(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "supervisor.db"))
	require.NoError(t, err)
	defer s.Close()

	sup := supervisor.New(supervisor.Config{
		Repo:            s,
		Logger:          zap.NewNop(),
		RPCConfig:       rpcclient.DefaultConfig(),
		CleanupInterval: 5 * time.Millisecond,
		TTL:             time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err = sup.Run(ctx)
	require.NoError(t, err)
}

// TestRunIsolatesPerChainStartupFailure asserts that one chain whose RPC
// endpoint never comes up cannot stop a sibling chain from initializing its
// checkpoint and polling normally: the two run inside the same errgroup, so
// this only holds if a poller's startup failure never escapes as an error.
func TestRunIsolatesPerChainStartupFailure(t *testing.T) {
	downSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer downSrv.Close()

	upSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{"jsonrpc": "2.0", "id": req["id"]}
		switch req["method"] {
		case "eth_blockNumber":
			resp["result"] = "0x64"
		default:
			resp["result"] = []any{}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer upSrv.Close()

	s, err := store.Open(filepath.Join(t.TempDir(), "supervisor-isolation.db"))
	require.NoError(t, err)
	defer s.Close()

	sup := supervisor.New(supervisor.Config{
		Chains: []supervisor.ChainConfig{
			{ChainID: 1, ChainName: "down", RPCURL: downSrv.URL},
			{ChainID: 2, ChainName: "up", RPCURL: upSrv.URL},
		},
		Repo:            s,
		Logger:          zap.NewNop(),
		PollerConfig:    poller.Config{ReorgSafetyBlocks: 10, ConfirmationBlocks: 3, PollInterval: 5 * time.Millisecond, MaxBlocksPerQuery: 100, MaxBackfillBlocks: 500},
		RPCConfig:       rpcclient.Config{MaxRetries: 0, RetryBaseDelay: time.Millisecond},
		CleanupInterval: 5 * time.Millisecond,
		TTL:             time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, sup.Run(ctx))

	_, ok, err := s.GetCheckpoint(context.Background(), 1)
	require.NoError(t, err)
	require.False(t, ok, "the down chain should never have initialized a checkpoint")

	saved, ok, err := s.GetCheckpoint(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, ok, "the up chain's poller must not be taken down by the sibling chain's startup failure")
	require.GreaterOrEqual(t, saved, uint64(90)) // head=100, reorg_safety=10 => initial checkpoint 90
}
