package rpcclient_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"evmindexer/internal/rpcclient"
)

func TestBlockNumberRetriesOnRateLimitThenSucceeds(t *testing.T) {
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": 1, "result": "0x10"}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := rpcclient.New(srv.URL, "test", rpcclient.Config{MaxRetries: 3, RetryBaseDelay: 5 * time.Millisecond})

	start := time.Now()
	n, err := c.BlockNumber(t.Context())
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, uint64(16), n)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
	// two retries at 5ms then 10ms backoff: at least 15ms elapsed.
	require.GreaterOrEqual(t, elapsed, 15*time.Millisecond)
}

func TestBlockNumberExhaustsRetriesOnPersistentRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := rpcclient.New(srv.URL, "test", rpcclient.Config{MaxRetries: 2, RetryBaseDelay: time.Millisecond})
	_, err := c.BlockNumber(t.Context())
	require.Error(t, err)
	require.True(t, errors.Is(err, rpcclient.ErrRateLimited), "exhausting HTTP-status retries must surface as ErrRateLimited")
}

func TestBlockNumberNonRetryableRPCErrorFailsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		resp := map[string]any{"jsonrpc": "2.0", "id": 1, "error": map[string]any{"code": -32601, "message": "method not found"}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := rpcclient.New(srv.URL, "test", rpcclient.Config{MaxRetries: 3, RetryBaseDelay: time.Millisecond})
	_, err := c.BlockNumber(t.Context())
	require.Error(t, err)

	var rpcErr *rpcclient.RPCError
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, -32601, rpcErr.Code)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestLogsBuildsMultiTopicFilter(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		resp := map[string]any{"jsonrpc": "2.0", "id": 1, "result": []any{}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := rpcclient.New(srv.URL, "test", rpcclient.DefaultConfig())
	logs, err := c.Logs(t.Context(), 1, 10, "0xfactory", []string{"0xtopicA", "0xtopicB"})
	require.NoError(t, err)
	require.Empty(t, logs)

	params := gotBody["params"].([]any)
	filter := params[0].(map[string]any)
	require.Equal(t, "0xfactory", filter["address"])
	topics := filter["topics"].([]any)
	require.Len(t, topics, 1)
	opts := topics[0].([]any)
	require.ElementsMatch(t, []any{"0xtopicA", "0xtopicB"}, opts)
}
