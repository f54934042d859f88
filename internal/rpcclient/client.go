// Package rpcclient is a minimal JSON-RPC client for EVM nodes, carrying
// only the methods the indexer needs, each wrapped in the same
// retry/backoff policy.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Config tunes retry behaviour; the HTTP transport settings are fixed in New.
// The zero value makes a single attempt with no retries; DefaultConfig gives
// the standard retry policy.
type Config struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// DefaultConfig returns three retries with a 100ms base backoff that
// doubles each attempt.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, RetryBaseDelay: 100 * time.Millisecond}
}

// Client issues eth_* JSON-RPC calls against a single endpoint (and, by
// extension, a single chain).
type Client struct {
	url       string
	chainName string
	cfg       Config
	http      *http.Client
	nextID    int
}

// New builds a Client. The underlying transport pools at most two idle
// connections per host for 30s and caps whole-request latency at 60s, tuned
// for RPC providers that sit behind aggressive load balancers.
func New(url, chainName string, cfg Config) *Client {
	return &Client{
		url:       url,
		chainName: chainName,
		cfg:       cfg,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// retryableStatus reports whether an HTTP status code is worth retrying:
// rate limiting and the usual upstream/gateway hiccups.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryableRPCError reports whether a JSON-RPC error object signals the
// caller should back off and retry rather than fail immediately.
func retryableRPCError(e *jsonRPCError) bool {
	if e == nil {
		return false
	}
	if e.Code == -32005 {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "rate")
}

func (c *Client) backoff(attempt int) time.Duration {
	// attempt is 1-based: the delay before the 2nd try is 1x base, before
	// the 3rd is 2x, before the 4th is 4x, ...
	return c.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
}

// call performs one JSON-RPC request with retry/backoff, unmarshalling the
// result field into out.
func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	c.nextID++
	reqBody, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: c.nextID, Method: method, Params: params})
	if err != nil {
		return &ParseError{Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries+1; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		resp, rpcErr, retry, err := c.doOnce(ctx, method, reqBody, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		_ = resp
		_ = rpcErr
	}
	return fmt.Errorf("rpcclient: %s on %s: exhausted retries: %w", method, c.chainName, lastErr)
}

// doOnce performs a single HTTP round trip. The bool return reports whether
// the error (if any) is retryable.
func (c *Client) doOnce(ctx context.Context, method string, body []byte, out any) (*jsonRPCResponse, *jsonRPCError, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, false, &ParseError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// transport-level failures (timeouts, connection resets) are
		// always worth a retry; the upstream may simply be overloaded.
		return nil, nil, true, fmt.Errorf("rpcclient: %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, true, &ParseError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if retryableStatus(resp.StatusCode) {
			return nil, nil, true, fmt.Errorf("%w: http status %d", ErrRateLimited, resp.StatusCode)
		}
		return nil, nil, false, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var parsed jsonRPCResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, nil, false, &ParseError{Err: err}
	}

	if parsed.Error != nil {
		if retryableRPCError(parsed.Error) {
			return &parsed, parsed.Error, true, fmt.Errorf("%w: %s", ErrRateLimited, parsed.Error.Message)
		}
		return &parsed, parsed.Error, false, &RPCError{Code: parsed.Error.Code, Message: parsed.Error.Message}
	}

	if out != nil {
		if err := json.Unmarshal(parsed.Result, out); err != nil {
			return &parsed, nil, false, &ParseError{Err: err}
		}
	}
	return &parsed, nil, false, nil
}

// BlockNumber returns the latest block number known to the node.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var hex string
	if err := c.call(ctx, "eth_blockNumber", nil, &hex); err != nil {
		return 0, err
	}
	return parseHexUint64(hex)
}

// Block fetches a block (without full transaction bodies) by number.
func (c *Client) Block(ctx context.Context, number uint64) (Block, error) {
	var b Block
	err := c.call(ctx, "eth_getBlockByNumber", []any{toHex(number), false}, &b)
	return b, err
}

// TransferLogs fetches ERC-20 Transfer logs across [fromBlock, toBlock]
// without restricting to a contract address.
func (c *Client) TransferLogs(ctx context.Context, fromBlock, toBlock uint64, transferTopic string) ([]Log, error) {
	return c.Logs(ctx, fromBlock, toBlock, "", []string{transferTopic})
}

// Logs fetches logs matching any of topic0Options at the given address (or
// every address, if addr is empty).
func (c *Client) Logs(ctx context.Context, fromBlock, toBlock uint64, addr string, topic0Options []string) ([]Log, error) {
	filter := map[string]any{
		"fromBlock": toHex(fromBlock),
		"toBlock":   toHex(toBlock),
	}
	if addr != "" {
		filter["address"] = addr
	}
	if len(topic0Options) == 1 {
		filter["topics"] = []any{topic0Options[0]}
	} else if len(topic0Options) > 1 {
		filter["topics"] = []any{topic0Options}
	}

	var logs []Log
	err := c.call(ctx, "eth_getLogs", []any{filter}, &logs)
	return logs, err
}

func toHex(n uint64) string {
	return "0x" + strconv.FormatUint(n, 16)
}

func parseHexUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, &ParseError{Err: fmt.Errorf("invalid hex uint %q: %w", s, err)}
	}
	return n, nil
}
