package rpcclient

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned (wrapped) when a request exhausts its retries
// while the upstream keeps signalling rate limiting.
var ErrRateLimited = errors.New("rpcclient: rate limited")

// HTTPError is a non-2xx, non-retryable HTTP response (anything other than
// 429/502/503/504, which instead exhaust as ErrRateLimited).
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rpcclient: http status %d: %s", e.StatusCode, e.Body)
}

// RPCError is a JSON-RPC error object returned inside a 200 response.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpcclient: rpc error %d: %s", e.Code, e.Message)
}

// ParseError wraps a failure to decode the HTTP response body as JSON, or to
// unmarshal its "result" field into the expected Go type.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("rpcclient: parse: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }
