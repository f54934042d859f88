package poller

import "time"

// Config tunes one chain's polling cadence and windowing.
type Config struct {
	ReorgSafetyBlocks uint64
	ConfirmationBlocks uint64
	PollInterval       time.Duration
	MaxBlocksPerQuery  uint64
	MaxBackfillBlocks  uint64
}

// DefaultConfig returns conservative defaults suitable for a public RPC
// provider: a few seconds of confirmation depth, a modest reorg-safety
// window, and a query size that stays well under typical provider limits.
func DefaultConfig() Config {
	return Config{
		ReorgSafetyBlocks: 10,
		ConfirmationBlocks: 3,
		PollInterval:       2000 * time.Millisecond,
		MaxBlocksPerQuery:  100,
		MaxBackfillBlocks:  500,
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
