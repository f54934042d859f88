package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"evmindexer/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"RPC_URL_TEMPLATE", "RPC_API_KEY", "SQLITE_PATH", "TTL_SECS", "LOG_LEVEL", "CLEANUP_INTERVAL_SECS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadRequiresURLTemplate(t *testing.T) {
	clearEnv(t)
	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadResolvesPerChainURLsFromTemplate(t *testing.T) {
	clearEnv(t)
	t.Setenv("RPC_URL_TEMPLATE", "https://%s.g.alchemy.com/v2/%s")
	t.Setenv("RPC_API_KEY", "testkey")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "data/indexer.db", cfg.SQLitePath)
	require.Equal(t, "https://eth-mainnet.g.alchemy.com/v2/testkey", cfg.ChainRPCURLs[1])
	require.Equal(t, "https://arb-mainnet.g.alchemy.com/v2/testkey", cfg.ChainRPCURLs[42161])
}

func TestLoadAppliesOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RPC_URL_TEMPLATE", "https://rpc.example.com")
	t.Setenv("SQLITE_PATH", "/tmp/custom.db")
	t.Setenv("TTL_SECS", "120")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.db", cfg.SQLitePath)
	require.Equal(t, int64(120), int64(cfg.TTL.Seconds()))
	require.Equal(t, "https://rpc.example.com", cfg.ChainRPCURLs[1])
}
