// Package config loads the indexer's process-environment configuration:
// which chains to poll, where their RPC endpoints are, where to persist
// state, and how long to retain it. This is the one place that owns
// environment loading so the rest of the program never reads an env var
// directly.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"evmindexer/internal/chains"
)

// Config is the fully-resolved, ready-to-use configuration for one run of
// the indexer.
type Config struct {
	SQLitePath      string
	TTL             time.Duration
	LogLevel        string
	CleanupInterval time.Duration
	RPCAPIKey       string
	RPCURLTemplate  string

	// ChainRPCURLs maps each supported chain id to its fully-resolved RPC
	// endpoint URL, derived from RPCURLTemplate + RPCAPIKey.
	ChainRPCURLs map[uint32]string
}

// Load reads configuration from the process environment, applying
// reasonable defaults for every optional setting.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("SQLITE_PATH", "data/indexer.db")
	v.SetDefault("TTL_SECS", 600)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CLEANUP_INTERVAL_SECS", 60)
	v.SetDefault("RPC_API_KEY", "")

	template := v.GetString("RPC_URL_TEMPLATE")
	if template == "" {
		return Config{}, fmt.Errorf("config: RPC_URL_TEMPLATE is required")
	}

	cfg := Config{
		SQLitePath:      v.GetString("SQLITE_PATH"),
		TTL:             time.Duration(v.GetInt64("TTL_SECS")) * time.Second,
		LogLevel:        v.GetString("LOG_LEVEL"),
		CleanupInterval: time.Duration(v.GetInt64("CLEANUP_INTERVAL_SECS")) * time.Second,
		RPCAPIKey:       v.GetString("RPC_API_KEY"),
		RPCURLTemplate:  template,
		ChainRPCURLs:    make(map[uint32]string, len(chains.Supported)),
	}

	for _, n := range chains.Supported {
		cfg.ChainRPCURLs[n.ChainID] = resolveURL(template, n.Slug, cfg.RPCAPIKey)
	}

	return cfg, nil
}

// resolveURL substitutes the chain's network slug into template. A template
// containing no "%s" placeholder is treated as a literal URL reused for
// every chain (e.g. a single self-hosted node proxying all chains).
func resolveURL(template, slug, apiKey string) string {
	url := template
	if strings.Contains(url, "%s") {
		url = strings.Replace(url, "%s", slug, 1)
	}
	if apiKey != "" && strings.Contains(url, "%s") {
		url = strings.Replace(url, "%s", apiKey, 1)
	}
	return url
}
