// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ResolutionQueueSize bounds the in-memory resolution job queue.
	ResolutionQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of resolution workers.
	WorkerCount int `koanf:"worker_count"`

	// StorePath locates the sqlite placement store file.
	StorePath string `koanf:"store_path"`

	// SaveDebounceMS is the trailing-edge debounce for durable saves.
	SaveDebounceMS int `koanf:"save_debounce_ms"`

	// AnalysisTTLHours sets the analysis cache retention window.
	AnalysisTTLHours int `koanf:"analysis_ttl_hours"`

	// MaxPosts caps how many recent posts feed the scoring prompt.
	MaxPosts int `koanf:"max_posts"`

	// ModelName selects the generative scoring model.
	ModelName string `koanf:"model_name"`

	// ModelAPIKey authenticates against the generative model service.
	ModelAPIKey string `koanf:"model_api_key"`

	// CacheAddr, CacheUsername and CachePassword configure the external
	// analysis cache service. Empty CacheAddr disables the external cache.
	CacheAddr     string `koanf:"cache_addr"`
	CacheUsername string `koanf:"cache_username"`
	CachePassword string `koanf:"cache_password"`

	// ScraperBaseURL and ScraperToken configure the external profile source.
	ScraperBaseURL string `koanf:"scraper_base_url"`
	ScraperToken   string `koanf:"scraper_token"`

	// AvatarProxyBaseURL is the third-party avatar proxy convention root.
	AvatarProxyBaseURL string `koanf:"avatar_proxy_base_url"`

	// RPCURL points at the chain RPC endpoint.
	RPCURL string `koanf:"rpc_url"`

	// RegistryAddress and NFTAddress locate the on-chain contracts.
	RegistryAddress string `koanf:"registry_address"`
	NFTAddress      string `koanf:"nft_address"`

	// OperatorKeyHex is the server-held operator signing key.
	OperatorKeyHex string `koanf:"operator_key"`

	// ChainID identifies the target chain for transaction signing.
	ChainID int64 `koanf:"chain_id"`

	// MintPollIntervalMS sets the mint fulfillment polling interval.
	MintPollIntervalMS int `koanf:"mint_poll_interval_ms"`

	// NonceTTLMinutes bounds how long an issued commit nonce stays valid.
	NonceTTLMinutes int `koanf:"nonce_ttl_minutes"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		ResolutionQueueSize: 1024,
		WorkerCount:         runtime.NumCPU() * 2,
		StorePath:           "verigrant.db",
		SaveDebounceMS:      1000,
		AnalysisTTLHours:    7 * 24,
		MaxPosts:            10,
		ModelName:           "gemini-2.0-flash",
		AvatarProxyBaseURL:  "https://unavatar.io",
		ChainID:             84532,
		MintPollIntervalMS:  4000,
		NonceTTLMinutes:     5,
	}
}
