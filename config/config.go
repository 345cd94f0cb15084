// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Protocol rules: defined in genesis, immutable, must match across all nodes
//   - Node settings: runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
// These settings can vary between nodes without breaking consensus.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// P2P networking
	P2P P2PConfig

	// Tip-following sync tunables
	Sync SyncConfig

	// Logging
	Log LogConfig
}

// P2PConfig holds peer-to-peer network settings.
type P2PConfig struct {
	Enabled    bool     `conf:"p2p.enabled"`
	ListenAddr string   `conf:"p2p.listen"`
	Port       int      `conf:"p2p.port"`
	Seeds      []string `conf:"p2p.seeds"`
	MaxPeers   int      `conf:"p2p.maxpeers"`
	NoDiscover bool     `conf:"p2p.nodiscover"`
	DHTServer  bool     `conf:"p2p.dhtserver"`
}

// SyncConfig holds the Syncer's tunables.
type SyncConfig struct {
	// Fanout is the number of peers queried in parallel for each tip query.
	Fanout int `conf:"sync.fanout"`

	// LookaheadLimit is the maximum number of blocks the syncer will have
	// queued or in flight past the current tip before it stops issuing new
	// FindBlocks/download requests.
	LookaheadLimit int `conf:"sync.lookahead"`

	// BlockTimeout bounds a single block download attempt.
	BlockTimeout time.Duration `conf:"sync.blocktimeout"`

	// SyncRestartTimeout is how long the outer sync loop waits after a
	// full-restart-on-error before trying again.
	SyncRestartTimeout time.Duration `conf:"sync.restarttimeout"`

	// BlockDownloadRetries is the total number of download attempts made
	// for a single block (the first try included) before the owning
	// chain-tip attempt is abandoned.
	BlockDownloadRetries int `conf:"sync.retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.zchain
//	macOS:   ~/Library/Application Support/Zchain
//	Windows: %APPDATA%\Zchain
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zchain"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Zchain")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Zchain")
		}
		return filepath.Join(home, "AppData", "Roaming", "Zchain")
	default:
		return filepath.Join(home, ".zchain")
	}
}

// ChainDataDir returns the chain-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// FinalizedStateDir returns the finalized-state database directory.
func (c *Config) FinalizedStateDir() string {
	return filepath.Join(c.ChainDataDir(), "finalizedstate")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "zchain.conf")
}
