package config

import (
	"fmt"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.P2P.Port < 0 || cfg.P2P.Port > 65535 {
		return fmt.Errorf("p2p.port must be in range [0, 65535]")
	}
	if cfg.Sync.Fanout <= 0 {
		return fmt.Errorf("sync.fanout must be positive")
	}
	if cfg.Sync.LookaheadLimit <= 0 {
		return fmt.Errorf("sync.lookahead must be positive")
	}
	if cfg.Sync.BlockDownloadRetries <= 0 {
		return fmt.Errorf("sync.retries must be positive")
	}
	return nil
}
