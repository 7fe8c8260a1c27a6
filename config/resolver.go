package config

import "strings"

// Resolver merges a loaded Config over Default() and validates the
// result, per spec.md 7's "invalid configuration at startup" being fatal
// to the daemon.
type Resolver struct{}

func NewResolver() *Resolver { return &Resolver{} }

// Resolve fills zero-valued fields of cfg from Default() and validates
// the merged result.
func (r *Resolver) Resolve(cfg Config) (Config, error) {
	def := Default()

	if cfg.ListenPort == 0 {
		cfg.ListenPort = def.ListenPort
	}
	if cfg.DiscoveryPort == 0 {
		cfg.DiscoveryPort = def.DiscoveryPort
	}
	if cfg.ControlSocketPath == "" {
		cfg.ControlSocketPath = def.ControlSocketPath
	}
	if cfg.LogDir == "" {
		cfg.LogDir = def.LogDir
	}
	if cfg.LogRotateBytes == 0 {
		cfg.LogRotateBytes = def.LogRotateBytes
	}
	if cfg.StateDir == "" {
		cfg.StateDir = def.StateDir
	}
	if cfg.Bandwidth.GlobalBytesPerSec == 0 {
		cfg.Bandwidth.GlobalBytesPerSec = def.Bandwidth.GlobalBytesPerSec
	}
	if cfg.Bandwidth.PerPeerBytesPerSec == 0 {
		cfg.Bandwidth.PerPeerBytesPerSec = def.Bandwidth.PerPeerBytesPerSec
	}
	if cfg.Bandwidth.BurstBytes == 0 {
		cfg.Bandwidth.BurstBytes = def.Bandwidth.BurstBytes
	}
	if cfg.Health.EWMAAlpha == 0 {
		cfg.Health.EWMAAlpha = def.Health.EWMAAlpha
	}
	if cfg.Health.PeerStaleTimeout == 0 {
		cfg.Health.PeerStaleTimeout = def.Health.PeerStaleTimeout
	}
	if cfg.Health.MaxActivePeers == 0 {
		cfg.Health.MaxActivePeers = def.Health.MaxActivePeers
	}
	if cfg.Health.JitterWeight == 0 {
		cfg.Health.JitterWeight = def.Health.JitterWeight
	}
	if cfg.Health.LossWeight == 0 {
		cfg.Health.LossWeight = def.Health.LossWeight
	}
	if cfg.Sync.BlockSize == 0 {
		cfg.Sync.BlockSize = def.Sync.BlockSize
	}
	if cfg.Sync.MaxChunkBytes == 0 {
		cfg.Sync.MaxChunkBytes = def.Sync.MaxChunkBytes
	}
	if cfg.Sync.DefaultStrategy == "" {
		cfg.Sync.DefaultStrategy = def.Sync.DefaultStrategy
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if len(cfg.WatchRoots) == 0 {
		return errInvalid("at least one watch root is required")
	}
	if strings.TrimSpace(cfg.SessionCode) == "" {
		return errInvalid("session_code must not be empty")
	}
	if cfg.ListenPort <= 0 || cfg.ListenPort > 65535 {
		return errInvalid("listen_port out of range")
	}
	if cfg.DiscoveryPort <= 0 || cfg.DiscoveryPort > 65535 {
		return errInvalid("discovery_port out of range")
	}
	if cfg.ControlSocketPath == "" {
		return errInvalid("control_socket_path must not be empty")
	}
	if cfg.LogRotateBytes < 100*1024*1024 {
		return errInvalid("log_rotate_bytes must be at least 100 MiB")
	}
	if cfg.Sync.BlockSize <= 0 {
		return errInvalid("sync.block_size must be positive")
	}
	if cfg.Sync.MaxChunkBytes <= 0 {
		return errInvalid("sync.max_chunk_bytes must be positive")
	}
	switch cfg.Sync.DefaultStrategy {
	case "newest_wins", "largest_wins", "remote_wins", "local_wins", "keep_both", "manual":
	default:
		return errInvalid("sync.default_strategy is not a recognized strategy")
	}
	return nil
}
