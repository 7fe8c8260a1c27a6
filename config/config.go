// Package config holds the daemon's configuration surface: watch roots,
// session code, bandwidth limits, remesh tuning, ignore patterns, and the
// control socket path. Grounded on the teacher's client_configuration /
// server_configuration manager+resolver+reader+writer quartet (each
// concern gets its own small type rather than one god-object), styled
// after infrastructure/settings.Host's validation-on-construction idiom.
package config

import (
	"net/netip"
	"path/filepath"
	"time"
)

// Config is the full daemon configuration (spec.md 6.1, 6.3, 9).
type Config struct {
	// PeerID uniquely identifies this daemon to the rest of the mesh. It
	// is generated once on first run and then persisted, so restarts keep
	// the same identity instead of re-announcing as a stranger.
	PeerID string `json:"peer_id"`

	// WatchRoots are the local directories kept in sync.
	WatchRoots []string `json:"watch_roots"`

	// SessionCode is the shared secret peers authenticate with (spec.md 4.1/4.2).
	SessionCode string `json:"session_code"`

	// ListenPort is the TCP data-plane port; DiscoveryPort is the UDP
	// broadcast/multicast port (spec.md 6.2).
	ListenPort    int `json:"listen_port"`
	DiscoveryPort int `json:"discovery_port"`

	// ControlSocketPath is the UNIX domain socket the CLI dials (spec.md 6.1).
	ControlSocketPath string `json:"control_socket_path"`

	// LogDir holds rotated log files; LogRotateBytes is the rotation
	// threshold (spec.md 6.3: "rotation >= 100 MiB").
	LogDir         string `json:"log_dir"`
	LogRotateBytes int64  `json:"log_rotate_bytes"`

	// StateDir holds persisted peer/file-metadata records and the offline
	// queue snapshot (spec.md 6.3).
	StateDir string `json:"state_dir"`

	IgnorePatterns []string `json:"ignore_patterns"`

	Bandwidth BandwidthConfig `json:"bandwidth"`
	Health    HealthConfig    `json:"health"`
	Sync      SyncConfig      `json:"sync"`
}

// BandwidthConfig tunes the global/per-peer token buckets (spec.md 4.4).
type BandwidthConfig struct {
	GlobalBytesPerSec int64 `json:"global_bytes_per_sec"`
	PerPeerBytesPerSec int64 `json:"per_peer_bytes_per_sec"`
	BurstBytes         int64 `json:"burst_bytes"`
}

// HealthConfig tunes peer scoring and remesh behavior (spec.md 4.3).
type HealthConfig struct {
	JitterWeight    float64       `json:"jitter_weight"`
	LossWeight      float64       `json:"loss_weight"`
	EWMAAlpha       float64       `json:"ewma_alpha"`
	PeerStaleTimeout time.Duration `json:"peer_stale_timeout"`
	MaxActivePeers  int           `json:"max_active_peers"`
}

// SyncConfig tunes the delta/chunking engine (spec.md 4.5).
type SyncConfig struct {
	BlockSize       int    `json:"block_size"`
	MaxChunkBytes   int    `json:"max_chunk_bytes"`
	DefaultStrategy string `json:"default_strategy"`
}

// Default returns the built-in defaults used when no config file is
// present, per spec.md 4.3/4.4/4.5/6.1's suggested constants.
func Default() Config {
	return Config{
		ListenPort:        9443,
		DiscoveryPort:     9444,
		ControlSocketPath: "/tmp/sentinel_daemon.sock",
		LogDir:            "/var/log/sentinelfs",
		LogRotateBytes:    100 * 1024 * 1024,
		StateDir:          "/var/lib/sentinelfs",
		Bandwidth: BandwidthConfig{
			GlobalBytesPerSec:  10 * 1024 * 1024,
			PerPeerBytesPerSec: 2 * 1024 * 1024,
			BurstBytes:         1024 * 1024,
		},
		Health: HealthConfig{
			JitterWeight:     1.0,
			LossWeight:       2.0,
			EWMAAlpha:        0.2,
			PeerStaleTimeout: 2 * time.Minute,
			MaxActivePeers:   8,
		},
		Sync: SyncConfig{
			BlockSize:       4096,
			MaxChunkBytes:   64 * 1024,
			DefaultStrategy: "newest_wins",
		},
	}
}

// ListenAddr returns the resolved TCP listen address for ListenPort.
func (c Config) ListenAddr() netip.AddrPort {
	return netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(c.ListenPort))
}

// StoreFilePath derives the peer/file-metadata store's path from a state
// directory, so every caller that needs it (the orchestrator's store and
// its offline queue snapshot) agrees on the same file without each
// hardcoding a name.
func StoreFilePath(stateDir string) string {
	return filepath.Join(stateDir, "state.json")
}
