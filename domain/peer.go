// Package domain holds the core data model shared across SentinelFS
// components: peer records, file metadata, vector clocks, and the
// transient bookkeeping structures the sync engine and session manager
// own (spec.md 3).
package domain

import "time"

// PeerStatus is the liveness state of a known peer.
type PeerStatus string

const (
	PeerActive   PeerStatus = "active"
	PeerInactive PeerStatus = "inactive"
	PeerUnknown  PeerStatus = "unknown"
)

// Peer is a record of a remote daemon, unique by PeerID. Ownership is
// shared between the sync engine and the health monitor: the health
// monitor is the only writer of LatencyMs (spec.md 3 "Ownership").
type Peer struct {
	PeerID        string
	Address       string
	Port          int
	LastSeen      time.Time
	Status        PeerStatus
	Authenticated bool
	LatencyMs     float64
}
