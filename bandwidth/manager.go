package bandwidth

import "sync"

// Limits describes the configured rate ceilings for a Manager.
type Limits struct {
	GlobalUploadBytesPerS   float64
	GlobalDownloadBytesPerS float64
	PeerUploadBytesPerS     float64 // 0 = no per-peer limit
	PeerDownloadBytesPerS   float64
}

// Stats is a point-in-time snapshot for the control socket's status
// reporting (spec.md 6.1).
type Stats struct {
	GlobalUploadLimit   float64
	GlobalDownloadLimit float64
	UploadedBytes       uint64
	DownloadedBytes     uint64
	PerPeer             map[string]PeerStats
}

type PeerStats struct {
	UploadLimit     float64
	DownloadLimit   float64
	UploadedBytes   uint64
	DownloadedBytes uint64
}

// Manager composes global and optional per-peer token buckets. Requests
// must succeed both the per-peer limiter (if one exists) and the global
// limiter (spec.md 4.4).
type Manager struct {
	limits Limits

	globalUp   *TokenBucket
	globalDown *TokenBucket

	mu    sync.Mutex
	peers map[string]*peerLimiter
}

type peerLimiter struct {
	up, down         *TokenBucket
	uploaded, downed uint64
}

func NewManager(limits Limits) *Manager {
	return &Manager{
		limits:     limits,
		globalUp:   NewTokenBucket(limits.GlobalUploadBytesPerS, 0),
		globalDown: NewTokenBucket(limits.GlobalDownloadBytesPerS, 0),
		peers:      make(map[string]*peerLimiter),
	}
}

func (m *Manager) peer(peerID string) *peerLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[peerID]
	if !ok {
		p = &peerLimiter{}
		if m.limits.PeerUploadBytesPerS > 0 {
			p.up = NewTokenBucket(m.limits.PeerUploadBytesPerS, 0)
		}
		if m.limits.PeerDownloadBytesPerS > 0 {
			p.down = NewTokenBucket(m.limits.PeerDownloadBytesPerS, 0)
		}
		m.peers[peerID] = p
	}
	return p
}

// RequestUpload blocks until n bytes of upload budget are available to
// peerID from both its own limiter (if any) and the global limiter.
func (m *Manager) RequestUpload(peerID string, n float64, stop <-chan struct{}) bool {
	p := m.peer(peerID)
	if p.up != nil {
		if !p.up.Request(n, stop) {
			return false
		}
	}
	if !m.globalUp.Request(n, stop) {
		return false
	}
	m.mu.Lock()
	p.uploaded += uint64(n)
	m.mu.Unlock()
	return true
}

// RequestDownload mirrors RequestUpload for the download direction.
func (m *Manager) RequestDownload(peerID string, n float64, stop <-chan struct{}) bool {
	p := m.peer(peerID)
	if p.down != nil {
		if !p.down.Request(n, stop) {
			return false
		}
	}
	if !m.globalDown.Request(n, stop) {
		return false
	}
	m.mu.Lock()
	p.downed += uint64(n)
	m.mu.Unlock()
	return true
}

// RemovePeer drops peerID's per-peer limiters and counters.
func (m *Manager) RemovePeer(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, peerID)
}

// Snapshot returns a point-in-time view of global and per-peer stats.
func (m *Manager) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		GlobalUploadLimit:   m.globalUp.Rate(),
		GlobalDownloadLimit: m.globalDown.Rate(),
		PerPeer:             make(map[string]PeerStats, len(m.peers)),
	}
	for id, p := range m.peers {
		s.UploadedBytes += p.uploaded
		s.DownloadedBytes += p.downed
		ps := PeerStats{UploadedBytes: p.uploaded, DownloadedBytes: p.downed}
		if p.up != nil {
			ps.UploadLimit = p.up.Rate()
		}
		if p.down != nil {
			ps.DownloadLimit = p.down.Rate()
		}
		s.PerPeer[id] = ps
	}
	return s
}
