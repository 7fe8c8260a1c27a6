package health

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Config tunes scoring, staleness, and degradation thresholds.
type Config struct {
	JitterWeight          float64
	LossWeight            float64
	EWMAAlpha             float64
	PeerStaleTimeout       time.Duration
	MaxActivePeers        int
	DegradedRTTMs         float64
	DegradedLossPct       float64
	DegradedJitterMs      float64
}

// DefaultConfig returns spec.md 4.3's suggested defaults.
func DefaultConfig() Config {
	return Config{
		JitterWeight:     1.0,
		LossWeight:       2.0,
		EWMAAlpha:        0.2,
		PeerStaleTimeout: 2 * time.Minute,
		MaxActivePeers:   8,
		DegradedRTTMs:    500,
		DegradedLossPct:  20,
		DegradedJitterMs: 200,
	}
}

// Monitor tracks probe metrics for every known peer and produces score and
// remesh decisions. Grounded on the teacher's struct+mutex+constructor
// concurrency idiom; the scoring math is spec.md 4.3 verbatim.
type Monitor struct {
	cfg Config

	mu      sync.Mutex
	peers   map[string]*metrics
	connected map[string]bool
}

func NewMonitor(cfg Config) *Monitor {
	return &Monitor{
		cfg:       cfg,
		peers:     make(map[string]*metrics),
		connected: make(map[string]bool),
	}
}

func (h *Monitor) peerMetrics(peerID string) *metrics {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.peers[peerID]
	if !ok {
		m = newMetrics(h.cfg.EWMAAlpha)
		h.peers[peerID] = m
	}
	return m
}

// Report folds a probe result (rtt_ms, success) into peerID's metrics.
func (h *Monitor) Report(peerID string, rttMs float64, success bool) {
	h.peerMetrics(peerID).report(rttMs, success)
}

// SetConnected records whether peerID is part of the currently connected
// set, used by Remesh to compute connect/disconnect diffs.
func (h *Monitor) SetConnected(peerID string, connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if connected {
		h.connected[peerID] = true
	} else {
		delete(h.connected, peerID)
	}
}

// ConnectedPeerCount reports how many peers are currently marked
// connected, for the control socket's STATUS response.
func (h *Monitor) ConnectedPeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connected)
}

// Forget drops all state for peerID, e.g. on permanent peer removal.
func (h *Monitor) Forget(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, peerID)
	delete(h.connected, peerID)
}

// Score computes a peer's score. Peers with fewer than
// MinSamplesForDecision successful probes, or whose last update is older
// than PeerStaleTimeout, score +Inf (spec.md 4.3).
func (h *Monitor) Score(peerID string) float64 {
	s := h.peerMetrics(peerID).snapshot()
	return h.score(s)
}

func (h *Monitor) score(s snapshot) float64 {
	if s.success < MinSamplesForDecision {
		return math.Inf(1)
	}
	if !s.lastUpdate.IsZero() && time.Since(s.lastUpdate) > h.cfg.PeerStaleTimeout {
		return math.Inf(1)
	}
	return s.avgRTT + h.cfg.JitterWeight*s.jitter + h.cfg.LossWeight*s.lossPct
}

// HasQualityDegradation reports whether any tracked peer exceeds the
// configured RTT/loss/jitter thresholds, one of the remesh triggers.
func (h *Monitor) HasQualityDegradation() bool {
	h.mu.Lock()
	ids := make([]string, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	for _, id := range ids {
		s := h.peerMetrics(id).snapshot()
		if s.success < MinSamplesForDecision {
			continue
		}
		if s.ewmaRTT > h.cfg.DegradedRTTMs || s.lossPct > h.cfg.DegradedLossPct || s.jitter > h.cfg.DegradedJitterMs {
			return true
		}
	}
	return false
}

// RemeshDecision is the output of a remesh computation.
type RemeshDecision struct {
	ShouldExecute   bool
	ConnectPeers    []string
	DisconnectPeers []string
	ReauthPeers     []string
	NextAllowedIn   time.Duration
}

type scoredPeer struct {
	id    string
	score float64
}

// Remesh sorts peers by score ascending and selects the first
// MaxActivePeers with finite score as the desired set, diffing against the
// currently connected set. If the desired set is empty (degenerate case:
// no peer has enough metrics), the current connected set is retained.
// reauthCandidates lists peers whose transport substrate is about to
// change and therefore need a reauth_peers entry if kept in the new set.
func (h *Monitor) Remesh(reauthCandidates map[string]bool) RemeshDecision {
	h.mu.Lock()
	ids := make([]string, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	currentlyConnected := make(map[string]bool, len(h.connected))
	for id := range h.connected {
		currentlyConnected[id] = true
	}
	h.mu.Unlock()

	scored := make([]scoredPeer, 0, len(ids))
	for _, id := range ids {
		s := h.score(h.peerMetrics(id).snapshot())
		if !math.IsInf(s, 1) {
			scored = append(scored, scoredPeer{id: id, score: s})
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].score < scored[j].score })

	desired := make(map[string]bool, h.cfg.MaxActivePeers)
	if len(scored) == 0 {
		for id := range currentlyConnected {
			desired[id] = true
		}
	} else {
		limit := h.cfg.MaxActivePeers
		if limit > len(scored) {
			limit = len(scored)
		}
		for _, sp := range scored[:limit] {
			desired[sp.id] = true
		}
	}

	var connect, disconnect, reauth []string
	for id := range desired {
		if !currentlyConnected[id] {
			connect = append(connect, id)
		}
		if reauthCandidates[id] {
			reauth = append(reauth, id)
		}
	}
	for id := range currentlyConnected {
		if !desired[id] {
			disconnect = append(disconnect, id)
		}
	}
	sort.Strings(connect)
	sort.Strings(disconnect)
	sort.Strings(reauth)

	return RemeshDecision{
		ShouldExecute:   true,
		ConnectPeers:    connect,
		DisconnectPeers: disconnect,
		ReauthPeers:     reauth,
	}
}
