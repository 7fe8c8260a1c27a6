package health

import (
	"math"
	"testing"
	"time"
)

func TestScoreInfiniteWithoutEnoughSamples(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.Report("peer-a", 50, true)
	m.Report("peer-a", 55, true)
	if got := m.Score("peer-a"); !math.IsInf(got, 1) {
		t.Fatalf("expected +Inf with only 2 samples, got %v", got)
	}
}

func TestScoreFiniteAfterMinSamples(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	for i := 0; i < MinSamplesForDecision; i++ {
		m.Report("peer-a", 50, true)
	}
	got := m.Score("peer-a")
	if math.IsInf(got, 1) {
		t.Fatal("expected finite score after min samples")
	}
	if got < 0 {
		t.Fatalf("unexpected negative score: %v", got)
	}
}

func TestScoreIncorporatesLoss(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	for i := 0; i < 10; i++ {
		m.Report("lossy", 50, i%2 == 0) // 50% loss, 5 successes
	}
	for i := 0; i < 5; i++ {
		m.Report("clean", 50, true)
	}
	lossy, clean := m.Score("lossy"), m.Score("clean")
	if lossy <= clean {
		t.Fatalf("expected lossy peer to score worse (higher): lossy=%v clean=%v", lossy, clean)
	}
}

func TestScoreStaleDataTreatedAsInfinite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PeerStaleTimeout = time.Millisecond
	m := NewMonitor(cfg)
	for i := 0; i < MinSamplesForDecision; i++ {
		m.Report("peer-a", 50, true)
	}
	time.Sleep(5 * time.Millisecond)
	if got := m.Score("peer-a"); !math.IsInf(got, 1) {
		t.Fatalf("expected stale peer to score +Inf, got %v", got)
	}
}

func TestHasQualityDegradation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DegradedRTTMs = 100
	m := NewMonitor(cfg)
	for i := 0; i < MinSamplesForDecision; i++ {
		m.Report("slow", 500, true)
	}
	if !m.HasQualityDegradation() {
		t.Fatal("expected degradation to be detected")
	}
}

func TestRemeshSelectsLowestScoringPeersUpToMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxActivePeers = 2
	m := NewMonitor(cfg)

	for i := 0; i < MinSamplesForDecision; i++ {
		m.Report("best", 10, true)
		m.Report("mid", 50, true)
		m.Report("worst", 500, true)
	}

	decision := m.Remesh(nil)
	if len(decision.ConnectPeers) != 2 {
		t.Fatalf("expected 2 peers selected, got %v", decision.ConnectPeers)
	}
	want := map[string]bool{"best": true, "mid": true}
	for _, id := range decision.ConnectPeers {
		if !want[id] {
			t.Fatalf("unexpected peer in connect set: %s", id)
		}
	}
}

func TestRemeshDisconnectsPeersNotInDesiredSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxActivePeers = 1
	m := NewMonitor(cfg)
	for i := 0; i < MinSamplesForDecision; i++ {
		m.Report("best", 10, true)
		m.Report("worst", 500, true)
	}
	m.SetConnected("worst", true)

	decision := m.Remesh(nil)
	found := false
	for _, id := range decision.DisconnectPeers {
		if id == "worst" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected worst to be disconnected, got %v", decision.DisconnectPeers)
	}
}

func TestRemeshDegenerateCaseRetainsCurrentSet(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.SetConnected("peer-a", true)
	m.SetConnected("peer-b", true)

	decision := m.Remesh(nil)
	if len(decision.ConnectPeers) != 0 || len(decision.DisconnectPeers) != 0 {
		t.Fatalf("expected no churn when no peer has enough data, got %+v", decision)
	}
}

func TestRemeshReauthPeersMarkedWhenDesired(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	for i := 0; i < MinSamplesForDecision; i++ {
		m.Report("peer-a", 10, true)
	}
	decision := m.Remesh(map[string]bool{"peer-a": true})
	if len(decision.ReauthPeers) != 1 || decision.ReauthPeers[0] != "peer-a" {
		t.Fatalf("expected peer-a in reauth set, got %v", decision.ReauthPeers)
	}
}

func TestForgetRemovesPeerState(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	m.Report("peer-a", 10, true)
	m.Forget("peer-a")
	if got := m.Score("peer-a"); !math.IsInf(got, 1) {
		t.Fatalf("expected forgotten peer to re-init with +Inf score, got %v", got)
	}
}

func TestConnectedPeerCount(t *testing.T) {
	m := NewMonitor(DefaultConfig())
	if got := m.ConnectedPeerCount(); got != 0 {
		t.Fatalf("expected 0 connected peers initially, got %d", got)
	}
	m.SetConnected("peer-a", true)
	m.SetConnected("peer-b", true)
	if got := m.ConnectedPeerCount(); got != 2 {
		t.Fatalf("expected 2 connected peers, got %d", got)
	}
	m.SetConnected("peer-a", false)
	if got := m.ConnectedPeerCount(); got != 1 {
		t.Fatalf("expected 1 connected peer after disconnect, got %d", got)
	}
	m.Forget("peer-b")
	if got := m.ConnectedPeerCount(); got != 0 {
		t.Fatalf("expected 0 connected peers after forget, got %d", got)
	}
}
