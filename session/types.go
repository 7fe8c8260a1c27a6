package session

import "sync"
import "time"

const ProtocolVersion uint8 = 1

// magic identifies SentinelFS handshake messages on the wire, mirroring
// the teacher's convention of a fixed magic prefix on hello frames
// (infrastructure/cryptography/chacha20/handshake's ClientHello framing).
const magic = "SFSH"

// AuthState is the per-remote-peer authentication lifecycle.
type AuthState string

const (
	AuthUnknown       AuthState = "unknown"
	AuthChallenged    AuthState = "challenged"
	AuthAuthenticated AuthState = "authenticated"
	AuthRejected      AuthState = "rejected"
)

// LocalState is this daemon's session-wide key material (domain.md
// "Session state"). A single LocalState is shared by all peer sessions;
// per-peer specifics live in PeerState.
type LocalState struct {
	LocalPeerID     string
	SessionCode     []byte // empty means "open mode"
	EncKey          []byte
	MACKey          []byte
	AEADEnabled     bool
	RotationCounter uint32
	salt            []byte
}

// PeerState is the per-remote-peer session bookkeeping the manager owns.
// It carries its own mutex (spec.md 5: fine-grained per-resource locking)
// so concurrent handshake, framing, and status-read paths never block on
// the manager-wide lock for per-peer fields.
type PeerState struct {
	mu sync.Mutex

	PeerID                string
	AuthState             AuthState
	LastSeenSeq           uint64
	PendingChallengeNonce []byte
	replay                *ReplayWindow
}

func (p *PeerState) setAuthState(s AuthState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AuthState = s
}

func (p *PeerState) getAuthState() AuthState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AuthState
}

func (p *PeerState) setPendingChallengeNonce(n []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PendingChallengeNonce = n
}

func (p *PeerState) setLastSeenSeq(seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastSeenSeq = seq
}

// pendingAuth records both nonces for an in-flight handshake, keyed by
// client peer id. Resolves spec.md 9's first Open Question: the source
// this spec was distilled from could only recover the server nonce at
// verification time; we persist both for the handshake's lifetime.
type pendingAuth struct {
	clientNonce []byte
	serverNonce []byte
	createdAt   time.Time
}
