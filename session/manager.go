package session

import (
	"sync"
	"sync/atomic"
	"time"

	"sentinelfs/crypto"
)

const pendingChallengeTTL = 60 * time.Second

// Manager owns this daemon's local session key material and the
// per-remote-peer authentication state, per spec.md 3 "Session state".
// It is the sole writer of LocalState and PeerState; session.Manager
// itself is mutex-protected so handshake and framing goroutines can share
// it safely (spec.md 5 "Session state: single mutex").
type Manager struct {
	mu    sync.Mutex
	local LocalState
	peers map[string]*PeerState

	pendingMu sync.Mutex
	pending   map[string]pendingAuth // keyed by client peer id

	outboundSeq atomic.Uint64

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// NewManager creates a session manager for localPeerID using
// sessionCode (may be empty for open mode). A background goroutine sweeps
// expired pending challenges every tick; call Close to stop it.
func NewManager(localPeerID string, sessionCode []byte) *Manager {
	m := &Manager{
		local: LocalState{
			LocalPeerID: localPeerID,
			SessionCode: sessionCode,
			AEADEnabled: true,
		},
		peers:     make(map[string]*PeerState),
		pending:   make(map[string]pendingAuth),
		stopSweep: make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Close stops the background pending-challenge sweeper.
func (m *Manager) Close() {
	m.sweepOnce.Do(func() { close(m.stopSweep) })
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(pendingChallengeTTL)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopSweep:
			return
		case <-ticker.C:
			m.sweepExpiredChallenges()
		}
	}
}

// sweepExpiredChallenges evicts pending challenges older than
// pendingChallengeTTL. Resolves spec.md 9's second Open Question: eviction
// is time-based, not triggered by map size.
func (m *Manager) sweepExpiredChallenges() {
	cutoff := time.Now().Add(-pendingChallengeTTL)
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	for id, p := range m.pending {
		if p.createdAt.Before(cutoff) {
			delete(m.pending, id)
		}
	}
}

func (m *Manager) peerState(peerID string) *PeerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.peers[peerID]
	if !ok {
		ps = &PeerState{PeerID: peerID, AuthState: AuthUnknown, replay: NewReplayWindow()}
		m.peers[peerID] = ps
	}
	return ps
}

// PeerAuthState reports a peer's current authentication state.
func (m *Manager) PeerAuthState(peerID string) AuthState {
	return m.peerState(peerID).getAuthState()
}

// MarkAuthenticated records peerID as authenticated from this side of the
// handshake. The client side of BuildClientHello/BuildClientAuth has no
// equivalent of VerifyClientAuth to call on itself, since it is the
// server's digest check that succeeds or fails; once the server's ack
// confirms that, the client calls this to open its own Seal/Open path to
// that peer.
func (m *Manager) MarkAuthenticated(peerID string) {
	m.peerState(peerID).setAuthState(AuthAuthenticated)
}

// --- Server side ---

// HandleClientHello processes handshake message 1 and returns message 2
// to send back. It validates the session code and stores both nonces
// keyed by client id for later verification.
func (m *Manager) HandleClientHello(hello ClientHello) (ServerChallenge, error) {
	if hello.ProtocolVersion != ProtocolVersion {
		return ServerChallenge{}, errUnsupportedVersion(hello.ProtocolVersion)
	}
	m.mu.Lock()
	localCode := m.local.SessionCode
	localPeerID := m.local.LocalPeerID
	m.mu.Unlock()

	if !sessionCodesCompatible(localCode, hello.SessionCode) {
		m.peerState(hello.ClientPeerID).setAuthState(AuthRejected)
		return ServerChallenge{}, errSessionCodeMismatch()
	}

	serverNonce, err := randomNonce32()
	if err != nil {
		return ServerChallenge{}, err
	}

	m.pendingMu.Lock()
	m.pending[hello.ClientPeerID] = pendingAuth{
		clientNonce: hello.ClientNonce,
		serverNonce: serverNonce,
		createdAt:   time.Now(),
	}
	m.pendingMu.Unlock()

	ps := m.peerState(hello.ClientPeerID)
	ps.setPendingChallengeNonce(serverNonce)
	ps.setAuthState(AuthChallenged)

	return ServerChallenge{
		ProtocolVersion:   ProtocolVersion,
		ServerPeerID:      localPeerID,
		EchoedClientNonce: hello.ClientNonce,
		ServerNonce:       serverNonce,
	}, nil
}

// VerifyClientAuth processes handshake message 3: recomputes the digest
// from the stored nonces and the shared mac key, comparing in constant
// time. On success the peer's auth state becomes authenticated.
func (m *Manager) VerifyClientAuth(auth ClientAuth) error {
	m.pendingMu.Lock()
	p, ok := m.pending[auth.PeerID]
	m.pendingMu.Unlock()
	if !ok {
		m.peerState(auth.PeerID).setAuthState(AuthRejected)
		return errAuthFail("no pending challenge for peer")
	}

	m.mu.Lock()
	macKey := m.local.MACKey
	localCode := m.local.SessionCode
	localPeerID := m.local.LocalPeerID
	m.mu.Unlock()

	expected := authDigest(macKey, p.clientNonce, p.serverNonce, auth.PeerID, localPeerID, localCode)
	ps := m.peerState(auth.PeerID)
	if !crypto.ConstantTimeEqual(expected, auth.Digest) {
		ps.setAuthState(AuthRejected)
		return errAuthFail("digest mismatch")
	}

	ps.setAuthState(AuthAuthenticated)
	m.pendingMu.Lock()
	delete(m.pending, auth.PeerID)
	m.pendingMu.Unlock()
	return nil
}

// --- Client side ---

// BuildClientHello returns handshake message 1 for this manager's local
// peer id; the generated client nonce is carried in its ClientNonce field
// so the caller can verify the later challenge.
func (m *Manager) BuildClientHello() (ClientHello, error) {
	nonce, err := randomNonce32()
	if err != nil {
		return ClientHello{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return ClientHello{
		ProtocolVersion: ProtocolVersion,
		ClientPeerID:    m.local.LocalPeerID,
		SessionCode:     m.local.SessionCode,
		ClientNonce:     nonce,
	}, nil
}

// BuildClientAuth verifies the server's echoed nonce and returns message
// 3 to authenticate this client to the server.
func (m *Manager) BuildClientAuth(clientNonce []byte, challenge ServerChallenge) (ClientAuth, error) {
	if challenge.ProtocolVersion != ProtocolVersion {
		return ClientAuth{}, errUnsupportedVersion(challenge.ProtocolVersion)
	}
	if !crypto.ConstantTimeEqual(clientNonce, challenge.EchoedClientNonce) {
		return ClientAuth{}, errAuthFail("server echoed wrong client nonce")
	}

	m.mu.Lock()
	macKey := m.local.MACKey
	localCode := m.local.SessionCode
	localPeerID := m.local.LocalPeerID
	m.mu.Unlock()

	digest := authDigest(macKey, clientNonce, challenge.ServerNonce, localPeerID, challenge.ServerPeerID, localCode)
	return ClientAuth{ProtocolVersion: ProtocolVersion, PeerID: localPeerID, Digest: digest}, nil
}

// --- Key material ---

// SetKeys installs enc/mac keys derived (by the caller, via
// crypto.DeriveSessionKeys) from the session code and the current salt.
func (m *Manager) SetKeys(keys crypto.SessionKeys) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local.EncKey = keys.EncKey
	m.local.MACKey = keys.MACKey
}

// Rotate rebuilds enc/mac keys from the session code using a salt
// extended with an incremented rotation counter (spec.md 4.1, 4.2). Any
// frames sealed before rotation become undecryptable once the new key is
// installed, by design.
func (m *Manager) Rotate(salt []byte) crypto.SessionKeys {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.local.RotationCounter++
	keys := crypto.DeriveSessionKeys(m.local.SessionCode, salt, m.local.RotationCounter)
	m.local.EncKey = keys.EncKey
	m.local.MACKey = keys.MACKey
	return keys
}

// RequireReauth marks peerIDs unknown, forcing the handshake to rerun
// before application frames are accepted again. Used when a remesh
// changes the transport substrate under a peer (spec.md 4.2, 4.3).
func (m *Manager) RequireReauth(peerIDs []string) {
	for _, id := range peerIDs {
		m.peerState(id).setAuthState(AuthUnknown)
	}
}

// --- Framing ---

// NextOutboundSequence returns a strictly monotonic sequence number for
// this daemon's outbound frames.
func (m *Manager) NextOutboundSequence() uint64 {
	return m.outboundSeq.Add(1)
}

// Seal encrypts plaintext using the current local keys and
// AEAD framing, consuming the next outbound sequence number.
func (m *Manager) Seal(plaintext []byte) ([]byte, error) {
	m.mu.Lock()
	encKey := m.local.EncKey
	m.mu.Unlock()
	seq := m.NextOutboundSequence()
	return SealAEAD(ProtocolVersion, seq, encKey, plaintext)
}

// Open authenticates and decrypts a frame from peerID, enforcing the
// replay window and requiring the peer to be authenticated. On success
// the peer's last-seen sequence is advanced.
func (m *Manager) Open(peerID string, buf []byte) ([]byte, error) {
	ps := m.peerState(peerID)
	if ps.getAuthState() != AuthAuthenticated {
		return nil, errAuthFail("peer not authenticated")
	}

	_, seq, _, _, err := DecodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if err := ps.replay.Check(seq); err != nil {
		return nil, err
	}

	m.mu.Lock()
	encKey := m.local.EncKey
	m.mu.Unlock()

	pt, seq, err := OpenAEAD(encKey, buf)
	if err != nil {
		return nil, err
	}
	ps.replay.Accept(seq)
	ps.setLastSeenSeq(seq)
	return pt, nil
}
