package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sentinelfs/crypto"
)

// The three handshake messages are colon-delimited tokenized text, per
// spec.md 4.2 — kept for interop with the legacy wire format; spec.md 9
// directs a length-prefixed binary envelope for a clean reimplementation,
// but the handshake's authenticated-data flow (not its bytes) is what the
// spec holds fixed, so the textual encoding below is exactly the
// contract, serialized the way the teacher's ClientHello.Read/.Write pair
// does for its own hello messages.

// ClientHello is handshake message 1 (client -> server).
type ClientHello struct {
	ProtocolVersion uint8
	ClientPeerID    string
	SessionCode     []byte
	ClientNonce     []byte
}

func (h ClientHello) Marshal() string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", magic, h.ProtocolVersion, h.ClientPeerID,
		hex.EncodeToString(h.SessionCode), hex.EncodeToString(h.ClientNonce))
}

func ParseClientHello(s string) (ClientHello, error) {
	parts := strings.SplitN(s, ":", 5)
	if len(parts) != 5 || parts[0] != magic {
		return ClientHello{}, errBadFormat("malformed client hello")
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil {
		return ClientHello{}, errBadFormat("malformed protocol version")
	}
	sessionCode, err := hex.DecodeString(parts[3])
	if err != nil {
		return ClientHello{}, errBadFormat("malformed session code")
	}
	nonce, err := hex.DecodeString(parts[4])
	if err != nil {
		return ClientHello{}, errBadFormat("malformed client nonce")
	}
	return ClientHello{
		ProtocolVersion: uint8(version),
		ClientPeerID:    parts[2],
		SessionCode:     sessionCode,
		ClientNonce:     nonce,
	}, nil
}

// ServerChallenge is handshake message 2 (server -> client).
type ServerChallenge struct {
	ProtocolVersion     uint8
	ServerPeerID        string
	EchoedClientNonce   []byte
	ServerNonce         []byte
}

func (h ServerChallenge) Marshal() string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", magic, h.ProtocolVersion, h.ServerPeerID,
		hex.EncodeToString(h.EchoedClientNonce), hex.EncodeToString(h.ServerNonce))
}

func ParseServerChallenge(s string) (ServerChallenge, error) {
	parts := strings.SplitN(s, ":", 5)
	if len(parts) != 5 || parts[0] != magic {
		return ServerChallenge{}, errBadFormat("malformed server challenge")
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil {
		return ServerChallenge{}, errBadFormat("malformed protocol version")
	}
	echoed, err := hex.DecodeString(parts[3])
	if err != nil {
		return ServerChallenge{}, errBadFormat("malformed echoed nonce")
	}
	serverNonce, err := hex.DecodeString(parts[4])
	if err != nil {
		return ServerChallenge{}, errBadFormat("malformed server nonce")
	}
	return ServerChallenge{
		ProtocolVersion:   uint8(version),
		ServerPeerID:      parts[2],
		EchoedClientNonce: echoed,
		ServerNonce:       serverNonce,
	}, nil
}

// ClientAuth is handshake message 3 (client -> server). There is no
// reverse message: the server sends no matching digest back, so the
// handshake authenticates the client to the server only.
type ClientAuth struct {
	ProtocolVersion uint8
	PeerID          string
	Digest          []byte
}

func (h ClientAuth) Marshal() string {
	return fmt.Sprintf("%s:%d:%s:%s", magic, h.ProtocolVersion, h.PeerID, hex.EncodeToString(h.Digest))
}

func ParseClientAuth(s string) (ClientAuth, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 || parts[0] != magic {
		return ClientAuth{}, errBadFormat("malformed auth message")
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil {
		return ClientAuth{}, errBadFormat("malformed protocol version")
	}
	digest, err := hex.DecodeString(parts[3])
	if err != nil {
		return ClientAuth{}, errBadFormat("malformed digest")
	}
	return ClientAuth{ProtocolVersion: uint8(version), PeerID: parts[2], Digest: digest}, nil
}

func randomNonce32() ([]byte, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// authDigest computes HMAC(mac_key, client_nonce||server_nonce||client_peer_id||server_peer_id||session_code),
// spec.md 4.2 message 3.
func authDigest(macKey, clientNonce, serverNonce []byte, clientPeerID, serverPeerID string, sessionCode []byte) []byte {
	data := make([]byte, 0, len(clientNonce)+len(serverNonce)+len(clientPeerID)+len(serverPeerID)+len(sessionCode))
	data = append(data, clientNonce...)
	data = append(data, serverNonce...)
	data = append(data, []byte(clientPeerID)...)
	data = append(data, []byte(serverPeerID)...)
	data = append(data, sessionCode...)
	return crypto.HMACSHA256(macKey, data)
}

// sessionCodesCompatible implements spec.md 4.2's check: both peers
// having a code must match, both empty is open mode, one empty is a
// reject.
func sessionCodesCompatible(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return crypto.ConstantTimeEqual(a, b)
}
