package orchestrator

import (
	"net"
	"testing"
	"time"

	"sentinelfs/session"
)

func TestHandshakeAuthenticatesBothSidesOverPipe(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientMgr := session.NewManager("client-peer", []byte("shared-code"))
	serverMgr := session.NewManager("server-peer", []byte("shared-code"))
	defer clientMgr.Close()
	defer serverMgr.Close()

	clientHandshakeFn := buildHandshake(clientMgr)
	serverHandshakeFn := buildHandshake(serverMgr)

	type result struct {
		peerID string
		ok     bool
	}
	clientResult := make(chan result, 1)
	serverResult := make(chan result, 1)

	go func() {
		id, ok := clientHandshakeFn(clientConn, false)
		clientResult <- result{id, ok}
	}()
	go func() {
		id, ok := serverHandshakeFn(serverConn, true)
		serverResult <- result{id, ok}
	}()

	var cr, sr result
	select {
	case cr = <-clientResult:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client handshake")
	}
	select {
	case sr = <-serverResult:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server handshake")
	}

	if !cr.ok || !sr.ok {
		t.Fatalf("expected both sides to succeed, got client=%+v server=%+v", cr, sr)
	}
	if cr.peerID != "server-peer" {
		t.Fatalf("client resolved peer id %q, want server-peer", cr.peerID)
	}
	if sr.peerID != "client-peer" {
		t.Fatalf("server resolved peer id %q, want client-peer", sr.peerID)
	}
	if got := serverMgr.PeerAuthState("client-peer"); got != session.AuthAuthenticated {
		t.Fatalf("server's view of client peer: got %v, want authenticated", got)
	}
	if got := clientMgr.PeerAuthState("server-peer"); got != session.AuthAuthenticated {
		t.Fatalf("client's view of server peer: got %v, want authenticated", got)
	}
}

func TestHandshakeRejectsSessionCodeMismatch(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientMgr := session.NewManager("client-peer", []byte("code-a"))
	serverMgr := session.NewManager("server-peer", []byte("code-b"))
	defer clientMgr.Close()
	defer serverMgr.Close()

	clientHandshakeFn := buildHandshake(clientMgr)
	serverHandshakeFn := buildHandshake(serverMgr)

	done := make(chan bool, 2)
	go func() {
		_, ok := clientHandshakeFn(clientConn, false)
		done <- ok
	}()
	go func() {
		_, ok := serverHandshakeFn(serverConn, true)
		if !ok {
			// Mirrors what netio.Transport does on a failed inbound
			// handshake: close the connection so the other side's
			// pending read unblocks instead of running to its timeout.
			serverConn.Close()
		}
		done <- ok
	}()

	first := <-done
	second := <-done
	if first || second {
		t.Fatalf("expected both sides to fail on session code mismatch, got %v %v", first, second)
	}
}
