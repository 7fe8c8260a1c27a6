package orchestrator

import (
	"bytes"
	"testing"
	"time"

	"sentinelfs/application"
	"sentinelfs/bandwidth"
	"sentinelfs/crypto"
	"sentinelfs/infrastructure/netio"
	"sentinelfs/session"
)

// setUpSecurePair wires two Transports with SetHandshake installed and
// matching derived keys, the same construction orchestrator.New performs,
// so Send/Open round trips exactly as it would in the running daemon.
func setUpSecurePair(t *testing.T) (clientNet *secureNetwork, serverMgr *session.Manager, serverAddr string, serverTransport *netio.Transport) {
	t.Helper()

	clientMgr := session.NewManager("client-peer", []byte("shared-code"))
	serverMgr = session.NewManager("server-peer", []byte("shared-code"))
	t.Cleanup(func() {
		clientMgr.Close()
		serverMgr.Close()
	})

	keys := crypto.DeriveSessionKeys([]byte("shared-code"), nil, 0)
	clientMgr.SetKeys(keys)
	serverMgr.SetKeys(keys)

	clientTransport := netio.New("client-peer", nil)
	serverTransport = netio.New("server-peer", nil)
	clientTransport.SetHandshake(buildHandshake(clientMgr))
	serverTransport.SetHandshake(buildHandshake(serverMgr))

	if err := serverTransport.StartListening(0); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	t.Cleanup(func() {
		clientTransport.Shutdown()
		serverTransport.Shutdown()
	})

	serverAddr = serverAddrString(t, serverTransport)
	clientTransport.SetPeerAddr("server-peer", serverAddr)

	bw := bandwidth.NewManager(bandwidth.Limits{})
	clientNet = &secureNetwork{transport: clientTransport, session: clientMgr, bw: bw}
	return clientNet, serverMgr, serverAddr, serverTransport
}

func TestSecureNetworkSealsBeforeSendAndServerCanOpen(t *testing.T) {
	clientNet, serverMgr, _, serverTransport := setUpSecurePair(t)

	plaintext := []byte("a sync envelope's worth of bytes")
	if err := clientNet.Send("server-peer", plaintext); err != nil {
		t.Fatalf("Send: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-serverTransport.Events():
			if ev.Kind != application.DataReceived {
				continue
			}
			if bytes.Equal(ev.Data, plaintext) {
				t.Fatalf("frame reached the wire unsealed")
			}
			got, err := serverMgr.Open("client-peer", ev.Data)
			if err != nil {
				t.Fatalf("server Open: %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for sealed frame")
		}
	}
}

func serverAddrString(t *testing.T, tr *netio.Transport) string {
	t.Helper()
	addr := tr.ListenAddr()
	if addr == "" {
		t.Fatal("server transport has no listener address")
	}
	return addr
}
