package orchestrator

import (
	"sentinelfs/application"
	"sentinelfs/bandwidth"
	"sentinelfs/infrastructure/netio"
	"sentinelfs/session"
)

// broadcastBandwidthKey is the synthetic peer id bandwidth.Manager uses
// to pace broadcast frames; broadcasts don't have a single recipient to
// charge, so they share one bucket distinct from any real peer id.
const broadcastBandwidthKey = "*broadcast*"

// secureNetwork wraps netio.Transport so every frame sync.Engine sends is
// sealed by the session manager and paced by the bandwidth manager first,
// keeping Engine's application.NetworkAPI collaborator ignorant of both
// concerns. Inbound frames are not unsealed here: the daemon's own
// network-event pump calls session.Manager.Open on DataReceived payloads
// before they reach the engine, since unsealing needs the peer id context
// a NetworkAPI method signature doesn't carry.
type secureNetwork struct {
	transport *netio.Transport
	session   *session.Manager
	bw        *bandwidth.Manager
}

func (n *secureNetwork) Connect(peerID string) error       { return n.transport.Connect(peerID) }
func (n *secureNetwork) StartListening(port int) error     { return n.transport.StartListening(port) }
func (n *secureNetwork) StartDiscovery(port int) error     { return n.transport.StartDiscovery(port) }
func (n *secureNetwork) Close(peerID string) error         { return n.transport.Close(peerID) }
func (n *secureNetwork) Events() <-chan application.NetworkEvent { return n.transport.Events() }

func (n *secureNetwork) Send(peerID string, payload []byte) error {
	sealed, err := n.session.Seal(payload)
	if err != nil {
		return err
	}
	n.bw.RequestUpload(peerID, float64(len(sealed)), nil)
	return n.transport.Send(peerID, sealed)
}

func (n *secureNetwork) Broadcast(payload []byte) error {
	sealed, err := n.session.Seal(payload)
	if err != nil {
		return err
	}
	n.bw.RequestUpload(broadcastBandwidthKey, float64(len(sealed)), nil)
	return n.transport.Broadcast(sealed)
}
