// Package application declares the small, single-purpose collaborator
// interfaces the core depends on (spec.md 6.4), grounded on the teacher's
// application package pattern (ConnectionAdapter, Connector,
// CryptographyService): one interface per concern, injected by the
// orchestrator rather than constructed by the core itself.
package application

// NetworkEventKind enumerates the asynchronous events NetworkAPI emits.
type NetworkEventKind int

const (
	PeerDiscovered NetworkEventKind = iota
	PeerConnected
	PeerDisconnected
	DataReceived
)

// NetworkEvent carries one asynchronous network occurrence to whichever
// collaborator pumps NetworkAPI's event channel into the event hub.
type NetworkEvent struct {
	Kind   NetworkEventKind
	PeerID string
	Data   []byte
}

// NetworkAPI is the transport collaborator (spec.md 6.4): connection
// lifecycle plus send/broadcast, with async occurrences delivered on a
// channel rather than callbacks so the orchestrator owns the pump loop.
type NetworkAPI interface {
	Connect(peerID string) error
	Send(peerID string, payload []byte) error
	Broadcast(payload []byte) error
	StartListening(port int) error
	StartDiscovery(port int) error
	Close(peerID string) error
	Events() <-chan NetworkEvent
}
