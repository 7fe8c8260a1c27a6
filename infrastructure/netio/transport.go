// Package netio implements application.NetworkAPI over real TCP/UDP
// sockets: a TCP accept-loop data plane per peer connection and a UDP
// broadcast discovery beacon. Grounded on the teacher's
// infrastructure/listeners/{tcp_listener,udp_listener} accept-loop shape
// and application/connection_adapter.go's minimal Read/Write/Close
// contract, generalized from a single tunnel connection to a peer-keyed
// connection map.
package netio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"sentinelfs/application"
	"sentinelfs/infrastructure/telemetry/trafficstats"
	"sentinelfs/logging"
)

// frameHeaderLen is the wire-framing prefix Transport puts in front of
// every blob it ships: a 4-byte length, nothing else. Transport does not
// parse sync.Envelope itself; it carries whatever bytes a caller hands
// it, sealed or plain, so the session layer can wrap frames in
// encryption without the framing layer having to understand the
// ciphertext's shape.
const frameHeaderLen = 4
const maxFrameLen = 100*1024*1024 + 64 // envelope ceiling plus seal overhead

// discoveryMagic is the text prefix of a discovery beacon:
// "SENTINEL_DISCOVERY|peer_id|tcp_port".
const discoveryMagic = "SENTINEL_DISCOVERY"

// DiscoveryInterval is how often this daemon re-announces itself while
// discovery is active.
const DiscoveryInterval = 10 * time.Second

// Transport is the concrete application.NetworkAPI implementation.
type Transport struct {
	localPeerID string
	log         logging.Logger

	mu    sync.Mutex
	conns map[string]net.Conn
	addrs map[string]string // peerID -> "host:port", learned via discovery or config

	listener net.Listener
	udpConn  *net.UDPConn

	events chan application.NetworkEvent
	closed atomic.Bool

	// handshake, if set, runs on a freshly dialed/accepted connection
	// before it is registered for the data-plane read loop. It returns
	// the authenticated peer id and whether the handshake succeeded; a
	// false result closes the connection without registering it.
	handshake func(conn net.Conn, inbound bool) (peerID string, ok bool)

	traffic *trafficstats.Collector
}

func New(localPeerID string, log logging.Logger) *Transport {
	return &Transport{
		localPeerID: localPeerID,
		log:         log,
		conns:       make(map[string]net.Conn),
		addrs:       make(map[string]string),
		events:      make(chan application.NetworkEvent, 256),
		traffic:     trafficstats.NewCollector(time.Second, 0.3),
	}
}

// StartTrafficSampler runs the byte-rate sampler until ctx is canceled.
// It is optional: TrafficSnapshot still reports accurate totals without
// it, just without a smoothed rate.
func (t *Transport) StartTrafficSampler(ctx context.Context) {
	t.traffic.Start(ctx)
}

// TrafficSnapshot reports this transport's cumulative and smoothed
// send/receive byte counters.
func (t *Transport) TrafficSnapshot() trafficstats.Snapshot {
	return t.traffic.Snapshot()
}

// SetHandshake installs the connection-level authentication hook run
// before a connection is registered for reads.
func (t *Transport) SetHandshake(fn func(conn net.Conn, inbound bool) (peerID string, ok bool)) {
	t.handshake = fn
}

func (t *Transport) Events() <-chan application.NetworkEvent { return t.events }

// SetPeerAddr records the dial address for peerID, learned from a
// discovery beacon or static config. Not part of application.NetworkAPI;
// the orchestrator calls it when handling PeerDiscovered.
func (t *Transport) SetPeerAddr(peerID, addr string) {
	t.mu.Lock()
	t.addrs[peerID] = addr
	t.mu.Unlock()
}

func (t *Transport) emit(ev application.NetworkEvent) {
	if t.closed.Load() {
		return
	}
	select {
	case t.events <- ev:
	default:
		if t.log != nil {
			t.log.Warnf("netio: event channel full, dropping %v for %s", ev.Kind, ev.PeerID)
		}
	}
}

func (t *Transport) Connect(peerID string) error {
	t.mu.Lock()
	addr, known := t.addrs[peerID]
	_, already := t.conns[peerID]
	t.mu.Unlock()
	if already {
		return nil
	}
	if !known {
		return fmt.Errorf("netio: no known address for peer %s", peerID)
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("netio: dial %s: %w", addr, err)
	}

	resolvedID := peerID
	if t.handshake != nil {
		id, ok := t.handshake(conn, false)
		if !ok {
			conn.Close()
			return fmt.Errorf("netio: handshake failed with %s", addr)
		}
		resolvedID = id
	}

	t.mu.Lock()
	t.conns[resolvedID] = conn
	t.mu.Unlock()

	go t.readLoop(resolvedID, conn)
	t.emit(application.NetworkEvent{Kind: application.PeerConnected, PeerID: resolvedID})
	return nil
}

// frame prefixes payload with its 4-byte length for the generic
// read loop on the other end to split back out.
func frame(payload []byte) []byte {
	out := make([]byte, frameHeaderLen+len(payload))
	binary.LittleEndian.PutUint32(out[:frameHeaderLen], uint32(len(payload)))
	copy(out[frameHeaderLen:], payload)
	return out
}

func (t *Transport) Send(peerID string, payload []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[peerID]
	t.mu.Unlock()
	if !ok {
		if err := t.Connect(peerID); err != nil {
			return err
		}
		t.mu.Lock()
		conn, ok = t.conns[peerID]
		t.mu.Unlock()
		if !ok {
			return fmt.Errorf("netio: no connection to peer %s", peerID)
		}
	}
	n, err := conn.Write(frame(payload))
	t.traffic.AddTX(n)
	return err
}

func (t *Transport) Broadcast(payload []byte) error {
	t.mu.Lock()
	targets := make([]net.Conn, 0, len(t.conns))
	for _, c := range t.conns {
		targets = append(targets, c)
	}
	t.mu.Unlock()

	wire := frame(payload)
	var firstErr error
	for _, c := range targets {
		n, err := c.Write(wire)
		t.traffic.AddTX(n)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Transport) Close(peerID string) error {
	t.mu.Lock()
	conn, ok := t.conns[peerID]
	delete(t.conns, peerID)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	err := conn.Close()
	t.emit(application.NetworkEvent{Kind: application.PeerDisconnected, PeerID: peerID})
	return err
}

// ListenAddr returns the TCP accept loop's bound address, or "" if
// StartListening hasn't been called. Useful for tests that bind port 0
// and need to learn the actual port picked by the kernel.
func (t *Transport) ListenAddr() string {
	if t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// StartListening opens the TCP data-plane accept loop.
func (t *Transport) StartListening(port int) error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("netio: listen tcp :%d: %w", port, err)
	}
	t.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if t.closed.Load() {
					return
				}
				if t.log != nil {
					t.log.Warnf("netio: accept: %v", err)
				}
				continue
			}
			peerID := conn.RemoteAddr().String()
			if t.handshake != nil {
				id, ok := t.handshake(conn, true)
				if !ok {
					conn.Close()
					continue
				}
				peerID = id
			}
			t.mu.Lock()
			t.conns[peerID] = conn
			t.mu.Unlock()
			go t.readLoop(peerID, conn)
			t.emit(application.NetworkEvent{Kind: application.PeerConnected, PeerID: peerID})
		}
	}()
	return nil
}

func (t *Transport) readLoop(peerID string, conn net.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, peerID)
		t.mu.Unlock()
		conn.Close()
		t.emit(application.NetworkEvent{Kind: application.PeerDisconnected, PeerID: peerID})
	}()

	header := make([]byte, frameHeaderLen)
	for {
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		payloadSize := binary.LittleEndian.Uint32(header)
		if payloadSize > maxFrameLen {
			if t.log != nil {
				t.log.Warnf("netio: peer %s sent oversized frame, dropping connection", peerID)
			}
			return
		}
		payload := make([]byte, payloadSize)
		if payloadSize > 0 {
			if _, err := io.ReadFull(conn, payload); err != nil {
				return
			}
		}
		t.traffic.AddRX(int(frameHeaderLen + payloadSize))
		t.emit(application.NetworkEvent{Kind: application.DataReceived, PeerID: peerID, Data: payload})
	}
}

// StartDiscovery opens the UDP broadcast beacon.
func (t *Transport) StartDiscovery(port int) error {
	addr, err := net.ResolveUDPAddr("udp", ":"+strconv.Itoa(port))
	if err != nil {
		return fmt.Errorf("netio: resolve udp :%d: %w", port, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("netio: listen udp :%d: %w", port, err)
	}
	t.udpConn = conn

	go t.discoveryReceiveLoop(conn)
	go t.discoverySendLoop(port)
	return nil
}

func (t *Transport) discoveryReceiveLoop(conn *net.UDPConn) {
	buf := make([]byte, 512)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if t.closed.Load() {
				return
			}
			continue
		}
		peerID, tcpPort, ok := parseDiscoveryBeacon(string(buf[:n]))
		if !ok || peerID == t.localPeerID {
			continue
		}
		addr := net.JoinHostPort(src.IP.String(), strconv.Itoa(tcpPort))
		t.SetPeerAddr(peerID, addr)
		t.emit(application.NetworkEvent{Kind: application.PeerDiscovered, PeerID: peerID, Data: []byte(addr)})
	}
}

func (t *Transport) discoverySendLoop(port int) {
	broadcastAddr := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	ticker := time.NewTicker(DiscoveryInterval)
	defer ticker.Stop()
	for {
		if t.closed.Load() {
			return
		}
		beacon := fmt.Sprintf("%s|%s|%d", discoveryMagic, t.localPeerID, port)
		if t.udpConn != nil {
			_, _ = t.udpConn.WriteToUDP([]byte(beacon), broadcastAddr)
		}
		<-ticker.C
	}
}

func parseDiscoveryBeacon(msg string) (peerID string, tcpPort int, ok bool) {
	parts := strings.Split(msg, "|")
	if len(parts) < 3 || parts[0] != discoveryMagic {
		return "", 0, false
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, false
	}
	return parts[1], port, true
}

// Shutdown tears down the listener, UDP socket, and every open connection.
func (t *Transport) Shutdown() error {
	t.closed.Store(true)
	if t.listener != nil {
		t.listener.Close()
	}
	if t.udpConn != nil {
		t.udpConn.Close()
	}
	t.mu.Lock()
	conns := make([]net.Conn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.conns = make(map[string]net.Conn)
	t.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
	close(t.events)
	return nil
}
