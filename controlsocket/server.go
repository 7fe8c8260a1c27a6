// Package controlsocket implements the daemon-side UNIX domain socket
// command server the CLI front-end dials into: STATUS, PEERS, LOGS|N,
// CONFIG, PAUSE/RESUME, STATS. Grounded on the teacher's
// infrastructure/routing/server_routing/.../transport_handler.go accept
// loop (ctx-cancel unblocks a goroutine blocked in Accept, one goroutine
// per connection) adapted from a TCP data-plane listener to a short-lived
// text-command UNIX socket.
package controlsocket

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sentinelfs/bandwidth"
	"sentinelfs/config"
	"sentinelfs/health"
	"sentinelfs/infrastructure/jsonstore"
	"sentinelfs/infrastructure/telemetry/trafficstats"
	"sentinelfs/logging"
	"sentinelfs/queue"
	"sentinelfs/sync"
)

// Daemon is the slice of orchestrator.Daemon the control socket needs.
// A narrow interface rather than a concrete dependency keeps this
// package testable without constructing a full running daemon.
type Daemon interface {
	Uptime() time.Duration
	Store() *jsonstore.Store
	Bandwidth() *bandwidth.Manager
	Health() *health.Monitor
	Queue() *queue.Queue
	Engine() *sync.Engine
	Config() config.Config
	TrafficSnapshot() trafficstats.Snapshot
}

// LogSource serves the LOGS|N command; satisfied by *logging.RingLogger.
type LogSource interface {
	Recent(n int) []string
}

// Server accepts connections on a UNIX domain socket and serves one
// command per connection. Each accepted connection is rate limited
// independently of the data plane's bandwidth.Manager, since a command
// socket is a different resource (local CLI invocations, not network
// transfer); this is the home for golang.org/x/time/rate in this
// module, per the bandwidth package's own note on why it isn't used
// there instead.
type Server struct {
	path     string
	daemon   Daemon
	logs     LogSource
	log      logging.Logger
	limiter  *rate.Limiter
	listener net.Listener
}

// New builds a Server. limiter caps command throughput; nil falls back
// to 20 commands/sec with a burst of 5, generous for a local CLI and
// still a backstop against a runaway or malicious local caller.
func New(path string, daemon Daemon, logs LogSource, log logging.Logger, limiter *rate.Limiter) *Server {
	if log == nil {
		log = logging.Default
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(20), 5)
	}
	return &Server{path: path, daemon: daemon, logs: logs, log: log, limiter: limiter}
}

// ListenAndServe binds the UNIX socket and serves connections until ctx
// is canceled. Removes any stale socket file left behind by a prior,
// uncleanly-terminated run before binding.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("controlsocket: remove stale socket %s: %w", s.path, err)
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("controlsocket: listen %s: %w", s.path, err)
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			s.log.Warnf("controlsocket: accept: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

// Close removes the socket file; ListenAndServe's own ctx-driven
// shutdown already closes the listener, this just cleans up the inode.
func (s *Server) Close() error {
	return os.RemoveAll(s.path)
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	if !s.limiter.Allow() {
		fmt.Fprintln(conn, "ERR rate limit exceeded")
		return
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	cmd := strings.TrimSpace(line)

	// The bool dispatch returns only shapes the response (an
	// ERR-prefixed line on failure); translating that into a process
	// exit code is the CLI client's job, not this server's.
	response, _ := s.dispatch(cmd)
	for _, l := range response {
		fmt.Fprintln(conn, l)
	}
}

func (s *Server) dispatch(cmd string) ([]string, bool) {
	parts := strings.SplitN(cmd, "|", 2)
	name := strings.ToUpper(strings.TrimSpace(parts[0]))

	switch name {
	case "STATUS":
		return []string{s.status()}, true
	case "PEERS":
		return s.peers()
	case "LOGS":
		return s.logLines(parts)
	case "CONFIG":
		return []string{s.configDump()}, true
	case "PAUSE":
		s.daemon.Engine().SetSyncEnabled(false)
		return []string{"OK"}, true
	case "RESUME":
		s.daemon.Engine().SetSyncEnabled(true)
		return []string{"OK"}, true
	case "STATS":
		return s.stats(), true
	default:
		return []string{fmt.Sprintf("ERR unrecognized command %q", cmd)}, false
	}
}

func (s *Server) status() string {
	return fmt.Sprintf("uptime=%s sync_enabled=%t active_peers=%d",
		s.daemon.Uptime().Round(time.Second), s.daemon.Engine().SyncEnabled(), s.daemon.Health().ConnectedPeerCount())
}

func (s *Server) peers() ([]string, bool) {
	peers, err := s.daemon.Store().ListPeers()
	if err != nil {
		return []string{fmt.Sprintf("ERR listing peers: %v", err)}, false
	}
	lines := make([]string, 0, len(peers))
	for _, p := range peers {
		lines = append(lines, fmt.Sprintf("%s %s %d %s %t",
			p.PeerID, p.Address, p.Port, p.LastSeen.Format(time.RFC3339), p.Authenticated))
	}
	return lines, true
}

func (s *Server) logLines(parts []string) ([]string, bool) {
	n := 100
	if len(parts) == 2 {
		if parsed, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && parsed > 0 {
			n = parsed
		}
	}
	if s.logs == nil {
		return []string{"ERR no log source configured"}, false
	}
	return s.logs.Recent(n), true
}

func (s *Server) configDump() string {
	cfg := s.daemon.Config()
	return fmt.Sprintf(
		"peer_id=%s listen_port=%d discovery_port=%d watch_roots=%s "+
			"global_bps=%d per_peer_bps=%d default_strategy=%s",
		cfg.PeerID, cfg.ListenPort, cfg.DiscoveryPort, strings.Join(cfg.WatchRoots, ","),
		cfg.Bandwidth.GlobalBytesPerSec, cfg.Bandwidth.PerPeerBytesPerSec, cfg.Sync.DefaultStrategy)
}

func (s *Server) stats() []string {
	snap := s.daemon.Bandwidth().Snapshot()
	traffic := s.daemon.TrafficSnapshot()
	lines := []string{
		fmt.Sprintf("global uploaded=%d downloaded=%d upload_limit=%.0f download_limit=%.0f",
			snap.UploadedBytes, snap.DownloadedBytes, snap.GlobalUploadLimit, snap.GlobalDownloadLimit),
		fmt.Sprintf("wire rx_total=%d tx_total=%d rx_rate=%s tx_rate=%s",
			traffic.RXBytesTotal, traffic.TXBytesTotal,
			trafficstats.FormatRate(traffic.RXRate), trafficstats.FormatRate(traffic.TXRate)),
		fmt.Sprintf("queue pending=%d", s.daemon.Queue().Len()),
	}
	for peerID, ps := range snap.PerPeer {
		lines = append(lines, fmt.Sprintf("peer=%s uploaded=%d downloaded=%d", peerID, ps.UploadedBytes, ps.DownloadedBytes))
	}
	return lines
}

// DefaultPath is the fallback control socket path, mirrored here so
// callers that only need the default don't have to import config just
// for the string literal.
func DefaultPath() string { return config.Default().ControlSocketPath }
