package controlsocket

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sentinelfs/application"
	"sentinelfs/bandwidth"
	"sentinelfs/config"
	"sentinelfs/domain"
	"sentinelfs/health"
	"sentinelfs/infrastructure/jsonstore"
	"sentinelfs/infrastructure/telemetry/trafficstats"
	"sentinelfs/queue"
	"sentinelfs/sync"
)

type noopNetwork struct{}

func (noopNetwork) Connect(string) error                        { return nil }
func (noopNetwork) Send(string, []byte) error                   { return nil }
func (noopNetwork) Broadcast([]byte) error                       { return nil }
func (noopNetwork) StartListening(int) error                     { return nil }
func (noopNetwork) StartDiscovery(int) error                     { return nil }
func (noopNetwork) Close(string) error                           { return nil }
func (noopNetwork) Events() <-chan application.NetworkEvent      { return nil }

type noopFileAPI struct{}

func (noopFileAPI) Read(string) ([]byte, error)        { return nil, nil }
func (noopFileAPI) Write(string, []byte) (bool, error) { return true, nil }

type fakeDaemon struct {
	store   *jsonstore.Store
	bw      *bandwidth.Manager
	healthM *health.Monitor
	q       *queue.Queue
	engine  *sync.Engine
	cfg     config.Config
}

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	store, err := jsonstore.Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("jsonstore.Open: %v", err)
	}
	bw := bandwidth.NewManager(bandwidth.Limits{GlobalUploadBytesPerS: 1000, GlobalDownloadBytesPerS: 1000})
	healthM := health.NewMonitor(health.DefaultConfig())
	q := queue.New(nil)
	cfg := config.Default()
	cfg.PeerID = "peer-local"
	engine := sync.NewEngine(sync.Config{WatchRoot: t.TempDir(), LocalPeerID: cfg.PeerID}, noopNetwork{}, noopFileAPI{}, store, q, sync.NewIgnoreFilter(nil), nil)
	return &fakeDaemon{store: store, bw: bw, healthM: healthM, q: q, engine: engine, cfg: cfg}
}

func (f *fakeDaemon) Uptime() time.Duration         { return 5 * time.Second }
func (f *fakeDaemon) Store() *jsonstore.Store       { return f.store }
func (f *fakeDaemon) Bandwidth() *bandwidth.Manager { return f.bw }
func (f *fakeDaemon) Health() *health.Monitor       { return f.healthM }
func (f *fakeDaemon) Queue() *queue.Queue           { return f.q }
func (f *fakeDaemon) Engine() *sync.Engine          { return f.engine }
func (f *fakeDaemon) Config() config.Config         { return f.cfg }
func (f *fakeDaemon) TrafficSnapshot() trafficstats.Snapshot { return trafficstats.Snapshot{} }

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	daemon := newFakeDaemon(t)
	daemon.store.UpsertPeer(domain.Peer{PeerID: "peer-b", Address: "10.0.0.2", Port: 9443, Authenticated: true})

	sockPath := filepath.Join(t.TempDir(), "ctl.sock")
	srv := New(sockPath, daemon, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.ListenAndServe(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", sockPath); err == nil {
			conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return srv, sockPath
}

func sendCommand(t *testing.T, sockPath, cmd string) []string {
	t.Helper()
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var lines []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestServerStatusReportsUptimeAndSyncEnabled(t *testing.T) {
	_, sockPath := startTestServer(t)
	lines := sendCommand(t, sockPath, "STATUS")
	if len(lines) != 1 || !strings.Contains(lines[0], "sync_enabled=true") {
		t.Fatalf("unexpected STATUS response: %v", lines)
	}
}

func TestServerPeersListsUpsertedPeer(t *testing.T) {
	_, sockPath := startTestServer(t)
	lines := sendCommand(t, sockPath, "PEERS")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "peer-b 10.0.0.2 9443") {
		t.Fatalf("unexpected PEERS response: %v", lines)
	}
}

func TestServerPauseResumeTogglesSyncEnabled(t *testing.T) {
	daemon := newFakeDaemon(t)
	sockPath := filepath.Join(t.TempDir(), "ctl.sock")
	srv := New(sockPath, daemon, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.ListenAndServe(ctx)
	time.Sleep(50 * time.Millisecond)

	if lines := sendCommand(t, sockPath, "PAUSE"); len(lines) != 1 || lines[0] != "OK" {
		t.Fatalf("PAUSE: %v", lines)
	}
	if daemon.engine.SyncEnabled() {
		t.Fatal("expected sync disabled after PAUSE")
	}
	if lines := sendCommand(t, sockPath, "RESUME"); len(lines) != 1 || lines[0] != "OK" {
		t.Fatalf("RESUME: %v", lines)
	}
	if !daemon.engine.SyncEnabled() {
		t.Fatal("expected sync enabled after RESUME")
	}
}

func TestServerUnrecognizedCommandReturnsErr(t *testing.T) {
	_, sockPath := startTestServer(t)
	lines := sendCommand(t, sockPath, "BOGUS")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "ERR") {
		t.Fatalf("expected ERR line, got %v", lines)
	}
}

func TestServerLogsWithoutSourceReturnsErr(t *testing.T) {
	_, sockPath := startTestServer(t)
	lines := sendCommand(t, sockPath, "LOGS|10")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "ERR") {
		t.Fatalf("expected ERR line without a log source, got %v", lines)
	}
}
