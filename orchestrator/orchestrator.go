// Package orchestrator wires the daemon's independently-testable pieces
// together into one running process: transport, session, sync engine,
// watcher, storage, bandwidth, health, and the offline queue. Grounded on
// the teacher's composition-root entrypoints and
// application/traffic_router_factory.go's "construct every collaborator,
// then hand them to one driving loop" shape, generalized from one tunnel
// connection to a peer mesh.
package orchestrator

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sentinelfs/application"
	"sentinelfs/bandwidth"
	"sentinelfs/config"
	"sentinelfs/crypto"
	"sentinelfs/domain"
	"sentinelfs/eventhub"
	"sentinelfs/health"
	"sentinelfs/infrastructure/jsonstore"
	"sentinelfs/infrastructure/localfs"
	"sentinelfs/infrastructure/netio"
	"sentinelfs/infrastructure/telemetry/trafficstats"
	"sentinelfs/infrastructure/watcher"
	"sentinelfs/logging"
	"sentinelfs/queue"
	"sentinelfs/session"
	"sentinelfs/sync"
)

// Topics published on the shared event hub. controlsocket and any future
// status UI subscribe to these instead of reaching into daemon internals.
const (
	TopicPeerConnected    = "peer.connected"
	TopicPeerDisconnected = "peer.disconnected"
	TopicPeerDiscovered   = "peer.discovered"
	TopicRemesh           = "remesh.executed"
)

// Daemon owns every long-lived collaborator and the goroutines that pump
// events between them. It is the composition root cmd/ constructs.
type Daemon struct {
	cfg config.Config
	log logging.Logger

	store     *jsonstore.Store
	transport *netio.Transport
	sessionMgr *session.Manager
	net       *secureNetwork
	engine    *sync.Engine
	watcher   *watcher.Watcher
	files     *localfs.FileAPI
	bw        *bandwidth.Manager
	healthMon *health.Monitor
	hub       *eventhub.Hub
	offline   *queue.Queue

	cancel    context.CancelFunc
	wg        stdsync.WaitGroup
	startedAt time.Time

	mu      stdsync.Mutex
	started bool
}

// New constructs every collaborator from cfg but starts nothing; call Run
// to begin the daemon's goroutines.
func New(cfg config.Config, log logging.Logger) (*Daemon, error) {
	if log == nil {
		log = logging.Default
	}

	store, err := jsonstore.Open(config.StoreFilePath(cfg.StateDir))
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open store: %w", err)
	}

	hub := eventhub.New(func(topic string, r any) {
		log.Errorf("orchestrator: panic in %s subscriber: %v", topic, r)
	})

	sessionMgr := session.NewManager(cfg.PeerID, []byte(cfg.SessionCode))
	sessionMgr.SetKeys(crypto.DeriveSessionKeys([]byte(cfg.SessionCode), nil, 0))

	transport := netio.New(cfg.PeerID, log)
	transport.SetHandshake(buildHandshake(sessionMgr))

	bw := bandwidth.NewManager(bandwidth.Limits{
		GlobalUploadBytesPerS:   float64(cfg.Bandwidth.GlobalBytesPerSec),
		GlobalDownloadBytesPerS: float64(cfg.Bandwidth.GlobalBytesPerSec),
		PeerUploadBytesPerS:     float64(cfg.Bandwidth.PerPeerBytesPerSec),
		PeerDownloadBytesPerS:   float64(cfg.Bandwidth.PerPeerBytesPerSec),
	})

	netAPI := &secureNetwork{transport: transport, session: sessionMgr, bw: bw}

	fw, err := watcher.New()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: new watcher: %w", err)
	}

	files := localfs.New()

	offline := queue.New(func(op domain.QueuedOperation, err error) {
		log.Warnf("orchestrator: dropping queued op %s %s after max retries: %v", op.Kind, op.Path, err)
	})
	if snapshot, err := jsonstore.LoadQueueSnapshot(jsonstore.QueueSnapshotPath(config.StoreFilePath(cfg.StateDir))); err == nil {
		offline.LoadOperations(snapshot)
	}

	strategy, err := sync.ParseResolutionStrategy(cfg.Sync.DefaultStrategy)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	var watchRoot string
	if len(cfg.WatchRoots) > 0 {
		watchRoot = cfg.WatchRoots[0]
	}

	ignoreFilter := sync.NewIgnoreFilter(cfg.IgnorePatterns)
	engine := sync.NewEngine(sync.Config{
		WatchRoot:       watchRoot,
		BlockSize:       cfg.Sync.BlockSize,
		MaxChunkBytes:   cfg.Sync.MaxChunkBytes,
		DefaultStrategy: strategy,
		LocalPeerID:     cfg.PeerID,
	}, netAPI, files, store, offline, ignoreFilter, log)

	healthCfg := health.DefaultConfig()
	healthCfg.JitterWeight = cfg.Health.JitterWeight
	healthCfg.LossWeight = cfg.Health.LossWeight
	healthCfg.EWMAAlpha = cfg.Health.EWMAAlpha
	healthCfg.PeerStaleTimeout = cfg.Health.PeerStaleTimeout
	healthCfg.MaxActivePeers = cfg.Health.MaxActivePeers
	healthMon := health.NewMonitor(healthCfg)

	return &Daemon{
		cfg:        cfg,
		log:        log,
		store:      store,
		transport:  transport,
		sessionMgr: sessionMgr,
		net:        netAPI,
		engine:     engine,
		watcher:    fw,
		files:      files,
		bw:         bw,
		healthMon:  healthMon,
		hub:        hub,
		offline:    offline,
	}, nil
}

// Run starts every pump goroutine and blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return fmt.Errorf("orchestrator: already running")
	}
	d.started = true
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.startedAt = time.Now()
	d.mu.Unlock()

	// sync.Engine is built around a single watch root (see its Config and
	// ValidatePath usage); only the first configured root is actually
	// synced, so that's the only one watched. Configuring more than one
	// is accepted but everything past the first is inert.
	if len(d.cfg.WatchRoots) > 1 {
		d.log.Warnf("orchestrator: %d watch roots configured, only %s is synced", len(d.cfg.WatchRoots), d.cfg.WatchRoots[0])
	}

	// The listener, the discovery beacon, and the filesystem watcher are
	// independent of one another; start them concurrently and surface
	// the first failure instead of paying their setup latency serially.
	var g errgroup.Group
	g.Go(func() error {
		if err := d.transport.StartListening(d.cfg.ListenPort); err != nil {
			return fmt.Errorf("orchestrator: start listening: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := d.transport.StartDiscovery(d.cfg.DiscoveryPort); err != nil {
			return fmt.Errorf("orchestrator: start discovery: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if len(d.cfg.WatchRoots) == 0 {
			return nil
		}
		if err := d.watcher.StartWatching(d.cfg.WatchRoots[0]); err != nil {
			return fmt.Errorf("orchestrator: watch %s: %w", d.cfg.WatchRoots[0], err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	d.offline.SetOnline(true)

	d.wg.Add(4)
	go d.pumpNetworkEvents(runCtx)
	go d.pumpFileEvents(runCtx)
	go d.runOfflineQueue(runCtx)
	go d.runRemeshLoop(runCtx)
	go d.transport.StartTrafficSampler(runCtx)

	<-runCtx.Done()
	d.wg.Wait()
	return d.shutdown()
}

// Stop cancels the run loop and waits for every goroutine to exit.
func (d *Daemon) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (d *Daemon) shutdown() error {
	snapshotPath := jsonstore.QueueSnapshotPath(config.StoreFilePath(d.cfg.StateDir))
	if err := jsonstore.SaveQueueSnapshot(snapshotPath, d.offline.GetPendingOperations()); err != nil {
		d.log.Errorf("orchestrator: save offline queue snapshot: %v", err)
	}
	d.watcher.Close()
	d.sessionMgr.Close()
	return d.transport.Shutdown()
}

func (d *Daemon) pumpFileEvents(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			relPath, ok := d.relPath(ev.Path)
			if !ok {
				continue
			}
			if err := d.engine.HandleLocalEvent(ev.Kind, relPath); err != nil {
				d.log.Warnf("orchestrator: local event %s for %s: %v", ev.Kind, relPath, err)
			}
		}
	}
}

// relPath reduces an absolute watcher path to the path relative to the
// engine's configured watch root; paths outside it are not ours.
func (d *Daemon) relPath(absPath string) (string, bool) {
	root := ""
	if len(d.cfg.WatchRoots) > 0 {
		root = d.cfg.WatchRoots[0]
	}
	if len(absPath) <= len(root) || absPath[:len(root)] != root {
		return "", false
	}
	rel := absPath[len(root):]
	for len(rel) > 0 && rel[0] == '/' {
		rel = rel[1:]
	}
	return rel, rel != ""
}

func (d *Daemon) pumpNetworkEvents(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.transport.Events():
			if !ok {
				return
			}
			d.handleNetworkEvent(ev)
		}
	}
}

func (d *Daemon) handleNetworkEvent(ev application.NetworkEvent) {
	switch ev.Kind {
	case application.PeerConnected:
		d.healthMon.SetConnected(ev.PeerID, true)
		d.hub.Publish(TopicPeerConnected, ev.PeerID)
		peerID := ev.PeerID
		time.AfterFunc(sync.PeerConnectSettleDelay, func() {
			d.engine.OnPeerConnected(peerID, d.sessionMgr.PeerAuthState(peerID) == session.AuthAuthenticated)
		})
	case application.PeerDisconnected:
		d.healthMon.SetConnected(ev.PeerID, false)
		d.bw.RemovePeer(ev.PeerID)
		d.hub.Publish(TopicPeerDisconnected, ev.PeerID)
	case application.PeerDiscovered:
		d.hub.Publish(TopicPeerDiscovered, ev.PeerID)
		if err := d.store.UpsertPeer(domain.Peer{PeerID: ev.PeerID, Address: string(ev.Data), Status: domain.PeerUnknown}); err != nil {
			d.log.Warnf("orchestrator: record discovered peer %s: %v", ev.PeerID, err)
		}
		go func(peerID string) {
			if err := d.transport.Connect(peerID); err != nil {
				d.log.Debugf("orchestrator: auto-connect to %s: %v", peerID, err)
			}
		}(ev.PeerID)
	case application.DataReceived:
		d.handleDataReceived(ev.PeerID, ev.Data)
	}
}

func (d *Daemon) handleDataReceived(peerID string, sealed []byte) {
	plaintext, err := d.sessionMgr.Open(peerID, sealed)
	if err != nil {
		d.log.Warnf("orchestrator: rejecting frame from %s: %v", peerID, err)
		return
	}
	d.bw.RequestDownload(peerID, float64(len(sealed)), nil)
	env, err := sync.ReadEnvelope(plaintext)
	if err != nil {
		d.log.Warnf("orchestrator: malformed envelope from %s: %v", peerID, err)
		return
	}
	if err := d.engine.HandleRemoteEnvelope(peerID, env); err != nil {
		d.log.Warnf("orchestrator: handling envelope from %s: %v", peerID, err)
	}
}

func (d *Daemon) runOfflineQueue(ctx context.Context) {
	defer d.wg.Done()
	queue.RunWorkerLoop(ctx, d.offline, d.processQueuedOperation, d.log)
}

// processQueuedOperation replays a durable offline-queue entry through the
// same local-event pipeline a live filesystem notification would take.
func (d *Daemon) processQueuedOperation(op domain.QueuedOperation) bool {
	var kind application.FileEventKind
	switch op.Kind {
	case domain.OpDelete:
		kind = application.FileDeleted
	case domain.OpRename:
		kind = application.FileRenamed
	default:
		kind = application.FileModified
	}
	if err := d.engine.HandleLocalEvent(kind, op.Path); err != nil {
		d.log.Warnf("orchestrator: replaying queued op %s %s: %v", op.Kind, op.Path, err)
		return false
	}
	return true
}

// runRemeshLoop periodically recomputes the desired connected-peer set
// from health scores and reconciles the transport's live connections to
// match (spec.md 4.3's remesh trigger).
func (d *Daemon) runRemeshLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !d.healthMon.HasQualityDegradation() {
				continue
			}
			decision := d.healthMon.Remesh(nil)
			if !decision.ShouldExecute {
				continue
			}
			for _, id := range decision.ConnectPeers {
				if err := d.transport.Connect(id); err != nil {
					d.log.Debugf("orchestrator: remesh connect %s: %v", id, err)
				}
			}
			for _, id := range decision.DisconnectPeers {
				if err := d.transport.Close(id); err != nil {
					d.log.Debugf("orchestrator: remesh disconnect %s: %v", id, err)
				}
			}
			d.sessionMgr.RequireReauth(decision.ReauthPeers)
			d.hub.Publish(TopicRemesh, decision)
		}
	}
}

// Hub returns the shared event bus, for controlsocket to subscribe to.
func (d *Daemon) Hub() *eventhub.Hub { return d.hub }

// Store returns the persisted state store, for controlsocket's STATUS/PEERS.
func (d *Daemon) Store() *jsonstore.Store { return d.store }

// Bandwidth returns the bandwidth manager, for controlsocket's STATS.
func (d *Daemon) Bandwidth() *bandwidth.Manager { return d.bw }

// Health returns the health monitor, for controlsocket's PEERS.
func (d *Daemon) Health() *health.Monitor { return d.healthMon }

// Queue returns the offline queue, for controlsocket's STATUS.
func (d *Daemon) Queue() *queue.Queue { return d.offline }

// Engine returns the sync engine, for controlsocket's PAUSE/RESUME.
func (d *Daemon) Engine() *sync.Engine { return d.engine }

// Config returns the daemon's resolved configuration.
func (d *Daemon) Config() config.Config { return d.cfg }

// TrafficSnapshot returns the transport's cumulative and smoothed
// send/receive byte counters, for controlsocket's STATS.
func (d *Daemon) TrafficSnapshot() trafficstats.Snapshot { return d.transport.TrafficSnapshot() }

// Uptime returns how long the daemon has been running, for
// controlsocket's STATUS. Zero before Run has started it.
func (d *Daemon) Uptime() time.Duration {
	d.mu.Lock()
	start := d.startedAt
	d.mu.Unlock()
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}
