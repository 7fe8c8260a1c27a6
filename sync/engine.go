package sync

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"sentinelfs/application"
	"sentinelfs/domain"
	"sentinelfs/logging"
)

// PeerConnectSettleDelay is how long the engine waits after a peer
// connects (and is verified authenticated) before fanning out the local
// file index to it, per spec.md 4.5.4.
const PeerConnectSettleDelay = 500 * time.Millisecond

// receiveState is the delta state machine's phase for one path being
// synced from a remote origin (spec.md 4.5.2).
type receiveState int

const (
	stateIdle receiveState = iota
	stateAwaitingDelta
	stateAwaitingFull
)

type inFlightTransfer struct {
	state       receiveState
	remoteMeta  UpdateAvailable
	originPeer  string
	localBlocks [][]byte
	localMeta   domain.FileMetadata
	isConflict  bool
}

// Config holds the engine's tunables, normally sourced from the config
// package.
type Config struct {
	WatchRoot       string
	BlockSize       int
	MaxChunkBytes   int
	DefaultStrategy ResolutionStrategy
	LocalPeerID     string
}

// Engine is the sync engine of spec.md 4.5: local change pipeline, delta
// protocol state machine, and broadcast fan-out, composed from the
// smaller primitives in this package. Collaborators are injected per
// spec.md 9's "break the cycle" guidance: the engine holds a send-only
// network handle and a metadata store, and is driven by callers pushing
// local and remote events into it rather than polling anything itself.
type Engine struct {
	cfg Config
	log logging.Logger

	network application.NetworkAPI
	files   application.FileAPI
	storage application.StorageAPI
	queue   OfflineEnqueuer

	hashes    *HashCache
	ignoreF   *IgnoreFilter
	ignoreL   *IgnoreList
	assembler *ChunkAssembler

	syncEnabled atomic.Bool

	mu       sync.Mutex
	inflight map[string]*inFlightTransfer // keyed by rel path

	// deltaGroup collapses concurrent REQUEST_DELTA messages for the
	// same path and signature into one ComputeDelta/SerializeDelta call,
	// so a burst of identical requests from a remesh or retry storm
	// doesn't recompute the same diff once per caller.
	deltaGroup singleflight.Group
}

// OfflineEnqueuer is the subset of queue.Queue the engine needs, kept as
// an interface so tests can substitute a fake without constructing a real
// queue.
type OfflineEnqueuer interface {
	Enqueue(op domain.QueuedOperation)
}

func NewEngine(cfg Config, network application.NetworkAPI, files application.FileAPI, storage application.StorageAPI, offlineQueue OfflineEnqueuer, ignoreFilter *IgnoreFilter, log logging.Logger) *Engine {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	if cfg.MaxChunkBytes <= 0 {
		cfg.MaxChunkBytes = MaxChunkBytes
	}
	e := &Engine{
		cfg:       cfg,
		log:       log,
		network:   network,
		files:     files,
		storage:   storage,
		queue:     offlineQueue,
		hashes:    NewHashCache(),
		ignoreF:   ignoreFilter,
		ignoreL:   NewIgnoreList(),
		assembler: NewChunkAssembler(),
		inflight:  make(map[string]*inFlightTransfer),
	}
	e.syncEnabled.Store(true)
	return e
}

func (e *Engine) SetSyncEnabled(enabled bool) { e.syncEnabled.Store(enabled) }
func (e *Engine) SyncEnabled() bool           { return e.syncEnabled.Load() }

// HandleLocalEvent runs the local change pipeline of spec.md 4.5.1 for
// one filesystem event.
func (e *Engine) HandleLocalEvent(kind application.FileEventKind, relPath string) error {
	absPath, ok := ValidatePath(e.cfg.WatchRoot, relPath)
	if !ok {
		return errPathEscapesRoot(relPath)
	}

	if e.ignoreF.Match(relPath) {
		return nil
	}
	if e.ignoreL.Consume(relPath) {
		return nil
	}

	if kind == application.FileDeleted {
		return e.handleLocalDelete(relPath)
	}

	data, err := e.files.Read(absPath)
	if err != nil {
		return err
	}
	hash, err := e.hashes.Hash(absPath)
	if err != nil {
		return err
	}

	meta, found, err := e.storage.GetFileMetadata(relPath)
	if err != nil {
		return err
	}
	vc := domain.NewVectorClock()
	if found {
		vc = meta.VectorClock.Clone()
	}
	vc = vc.Increment(e.cfg.LocalPeerID)

	meta = domain.FileMetadata{
		Path:        relPath,
		Hash:        hash,
		Size:        uint64(len(data)),
		MTimeMs:     uint64(time.Now().UnixMilli()),
		VectorClock: vc,
	}
	if err := e.storage.UpsertFileMetadata(meta); err != nil {
		return err
	}

	if e.syncEnabled.Load() {
		return e.broadcastUpdate(meta)
	}

	e.queue.Enqueue(domain.QueuedOperation{Kind: domain.OpUpdate, Path: relPath, EnqueuedAt: time.Now()})
	return nil
}

func (e *Engine) handleLocalDelete(relPath string) error {
	meta, found, err := e.storage.GetFileMetadata(relPath)
	if err != nil {
		return err
	}
	vc := domain.NewVectorClock()
	if found {
		vc = meta.VectorClock.Clone()
	}
	vc = vc.Increment(e.cfg.LocalPeerID)
	meta = domain.FileMetadata{Path: relPath, VectorClock: vc, Tombstoned: true, MTimeMs: uint64(time.Now().UnixMilli())}
	if err := e.storage.UpsertFileMetadata(meta); err != nil {
		return err
	}

	if !e.syncEnabled.Load() {
		e.queue.Enqueue(domain.QueuedOperation{Kind: domain.OpDelete, Path: relPath, EnqueuedAt: time.Now()})
		return nil
	}
	return e.network.Broadcast(Envelope{Version: protocolVersion, Type: MsgDeleteFile, Payload: DeleteFile{RelPath: relPath, VectorClock: vc}.Write()}.Write())
}

func (e *Engine) broadcastUpdate(meta domain.FileMetadata) error {
	payload := UpdateAvailable{RelPath: meta.Path, Hash: meta.Hash, Size: meta.Size, VectorClock: meta.VectorClock}.Write()
	env := Envelope{Version: protocolVersion, Type: MsgUpdateAvailable, Payload: payload}
	return e.network.Broadcast(env.Write())
}

// OnPeerConnected implements the broadcast fan-out of spec.md 4.5.4: after
// a settle delay, every known path's UPDATE_AVAILABLE is replayed to the
// newly connected, authenticated peer.
func (e *Engine) OnPeerConnected(peerID string, authenticated bool) {
	if !authenticated {
		return
	}
	go func() {
		time.Sleep(PeerConnectSettleDelay)
		all, err := e.storage.ListFileMetadata()
		if err != nil {
			if e.log != nil {
				e.log.Warnf("fan-out to %s: list metadata failed: %v", peerID, err)
			}
			return
		}
		for _, m := range all {
			if m.Tombstoned {
				continue
			}
			payload := UpdateAvailable{RelPath: m.Path, Hash: m.Hash, Size: m.Size, VectorClock: m.VectorClock}.Write()
			env := Envelope{Version: protocolVersion, Type: MsgUpdateAvailable, Payload: payload}
			if err := e.network.Send(peerID, env.Write()); err != nil && e.log != nil {
				e.log.Warnf("fan-out to %s: send failed for %s: %v", peerID, m.Path, err)
			}
		}
	}()
}
