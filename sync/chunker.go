package sync

import (
	"sync"
	"time"

	"sentinelfs/domain"
)

// MaxChunkBytes is the largest payload carried in a single DELTA_DATA or
// FILE_DATA wire message before the sender must split it (spec.md 4.5.2).
const MaxChunkBytes = 64 * 1024

// ChunkTimeout is how long an incomplete assembly may sit before the
// reaper discards it (original_source's DeltaSyncCore.cpp
// CHUNK_TIMEOUT_SECONDS).
const ChunkTimeout = 300 * time.Second

// ChunkSweepInterval is how often the reaper checks for stale assemblies
// (DeltaSyncCore.cpp's CLEANUP_INTERVAL_SECONDS).
const ChunkSweepInterval = 60 * time.Second

// SplitChunks divides payload into ordered slices no larger than maxBytes
// each (MaxChunkBytes when maxBytes <= 0).
func SplitChunks(payload []byte, maxBytes int) [][]byte {
	if maxBytes <= 0 {
		maxBytes = MaxChunkBytes
	}
	if len(payload) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for off := 0; off < len(payload); off += maxBytes {
		end := off + maxBytes
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[off:end])
	}
	return chunks
}

// assemblyKey identifies one in-flight chunked transfer by origin peer and
// target path; two peers sending chunks for the same path never collide.
type assemblyKey struct {
	peerID string
	path   string
}

// ChunkAssembler tracks in-flight chunked transfers on the receiving side,
// reusing domain.PendingDeltaAssembly for idempotent duplicate-chunk
// handling, and evicts transfers that stall past ChunkTimeout.
type ChunkAssembler struct {
	mu      sync.Mutex
	pending map[assemblyKey]*domain.PendingDeltaAssembly
}

func NewChunkAssembler() *ChunkAssembler {
	return &ChunkAssembler{pending: make(map[assemblyKey]*domain.PendingDeltaAssembly)}
}

// Begin registers a new chunked transfer, overwriting any stale entry for
// the same key (a restarted transfer supersedes an abandoned one).
func (c *ChunkAssembler) Begin(peerID, path string, totalChunks int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[assemblyKey{peerID, path}] = domain.NewPendingDeltaAssembly(totalChunks)
}

// Put records chunk index for the named transfer. complete reports
// whether every chunk has now arrived; assembled is non-nil only when
// complete is true, and the assembly is removed from tracking at that
// point.
func (c *ChunkAssembler) Put(peerID, path string, index int, data []byte) (complete bool, assembled []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := assemblyKey{peerID, path}
	a, ok := c.pending[key]
	if !ok {
		return false, nil
	}
	a.Put(index, data)
	if !a.Complete() {
		return false, nil
	}
	delete(c.pending, key)
	return true, a.Assemble()
}

// Abandon drops any in-flight assembly for peerID+path without assembling
// it, used when a transfer is superseded or explicitly cancelled.
func (c *ChunkAssembler) Abandon(peerID, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, assemblyKey{peerID, path})
}

// Sweep discards assemblies whose last chunk arrived more than
// ChunkTimeout ago, returning the number evicted.
func (c *ChunkAssembler) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	now := time.Now()
	for key, a := range c.pending {
		if now.Sub(a.LastActivity) > ChunkTimeout {
			delete(c.pending, key)
			evicted++
		}
	}
	return evicted
}

// Pending reports the number of in-flight assemblies, for diagnostics.
func (c *ChunkAssembler) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
