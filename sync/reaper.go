package sync

import (
	"context"
	"time"

	"sentinelfs/logging"
)

// RunChunkReaperLoop periodically sweeps assembler for stale chunked
// transfers until ctx is cancelled, grounded directly on the teacher's
// RunIdleReaperLoop (infrastructure/tunnel/session/reaper.go) ctx.Done +
// ticker shape, and on original_source's DeltaSyncCore.cpp cleanup thread
// which performs the same sweep on CLEANUP_INTERVAL_SECONDS.
func RunChunkReaperLoop(ctx context.Context, assembler *ChunkAssembler, log logging.Logger) {
	ticker := time.NewTicker(ChunkSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := assembler.Sweep(); n > 0 && log != nil {
				log.Debugf("chunk reaper evicted %d stale transfer(s)", n)
			}
		}
	}
}
