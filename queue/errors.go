// Package queue implements the offline operation queue of spec.md 4.6:
// a FIFO of pending sync operations drained by a background worker while
// online, persisted across restarts, and bounded by a retry limit.
// Grounded on original_source's OfflineQueue.h semantics and the teacher's
// ctx.Done+ticker worker-loop shape (infrastructure/tunnel/session/reaper.go).
package queue

import "sentinelfs/sferr"

const component = "queue"

func errMaxRetriesExceeded(opID string) error {
	return sferr.New(sferr.CodeSyncInProgress, component, "operation dropped after exceeding max retries").
		WithDetail("operation_id", opID)
}
