package queue

import (
	"context"
	"time"

	"sentinelfs/logging"
)

// ProcessInterval is how often the worker checks for online+pending work
// (spec.md 4.6).
const ProcessInterval = time.Second

// RetryDelay is how long the worker waits between a failed attempt and
// its next poll, layered on top of ProcessInterval.
const RetryDelay = 5 * time.Second

// RunWorkerLoop drains q one operation per tick while online, applying
// processor. It blocks until ctx is cancelled, mirroring the teacher's
// idle-reaper loop shape (ctx.Done + ticker).
func RunWorkerLoop(ctx context.Context, q *Queue, processor Processor, log logging.Logger) {
	if log == nil {
		log = logging.Default
	}
	ticker := time.NewTicker(ProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if q.processOnce(processor) == outcomeFailed {
				select {
				case <-ctx.Done():
					return
				case <-time.After(RetryDelay):
				}
			}
		}
	}
}
