package sync

import (
	"sync"
	"time"
)

// IgnoreListTTL bounds how long a self-write suppression entry survives
// if the corresponding filesystem event never arrives (spec.md 9's third
// Open Question: the local engine always clears the entry itself on
// match, but a crash or a missed inotify event would otherwise leak the
// entry forever).
const IgnoreListTTL = 5 * time.Second

// IgnoreList is the sync-loop breaker of spec.md 4.5.1: paths the engine
// itself just wrote on behalf of a remote change are recorded here so the
// resulting local file event is dropped instead of re-broadcast.
type IgnoreList struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewIgnoreList() *IgnoreList {
	return &IgnoreList{entries: make(map[string]time.Time)}
}

// Add marks relPath as self-written, to be cleared on the next matching
// Consume or by expiry.
func (l *IgnoreList) Add(relPath string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[relPath] = time.Now().Add(IgnoreListTTL)
}

// Consume reports whether relPath has a live ignore entry, clearing it if
// so (a match is one-shot).
func (l *IgnoreList) Consume(relPath string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiry, ok := l.entries[relPath]
	if !ok {
		return false
	}
	delete(l.entries, relPath)
	return time.Now().Before(expiry)
}

// Sweep removes expired entries that were never consumed. RunChunkReaperLoop
// does not call it; an expired entry left unswept is still dropped by the
// next Consume for its path.
func (l *IgnoreList) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for path, expiry := range l.entries {
		if now.After(expiry) {
			delete(l.entries, path)
		}
	}
}
