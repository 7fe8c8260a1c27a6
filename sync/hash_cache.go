package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"time"

	"sentinelfs/domain"
)

// HashCacheTTL bounds how long a cache entry is trusted even if the
// filesystem mtime it was keyed on still matches (spec.md 4.5.1).
const HashCacheTTL = 10 * time.Minute

// HashCache memoizes a path's SHA-256 content digest against the
// filesystem mtime observed when it was computed, avoiding a full re-read
// on every local change notification for files that were merely touched.
type HashCache struct {
	mu      sync.Mutex
	entries map[string]domain.HashCacheEntry
}

func NewHashCache() *HashCache {
	return &HashCache{entries: make(map[string]domain.HashCacheEntry)}
}

// Hash returns the hex-encoded SHA-256 digest of absPath's content,
// reusing a cached value when the file's current mtime still matches the
// cached one and the entry hasn't exceeded HashCacheTTL.
func (c *HashCache) Hash(absPath string) (string, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return "", err
	}
	fsMTime := uint64(info.ModTime().UnixMilli())

	if cached, ok := c.lookup(absPath, fsMTime); ok {
		return cached, nil
	}

	digest, err := hashFile(absPath)
	if err != nil {
		return "", err
	}

	c.store(absPath, domain.HashCacheEntry{
		Hash:       digest,
		FSMTimeMs:  fsMTime,
		InsertedAt: time.Now(),
	})
	return digest, nil
}

// Invalidate drops any cached entry for path, forcing the next Hash call
// to recompute regardless of mtime.
func (c *HashCache) Invalidate(absPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, absPath)
}

func (c *HashCache) lookup(absPath string, fsMTime uint64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[absPath]
	if !ok {
		return "", false
	}
	if entry.FSMTimeMs != fsMTime {
		return "", false
	}
	if time.Since(entry.InsertedAt) > HashCacheTTL {
		return "", false
	}
	return entry.Hash, true
}

func (c *HashCache) store(absPath string, entry domain.HashCacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[absPath] = entry
}

func hashFile(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
