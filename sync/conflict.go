package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sentinelfs/domain"
)

// ResolutionStrategy selects how a detected conflict is resolved
// (spec.md 4.5.3), grounded on original_source's
// ConflictResolver::ResolutionStrategy enum.
type ResolutionStrategy int

const (
	NewestWins ResolutionStrategy = iota
	LargestWins
	RemoteWins
	LocalWins
	KeepBoth
	Manual
)

// ParseResolutionStrategy maps the config package's string tunable to a
// ResolutionStrategy, the same vocabulary config.validate already
// enforces for SyncConfig.DefaultStrategy.
func ParseResolutionStrategy(s string) (ResolutionStrategy, error) {
	switch s {
	case "newest_wins":
		return NewestWins, nil
	case "largest_wins":
		return LargestWins, nil
	case "remote_wins":
		return RemoteWins, nil
	case "local_wins":
		return LocalWins, nil
	case "keep_both":
		return KeepBoth, nil
	case "manual":
		return Manual, nil
	default:
		return 0, fmt.Errorf("sync: unrecognized resolution strategy %q", s)
	}
}

// Conflict describes one detected concurrent modification, pending
// resolution.
type Conflict struct {
	Path            string
	LocalHash       string
	RemoteHash      string
	LocalTimestamp  uint64
	RemoteTimestamp uint64
	LocalSize       uint64
	RemoteSize      uint64
	RemotePeerID    string
	Strategy        ResolutionStrategy
	Resolved        bool
	NeedsReview     bool

	// Overwritten reports whether resolution actually replaced the local
	// file's bytes with remoteData. LocalWins, KeepBoth, and Manual all
	// leave the original file in place (KeepBoth/Manual stash remoteData
	// alongside it instead of overwriting), so callers that stamp stored
	// metadata from the resolved conflict must check this rather than
	// assuming every resolution converges local content to remote.
	Overwritten bool
}

// DetectConflict reports whether local and remote changes to the same
// path are genuinely concurrent, per spec.md 4.5.3: identical content is
// never a conflict, and causally ordered changes (one happens-before the
// other) mean the newer one simply supersedes the older, not a conflict.
func DetectConflict(localHash, remoteHash string, localClock, remoteClock domain.VectorClock) bool {
	if localHash == remoteHash {
		return false
	}
	if domain.HappensBefore(remoteClock, localClock) {
		return false
	}
	if domain.HappensBefore(localClock, remoteClock) {
		return false
	}
	return domain.Concurrent(localClock, remoteClock)
}

// Resolve applies conflict's strategy, writing to localPath as needed.
// remoteData is the full remote content (already decompressed/reassembled).
func Resolve(conflict *Conflict, localPath string, remoteData []byte) error {
	if localPath == "" {
		return errLocalMissing(conflict.Path)
	}

	_, statErr := os.Stat(localPath)
	localExists := statErr == nil
	if !localExists && conflict.Strategy == LocalWins {
		return errLocalMissing(conflict.Path)
	}

	var err error
	switch conflict.Strategy {
	case NewestWins:
		err = resolveNewestWins(conflict, localPath, remoteData)
	case LargestWins:
		err = resolveLargestWins(conflict, localPath, remoteData)
	case RemoteWins:
		err = resolveRemoteWins(conflict, localPath, remoteData)
	case LocalWins:
		// local already on disk, nothing to do
	case KeepBoth:
		err = resolveKeepBoth(conflict, localPath, remoteData)
	case Manual:
		if err = resolveKeepBoth(conflict, localPath, remoteData); err == nil {
			conflict.NeedsReview = true
		}
	default:
		err = errConflict(conflict.Path)
	}

	if err == nil {
		conflict.Resolved = true
	}
	return err
}

func resolveRemoteWins(conflict *Conflict, localPath string, remoteData []byte) error {
	if len(remoteData) == 0 {
		return errEmptyRemote(conflict.Path)
	}
	if err := WriteFileAtomic(localPath, remoteData); err != nil {
		return errResolveWriteFailed(conflict.Path, err)
	}
	conflict.Overwritten = true
	return nil
}

func resolveNewestWins(conflict *Conflict, localPath string, remoteData []byte) error {
	if conflict.RemoteTimestamp <= conflict.LocalTimestamp {
		return nil
	}
	return resolveRemoteWins(conflict, localPath, remoteData)
}

func resolveLargestWins(conflict *Conflict, localPath string, remoteData []byte) error {
	if conflict.RemoteSize <= conflict.LocalSize {
		return nil
	}
	return resolveRemoteWins(conflict, localPath, remoteData)
}

func resolveKeepBoth(conflict *Conflict, localPath string, remoteData []byte) error {
	timestamp := time.Now().Format("20060102_150405")

	localConflictPath := conflictPath(localPath, "local_"+timestamp)
	if data, err := os.ReadFile(localPath); err == nil {
		if err := WriteFileAtomic(localConflictPath, data); err != nil {
			return errResolveWriteFailed(conflict.Path, err)
		}
	}

	remoteConflictPath := conflictPath(localPath, fmt.Sprintf("remote_%s_%s", conflict.RemotePeerID, timestamp))
	if err := WriteFileAtomic(remoteConflictPath, remoteData); err != nil {
		return errResolveWriteFailed(conflict.Path, err)
	}
	return nil
}

// conflictPath inserts ".conflict.<suffix>" before the original
// extension, grounded on ConflictResolver::generateConflictPath.
func conflictPath(original, suffix string) string {
	dir := filepath.Dir(original)
	base := filepath.Base(original)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	name := stem + ".conflict." + suffix + ext
	if dir == "." {
		return name
	}
	return filepath.Join(dir, name)
}
