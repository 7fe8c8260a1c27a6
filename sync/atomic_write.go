package sync

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to path via a same-directory temp file,
// fsyncs it, then renames over the target, so a crash mid-write never
// leaves a partially-written target (spec.md 4.5.3, grounded on
// original_source's ConflictResolver::writeFileAtomic). Parent
// directories are created if absent.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tempPath := filepath.Join(dir, fmt.Sprintf(".%s.%d.tmp", filepath.Base(path), rand.Intn(1_000_000)))

	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return err
	}
	return nil
}

// removeIfExists deletes path, treating an already-missing file as
// success (the delete has already taken effect from the caller's view).
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
