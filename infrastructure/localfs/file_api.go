// Package localfs implements application.FileAPI over the local
// filesystem, reusing the sync engine's atomic-write primitive so every
// write path in the daemon goes through the same crash-safe rename
// sequence (spec.md 6.4).
package localfs

import (
	"os"

	"sentinelfs/sync"
)

// FileAPI is the concrete local-disk implementation of application.FileAPI.
type FileAPI struct{}

func New() *FileAPI { return &FileAPI{} }

func (FileAPI) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (FileAPI) Write(path string, data []byte) (bool, error) {
	if err := sync.WriteFileAtomic(path, data); err != nil {
		return false, err
	}
	return true, nil
}
