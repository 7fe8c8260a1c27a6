package application

import "sentinelfs/domain"

// Tx is the transaction handle StorageAPI's transaction wrapper returns
// (spec.md 6.4's begin/commit/rollback).
type Tx interface {
	Commit() error
	Rollback() error
}

// StorageAPI persists peer records, file metadata, and the ignore/watch
// configuration (spec.md 6.3, 6.4). The format on disk is opaque to the
// core; only this interface's contract matters to callers.
type StorageAPI interface {
	UpsertPeer(p domain.Peer) error
	GetPeer(peerID string) (domain.Peer, bool, error)
	ListPeers() ([]domain.Peer, error)

	UpsertFileMetadata(m domain.FileMetadata) error
	GetFileMetadata(path string) (domain.FileMetadata, bool, error)
	ListFileMetadata() ([]domain.FileMetadata, error)
	BatchUpsertFileMetadata(ms []domain.FileMetadata) error

	IgnorePatterns() ([]string, error)
	SetIgnorePatterns(patterns []string) error
	WatchedFolders() ([]string, error)
	SetWatchedFolders(folders []string) error

	Begin() (Tx, error)
}
