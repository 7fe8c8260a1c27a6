// Package jsonstore implements application.StorageAPI as one JSON file on
// disk per artifact (spec.md 6.3: peer records + file metadata, offline
// queue snapshot), guarded by a single mutex and rewritten atomically via
// sync.WriteFileAtomic on every mutation. Grounded on the config
// package's reader/writer JSON-file pattern, generalized from one struct
// to the four collections StorageAPI owns.
package jsonstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"sentinelfs/application"
	"sentinelfs/domain"
	sfsync "sentinelfs/sync"
)

type document struct {
	Peers          map[string]domain.Peer         `json:"peers"`
	FileMetadata   map[string]domain.FileMetadata `json:"file_metadata"`
	IgnorePatterns []string                       `json:"ignore_patterns"`
	WatchedFolders []string                       `json:"watched_folders"`
}

func newDocument() document {
	return document{
		Peers:        make(map[string]domain.Peer),
		FileMetadata: make(map[string]domain.FileMetadata),
	}
}

// Store is the concrete application.StorageAPI over a single JSON file.
type Store struct {
	path string
	mu   sync.Mutex
	doc  document
}

// Open loads path if present, else starts from an empty document. The
// directory is created if absent so a first run doesn't need a
// pre-existing state directory.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	s := &Store{path: path, doc: newDocument()}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, err
	}
	if s.doc.Peers == nil {
		s.doc.Peers = make(map[string]domain.Peer)
	}
	if s.doc.FileMetadata == nil {
		s.doc.FileMetadata = make(map[string]domain.FileMetadata)
	}
	return s, nil
}

// persist must be called with mu held.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}
	return sfsync.WriteFileAtomic(s.path, data)
}

func (s *Store) UpsertPeer(p domain.Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Peers[p.PeerID] = p
	return s.persist()
}

func (s *Store) GetPeer(peerID string) (domain.Peer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.doc.Peers[peerID]
	return p, ok, nil
}

func (s *Store) ListPeers() ([]domain.Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Peer, 0, len(s.doc.Peers))
	for _, p := range s.doc.Peers {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) UpsertFileMetadata(m domain.FileMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.FileMetadata[m.Path] = m
	return s.persist()
}

func (s *Store) GetFileMetadata(path string) (domain.FileMetadata, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.doc.FileMetadata[path]
	return m, ok, nil
}

func (s *Store) ListFileMetadata() ([]domain.FileMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FileMetadata, 0, len(s.doc.FileMetadata))
	for _, m := range s.doc.FileMetadata {
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) BatchUpsertFileMetadata(ms []domain.FileMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range ms {
		s.doc.FileMetadata[m.Path] = m
	}
	return s.persist()
}

func (s *Store) IgnorePatterns() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.doc.IgnorePatterns...), nil
}

func (s *Store) SetIgnorePatterns(patterns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.IgnorePatterns = append([]string(nil), patterns...)
	return s.persist()
}

func (s *Store) WatchedFolders() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.doc.WatchedFolders...), nil
}

func (s *Store) SetWatchedFolders(folders []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.WatchedFolders = append([]string(nil), folders...)
	return s.persist()
}

// tx is a no-op transaction boundary; each Store method is already
// atomic under its own mutex, so callers needing atomicity across
// several writes should use BatchUpsertFileMetadata instead.
type tx struct{}

func (tx) Commit() error   { return nil }
func (tx) Rollback() error { return nil }

func (s *Store) Begin() (application.Tx, error) {
	return tx{}, nil
}

// QueueSnapshotPath derives the offline-queue snapshot's path from the
// store's own path, keeping both artifacts of spec.md 6.3 next to each
// other under the same state directory.
func QueueSnapshotPath(storePath string) string {
	return filepath.Join(filepath.Dir(storePath), "offline_queue.json")
}

// SaveQueueSnapshot persists the offline queue (spec.md 6.3's second
// artifact, "Pending ops in the offline queue are persisted via
// get_pending_operations() before process exit").
func SaveQueueSnapshot(path string, ops []domain.QueuedOperation) error {
	data, err := json.MarshalIndent(ops, "", "  ")
	if err != nil {
		return err
	}
	return sfsync.WriteFileAtomic(path, data)
}

// LoadQueueSnapshot restores a previously saved offline queue. A missing
// file yields an empty slice, not an error.
func LoadQueueSnapshot(path string) ([]domain.QueuedOperation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ops []domain.QueuedOperation
	return ops, json.Unmarshal(data, &ops)
}
