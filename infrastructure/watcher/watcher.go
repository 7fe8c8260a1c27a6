// Package watcher implements application.FileWatcher over fsnotify,
// recursively watching every directory under a root and translating raw
// inotify/kqueue/ReadDirectoryChanges events into the
// Created/Modified/Deleted/Renamed vocabulary of spec.md 6.4.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"sentinelfs/application"
)

// Watcher is the concrete application.FileWatcher implementation.
type Watcher struct {
	fsw    *fsnotify.Watcher
	events chan application.FileEvent

	mu      sync.Mutex
	pending map[string]string // rename-from path -> awaiting matching create
	roots   map[string]bool
}

func New() (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		events:  make(chan application.FileEvent, 256),
		pending: make(map[string]string),
		roots:   make(map[string]bool),
	}
	go w.pump()
	return w, nil
}

func (w *Watcher) Events() <-chan application.FileEvent { return w.events }

// StartWatching adds path, and every directory beneath it, to the
// watch set.
func (w *Watcher) StartWatching(path string) error {
	w.mu.Lock()
	w.roots[path] = true
	w.mu.Unlock()

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(p)
		}
		return nil
	})
}

// StopWatching removes path from the watch set. Subdirectories already
// registered are left alone; fsnotify has no recursive remove, and a
// stray watch on an orphaned directory is harmless (events for it are
// simply never routed by a caller that no longer cares).
func (w *Watcher) StopWatching(path string) error {
	w.mu.Lock()
	delete(w.roots, path)
	w.mu.Unlock()
	return w.fsw.Remove(path)
}

func (w *Watcher) pump() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				close(w.events)
				return
			}
			w.handle(ev)
		case <-w.fsw.Errors:
			// Surfaced only via a dropped event; the caller's
			// recovery path is the periodic full rescan it already
			// runs for crash recovery (spec.md 9).
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Create != 0:
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.fsw.Add(ev.Name)
		}
		if from, ok := w.takeRenameFrom(); ok {
			w.emit(application.FileEvent{Kind: application.FileRenamed, Path: ev.Name, OldPath: from})
			return
		}
		w.emit(application.FileEvent{Kind: application.FileCreated, Path: ev.Name})
	case ev.Op&fsnotify.Write != 0:
		w.emit(application.FileEvent{Kind: application.FileModified, Path: ev.Name})
	case ev.Op&fsnotify.Remove != 0:
		w.emit(application.FileEvent{Kind: application.FileDeleted, Path: ev.Name})
	case ev.Op&fsnotify.Rename != 0:
		w.setRenameFrom(ev.Name)
	}
}

func (w *Watcher) setRenameFrom(path string) {
	w.mu.Lock()
	w.pending["last"] = path
	w.mu.Unlock()
}

func (w *Watcher) takeRenameFrom() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	path, ok := w.pending["last"]
	delete(w.pending, "last")
	return path, ok
}

func (w *Watcher) emit(ev application.FileEvent) {
	select {
	case w.events <- ev:
	default:
	}
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}
