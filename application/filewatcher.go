package application

// FileEventKind enumerates the filesystem occurrences FileWatcher emits.
type FileEventKind int

const (
	FileCreated FileEventKind = iota
	FileModified
	FileDeleted
	FileRenamed
)

// FileEvent is one filesystem occurrence under a watched root.
type FileEvent struct {
	Kind FileEventKind
	Path string
	// OldPath is set only for FileRenamed.
	OldPath string
}

// FileWatcher is the filesystem-notification collaborator (spec.md 6.4).
type FileWatcher interface {
	StartWatching(path string) error
	StopWatching(path string) error
	Events() <-chan FileEvent
}
