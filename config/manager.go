package config

import (
	"os"

	"github.com/google/uuid"
)

// Manager loads, resolves, and persists the daemon's configuration,
// composing Reader/Resolver/Writer the way the teacher's
// *_configuration.Manager composes its own quartet.
type Manager struct {
	path     string
	reader   *Reader
	writer   *Writer
	resolver *Resolver
}

func NewManager(path string) *Manager {
	return &Manager{path: path, reader: NewReader(), writer: NewWriter(), resolver: NewResolver()}
}

// Load reads the config file at Manager's path if present, else starts
// from an empty Config, then resolves it against defaults and validates.
// A missing file is not itself an error; an invalid merged config is.
func (m *Manager) Load() (Config, error) {
	var raw Config
	if _, err := os.Stat(m.path); err == nil {
		cfg, err := m.reader.Read(m.path)
		if err != nil {
			return Config{}, err
		}
		raw = cfg
	} else if !os.IsNotExist(err) {
		return Config{}, errRead(m.path, err)
	}
	resolved, err := m.resolver.Resolve(raw)
	if err != nil {
		return Config{}, err
	}
	if resolved.PeerID == "" {
		resolved.PeerID = uuid.NewString()
		if err := m.Save(resolved); err != nil {
			return Config{}, err
		}
	}
	return resolved, nil
}

// Save persists cfg to Manager's path verbatim (no default-filling).
func (m *Manager) Save(cfg Config) error {
	return m.writer.Write(m.path, cfg)
}
