package config

import (
	"encoding/json"
	"os"
)

// Reader loads a Config from a JSON file on disk.
type Reader struct{}

func NewReader() *Reader { return &Reader{} }

func (r *Reader) Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errRead(path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errRead(path, err)
	}
	return cfg, nil
}
