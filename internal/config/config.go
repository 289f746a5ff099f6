// Package config holds process-wide mode flags and the optional on-disk
// settings file read by cmd/polysubml.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// IsTestMode is a process-wide test-mode flag, set once at process start.
// No package in this repository reads it.
var IsTestMode = false

// Settings is the optional polysubml.yaml configuration. Of its fields
// only CachePath is read, by the CLI. The core type checker itself takes
// none of this — it is pure ambient configuration for the collaborators
// around it.
type Settings struct {
	// CachePath is the SQLite file backing internal/cache.Store. Empty
	// disables the cache.
	CachePath string `yaml:"cache_path"`
	// ListenAddr is a gRPC listen address. internal/service does not read
	// it: Server.Serve takes a listener from its caller.
	ListenAddr string `yaml:"listen_addr"`
	// MaxInstantiations is an instantiation cap parsed from the file. No
	// package reads it, so the checker applies no cap on polymorphic
	// instantiations.
	MaxInstantiations int `yaml:"max_instantiations"`
}

// Default returns the settings used when no polysubml.yaml is present.
func Default() Settings {
	return Settings{
		CachePath:         "",
		ListenAddr:        "127.0.0.1:50505",
		MaxInstantiations: 1_000_000,
	}
}

// Load reads and parses a YAML settings file, falling back to Default()
// for any field the file omits.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
