package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/c360/streambridge/errors"
)

// Loader reads bridge configuration from YAML files.
type Loader struct{}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadFile reads and parses the YAML file at path on top of the
// documented defaults. The result is parsed but not validated; callers
// run Validate before using it.
func (l *Loader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "LoadFile", "read config file")
	}
	return l.Load(data)
}

// Load parses YAML bytes on top of the documented defaults.
func (l *Loader) Load(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "parse YAML")
	}
	return cfg, nil
}
