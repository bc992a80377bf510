package config

import (
	"fmt"
	"strings"
)

const (
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// StoreConfig selects and configures the persistent store backend.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	// Strict makes a corrupt persisted document an error instead of healing it to an empty state.
	Strict bool `koanf:"strict"`
	File   struct {
		Path string `koanf:"path"`
	} `koanf:"file"`
}

// String returns a string representation of the store configuration.
func (c *StoreConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Store ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Driver))
	b.WriteString(fmt.Sprintf("  strict: %t\n", c.Strict))
	b.WriteString(fmt.Sprintf("  file.path: %s\n", c.File.Path))
	return b.String()
}

func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case StoreDriverFile:
		if c.File.Path == "" {
			return fmt.Errorf("store.file.path is required for the file driver")
		}
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %q", c.Driver)
	}
	return nil
}
