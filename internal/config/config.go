// Package config holds the stockroom service configuration.
package config

import (
	"strings"

	"github.com/abgdnv/stockroom/pkg/config"
	"github.com/abgdnv/stockroom/pkg/config/configloader"
)

// ServiceName prefixes environment variables, e.g. STOCKROOM_SERVER_PORT.
const ServiceName = "stockroom"

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Store      config.StoreConfig      `koanf:"store"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Images     config.ImagesConfig     `koanf:"images"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	NATS       config.NATSConfig       `koanf:"nats"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
}

// Load reads the configuration from config.yaml, .env and STOCKROOM_* variables.
func Load(opts ...configloader.Option) (*Config, error) {
	return configloader.Load[*Config](ServiceName, opts...)
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Store.String())
	if c.Store.Driver == config.StoreDriverPostgres {
		b.WriteString(c.Database.String())
	}
	b.WriteString(c.Images.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.NATS.String())
	if c.NATS.Enabled {
		b.WriteString(c.Resilience.String())
	}
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Store.Driver == config.StoreDriverPostgres {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if err := c.Images.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if err := c.GRPC.Validate(); err != nil {
		return err
	}
	if err := c.NATS.Validate(); err != nil {
		return err
	}
	if c.NATS.Enabled {
		if err := c.Resilience.Validate(); err != nil {
			return err
		}
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.Shutdown.Validate(); err != nil {
		return err
	}
	return nil
}
