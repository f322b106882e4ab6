// Package config provides configuration management for the unnest service.
//
// Configuration is loaded from (lowest to highest precedence): built-in
// defaults, an unnest.yaml file, UNNEST_-prefixed environment variables,
// and command-line flags.
package config

import (
	"errors"
	"fmt"
)

// DatabaseConfig holds connection settings for the warehouse.
type DatabaseConfig struct {
	// URL is a Postgres connection string. ${VAR} references are expanded
	// from the environment so secrets can stay out of config files.
	URL string `koanf:"url"`

	// StatementTimeoutSeconds bounds each query inside its transaction.
	StatementTimeoutSeconds int `koanf:"statement_timeout_seconds"`
}

// HTTPConfig holds settings for the HTTP API server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// EngineConfig holds rewrite-pipeline tuning knobs.
type EngineConfig struct {
	// MaxPairs caps the per-invocation column fan-out regardless of what
	// the shape probe reports.
	MaxPairs int `koanf:"max_pairs"`

	// ProbeRowLimit bounds how many rows the shape probe inspects.
	ProbeRowLimit int `koanf:"probe_row_limit"`

	// RowCap truncates result sets on export.
	RowCap int `koanf:"row_cap"`

	// NameSynonyms and ValueSynonyms are alternate keys tried when a JSON
	// element does not carry the requested key.
	NameSynonyms  []string `koanf:"name_synonyms"`
	ValueSynonyms []string `koanf:"value_synonyms"`

	// Patterns maps a pattern name to a regex used by value extraction
	// when the requested value key mentions the pattern name.
	Patterns map[string]string `koanf:"patterns"`
}

// Config holds all service configuration options.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	HTTP     HTTPConfig     `koanf:"http"`
	Engine   EngineConfig   `koanf:"engine"`
	Verbose  bool           `koanf:"verbose"`
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	if c.Engine.MaxPairs <= 0 {
		return fmt.Errorf("engine.max_pairs must be positive, got %d", c.Engine.MaxPairs)
	}
	if c.Engine.ProbeRowLimit <= 0 {
		return fmt.Errorf("engine.probe_row_limit must be positive, got %d", c.Engine.ProbeRowLimit)
	}
	if c.Database.StatementTimeoutSeconds <= 0 {
		return fmt.Errorf("database.statement_timeout_seconds must be positive, got %d",
			c.Database.StatementTimeoutSeconds)
	}
	if c.HTTP.Addr == "" {
		return errors.New("http.addr must not be empty")
	}
	return nil
}
