package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "unnest.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "unnest.yml"

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "UNNEST_"

// findConfigFile finds the config file to use.
// Priority: explicit path > unnest.yaml > unnest.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	d := Default()
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"database.statement_timeout_seconds": d.Database.StatementTimeoutSeconds,
		"http.addr":                          d.HTTP.Addr,
		"engine.max_pairs":                   d.Engine.MaxPairs,
		"engine.probe_row_limit":             d.Engine.ProbeRowLimit,
		"engine.row_cap":                     d.Engine.RowCap,
		"engine.name_synonyms":               d.Engine.NameSynonyms,
		"engine.value_synonyms":              d.Engine.ValueSynonyms,
		"engine.patterns":                    d.Engine.Patterns,
		"verbose":                            false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if cfgFile != "" {
		return nil, fmt.Errorf("config file %s not found", cfgFile)
	}

	// 3. Environment variables.
	// Transform: UNNEST_DATABASE__URL -> database.url
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to dotted config keys:
			// --probe-row-limit sets engine.probe_row_limit, --addr sets
			// http.addr, --database-url sets database.url.
			switch f.Name {
			case "addr":
				return "http.addr", posflag.FlagVal(flags, f)
			case "database-url":
				return "database.url", posflag.FlagVal(flags, f)
			case "max-pairs":
				return "engine.max_pairs", posflag.FlagVal(flags, f)
			case "probe-row-limit":
				return "engine.probe_row_limit", posflag.FlagVal(flags, f)
			case "row-cap":
				return "engine.row_cap", posflag.FlagVal(flags, f)
			case "verbose":
				return "verbose", posflag.FlagVal(flags, f)
			}
			return "", nil
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Expand environment variables in the connection string so secrets can
	// be referenced as ${PGPASSWORD} instead of inlined.
	cfg.Database.URL = expandEnvVars(cfg.Database.URL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnvVars expands ${VAR} references from the environment, leaving
// unknown references untouched.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})
}
