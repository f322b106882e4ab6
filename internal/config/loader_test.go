package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTP.Addr)
	assert.Equal(t, DefaultMaxPairs, cfg.Engine.MaxPairs)
	assert.Equal(t, DefaultProbeRowLimit, cfg.Engine.ProbeRowLimit)
	assert.Equal(t, DefaultRowCap, cfg.Engine.RowCap)
	assert.Equal(t, DefaultStatementTimeoutSeconds, cfg.Database.StatementTimeoutSeconds)
	assert.Equal(t, DefaultValueSynonyms(), cfg.Engine.ValueSynonyms)
	assert.Contains(t, cfg.Engine.Patterns, "email")
	assert.False(t, cfg.Verbose)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unnest.yaml")
	content := `
database:
  url: postgres://localhost/app
engine:
  max_pairs: 32
  value_synonyms: [answer, response]
http:
  addr: ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	chdir(t, dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/app", cfg.Database.URL)
	assert.Equal(t, 32, cfg.Engine.MaxPairs)
	assert.Equal(t, []string{"answer", "response"}, cfg.Engine.ValueSynonyms)
	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultProbeRowLimit, cfg.Engine.ProbeRowLimit)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := Load("nope.yaml", nil)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("UNNEST_DATABASE__URL", "postgres://env-host/db")
	t.Setenv("UNNEST_ENGINE__MAX_PAIRS", "7")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/db", cfg.Database.URL)
	assert.Equal(t, 7, cfg.Engine.MaxPairs)
}

func TestLoad_FlagsBeatEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("UNNEST_HTTP__ADDR", ":7000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.Int("max-pairs", 0, "")
	require.NoError(t, flags.Parse([]string{"--addr", ":7070"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr, "flag must beat env var")
	assert.Equal(t, DefaultMaxPairs, cfg.Engine.MaxPairs, "unset flags must not override")
}

func TestLoad_ExpandsConnectionSecrets(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_PASS", "s3cret")
	t.Setenv("UNNEST_DATABASE__URL", "postgres://app:${DB_PASS}@db/warehouse")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "postgres://app:s3cret@db/warehouse", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Engine.MaxPairs = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.HTTP.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Database.StatementTimeoutSeconds = -1
	assert.Error(t, cfg.Validate())
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
