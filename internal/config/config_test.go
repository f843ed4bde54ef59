package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, uint64(1337), cfg.ChainID)
	assert.Equal(t, "memory", cfg.Ledger.Store)
	assert.Equal(t, 60*time.Second, cfg.Validator.Timeout)
	assert.Equal(t, 4, cfg.Validator.MaxConcurrent)
	assert.Equal(t, 20, cfg.Agent.MaxHistory)
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
port: ":9000"
chain_id: 11155111
validator:
  timeout: 5s
  max_concurrent: 2
ledger:
  store: sqlite
  sqlite_path: /tmp/ledger.db
`), 0o600))

	t.Setenv("FLIGHTREG_VALIDATOR_MAX_CONCURRENT", "8")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, uint64(11155111), cfg.ChainID)
	assert.Equal(t, 5*time.Second, cfg.Validator.Timeout)
	assert.Equal(t, 8, cfg.Validator.MaxConcurrent)
	assert.Equal(t, "sqlite", cfg.Ledger.Store)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	cases := map[string]string{
		"FLIGHTREG_LEDGER_STORE":      "mongo",
		"FLIGHTREG_LEDGER_ADDRESS":    "not-an-address",
		"FLIGHTREG_VALIDATOR_TIMEOUT": "0s",
		"FLIGHTREG_LOG_LEVEL":         "chatty",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLIGHTREG_LEDGER_STORE", "postgres")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.dsn")
}
