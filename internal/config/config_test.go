package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ServeNeedsCredentials(t *testing.T) {
	cfg := Defaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet")
	assert.Contains(t, err.Error(), "contract_addr")
	assert.Contains(t, err.Error(), "cmc_api_key")
}

func TestValidate_MigrateNeedsOnlyStores(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "migrate"

	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "turbo"`)
}

func TestValidate_S3OnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "migrate"
	cfg.S3.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket")
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "settle"

[ledger]
chain_id = 42161
confirm_timeout = "90s"

[redis]
addr = "redis-prod:6379"
`), 0o600))

	t.Setenv("PVPBET_REDIS_ADDR", "redis-override:6379")
	t.Setenv("PVPBET_ENGINE_SETTLE_INTERVAL", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "settle", cfg.Mode)
	assert.Equal(t, int64(42161), cfg.Ledger.ChainID)
	assert.Equal(t, 90*time.Second, cfg.Ledger.ConfirmTimeout.Duration)

	// Environment wins over the file; defaults fill the rest.
	assert.Equal(t, "redis-override:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Second, cfg.Engine.SettleInterval.Duration)
	assert.Equal(t, uint64(400_000), cfg.Ledger.AcceptGas)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "0xdeadbeef"
	cfg.Postgres.Password = "hunter2"
	cfg.Oracle.CMCAPIKey = "key"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Wallet.PrivateKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Oracle.CMCAPIKey)

	// Empty secrets stay empty and the original is untouched.
	assert.Empty(t, red.Redis.Password)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
