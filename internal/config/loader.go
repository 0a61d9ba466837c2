package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PVPBET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PVPBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PVPBET_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "PVPBET_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "PVPBET_WALLET_KEY_PASSWORD")

	// ── Ledger ──
	setStr(&cfg.Ledger.ContractAddr, "PVPBET_LEDGER_CONTRACT_ADDR")
	setStr(&cfg.Ledger.RPCURL, "PVPBET_LEDGER_RPC_URL")
	setStr(&cfg.Ledger.L1RPCURL, "PVPBET_LEDGER_L1_RPC_URL")
	setStr(&cfg.Ledger.L1WSURL, "PVPBET_LEDGER_L1_WS_URL")
	setInt64(&cfg.Ledger.ChainID, "PVPBET_LEDGER_CHAIN_ID")
	setUint64(&cfg.Ledger.AcceptGas, "PVPBET_LEDGER_ACCEPT_GAS")
	setUint64(&cfg.Ledger.SettleGas, "PVPBET_LEDGER_SETTLE_GAS")
	setFloat64(&cfg.Ledger.GasPriceGwei, "PVPBET_LEDGER_GAS_PRICE_GWEI")
	setDuration(&cfg.Ledger.ConfirmTimeout, "PVPBET_LEDGER_CONFIRM_TIMEOUT")
	setDuration(&cfg.Ledger.HeadMaxStale, "PVPBET_LEDGER_HEAD_MAX_STALE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PVPBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PVPBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PVPBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PVPBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PVPBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PVPBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PVPBET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PVPBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PVPBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PVPBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PVPBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PVPBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PVPBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PVPBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PVPBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PVPBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PVPBET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PVPBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PVPBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "PVPBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PVPBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PVPBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PVPBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PVPBET_S3_FORCE_PATH_STYLE")

	// ── Oracle ──
	setStr(&cfg.Oracle.CMCBaseURL, "PVPBET_ORACLE_CMC_BASE_URL")
	setStr(&cfg.Oracle.CMCAPIKey, "PVPBET_ORACLE_CMC_API_KEY")
	setStr(&cfg.Oracle.CoinGeckoURL, "PVPBET_ORACLE_COINGECKO_URL")
	setInt(&cfg.Oracle.RankThreshold, "PVPBET_ORACLE_RANK_THRESHOLD")
	setDuration(&cfg.Oracle.SizingCacheTTL, "PVPBET_ORACLE_SIZING_CACHE_TTL")
	setFloat64(&cfg.Oracle.SizingFallback, "PVPBET_ORACLE_SIZING_FALLBACK")

	// ── Engine ──
	setDuration(&cfg.Engine.SettleInterval, "PVPBET_ENGINE_SETTLE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PVPBET_NOTIFY_TELEGRAM_TOKEN")

	// ── Top-level ──
	setStr(&cfg.Mode, "PVPBET_MODE")
	setStr(&cfg.LogLevel, "PVPBET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
