// Package config defines the top-level configuration for the wager engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PVPBET_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Oracle   OracleConfig   `toml:"oracle"`
	Engine   EngineConfig   `toml:"engine"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the bookie signing-key credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// LedgerConfig holds wager-contract endpoints and transaction parameters.
type LedgerConfig struct {
	ContractAddr   string   `toml:"contract_addr"`
	RPCURL         string   `toml:"rpc_url"`
	L1RPCURL       string   `toml:"l1_rpc_url"`
	L1WSURL        string   `toml:"l1_ws_url"`
	ChainID        int64    `toml:"chain_id"`
	AcceptGas      uint64   `toml:"accept_gas"`
	SettleGas      uint64   `toml:"settle_gas"`
	GasPriceGwei   float64  `toml:"gas_price_gwei"`
	ConfirmTimeout duration `toml:"confirm_timeout"`
	HeadMaxStale   duration `toml:"head_max_stale"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for the settlement archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig holds price-oracle endpoints and resolution parameters.
type OracleConfig struct {
	CMCBaseURL     string   `toml:"cmc_base_url"`
	CMCAPIKey      string   `toml:"cmc_api_key"`
	CoinGeckoURL   string   `toml:"coingecko_url"`
	RankThreshold  int      `toml:"rank_threshold"`
	SizingCacheTTL duration `toml:"sizing_cache_ttl"`
	SizingFallback float64  `toml:"sizing_fallback"`
}

// EngineConfig holds settlement scheduling parameters.
type EngineConfig struct {
	SettleInterval duration `toml:"settle_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken string `toml:"telegram_token"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			AcceptGas:      400_000,
			SettleGas:      200_000,
			GasPriceGwei:   0, // 0 means use the node's suggestion
			ConfirmTimeout: duration{2 * time.Minute},
			HeadMaxStale:   duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pvpbet",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pvpbet-archive",
			ForcePathStyle: true,
		},
		Oracle: OracleConfig{
			CMCBaseURL:     "https://pro-api.coinmarketcap.com",
			CoinGeckoURL:   "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd",
			RankThreshold:  750,
			SizingCacheTTL: duration{time.Hour},
			SizingFallback: 1800,
		},
		Engine: EngineConfig{
			SettleInterval: duration{time.Minute},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"settle":  true,
	"migrate": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, settle, migrate)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	needsWallet := c.Mode == "serve" || c.Mode == "settle"
	if needsWallet {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Ledger.ContractAddr == "" {
			errs = append(errs, "ledger: contract_addr must not be empty")
		}
		if c.Ledger.RPCURL == "" {
			errs = append(errs, "ledger: rpc_url must not be empty")
		}
		if c.Ledger.L1RPCURL == "" {
			errs = append(errs, "ledger: l1_rpc_url must not be empty")
		}
		if c.Ledger.ConfirmTimeout.Duration <= 0 {
			errs = append(errs, "ledger: confirm_timeout must be positive")
		}
		if c.Oracle.CMCAPIKey == "" {
			errs = append(errs, "oracle: cmc_api_key must not be empty")
		}
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Oracle.RankThreshold <= 0 {
		errs = append(errs, "oracle: rank_threshold must be positive")
	}
	if c.Oracle.SizingCacheTTL.Duration <= 0 {
		errs = append(errs, "oracle: sizing_cache_ttl must be positive")
	}

	if c.Engine.SettleInterval.Duration <= 0 {
		errs = append(errs, "engine: settle_interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
