package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/pvpbet/internal/blob/s3"
	"github.com/alanyoungcy/pvpbet/internal/cache/redis"
	"github.com/alanyoungcy/pvpbet/internal/config"
	"github.com/alanyoungcy/pvpbet/internal/crypto"
	"github.com/alanyoungcy/pvpbet/internal/domain"
	"github.com/alanyoungcy/pvpbet/internal/ledger"
	"github.com/alanyoungcy/pvpbet/internal/notify"
	"github.com/alanyoungcy/pvpbet/internal/oracle"
	"github.com/alanyoungcy/pvpbet/internal/queue"
	"github.com/alanyoungcy/pvpbet/internal/registry"
	"github.com/alanyoungcy/pvpbet/internal/service"
	"github.com/alanyoungcy/pvpbet/internal/store/postgres"
)

// Dependencies bundles everything the operating modes need. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Engine state
	Registry *registry.Registry
	Queue    *queue.ExpiryQueue

	// Stores
	BetStore   domain.BetStore
	Users      domain.UserDirectory
	AuditStore domain.AuditStore

	// Ledger
	Gateway  *ledger.Gateway
	HeadFeed *ledger.HeadFeed

	// Oracle
	Oracle        domain.Oracle
	TokenResolver *oracle.Resolver
	SizingPrice   *oracle.SizingPrice

	// Services
	Proposals  *service.ProposalService
	Settlement *service.SettlementService

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that must
// be called on shutdown. Migrate mode only connects Postgres; the full engine
// is built for serve and settle.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations || cfg.Mode == "migrate" {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.BetStore = postgres.NewBetStore(pool)
	deps.Users = postgres.NewUserStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// Migrate mode needs nothing beyond the database.
	if cfg.Mode == "migrate" {
		return deps, cleanup, nil
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	sizingCache := redis.NewSizingPriceCache(redisClient)
	tokenCache := redis.NewTokenCache(redisClient)
	locks := redis.NewLockManager(redisClient)

	// --- Ledger gateway ---
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load bookie key: %w", err)
	}

	gateway, err := ledger.NewGateway(ctx, ledger.GatewayConfig{
		RPCURL:         cfg.Ledger.RPCURL,
		ContractAddr:   cfg.Ledger.ContractAddr,
		PrivateKeyHex:  keyHex,
		ChainID:        cfg.Ledger.ChainID,
		AcceptGas:      cfg.Ledger.AcceptGas,
		SettleGas:      cfg.Ledger.SettleGas,
		GasPriceGwei:   cfg.Ledger.GasPriceGwei,
		ConfirmTimeout: cfg.Ledger.ConfirmTimeout.Duration,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ledger gateway: %w", err)
	}
	closers = append(closers, gateway.Close)
	deps.Gateway = gateway

	deps.HeadFeed = ledger.NewHeadFeed(
		cfg.Ledger.L1RPCURL,
		cfg.Ledger.L1WSURL,
		cfg.Ledger.HeadMaxStale.Duration,
		logger,
	)

	// --- Oracle ---
	cmc := oracle.NewCMCClient(cfg.Oracle.CMCBaseURL, cfg.Oracle.CMCAPIKey, tokenCache, logger)
	deps.Oracle = cmc
	deps.TokenResolver = oracle.NewResolver(cmc, cfg.Oracle.RankThreshold)
	deps.SizingPrice = oracle.NewSizingPrice(
		sizingCache,
		oracle.NewNativeFeed(cfg.Oracle.CoinGeckoURL),
		cfg.Oracle.SizingCacheTTL.Duration,
		cfg.Oracle.SizingFallback,
		logger,
	)

	// --- S3 settlement archive (optional) ---
	var archiver domain.SettlementArchiver
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.AuditStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken))
	}
	deps.Notifier = notify.NewNotifier(senders, logger)

	// --- Engine ---
	deps.Registry = registry.New()
	deps.Queue = queue.New()

	deps.Proposals = service.NewProposalService(
		deps.Registry,
		deps.Queue,
		deps.BetStore,
		deps.Users,
		gateway,
		deps.HeadFeed,
		deps.SizingPrice,
		deps.AuditStore,
		logger,
	)
	deps.Settlement = service.NewSettlementService(service.SettlementDeps{
		Queue:    deps.Queue,
		Store:    deps.BetStore,
		Users:    deps.Users,
		Ledger:   gateway,
		Position: deps.HeadFeed,
		Oracle:   cmc,
		Audit:    deps.AuditStore,
		Notifier: deps.Notifier,
		Archiver: archiver,
		Locks:    locks,
		Interval: cfg.Engine.SettleInterval.Duration,
		Logger:   logger,
	})

	return deps, cleanup, nil
}
