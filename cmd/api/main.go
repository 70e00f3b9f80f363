package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"note-issuance-engine/config"
	httpHandler "note-issuance-engine/internal/adapter/http/handler"
	memStorage "note-issuance-engine/internal/adapter/storage/memory"
	pgStorage "note-issuance-engine/internal/adapter/storage/postgres"
	redisStorage "note-issuance-engine/internal/adapter/storage/redis"
	"note-issuance-engine/internal/core/ports"
	"note-issuance-engine/internal/service"
	"note-issuance-engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// reserveLedger is the backing asset plus the reserve funding surface.
type reserveLedger interface {
	ports.BackingAsset
	Deposit(ctx context.Context, account string, amount int64) error
}

// storage bundles the persistence backend selected by storage.driver.
type storage struct {
	repos    ports.Repositories
	registry ports.OwnershipRegistry
	ledger   reserveLedger
	health   ports.HealthChecker
	close    func()
}

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("NIE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Note Issuance Engine")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret must be set")
	}

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	healthCheckers := []ports.HealthChecker{store.health}
	var (
		grantCache     ports.GrantCache
		nonceStore     ports.NonceStore = memStorage.NewNonceStore()
		rateLimitStore *redisStorage.RateLimitStore
		sigSvc         = service.NewHMACSignatureService()
		sinks          = []ports.EventPublisher{service.NewJournalSink(store.repos.Events)}
	)

	// Redis is optional: without it nonces stay in process and rate limiting is off.
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		grantCache = redisStorage.NewGrantCache(rdb)
		nonceStore = redisStorage.NewNonceStore(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb, cfg.Events.Stream))
		if cfg.Events.Stream != "" {
			sinks = append(sinks, redisStorage.NewEventStream(rdb, cfg.Events.Stream))
		}
	} else {
		log.Warn().Msg("Redis disabled: using in-process nonce store, rate limiting off")
	}

	if len(cfg.Events.Webhooks) > 0 {
		sinks = append(sinks, service.NewWebhookSink(
			cfg.Events.Webhooks,
			cfg.Events.WebhookSecret,
			sigSvc,
			&http.Client{Timeout: 10 * time.Second},
			logger.Component(log, "webhook"),
		))
	}
	notifier := service.NewNotifier(logger.Component(log, "notifier"), sinks...)

	entropy, err := newEntropy(cfg.Rarity)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize rarity entropy")
	}

	creds, err := newCredentialStore(cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load credentials")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	clock := service.SystemClock{}
	decomposer := service.NewDecomposer(store.repos.Denominations)
	if err := decomposer.Rebuild(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load denominations")
	}

	configSvc := service.NewConfigService(store.repos, decomposer, notifier, logger.Component(log, "config"))
	issuanceSvc := service.NewIssuanceService(
		store.repos,
		service.NewRaritySelector(store.repos.Rarities, entropy),
		store.registry,
		clock,
		notifier,
		logger.Component(log, "issuance"),
	)
	rewardSvc := service.NewRewardService(store.repos, grantCache, decomposer, issuanceSvc, logger.Component(log, "rewards"))
	redemptionSvc := service.NewRedemptionService(
		store.repos,
		store.registry,
		store.ledger,
		clock,
		notifier,
		service.SettlementOptions{
			ReserveAccount:  cfg.Settlement.ReserveAccount,
			MintReason:      cfg.Settlement.MintReason,
			TrustedGranters: cfg.Rewards.TrustedGranters,
			StaleAfter:      cfg.Settlement.StaleAfter,
		},
		logger.Component(log, "redemption"),
	)
	noteSvc := service.NewNoteService(store.repos, service.NewJSONMetadataRenderer())
	reportingSvc := service.NewReportingService(store.repos, store.ledger, cfg.Settlement.ReserveAccount)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Issuance:       issuanceSvc,
		Rewards:        rewardSvc,
		Redemption:     redemptionSvc,
		Notes:          noteSvc,
		Config:         configSvc,
		Reporting:      reportingSvc,
		Reserve:        store.ledger,
		ReserveAccount: cfg.Settlement.ReserveAccount,
		Credentials:    creds,
		SigSvc:         sigSvc,
		NonceStore:     nonceStore,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: healthCheckers,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStorage opens the backend named by storage.driver.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		store := memStorage.NewStore()
		log.Warn().Msg("Using in-memory storage: state is lost on restart")
		return &storage{
			repos:    store.Repositories(),
			registry: memStorage.NewTokenRegistry(),
			ledger:   memStorage.NewAssetLedger(map[string]int64{cfg.Settlement.ReserveAccount: cfg.Settlement.OpeningReserve}),
			health:   store,
			close:    func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := pgStorage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("PostgreSQL connected and migrated")

	return &storage{
		repos:    pgStorage.NewRepositories(pool),
		registry: pgStorage.NewTokenRegistry(pool),
		ledger:   pgStorage.NewAssetLedger(pool),
		health:   pgStorage.NewHealthCheck(pool),
		close:    pool.Close,
	}, nil
}

func newEntropy(cfg config.RarityConfig) (ports.EntropySource, error) {
	if cfg.Entropy != "replay" {
		return service.NewCryptoEntropy(), nil
	}
	randomness, err := hex.DecodeString(cfg.Randomness)
	if err != nil {
		return nil, fmt.Errorf("decoding rarity.randomness: %w", err)
	}
	return service.NewReplayEntropy(service.SystemClock{}, randomness), nil
}

func newCredentialStore(cfg config.AuthConfig) (*service.StaticCredentialStore, error) {
	creds := make([]ports.Credential, 0, len(cfg.Operators)+len(cfg.Granters))
	for _, c := range cfg.Operators {
		creds = append(creds, ports.Credential{AccessKey: c.AccessKey, Secret: c.Secret, Account: c.Account, Role: ports.RoleOperator})
	}
	for _, c := range cfg.Granters {
		creds = append(creds, ports.Credential{AccessKey: c.AccessKey, Secret: c.Secret, Account: c.Account, Role: ports.RoleGranter})
	}
	return service.NewStaticCredentialStore(creds...)
}
