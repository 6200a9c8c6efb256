package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usdc-settlement-ledger/config"
	httpHandler "usdc-settlement-ledger/internal/adapter/http/handler"
	pgStorage "usdc-settlement-ledger/internal/adapter/storage/postgres"
	redisStorage "usdc-settlement-ledger/internal/adapter/storage/redis"
	"usdc-settlement-ledger/internal/adapter/token"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/internal/service"
	"usdc-settlement-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting USDC Settlement Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	studentRepo := pgStorage.NewStudentRepo(pool)
	treasuryRepo := pgStorage.NewTreasuryRepo(pool)
	recordRepo := pgStorage.NewRecordRepo(pool)
	eventRepo := pgStorage.NewEventRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	recordCache := redisStorage.NewRecordCache(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	jwtSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	clock := service.NewSystemClock()

	// Token node client (the on-chain transfer primitive)
	tokenClient := token.NewClient(cfg.TokenNode.RPCURL, cfg.TokenNode.Timeout, log)

	// Initialize business services
	authSvc := service.NewAuthorityAuthService(
		cfg.Treasury.AdminUsername,
		cfg.Treasury.AdminPasswordHash,
		cfg.Treasury.AuthorityWallet,
		hashSvc,
		jwtSvc,
		log,
	)
	registrySvc := service.NewRegistryService(studentRepo, treasuryRepo, eventRepo, transactor, encSvc, clock, log)
	treasurySvc := service.NewTreasuryService(treasuryRepo, clock, log)
	settlementSvc := service.NewSettlementService(
		studentRepo,
		treasuryRepo,
		recordRepo,
		eventRepo,
		recordCache,
		tokenClient,
		transactor,
		clock,
		log,
	)
	fraudSvc := service.NewFraudService(
		studentRepo,
		treasuryRepo,
		recordRepo,
		eventRepo,
		recordCache,
		transactor,
		clock,
		log,
	)
	fraudEngine := service.NewFraudEngine()
	reportingSvc := service.NewReportingService(recordRepo, eventRepo)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		RegistrySvc:    registrySvc,
		TreasurySvc:    treasurySvc,
		SettlementSvc:  settlementSvc,
		FraudSvc:       fraudSvc,
		FraudEngine:    fraudEngine,
		ReportingSvc:   reportingSvc,
		StudentRepo:    studentRepo,
		EncSvc:         encSvc,
		SigSvc:         sigSvc,
		NonceStore:     nonceStore,
		TokenSvc:       jwtSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},

		RailWebhookSecret: cfg.Rail.WebhookSecret,
		AuthorityWallet:   cfg.Treasury.AuthorityWallet,

		Logger: log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
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
