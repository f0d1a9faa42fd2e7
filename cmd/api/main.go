package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-launch-gateway/config"
	"token-launch-gateway/internal/adapter/chain"
	httpHandler "token-launch-gateway/internal/adapter/http/handler"
	"token-launch-gateway/internal/adapter/http/middleware"
	"token-launch-gateway/internal/adapter/notify"
	"token-launch-gateway/internal/adapter/process"
	"token-launch-gateway/internal/adapter/storage"
	"token-launch-gateway/internal/adapter/storage/memory"
	redisStorage "token-launch-gateway/internal/adapter/storage/redis"
	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/internal/service"
	"token-launch-gateway/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("TLG_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewFromOptions(logger.Options{
		Level:      cfg.Log.Level,
		Pretty:     cfg.Log.Pretty,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("network", cfg.Solana.Network).
		Msg("Starting Token Launch Gateway")

	if err := domain.ValidateWallet(cfg.Solana.ReceiverAddress); err != nil {
		log.Fatal().Err(err).Msg("solana.receiver_address is not a valid address")
	}

	ctx := context.Background()

	// Durable ledgers
	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger storage")
	}
	defer stores.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	var reservationStore ports.ReservationStore = memory.NewReservationStore()
	if cfg.Storage.RedisReservations {
		reservationStore = redisStorage.NewReservationStore(rdb)
	}
	nonceStore := redisStorage.NewNonceStore(rdb)
	replayCache := redisStorage.NewReplayCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Pricing and commission tables
	table, err := service.BuildPricingTable(cfg.Pricing.BasePrice, cfg.Pricing.SuffixPrices, cfg.Pricing.BonusSuffixLength)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid pricing configuration")
	}
	rates, err := parseRates(cfg.Referral)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid referral configuration")
	}
	epsilon, err := decimal.NewFromString(cfg.Solana.Epsilon)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid solana.epsilon")
	}

	// External adapters
	rpcReader := chain.NewRPCReader(cfg.Solana.RPCURL, cfg.Solana.Commitment)
	transfers := chain.NewTransferSource(rpcReader, chain.Config{
		SignatureLimit: cfg.Solana.SignatureLimit,
		RequestsPerSec: cfg.Solana.RequestsPerSec,
	}, log)
	minter := process.NewMinter(process.MinterConfig{
		Command:       cfg.Minter.Command,
		Script:        cfg.Minter.Script,
		WorkDir:       cfg.Minter.WorkDir,
		TokenInfoFile: cfg.Minter.TokenInfoFile,
	}, log)
	payouts := process.NewPayoutSender(process.PayoutConfig{
		Command: cfg.Payout.Command,
		Script:  cfg.Payout.Script,
		WorkDir: cfg.Payout.WorkDir,
		Timeout: cfg.Payout.Timeout,
	}, log)

	sigSvc := service.NewHMACSignatureService()
	notifier := notify.NewWebhookNotifier(notify.Config{
		URL:       cfg.Notifier.URL,
		Secret:    cfg.Notifier.Secret,
		QueueSize: cfg.Notifier.QueueSize,
	}, sigSvc, &http.Client{Timeout: cfg.Notifier.Timeout}, log)

	// Core services
	policy := service.NewAccessPolicy(cfg.Policy.ExcludedUserIDs, cfg.Policy.OperatorIDs)
	ledgerSvc := service.NewLedgerService(stores.Ledger, log)
	reservationSvc := service.NewReservationService(reservationStore, ledgerSvc, cfg.Reservation.TTL, log)
	matcherSvc := service.NewMatcherService(transfers, ledgerSvc, service.MatcherConfig{
		Receiver:     cfg.Solana.ReceiverAddress,
		Lookback:     cfg.Solana.Lookback,
		Epsilon:      epsilon,
		QueryTimeout: cfg.Solana.QueryTimeout,
	}, log)
	mintSvc := service.NewMintService(minter, ledgerSvc, reservationSvc, stores.Users, service.MintConfig{
		MaxConcurrent: cfg.Minter.MaxConcurrent,
		Network:       cfg.Solana.Network,
		LogoDir:       cfg.Minter.LogoDir,
	}, log)
	commissionSvc := service.NewCommissionService(ledgerSvc, stores.Users, stores.Commissions, payouts, policy, rates, log)
	workflowSvc := service.NewWorkflowService(service.WorkflowDeps{
		Pricing:      service.NewPricingService(table),
		Reservations: reservationSvc,
		Matcher:      matcherSvc,
		Ledger:       ledgerSvc,
		Minter:       mintSvc,
		Commissions:  commissionSvc,
		Users:        stores.Users,
		Notifier:     notifier,
		Policy:       policy,
	}, log)
	referralSvc := service.NewReferralService(stores.Users, cfg.Pricing.InitialBonusCredits, log)

	// Operator services
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	authSvc := service.NewAuthService(service.OperatorCredentials{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
	}, service.NewArgon2HashService(), tokenSvc, log)
	reportingSvc := service.NewReportingService(ledgerSvc, reservationSvc, stores.Commissions, stores.Users)
	opsSvc := service.NewOperationsService(reservationSvc, ledgerSvc, mintSvc, log)
	auditSvc := service.NewAuditService(stores.Audit, log)

	// Reservation sweeper
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	go reservationSvc.RunSweeper(sweepCtx, cfg.Reservation.SweepInterval)

	// Setup Gin router with all routes
	checkers := append([]ports.HealthChecker{redisStorage.NewHealthCheck(rdb), rpcReader}, stores.Checkers...)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WorkflowSvc:   workflowSvc,
		ReferralSvc:   referralSvc,
		AuthSvc:       authSvc,
		ReportingSvc:  reportingSvc,
		OperationsSvc: opsSvc,
		SigSvc:        sigSvc,
		NonceStore:    nonceStore,
		TokenSvc:      tokenSvc,
		Frontend: middleware.FrontendCredentials{
			AccessKey: cfg.Frontend.AccessKey,
			SecretKey: cfg.Frontend.SecretKey,
			MaxSkew:   cfg.Frontend.MaxSkew,
		},
		ReplayCache:    replayCache,
		RateLimitStore: rateLimitStore,
		HealthCheckers: checkers,
		AuditSvc:       auditSvc,
		ReservationTTL: cfg.Reservation.TTL,
		Mode:           cfg.Server.Mode,
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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stopSweeper()

	// Running creations finish before their messages are flushed.
	if err := workflowSvc.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("token creations still running at shutdown")
	}
	if err := notifier.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("notifier queue not drained")
	}
	auditSvc.Close()

	log.Info().Msg("Server exited")
}

func parseRates(cfg config.ReferralConfig) (domain.CommissionRates, error) {
	token, err := decimal.NewFromString(cfg.TokenRate)
	if err != nil {
		return domain.CommissionRates{}, fmt.Errorf("token_rate %q: %w", cfg.TokenRate, err)
	}
	custom, err := decimal.NewFromString(cfg.CustomRate)
	if err != nil {
		return domain.CommissionRates{}, fmt.Errorf("custom_rate %q: %w", cfg.CustomRate, err)
	}
	return domain.CommissionRates{Token: token, Custom: custom}, nil
}
