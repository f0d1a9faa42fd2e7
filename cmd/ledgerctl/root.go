package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"token-launch-gateway/config"
	"token-launch-gateway/internal/adapter/storage"
	redisStorage "token-launch-gateway/internal/adapter/storage/redis"
	"token-launch-gateway/internal/service"
	"token-launch-gateway/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operator tool for the token launch ledger",
	Long: `ledgerctl reads and repairs the payment ledger and wallet reservations
of a token launch gateway. It opens the same storage backend as the API
server. A badger directory can only be opened while the server is stopped.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("TLG_CONFIG"),
		"path to the gateway config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"log level written to stderr")
}

// env is the storage and services one command runs against.
type env struct {
	cfg     *config.Config
	log     zerolog.Logger
	stores  *storage.Stores
	rdb     *redis.Client
	ledger  *service.LedgerServiceImpl
	reports *service.ReportingServiceImpl
	ops     *service.OperationsServiceImpl
	resv    *service.ReservationServiceImpl
}

// openEnv loads config and opens the ledger. Redis is connected when it
// holds the shared reservations; tx commands still work without it.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewWithWriter(logLevel, os.Stderr)

	if cfg.Storage.Driver == "memory" {
		return nil, fmt.Errorf("storage driver %q keeps no state outside the server", cfg.Storage.Driver)
	}
	stores, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, stores: stores}
	e.ledger = service.NewLedgerService(stores.Ledger, log)

	// No mint runs in this process, so resets are not checked against
	// running creations.
	if cfg.Storage.RedisReservations {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, reservation commands disabled")
		} else {
			e.rdb = rdb
			e.resv = service.NewReservationService(redisStorage.NewReservationStore(rdb), e.ledger, cfg.Reservation.TTL, log)
		}
	}
	if e.resv == nil {
		e.reports = service.NewReportingService(e.ledger, nil, stores.Commissions, stores.Users)
		e.ops = service.NewOperationsService(nil, e.ledger, nil, log)
		return e, nil
	}
	e.reports = service.NewReportingService(e.ledger, e.resv, stores.Commissions, stores.Users)
	e.ops = service.NewOperationsService(e.resv, e.ledger, nil, log)
	return e, nil
}

// requireReservations fails when the shared reservation store is not reachable.
func (e *env) requireReservations() error {
	if !e.cfg.Storage.RedisReservations {
		return fmt.Errorf("reservations are held in server memory; enable storage.redis_reservations to manage them here")
	}
	if e.resv == nil {
		return fmt.Errorf("redis is unavailable")
	}
	return nil
}

func (e *env) Close() {
	if e.rdb != nil {
		_ = e.rdb.Close()
	}
	e.stores.Close()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
