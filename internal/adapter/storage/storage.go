// Package storage selects the durable ledger backend.
package storage

import (
	"context"
	"fmt"

	"token-launch-gateway/config"
	"token-launch-gateway/internal/adapter/storage/badgerdb"
	"token-launch-gateway/internal/adapter/storage/memory"
	pgStorage "token-launch-gateway/internal/adapter/storage/postgres"
	"token-launch-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// Stores are the durable stores selected by storage.driver.
type Stores struct {
	Ledger      ports.LedgerStore
	Commissions ports.CommissionRepository
	Users       ports.UserRepository
	Audit       ports.AuditRepository // nil unless postgres
	Checkers    []ports.HealthChecker
	Close       func()
}

// Open connects the backend named by cfg.Storage.Driver. The postgres
// schema is migrated on open.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stores, error) {
	switch cfg.Storage.Driver {
	case "postgres", "":
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("PostgreSQL connected")
		return &Stores{
			Ledger:      pgStorage.NewLedgerRepo(pool),
			Commissions: pgStorage.NewCommissionRepo(pool),
			Users:       pgStorage.NewUserRepo(pool),
			Audit:       pgStorage.NewAuditRepo(pool),
			Checkers:    []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
			Close:       pool.Close,
		}, nil

	case "badger":
		db, err := badgerdb.Open(cfg.Storage.BadgerDir, log)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Ledger:      badgerdb.NewLedgerRepo(db),
			Commissions: badgerdb.NewCommissionRepo(db),
			Users:       badgerdb.NewUserRepo(db),
			Checkers:    []ports.HealthChecker{db},
			Close: func() {
				if err := db.Close(); err != nil {
					log.Error().Err(err).Msg("badger close failed")
				}
			},
		}, nil

	case "memory":
		log.Warn().Msg("memory storage selected, ledger is lost on restart")
		return &Stores{
			Ledger:      memory.NewLedgerStore(),
			Commissions: memory.NewCommissionRepository(),
			Users:       memory.NewUserRepository(),
			Close:       func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
