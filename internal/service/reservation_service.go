package service

import (
	"context"
	"fmt"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/internal/observability"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// inProcessChecker answers whether a sender wallet has a mint underway.
type inProcessChecker interface {
	HasInProcess(ctx context.Context, sender string) (bool, error)
}

// ReservationServiceImpl keeps one creation attempt per sender wallet.
//
// The reservation is a user-facing guard only. A TTL sweep can race with a
// slow but live mint; the sweep re-checks the ledger before evicting and
// minting correctness never depends on the reservation.
type ReservationServiceImpl struct {
	store  ports.ReservationStore
	ledger inProcessChecker
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewReservationService creates a new ReservationServiceImpl.
func NewReservationService(store ports.ReservationStore, ledger inProcessChecker, ttl time.Duration, log zerolog.Logger) *ReservationServiceImpl {
	return &ReservationServiceImpl{
		store:  store,
		ledger: ledger,
		ttl:    ttl,
		now:    time.Now,
		log:    log,
	}
}

// TTL returns the reservation lifetime.
func (s *ReservationServiceImpl) TTL() time.Duration {
	return s.ttl
}

// Reserve gives sessionID exclusive use of wallet. It returns false when a
// different session holds it. Reserving again as the holder refreshes it.
func (s *ReservationServiceImpl) Reserve(ctx context.Context, wallet, sessionID string) (bool, error) {
	ok, err := s.store.Acquire(ctx, domain.WalletReservation{
		Wallet:     wallet,
		SessionID:  sessionID,
		ReservedAt: s.now().UTC(),
	}, s.storeTTL())
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("reserve wallet: %w", err))
	}
	if !ok {
		s.log.Info().Str("wallet", wallet).Str("session_id", sessionID).Msg("wallet held by another session")
		return false, nil
	}
	s.log.Debug().Str("wallet", wallet).Str("session_id", sessionID).Msg("wallet reserved")
	return true, nil
}

// Release frees wallet if sessionID holds it. Releasing someone else's
// reservation is a no-op.
func (s *ReservationServiceImpl) Release(ctx context.Context, wallet, sessionID string) (bool, error) {
	ok, err := s.store.Release(ctx, wallet, sessionID)
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("release wallet: %w", err))
	}
	if ok {
		s.log.Debug().Str("wallet", wallet).Str("session_id", sessionID).Msg("wallet released")
	}
	return ok, nil
}

// Holder returns the current reservation for wallet, nil if free.
func (s *ReservationServiceImpl) Holder(ctx context.Context, wallet string) (*domain.WalletReservation, error) {
	res, err := s.store.Get(ctx, wallet)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get reservation: %w", err))
	}
	return res, nil
}

// List returns all live reservations.
func (s *ReservationServiceImpl) List(ctx context.Context) ([]domain.WalletReservation, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list reservations: %w", err))
	}
	return list, nil
}

// Sweep releases reservations older than the TTL, skipping wallets whose
// payment is still being minted. It returns the number released.
func (s *ReservationServiceImpl) Sweep(ctx context.Context) (int, error) {
	list, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	released := 0
	for _, res := range list {
		if !res.Expired(now, s.ttl) {
			continue
		}
		busy, err := s.ledger.HasInProcess(ctx, res.Wallet)
		if err != nil {
			s.log.Warn().Err(err).Str("wallet", res.Wallet).Msg("sweep: ledger check failed, keeping reservation")
			continue
		}
		if busy {
			s.log.Info().Str("wallet", res.Wallet).Msg("sweep: mint in process, keeping reservation")
			continue
		}
		ok, err := s.store.Release(ctx, res.Wallet, res.SessionID)
		if err != nil {
			s.log.Warn().Err(err).Str("wallet", res.Wallet).Msg("sweep: release failed")
			continue
		}
		if ok {
			released++
			s.log.Info().
				Str("wallet", res.Wallet).
				Str("session_id", res.SessionID).
				Time("reserved_at", res.ReservedAt).
				Msg("stale reservation released")
		}
	}
	observability.Gateway().SetReservations(len(list) - released)
	if released > 0 {
		observability.Gateway().RecordSweep(released)
	}
	return released, nil
}

// RunSweeper sweeps every interval until ctx is done.
func (s *ReservationServiceImpl) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("reservation sweep failed")
			}
		}
	}
}

// storeTTL is the hard expiry handed to the store. It outlives the sweep
// TTL so the sweep, which consults the ledger, normally acts first.
func (s *ReservationServiceImpl) storeTTL() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return 4 * s.ttl
}
