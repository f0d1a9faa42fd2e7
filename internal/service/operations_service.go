package service

import (
	"context"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

type (
	sweeper interface {
		Sweep(ctx context.Context) (int, error)
		Holder(ctx context.Context, wallet string) (*domain.WalletReservation, error)
		Release(ctx context.Context, wallet, sessionID string) (bool, error)
	}
	failer interface {
		Get(ctx context.Context, signature string) (*domain.TransactionRecord, error)
		MarkFailed(ctx context.Context, signature string) error
	}
	mintTracker interface {
		Running(signature string) bool
	}
)

// OperationsServiceImpl implements ports.OperationsService.
type OperationsServiceImpl struct {
	reservations sweeper
	ledger       failer
	mints        mintTracker
	log          zerolog.Logger
}

// NewOperationsService creates a new OperationsServiceImpl.
func NewOperationsService(reservations sweeper, ledger failer, mints mintTracker, log zerolog.Logger) *OperationsServiceImpl {
	return &OperationsServiceImpl{reservations: reservations, ledger: ledger, mints: mints, log: log}
}

// SweepReservations runs one sweep now.
func (s *OperationsServiceImpl) SweepReservations(ctx context.Context) (int, error) {
	return s.reservations.Sweep(ctx)
}

// ReleaseReservation frees a wallet regardless of which session holds it.
func (s *OperationsServiceImpl) ReleaseReservation(ctx context.Context, wallet string) (bool, error) {
	res, err := s.reservations.Holder(ctx, wallet)
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, nil
	}
	ok, err := s.reservations.Release(ctx, wallet, res.SessionID)
	if err != nil {
		return false, err
	}
	s.log.Warn().Str("wallet", wallet).Str("session_id", res.SessionID).Msg("reservation released by operator")
	return ok, nil
}

// ResetTransaction returns an in_process payment to new. It refuses while
// this process is still minting it.
func (s *OperationsServiceImpl) ResetTransaction(ctx context.Context, signature string) error {
	rec, err := s.ledger.Get(ctx, signature)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperror.ErrNotFound("Transaction")
	}
	if s.mints != nil && s.mints.Running(signature) {
		return apperror.ErrCreationRunning()
	}
	if err := s.ledger.MarkFailed(ctx, signature); err != nil {
		return err
	}
	s.log.Warn().Str("signature", signature).Msg("transaction reset by operator")
	return nil
}
