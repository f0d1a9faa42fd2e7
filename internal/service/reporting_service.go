package service

import (
	"context"
	"fmt"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/pkg/apperror"

	"github.com/shopspring/decimal"
)

type (
	ledgerReader interface {
		Get(ctx context.Context, signature string) (*domain.TransactionRecord, error)
		List(ctx context.Context, filter domain.TxFilter) ([]domain.TransactionRecord, error)
	}
	reservationLister interface {
		List(ctx context.Context) ([]domain.WalletReservation, error)
		TTL() time.Duration
	}
)

// maxListLimit caps operator listings.
const maxListLimit = 500

// ReportingServiceImpl implements ports.ReportingService.
type ReportingServiceImpl struct {
	ledger       ledgerReader
	reservations reservationLister
	commissions  ports.CommissionRepository
	users        ports.UserRepository
	now          func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	ledger ledgerReader,
	reservations reservationLister,
	commissions ports.CommissionRepository,
	users ports.UserRepository,
) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		ledger:       ledger,
		reservations: reservations,
		commissions:  commissions,
		users:        users,
		now:          time.Now,
	}
}

// Stats counts ledger records per state and live versus stale reservations.
// Reservation counters stay zero when no reservation store is attached.
func (s *ReportingServiceImpl) Stats(ctx context.Context) (*ports.Stats, error) {
	stats := &ports.Stats{Transactions: make(map[domain.TxState]int, 3)}
	for _, state := range []domain.TxState{domain.TxStateNew, domain.TxStateInProcess, domain.TxStateCreated} {
		recs, err := s.ledger.List(ctx, domain.TxFilter{State: state})
		if err != nil {
			return nil, err
		}
		stats.Transactions[state] = len(recs)
	}

	if s.reservations == nil {
		return stats, nil
	}
	list, err := s.reservations.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, r := range list {
		if r.Expired(now, s.reservations.TTL()) {
			stats.StaleReservations++
		} else {
			stats.ActiveReservations++
		}
	}
	return stats, nil
}

// ListTransactions lists ledger records, newest first.
func (s *ReportingServiceImpl) ListTransactions(ctx context.Context, filter domain.TxFilter) ([]domain.TransactionRecord, error) {
	switch filter.State {
	case "", domain.TxStateNew, domain.TxStateInProcess, domain.TxStateCreated:
	default:
		return nil, apperror.Validation("invalid state: must be new, in_process, or created")
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.ledger.List(ctx, filter)
}

// GetTransaction returns a ledger record with its commissions.
func (s *ReportingServiceImpl) GetTransaction(ctx context.Context, signature string) (*ports.TransactionDetail, error) {
	rec, err := s.ledger.Get(ctx, signature)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}
	coms, err := s.commissions.ListBySignature(ctx, signature)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list commissions: %w", err))
	}
	return &ports.TransactionDetail{Record: *rec, Commissions: coms}, nil
}

// ListReservations returns every live wallet reservation.
func (s *ReportingServiceImpl) ListReservations(ctx context.Context) ([]domain.WalletReservation, error) {
	return s.reservations.List(ctx)
}

// UserStats sums the commissions a user earned as a referrer.
func (s *ReportingServiceImpl) UserStats(ctx context.Context, userID int64) (*ports.UserStats, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("User")
	}
	coms, err := s.commissions.ListByReferrer(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list commissions: %w", err))
	}

	stats := &ports.UserStats{
		User:         *user,
		Commissions:  len(coms),
		PaidTotal:    decimal.Zero,
		FailedTotal:  decimal.Zero,
		PendingTotal: decimal.Zero,
	}
	for _, c := range coms {
		switch c.Status {
		case domain.CommissionStatusPaid:
			stats.PaidTotal = stats.PaidTotal.Add(c.Amount)
		case domain.CommissionStatusFailed:
			stats.FailedTotal = stats.FailedTotal.Add(c.Amount)
		default:
			stats.PendingTotal = stats.PendingTotal.Add(c.Amount)
		}
	}
	return stats, nil
}
