package ports

import (
	"context"
	"errors"
	"time"

	"token-launch-gateway/internal/core/domain"
)

var (
	// ErrStateConflict is returned when a conditional ledger write finds the
	// record in a different state than expected.
	ErrStateConflict = errors.New("ledger state conflict")
	// ErrDuplicate is returned when a unique record already exists.
	ErrDuplicate = errors.New("duplicate record")
)

// LedgerStore persists transaction records keyed by signature.
// Get returns (nil, nil) for unknown signatures.
type LedgerStore interface {
	Get(ctx context.Context, signature string) (*domain.TransactionRecord, error)
	// InsertIfAbsent stores rec unless the signature exists. It reports
	// whether the record was inserted.
	InsertIfAbsent(ctx context.Context, rec *domain.TransactionRecord) (bool, error)
	// Transition moves a record from one state to another only if it is
	// currently in from. Returns ErrStateConflict otherwise.
	Transition(ctx context.Context, t Transition) error
	List(ctx context.Context, filter domain.TxFilter) ([]domain.TransactionRecord, error)
}

// Transition is a conditional state change of one ledger record.
// Snapshot and Result are written when non-nil.
type Transition struct {
	Signature string
	From      domain.TxState
	To        domain.TxState
	Snapshot  *domain.DraftSnapshot
	Result    *domain.MintResult
	At        time.Time
}

// CommissionRepository persists commission records.
type CommissionRepository interface {
	// Claim inserts all records atomically in pending state. If any
	// (signature, type) already exists nothing is written and ErrDuplicate
	// is returned.
	Claim(ctx context.Context, records []domain.CommissionRecord) error
	UpdateStatus(ctx context.Context, signature string, status domain.CommissionStatus, payoutTxHash string, at time.Time) error
	ListBySignature(ctx context.Context, signature string) ([]domain.CommissionRecord, error)
	ListByReferrer(ctx context.Context, referrerID int64) ([]domain.CommissionRecord, error)
}

// UserRepository persists referral accounts and bonus credits.
type UserRepository interface {
	Get(ctx context.Context, userID int64) (*domain.UserAccount, error)
	// Create stores a new account; existing accounts are left untouched.
	Create(ctx context.Context, user *domain.UserAccount) (bool, error)
	SetPayoutWallet(ctx context.Context, userID int64, wallet string) error
	// ConsumeBonus decrements the user's credits once per signature and
	// never below zero. It reports whether a credit was consumed by this call.
	ConsumeBonus(ctx context.Context, userID int64, signature string) (bool, error)
}

// ReservationStore holds wallet reservations.
type ReservationStore interface {
	// Acquire stores res if the wallet is free or already held by the same
	// session. It reports whether the caller now holds the wallet.
	Acquire(ctx context.Context, res domain.WalletReservation, ttl time.Duration) (bool, error)
	// Release deletes the reservation only if sessionID holds it.
	Release(ctx context.Context, wallet, sessionID string) (bool, error)
	Get(ctx context.Context, wallet string) (*domain.WalletReservation, error)
	List(ctx context.Context) ([]domain.WalletReservation, error)
}

// AuditRepository persists operator audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}
