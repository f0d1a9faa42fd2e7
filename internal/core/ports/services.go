package ports

import (
	"context"
	"time"

	"token-launch-gateway/internal/core/domain"

	"github.com/shopspring/decimal"
)

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body []byte) string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles operator JWT tokens.
type TokenService interface {
	Generate(operator string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Operator string
}

// IdempotencyCache stores replies to front-end requests so redelivered
// updates are answered without running again.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// --- External collaborators ---

// TransferSource lists native SOL transfers received by an address,
// newest first.
type TransferSource interface {
	RecentTransfers(ctx context.Context, receiver string, since time.Time) ([]domain.Transfer, error)
}

// Minter runs the external token creation process. onLine receives every
// output line in order, from a single goroutine.
type Minter interface {
	Mint(ctx context.Context, params domain.MintParams, onLine func(line string)) (*domain.MintResult, error)
}

// PayoutSender sends one commission payout and returns its transaction hash.
type PayoutSender interface {
	Send(ctx context.Context, wallet string, amount decimal.Decimal, breakdown domain.PayoutBreakdown) (string, error)
}

// Notifier delivers user-visible messages to the chat front-end. Messages
// for the same session are delivered in the order they were submitted.
type Notifier interface {
	Notify(ctx context.Context, msg domain.Message) error
}

// ProgressSink receives minting milestones in arrival order.
type ProgressSink func(ev domain.ProgressEvent)

// --- Service Ports (Business Logic) ---

// WorkflowService drives a chat session from a finished draft to a token.
type WorkflowService interface {
	OnDraftReady(ctx context.Context, draft domain.Draft) (*domain.Session, error)
	OnPaymentCheckRequested(ctx context.Context, sessionID string) (*domain.CheckOutcome, error)
	Cancel(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// AuthService authenticates operators.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// ReportingService answers operator queries.
type ReportingService interface {
	Stats(ctx context.Context) (*Stats, error)
	ListTransactions(ctx context.Context, filter domain.TxFilter) ([]domain.TransactionRecord, error)
	GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error)
	ListReservations(ctx context.Context) ([]domain.WalletReservation, error)
	UserStats(ctx context.Context, userID int64) (*UserStats, error)
}

// Stats aggregates ledger and reservation counters.
type Stats struct {
	Transactions       map[domain.TxState]int `json:"transactions"`
	ActiveReservations int                    `json:"active_reservations"`
	StaleReservations  int                    `json:"stale_reservations"`
}

// TransactionDetail is a ledger record with its commissions.
type TransactionDetail struct {
	Record      domain.TransactionRecord  `json:"record"`
	Commissions []domain.CommissionRecord `json:"commissions"`
}

// UserStats summarizes a user's referral activity.
type UserStats struct {
	User         domain.UserAccount `json:"user"`
	Commissions  int                `json:"commissions"`
	PaidTotal    decimal.Decimal    `json:"paid_total"`
	FailedTotal  decimal.Decimal    `json:"failed_total"`
	PendingTotal decimal.Decimal    `json:"pending_total"`
}

// OperationsService performs operator interventions.
type OperationsService interface {
	SweepReservations(ctx context.Context) (int, error)
	ReleaseReservation(ctx context.Context, wallet string) (bool, error)
	// ResetTransaction returns a stuck in_process payment to new.
	ResetTransaction(ctx context.Context, signature string) error
}

// AuditService records operator actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// ReferralService manages the accounts the referral program pays.
type ReferralService interface {
	Register(ctx context.Context, userID int64, username string, referrerID *int64) (*domain.UserAccount, error)
	SetPayoutWallet(ctx context.Context, userID int64, wallet string) error
	Get(ctx context.Context, userID int64) (*domain.UserAccount, error)
}
