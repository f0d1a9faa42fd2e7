// Package memory holds process-local stores used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
)

// --- Ledger ---

// LedgerStore keeps transaction records in a map.
type LedgerStore struct {
	mu      sync.RWMutex
	records map[string]domain.TransactionRecord
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{records: make(map[string]domain.TransactionRecord)}
}

func (s *LedgerStore) Get(ctx context.Context, signature string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[signature]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *LedgerStore) InsertIfAbsent(ctx context.Context, rec *domain.TransactionRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.Signature]; ok {
		return false, nil
	}
	s.records[rec.Signature] = *rec
	return true, nil
}

func (s *LedgerStore) Transition(ctx context.Context, t ports.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[t.Signature]
	if !ok || rec.State != t.From || !domain.CanTransition(t.From, t.To) {
		return ports.ErrStateConflict
	}
	rec.Apply(t.To, t.Snapshot, t.Result, t.At)
	s.records[t.Signature] = rec
	return nil
}

func (s *LedgerStore) List(ctx context.Context, filter domain.TxFilter) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TransactionRecord, 0)
	for _, rec := range s.records {
		if filter.Sender != "" && rec.Sender != filter.Sender {
			continue
		}
		if filter.State != "" && rec.State != filter.State {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// --- Commissions ---

type commissionKey struct {
	signature string
	typ       domain.PaymentType
}

// CommissionRepository keeps commission records in a map.
type CommissionRepository struct {
	mu      sync.RWMutex
	records map[commissionKey]domain.CommissionRecord
}

// NewCommissionRepository creates an empty CommissionRepository.
func NewCommissionRepository() *CommissionRepository {
	return &CommissionRepository{records: make(map[commissionKey]domain.CommissionRecord)}
}

func (r *CommissionRepository) Claim(ctx context.Context, records []domain.CommissionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if _, ok := r.records[commissionKey{rec.Signature, rec.Type}]; ok {
			return ports.ErrDuplicate
		}
	}
	for _, rec := range records {
		r.records[commissionKey{rec.Signature, rec.Type}] = rec
	}
	return nil
}

func (r *CommissionRepository) UpdateStatus(ctx context.Context, signature string, status domain.CommissionStatus, payoutTxHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, rec := range r.records {
		if k.signature != signature {
			continue
		}
		rec.Status = status
		rec.PayoutTxHash = payoutTxHash
		rec.UpdatedAt = at
		r.records[k] = rec
	}
	return nil
}

func (r *CommissionRepository) ListBySignature(ctx context.Context, signature string) ([]domain.CommissionRecord, error) {
	return r.list(func(rec domain.CommissionRecord) bool { return rec.Signature == signature }), nil
}

func (r *CommissionRepository) ListByReferrer(ctx context.Context, referrerID int64) ([]domain.CommissionRecord, error) {
	return r.list(func(rec domain.CommissionRecord) bool { return rec.ReferrerID == referrerID }), nil
}

func (r *CommissionRepository) list(keep func(domain.CommissionRecord) bool) []domain.CommissionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.CommissionRecord, 0)
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Signature != out[j].Signature {
			return out[i].Signature < out[j].Signature
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// --- Users ---

// UserRepository keeps accounts and consumed bonus signatures in maps.
type UserRepository struct {
	mu       sync.RWMutex
	users    map[int64]domain.UserAccount
	consumed map[string]struct{}
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:    make(map[int64]domain.UserAccount),
		consumed: make(map[string]struct{}),
	}
}

func (r *UserRepository) Get(ctx context.Context, userID int64) (*domain.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.UserAccount) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.UserID]; ok {
		return false, nil
	}
	r.users[user.UserID] = *user
	return true, nil
}

func (r *UserRepository) SetPayoutWallet(ctx context.Context, userID int64, wallet string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil
	}
	u.PayoutWallet = wallet
	r.users[userID] = u
	return nil
}

func (r *UserRepository) ConsumeBonus(ctx context.Context, userID int64, signature string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, done := r.consumed[signature]; done {
		return false, nil
	}
	u, ok := r.users[userID]
	if !ok || u.BonusCredits <= 0 {
		return false, nil
	}
	u.BonusCredits--
	r.users[userID] = u
	r.consumed[signature] = struct{}{}
	return true, nil
}

// --- Reservations ---

type heldReservation struct {
	res      domain.WalletReservation
	deadline time.Time // zero means no hard expiry
}

// ReservationStore keeps wallet reservations in a map. Entries past their
// hard TTL are treated as absent.
type ReservationStore struct {
	mu    sync.Mutex
	held  map[string]heldReservation
	clock func() time.Time
}

// NewReservationStore creates an empty ReservationStore.
func NewReservationStore() *ReservationStore {
	return &ReservationStore{held: make(map[string]heldReservation), clock: time.Now}
}

func (s *ReservationStore) Acquire(ctx context.Context, res domain.WalletReservation, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.live(res.Wallet); ok && cur.SessionID != res.SessionID {
		return false, nil
	}
	h := heldReservation{res: res}
	if ttl > 0 {
		h.deadline = s.clock().Add(ttl)
	}
	s.held[res.Wallet] = h
	return true, nil
}

func (s *ReservationStore) Release(ctx context.Context, wallet, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.live(wallet)
	if !ok || cur.SessionID != sessionID {
		return false, nil
	}
	delete(s.held, wallet)
	return true, nil
}

func (s *ReservationStore) Get(ctx context.Context, wallet string) (*domain.WalletReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.live(wallet)
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

func (s *ReservationStore) List(ctx context.Context) ([]domain.WalletReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WalletReservation, 0, len(s.held))
	for wallet := range s.held {
		if cur, ok := s.live(wallet); ok {
			out = append(out, cur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.Before(out[j].ReservedAt) })
	return out, nil
}

// live returns the reservation for wallet, dropping it if past its deadline.
// Callers hold s.mu.
func (s *ReservationStore) live(wallet string) (domain.WalletReservation, bool) {
	h, ok := s.held[wallet]
	if !ok {
		return domain.WalletReservation{}, false
	}
	if !h.deadline.IsZero() && !s.clock().Before(h.deadline) {
		delete(s.held, wallet)
		return domain.WalletReservation{}, false
	}
	return h.res, true
}
