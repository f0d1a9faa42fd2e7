package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// LedgerServiceImpl guards the transaction state machine. Each
// check-then-write runs under a per-signature lock, and every write is a
// conditional store update so several processes sharing a store stay safe.
type LedgerServiceImpl struct {
	store ports.LedgerStore
	locks *keyedMutex
	now   func() time.Time
	log   zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(store ports.LedgerStore, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		store: store,
		locks: newKeyedMutex(),
		now:   time.Now,
		log:   log,
	}
}

// Get returns the record for a signature, nil if unknown.
func (s *LedgerServiceImpl) Get(ctx context.Context, signature string) (*domain.TransactionRecord, error) {
	rec, err := s.store.Get(ctx, signature)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get transaction: %w", err))
	}
	return rec, nil
}

// List returns records matching filter.
func (s *LedgerServiceImpl) List(ctx context.Context, filter domain.TxFilter) ([]domain.TransactionRecord, error) {
	recs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	return recs, nil
}

// Classify reports the ledger state of a signature.
func (s *LedgerServiceImpl) Classify(ctx context.Context, signature string) (domain.Classification, error) {
	rec, err := s.Get(ctx, signature)
	if err != nil {
		return domain.ClassUnknown, err
	}
	if rec == nil {
		return domain.ClassUnknown, nil
	}
	return domain.ClassOf(rec.State), nil
}

// Observe records a matching transfer in state new. Known signatures are
// returned unchanged.
func (s *LedgerServiceImpl) Observe(ctx context.Context, t domain.Transfer) (*domain.TransactionRecord, error) {
	unlock := s.locks.Lock(t.Signature)
	defer unlock()
	return s.observeLocked(ctx, t)
}

func (s *LedgerServiceImpl) observeLocked(ctx context.Context, t domain.Transfer) (*domain.TransactionRecord, error) {
	rec := domain.NewTransactionRecord(t, s.now().UTC())
	inserted, err := s.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("insert transaction: %w", err))
	}
	if inserted {
		s.log.Info().Str("signature", t.Signature).Str("sender", t.Sender).Msg("transaction observed")
		return rec, nil
	}
	return s.Get(ctx, t.Signature)
}

// MarkInProcess claims a payment for minting. It succeeds only from the
// unknown or new states; otherwise it returns ErrAlreadyCreated or
// ErrAlreadyInProcess and leaves the record untouched.
func (s *LedgerServiceImpl) MarkInProcess(ctx context.Context, t domain.Transfer, snap domain.DraftSnapshot) error {
	unlock := s.locks.Lock(t.Signature)
	defer unlock()

	rec, err := s.observeLocked(ctx, t)
	if err != nil {
		return err
	}
	if rec == nil {
		return apperror.InternalError(fmt.Errorf("transaction %s vanished after insert", t.Signature))
	}
	if rej := rejectionFor(rec.State); rej != nil {
		s.log.Info().Str("signature", t.Signature).Str("state", string(rec.State)).Msg("mark in process rejected")
		return rej
	}

	err = s.store.Transition(ctx, ports.Transition{
		Signature: t.Signature,
		From:      domain.TxStateNew,
		To:        domain.TxStateInProcess,
		Snapshot:  &snap,
		At:        s.now().UTC(),
	})
	if errors.Is(err, ports.ErrStateConflict) {
		// Another process moved it first.
		cur, gerr := s.Get(ctx, t.Signature)
		if gerr != nil {
			return gerr
		}
		if cur != nil {
			if rej := rejectionFor(cur.State); rej != nil {
				return rej
			}
		}
		return apperror.ErrAlreadyInProcess()
	}
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("mark in process: %w", err))
	}

	s.log.Info().Str("signature", t.Signature).Msg("transaction in process")
	return nil
}

// MarkCreated finalizes a payment. Only valid from in_process.
func (s *LedgerServiceImpl) MarkCreated(ctx context.Context, signature string, result domain.MintResult) error {
	unlock := s.locks.Lock(signature)
	defer unlock()

	return s.transition(ctx, ports.Transition{
		Signature: signature,
		From:      domain.TxStateInProcess,
		To:        domain.TxStateCreated,
		Result:    &result,
		At:        s.now().UTC(),
	})
}

// MarkFailed returns an in_process payment to new so the user can retry.
// A created record is never reopened.
func (s *LedgerServiceImpl) MarkFailed(ctx context.Context, signature string) error {
	unlock := s.locks.Lock(signature)
	defer unlock()

	return s.transition(ctx, ports.Transition{
		Signature: signature,
		From:      domain.TxStateInProcess,
		To:        domain.TxStateNew,
		At:        s.now().UTC(),
	})
}

// HasInProcess reports whether a sender has a payment being minted.
func (s *LedgerServiceImpl) HasInProcess(ctx context.Context, sender string) (bool, error) {
	recs, err := s.List(ctx, domain.TxFilter{Sender: sender, State: domain.TxStateInProcess, Limit: 1})
	if err != nil {
		return false, err
	}
	return len(recs) > 0, nil
}

func (s *LedgerServiceImpl) transition(ctx context.Context, t ports.Transition) error {
	err := s.store.Transition(ctx, t)
	if errors.Is(err, ports.ErrStateConflict) {
		cur, gerr := s.Get(ctx, t.Signature)
		if gerr != nil {
			return gerr
		}
		from := "unknown"
		if cur != nil {
			from = string(cur.State)
		}
		s.log.Warn().
			Str("signature", t.Signature).
			Str("state", from).
			Str("to", string(t.To)).
			Msg("ledger transition rejected")
		return apperror.ErrInvalidTransition(from, string(t.To))
	}
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("transition %s: %w", t.To, err))
	}
	s.log.Info().Str("signature", t.Signature).Str("state", string(t.To)).Msg("ledger transition")
	return nil
}

func rejectionFor(state domain.TxState) error {
	switch state {
	case domain.TxStateCreated:
		return apperror.ErrAlreadyCreated()
	case domain.TxStateInProcess:
		return apperror.ErrAlreadyInProcess()
	}
	return nil
}
