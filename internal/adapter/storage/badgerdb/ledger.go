package badgerdb

import (
	"context"
	"encoding/json"
	"sort"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/dgraph-io/badger/v4"
)

// LedgerRepo implements ports.LedgerStore.
type LedgerRepo struct {
	db *DB
}

// NewLedgerRepo creates a badger-backed LedgerRepo.
func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) Get(ctx context.Context, signature string) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	var found bool
	err := r.db.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = getJSON(txn, prefixTx+signature, &rec)
		return err
	})
	if err != nil || !found {
		return nil, err
	}
	return &rec, nil
}

func (r *LedgerRepo) InsertIfAbsent(ctx context.Context, rec *domain.TransactionRecord) (bool, error) {
	inserted := false
	err := r.db.update(func(txn *badger.Txn) error {
		inserted = false
		var existing domain.TransactionRecord
		found, err := getJSON(txn, prefixTx+rec.Signature, &existing)
		if err != nil || found {
			return err
		}
		inserted = true
		return setJSON(txn, prefixTx+rec.Signature, rec)
	})
	return inserted, err
}

func (r *LedgerRepo) Transition(ctx context.Context, t ports.Transition) error {
	return r.db.update(func(txn *badger.Txn) error {
		var rec domain.TransactionRecord
		found, err := getJSON(txn, prefixTx+t.Signature, &rec)
		if err != nil {
			return err
		}
		if !found || rec.State != t.From || !domain.CanTransition(t.From, t.To) {
			return ports.ErrStateConflict
		}
		rec.Apply(t.To, t.Snapshot, t.Result, t.At)
		return setJSON(txn, prefixTx+t.Signature, &rec)
	})
}

func (r *LedgerRepo) List(ctx context.Context, filter domain.TxFilter) ([]domain.TransactionRecord, error) {
	out := make([]domain.TransactionRecord, 0)
	err := r.db.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefixTx, func(val []byte) error {
			var rec domain.TransactionRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			if filter.Sender != "" && rec.Sender != filter.Sender {
				return nil
			}
			if filter.State != "" && rec.State != filter.State {
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
