package badgerdb

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/dgraph-io/badger/v4"
)

// CommissionRepo implements ports.CommissionRepository.
type CommissionRepo struct {
	db *DB
}

// NewCommissionRepo creates a badger-backed CommissionRepo.
func NewCommissionRepo(db *DB) *CommissionRepo {
	return &CommissionRepo{db: db}
}

func commissionKey(signature string, typ domain.PaymentType) string {
	return prefixCommission + signature + ":" + string(typ)
}

func (r *CommissionRepo) Claim(ctx context.Context, records []domain.CommissionRecord) error {
	return r.db.update(func(txn *badger.Txn) error {
		for _, rec := range records {
			_, err := txn.Get([]byte(commissionKey(rec.Signature, rec.Type)))
			if err == nil {
				return ports.ErrDuplicate
			}
			if err != badger.ErrKeyNotFound {
				return err
			}
		}
		for i := range records {
			if err := setJSON(txn, commissionKey(records[i].Signature, records[i].Type), &records[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CommissionRepo) UpdateStatus(ctx context.Context, signature string, status domain.CommissionStatus, payoutTxHash string, at time.Time) error {
	return r.db.update(func(txn *badger.Txn) error {
		var recs []domain.CommissionRecord
		err := scan(txn, prefixCommission+signature+":", func(val []byte) error {
			var rec domain.CommissionRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
		if err != nil {
			return err
		}
		for i := range recs {
			recs[i].Status = status
			recs[i].PayoutTxHash = payoutTxHash
			recs[i].UpdatedAt = at
			if err := setJSON(txn, commissionKey(recs[i].Signature, recs[i].Type), &recs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CommissionRepo) ListBySignature(ctx context.Context, signature string) ([]domain.CommissionRecord, error) {
	return r.list(prefixCommission+signature+":", func(domain.CommissionRecord) bool { return true })
}

func (r *CommissionRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]domain.CommissionRecord, error) {
	out, err := r.list(prefixCommission, func(rec domain.CommissionRecord) bool { return rec.ReferrerID == referrerID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *CommissionRepo) list(prefix string, keep func(domain.CommissionRecord) bool) ([]domain.CommissionRecord, error) {
	out := make([]domain.CommissionRecord, 0)
	err := r.db.db.View(func(txn *badger.Txn) error {
		return scan(txn, prefix, func(val []byte) error {
			var rec domain.CommissionRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			if keep(rec) {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
