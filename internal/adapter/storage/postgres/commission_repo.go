package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// CommissionRepo implements ports.CommissionRepository.
type CommissionRepo struct {
	pool Pool
}

// NewCommissionRepo creates a new CommissionRepo.
func NewCommissionRepo(pool Pool) *CommissionRepo {
	return &CommissionRepo{pool: pool}
}

// Claim inserts every record in one transaction. Any existing
// (signature, type) pair aborts the whole claim with ports.ErrDuplicate.
func (r *CommissionRepo) Claim(ctx context.Context, records []domain.CommissionRecord) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			_, err := tx.Exec(ctx,
				`INSERT INTO commissions (signature, payment_type, referrer_id, referred_user_id, amount, status, payout_tx_hash, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				rec.Signature, string(rec.Type), rec.ReferrerID, rec.ReferredUserID,
				rec.Amount.String(), string(rec.Status), rec.PayoutTxHash, rec.CreatedAt, rec.UpdatedAt,
			)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
					return ports.ErrDuplicate
				}
				return fmt.Errorf("insert commission: %w", err)
			}
		}
		return nil
	})
}

// UpdateStatus sets status and payout hash on every record of a signature.
func (r *CommissionRepo) UpdateStatus(ctx context.Context, signature string, status domain.CommissionStatus, payoutTxHash string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE commissions SET status = $1, payout_tx_hash = $2, updated_at = $3 WHERE signature = $4`,
		string(status), payoutTxHash, at, signature,
	)
	if err != nil {
		return fmt.Errorf("update commission status: %w", err)
	}
	return nil
}

// ListBySignature returns the commission components of one payment.
func (r *CommissionRepo) ListBySignature(ctx context.Context, signature string) ([]domain.CommissionRecord, error) {
	return r.list(ctx, `WHERE signature = $1 ORDER BY payment_type`, signature)
}

// ListByReferrer returns every commission earned by a referrer.
func (r *CommissionRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]domain.CommissionRecord, error) {
	return r.list(ctx, `WHERE referrer_id = $1 ORDER BY created_at DESC`, referrerID)
}

func (r *CommissionRepo) list(ctx context.Context, where string, arg any) ([]domain.CommissionRecord, error) {
	query := `SELECT signature, payment_type, referrer_id, referred_user_id, amount::text, status, payout_tx_hash, created_at, updated_at
		FROM commissions ` + where
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CommissionRecord, 0)
	for rows.Next() {
		var (
			rec         domain.CommissionRecord
			typ, status string
			amount      string
		)
		if err := rows.Scan(&rec.Signature, &typ, &rec.ReferrerID, &rec.ReferredUserID,
			&amount, &status, &rec.PayoutTxHash, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan commission row: %w", err)
		}
		rec.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse commission amount: %w", err)
		}
		rec.Type = domain.PaymentType(typ)
		rec.Status = domain.CommissionStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commission rows: %w", err)
	}
	return out, nil
}
