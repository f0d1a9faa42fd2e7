package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const txColumnList = `signature, sender, receiver, amount, block_time, state, attempts, snapshot, result, created_at, updated_at`

// LedgerRepo implements ports.LedgerStore on the transactions table.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Get fetches a record by signature.
func (r *LedgerRepo) Get(ctx context.Context, signature string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + txColumnList + ` FROM transactions WHERE signature = $1`
	return scanRecord(r.pool.QueryRow(ctx, query, signature))
}

// InsertIfAbsent inserts rec unless its signature is already recorded.
func (r *LedgerRepo) InsertIfAbsent(ctx context.Context, rec *domain.TransactionRecord) (bool, error) {
	snapshot, err := marshalNullable(rec.Snapshot)
	if err != nil {
		return false, err
	}
	result, err := marshalNullable(rec.Result)
	if err != nil {
		return false, err
	}
	query := `INSERT INTO transactions (` + txColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (signature) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		rec.Signature, rec.Sender, rec.Receiver, int64(rec.Amount), rec.BlockTime,
		string(rec.State), rec.Attempts, snapshot, result, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Transition updates the record only while it is still in t.From.
func (r *LedgerRepo) Transition(ctx context.Context, t ports.Transition) error {
	if !domain.CanTransition(t.From, t.To) {
		return ports.ErrStateConflict
	}
	snapshot, err := marshalNullable(t.Snapshot)
	if err != nil {
		return err
	}
	result, err := marshalNullable(t.Result)
	if err != nil {
		return err
	}
	query := `UPDATE transactions SET
		state = $1,
		attempts = attempts + CASE WHEN $1 = 'in_process' THEN 1 ELSE 0 END,
		snapshot = COALESCE($2, snapshot),
		result = COALESCE($3, result),
		updated_at = $4
		WHERE signature = $5 AND state = $6`

	tag, err := r.pool.Exec(ctx, query, string(t.To), snapshot, result, t.At, t.Signature, string(t.From))
	if err != nil {
		return fmt.Errorf("update transaction state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStateConflict
	}
	return nil
}

// List fetches records newest first.
func (r *LedgerRepo) List(ctx context.Context, filter domain.TxFilter) ([]domain.TransactionRecord, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.Sender != "" {
		conditions = append(conditions, fmt.Sprintf("sender = $%d", argIdx))
		args = append(args, filter.Sender)
		argIdx++
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", argIdx))
		args = append(args, string(filter.State))
		argIdx++
	}

	query := `SELECT ` + txColumnList + ` FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TransactionRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return out, nil
}

// scanRecord scans one row; a missing row yields (nil, nil).
func scanRecord(row pgx.Row) (*domain.TransactionRecord, error) {
	var (
		rec              domain.TransactionRecord
		amount           int64
		state            string
		snapshot, result []byte
	)
	err := row.Scan(
		&rec.Signature, &rec.Sender, &rec.Receiver, &amount, &rec.BlockTime,
		&state, &rec.Attempts, &snapshot, &result, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	rec.Amount = domain.Lamports(amount)
	rec.State = domain.TxState(state)
	if len(snapshot) > 0 {
		rec.Snapshot = &domain.DraftSnapshot{}
		if err := json.Unmarshal(snapshot, rec.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	if len(result) > 0 {
		rec.Result = &domain.MintResult{}
		if err := json.Unmarshal(result, rec.Result); err != nil {
			return nil, fmt.Errorf("decode mint result: %w", err)
		}
	}
	return &rec, nil
}

// marshalNullable encodes v as JSON, or nil for a nil pointer so the column
// is left NULL or unchanged.
func marshalNullable[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return b, nil
}
