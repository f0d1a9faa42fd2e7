package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// inTx runs fn inside a database transaction. The transaction is rolled back
// when fn returns an error and committed otherwise.
func inTx(ctx context.Context, pool Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
