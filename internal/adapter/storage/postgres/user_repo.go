package postgres

import (
	"context"
	"errors"
	"fmt"

	"token-launch-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	pool Pool
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(pool Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Get fetches an account by chat user id.
func (r *UserRepo) Get(ctx context.Context, userID int64) (*domain.UserAccount, error) {
	query := `SELECT user_id, username, referred_by, payout_wallet, bonus_credits, created_at
		FROM users WHERE user_id = $1`

	u := &domain.UserAccount{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&u.UserID, &u.Username, &u.ReferredBy, &u.PayoutWallet, &u.BonusCredits, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Create inserts the account unless the user id exists.
func (r *UserRepo) Create(ctx context.Context, u *domain.UserAccount) (bool, error) {
	query := `INSERT INTO users (user_id, username, referred_by, payout_wallet, bonus_credits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO NOTHING`

	tag, err := r.pool.Exec(ctx, query,
		u.UserID, u.Username, u.ReferredBy, u.PayoutWallet, u.BonusCredits, u.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetPayoutWallet stores the wallet commissions are sent to.
func (r *UserRepo) SetPayoutWallet(ctx context.Context, userID int64, wallet string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET payout_wallet = $1 WHERE user_id = $2`, wallet, userID)
	if err != nil {
		return fmt.Errorf("update payout wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %d", userID)
	}
	return nil
}

// ConsumeBonus records the signature in bonus_consumptions and decrements
// the balance in the same transaction. A repeated signature or an empty
// balance consumes nothing.
func (r *UserRepo) ConsumeBonus(ctx context.Context, userID int64, signature string) (bool, error) {
	errNothing := errors.New("nothing to consume")
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO bonus_consumptions (signature, user_id) VALUES ($1, $2) ON CONFLICT (signature) DO NOTHING`,
			signature, userID)
		if err != nil {
			return fmt.Errorf("record bonus consumption: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errNothing
		}
		tag, err = tx.Exec(ctx,
			`UPDATE users SET bonus_credits = bonus_credits - 1 WHERE user_id = $1 AND bonus_credits > 0`,
			userID)
		if err != nil {
			return fmt.Errorf("decrement bonus credits: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errNothing
		}
		return nil
	})
	if errors.Is(err, errNothing) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
