package service

import (
	"context"
	"fmt"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// ReferralServiceImpl registers chat users and their referrers.
type ReferralServiceImpl struct {
	users        ports.UserRepository
	bonusCredits int
	now          func() time.Time
	log          zerolog.Logger
}

// NewReferralService creates a new ReferralServiceImpl. New accounts start
// with bonusCredits credits.
func NewReferralService(users ports.UserRepository, bonusCredits int, log zerolog.Logger) *ReferralServiceImpl {
	return &ReferralServiceImpl{
		users:        users,
		bonusCredits: bonusCredits,
		now:          time.Now,
		log:          log,
	}
}

// Register creates the account on first contact. The referrer is only
// recorded then, and only if it is a different, known user. Registering an
// existing account returns it unchanged.
func (s *ReferralServiceImpl) Register(ctx context.Context, userID int64, username string, referrerID *int64) (*domain.UserAccount, error) {
	if userID <= 0 {
		return nil, apperror.Validation("user_id must be positive")
	}
	existing, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	user := &domain.UserAccount{
		UserID:       userID,
		Username:     username,
		BonusCredits: s.bonusCredits,
		CreatedAt:    s.now().UTC(),
	}
	if referrerID != nil && *referrerID != userID {
		ref, err := s.Get(ctx, *referrerID)
		if err != nil {
			return nil, err
		}
		if ref != nil {
			id := *referrerID
			user.ReferredBy = &id
		} else {
			s.log.Warn().Int64("user_id", userID).Int64("referrer_id", *referrerID).Msg("unknown referrer ignored")
		}
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create user: %w", err))
	}
	if !created {
		// Lost a race with a concurrent registration.
		return s.Get(ctx, userID)
	}
	ev := s.log.Info().Int64("user_id", userID)
	if user.ReferredBy != nil {
		ev = ev.Int64("referrer_id", *user.ReferredBy)
	}
	ev.Msg("user registered")
	return user, nil
}

// SetPayoutWallet stores the wallet commissions are sent to.
func (s *ReferralServiceImpl) SetPayoutWallet(ctx context.Context, userID int64, wallet string) error {
	if err := domain.ValidateWallet(wallet); err != nil {
		return apperror.Validation("payout wallet is not a valid Solana address")
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperror.ErrNotFound("User")
	}
	if err := s.users.SetPayoutWallet(ctx, userID, wallet); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("set payout wallet: %w", err))
	}
	s.log.Info().Int64("user_id", userID).Str("wallet", wallet).Msg("payout wallet updated")
	return nil
}

// Get returns the account, nil if unknown.
func (s *ReferralServiceImpl) Get(ctx context.Context, userID int64) (*domain.UserAccount, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get user: %w", err))
	}
	return user, nil
}
