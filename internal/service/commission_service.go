package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/internal/observability"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Reasons reported for settlements that pay nothing.
const (
	SettleNoReferrer     = "no_referrer"
	SettleNoPayoutWallet = "no_payout_wallet"
	SettleExcluded       = "referrer_excluded"
	SettleZeroCommission = "zero_commission"
)

// recordReader reads ledger records.
type recordReader interface {
	Get(ctx context.Context, signature string) (*domain.TransactionRecord, error)
}

// SettleRequest identifies a created payment to pay commission for.
type SettleRequest struct {
	Signature string
	UserID    int64
	Snapshot  domain.DraftSnapshot
}

// CommissionServiceImpl pays referral commissions at most once per payment.
type CommissionServiceImpl struct {
	ledger      recordReader
	users       ports.UserRepository
	commissions ports.CommissionRepository
	payout      ports.PayoutSender
	policy      *AccessPolicy
	rates       domain.CommissionRates
	now         func() time.Time
	log         zerolog.Logger
}

// NewCommissionService creates a new CommissionServiceImpl.
func NewCommissionService(
	ledger recordReader,
	users ports.UserRepository,
	commissions ports.CommissionRepository,
	payout ports.PayoutSender,
	policy *AccessPolicy,
	rates domain.CommissionRates,
	log zerolog.Logger,
) *CommissionServiceImpl {
	return &CommissionServiceImpl{
		ledger:      ledger,
		users:       users,
		commissions: commissions,
		payout:      payout,
		policy:      policy,
		rates:       rates,
		now:         time.Now,
		log:         log,
	}
}

// Settle computes the referral commission for a created payment, claims it
// and sends a single payout. A payout failure is reported as a warning on
// the result; the claimed records stay failed and are never resent here.
func (s *CommissionServiceImpl) Settle(ctx context.Context, req SettleRequest) (*domain.CommissionResult, error) {
	log := s.log.With().Str("signature", req.Signature).Logger()

	rec, err := s.ledger.Get(ctx, req.Signature)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.State != domain.TxStateCreated {
		return nil, apperror.ErrNotSettleable()
	}
	snap := req.Snapshot
	if rec.Snapshot != nil {
		snap = *rec.Snapshot
	}
	userID := snap.Draft.UserID
	if userID == 0 {
		userID = req.UserID
	}

	result := &domain.CommissionResult{Signature: req.Signature}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get user: %w", err))
	}
	if user == nil || user.ReferredBy == nil {
		return s.noop(result, SettleNoReferrer, log), nil
	}
	referrerID := *user.ReferredBy
	result.ReferrerID = referrerID
	if s.policy.IsExcluded(referrerID) {
		return s.noop(result, SettleExcluded, log), nil
	}
	referrer, err := s.users.Get(ctx, referrerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get referrer: %w", err))
	}
	if !referrer.HasPayoutWallet() {
		return s.noop(result, SettleNoPayoutWallet, log), nil
	}

	breakdown := domain.ComputeCommission(snap.Quote, s.rates)
	result.Breakdown = breakdown
	if breakdown.Total.Sign() <= 0 {
		return s.noop(result, SettleZeroCommission, log), nil
	}

	now := s.now().UTC()
	claims := make([]domain.CommissionRecord, 0, 2)
	if breakdown.Base.Sign() > 0 {
		claims = append(claims, s.claim(req.Signature, domain.PaymentTypeBase, referrerID, userID, breakdown.Base, now))
	}
	if breakdown.Custom.Sign() > 0 {
		claims = append(claims, s.claim(req.Signature, domain.PaymentTypeCustom, referrerID, userID, breakdown.Custom, now))
	}

	if err := s.commissions.Claim(ctx, claims); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			log.Warn().Int64("referrer_id", referrerID).Msg("commission already claimed")
			observability.Gateway().RecordSettlement("duplicate")
			return nil, apperror.ErrAlreadySettled()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("claim commission: %w", err))
	}

	txHash, err := s.payout.Send(ctx, referrer.PayoutWallet, breakdown.Total, domain.PayoutBreakdown{
		Signature:        req.Signature,
		BaseCommission:   breakdown.Base,
		CustomCommission: breakdown.Custom,
		TotalCommission:  breakdown.Total,
		TokenCost:        snap.Quote.Base,
		CustomPrice:      snap.Quote.CustomPaid,
		CustomEnding:     snap.Draft.CustomSuffix,
		Type:             "referral_commission",
	})
	if err != nil {
		log.Error().Err(err).Int64("referrer_id", referrerID).Str("amount", breakdown.Total.String()).Msg("commission payout failed")
		observability.Gateway().RecordSettlement("failed")
		if uerr := s.commissions.UpdateStatus(ctx, req.Signature, domain.CommissionStatusFailed, "", s.now().UTC()); uerr != nil {
			log.Error().Err(uerr).Msg("could not mark commission failed")
		}
		result.Warning = apperror.ErrPayoutFailed(err).Message
		return result, nil
	}

	if err := s.commissions.UpdateStatus(ctx, req.Signature, domain.CommissionStatusPaid, txHash, s.now().UTC()); err != nil {
		log.Error().Err(err).Str("tx_hash", txHash).Msg("commission paid but status not recorded")
	}
	observability.Gateway().RecordSettlement("paid")
	log.Info().
		Int64("referrer_id", referrerID).
		Str("amount", breakdown.Total.String()).
		Str("tx_hash", txHash).
		Msg("commission paid")

	result.Settled = true
	result.PayoutTxHash = txHash
	return result, nil
}

func (s *CommissionServiceImpl) claim(sig string, typ domain.PaymentType, referrerID, userID int64, amount decimal.Decimal, at time.Time) domain.CommissionRecord {
	return domain.CommissionRecord{
		Signature:      sig,
		Type:           typ,
		ReferrerID:     referrerID,
		ReferredUserID: userID,
		Amount:         amount,
		Status:         domain.CommissionStatusPending,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func (s *CommissionServiceImpl) noop(result *domain.CommissionResult, reason string, log zerolog.Logger) *domain.CommissionResult {
	result.Reason = reason
	observability.Gateway().RecordSettlement(reason)
	log.Info().Str("reason", reason).Msg("no commission due")
	return result
}
