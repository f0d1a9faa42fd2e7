package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionPrecision is the number of decimals commissions are rounded to.
const CommissionPrecision = 6

// PaymentType names the priced component a commission derives from.
type PaymentType string

const (
	PaymentTypeBase   PaymentType = "base"
	PaymentTypeCustom PaymentType = "custom"
)

// CommissionStatus tracks the payout of a commission record.
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusPaid    CommissionStatus = "paid"
	CommissionStatusFailed  CommissionStatus = "failed"
)

// CommissionRecord is one referral commission component for one payment.
// (Signature, Type) is unique.
type CommissionRecord struct {
	Signature      string           `json:"signature"`
	Type           PaymentType      `json:"type"`
	ReferrerID     int64            `json:"referrer_id"`
	ReferredUserID int64            `json:"referred_user_id"`
	Amount         decimal.Decimal  `json:"amount"`
	Status         CommissionStatus `json:"status"`
	PayoutTxHash   string           `json:"payout_tx_hash,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// CommissionBreakdown is the computed split sent with a payout.
type CommissionBreakdown struct {
	Base   decimal.Decimal `json:"base_commission"`
	Custom decimal.Decimal `json:"custom_commission"`
	Total  decimal.Decimal `json:"total_commission"`
}

// RoundSOL rounds half-up to CommissionPrecision decimals.
func RoundSOL(d decimal.Decimal) decimal.Decimal {
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative amounts used here.
	return d.Round(CommissionPrecision)
}

// CommissionRates are the referral percentages.
type CommissionRates struct {
	Token  decimal.Decimal
	Custom decimal.Decimal
}

// ComputeCommission derives the breakdown for a quote.
func ComputeCommission(q Quote, rates CommissionRates) CommissionBreakdown {
	base := RoundSOL(q.Base.Mul(rates.Token))
	custom := decimal.Zero
	if q.CustomPaid.Sign() > 0 {
		custom = RoundSOL(q.CustomPaid.Mul(rates.Custom))
	}
	return CommissionBreakdown{
		Base:   base,
		Custom: custom,
		Total:  RoundSOL(base.Add(custom)),
	}
}

// PayoutBreakdown is the detail attached to a single payout call.
type PayoutBreakdown struct {
	Signature        string          `json:"signature"`
	BaseCommission   decimal.Decimal `json:"base_commission"`
	CustomCommission decimal.Decimal `json:"custom_commission"`
	TotalCommission  decimal.Decimal `json:"total_commission"`
	TokenCost        decimal.Decimal `json:"token_cost"`
	CustomPrice      decimal.Decimal `json:"custom_price"`
	CustomEnding     string          `json:"custom_ending"`
	Type             string          `json:"type"`
}

// CommissionResult reports what a settlement did.
type CommissionResult struct {
	Signature    string              `json:"signature"`
	Settled      bool                `json:"settled"` // false for no-op outcomes
	Reason       string              `json:"reason,omitempty"`
	ReferrerID   int64               `json:"referrer_id,omitempty"`
	Breakdown    CommissionBreakdown `json:"breakdown"`
	PayoutTxHash string              `json:"payout_tx_hash,omitempty"`
	Warning      string              `json:"warning,omitempty"`
}
