package domain

import "time"

// UserAccount is a chat user known to the referral program.
type UserAccount struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	ReferredBy   *int64    `json:"referred_by,omitempty"`
	PayoutWallet string    `json:"payout_wallet,omitempty"`
	BonusCredits int       `json:"bonus_credits"`
	CreatedAt    time.Time `json:"created_at"`
}

// HasPayoutWallet reports whether commissions can be sent to the user.
func (u *UserAccount) HasPayoutWallet() bool {
	return u != nil && u.PayoutWallet != ""
}
