package dto

import (
	"time"

	"token-launch-gateway/internal/core/domain"
)

// DraftRequest is the finished draft the chat front-end submits.
type DraftRequest struct {
	SessionID    string `json:"session_id" binding:"required,max=128,safe_id"`
	UserID       int64  `json:"user_id" binding:"required,gt=0"`
	Username     string `json:"username" binding:"max=64"`
	Name         string `json:"name" binding:"required,max=32"`
	Symbol       string `json:"symbol" binding:"required,max=10"`
	Supply       uint64 `json:"supply" binding:"required,gt=0"`
	LogoRef      string `json:"logo_ref" binding:"required,max=2048"`
	LogoKind     string `json:"logo_kind" binding:"omitempty,oneof=url file"`
	Description  string `json:"description" binding:"max=500"`
	SenderWallet string `json:"sender_wallet" binding:"required,sol_wallet"`
	CustomSuffix string `json:"custom_suffix" binding:"omitempty,max=16,base58"`
	UseBonus     bool   `json:"use_bonus"`
}

// ToDomain converts the request into a workflow draft.
func (r DraftRequest) ToDomain() domain.Draft {
	return domain.Draft{
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Username:  r.Username,
		Token: domain.TokenMetadata{
			Name:        r.Name,
			Symbol:      r.Symbol,
			Supply:      r.Supply,
			LogoRef:     r.LogoRef,
			LogoKind:    domain.LogoKind(r.LogoKind),
			Description: r.Description,
		},
		SenderWallet: r.SenderWallet,
		CustomSuffix: r.CustomSuffix,
		UseBonus:     r.UseBonus,
	}
}

// QuoteResponse is the price breakdown, amounts in SOL.
type QuoteResponse struct {
	SuffixLength int    `json:"suffix_length"`
	Base         string `json:"base"`
	CustomPrice  string `json:"custom_price"`
	CustomPaid   string `json:"custom_paid"`
	Total        string `json:"total"`
	UsedBonus    bool   `json:"used_bonus"`
}

// ToQuoteResponse formats a quote for the wire.
func ToQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{
		SuffixLength: q.SuffixLength,
		Base:         q.Base.String(),
		CustomPrice:  q.CustomPrice.String(),
		CustomPaid:   q.CustomPaid.String(),
		Total:        q.Total.String(),
		UsedBonus:    q.UsedBonus,
	}
}

// SessionResponse describes a priced session waiting for, or past, payment.
type SessionResponse struct {
	SessionID    string        `json:"session_id"`
	Status       string        `json:"status"`
	SenderWallet string        `json:"sender_wallet"`
	Receiver     string        `json:"receiver"`
	Quote        QuoteResponse `json:"quote"`
	Signature    string        `json:"signature,omitempty"`
	ExpiresAt    string        `json:"expires_at"`
	CreatedAt    string        `json:"created_at"`
}

// ToSessionResponse formats a session for the wire.
func ToSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		SessionID:    s.ID,
		Status:       string(s.Status),
		SenderWallet: s.Draft.SenderWallet,
		Receiver:     s.Receiver,
		Quote:        ToQuoteResponse(s.Quote),
		Signature:    s.Signature,
		ExpiresAt:    s.ExpiresAt.UTC().Format(time.RFC3339),
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// TransferResponse is a matched on-chain payment.
type TransferResponse struct {
	Signature string `json:"signature"`
	Sender    string `json:"sender"`
	AmountSOL string `json:"amount_sol"`
	BlockTime string `json:"block_time"`
}

// CheckResponse is the result of a payment check.
type CheckResponse struct {
	SessionID string            `json:"session_id"`
	Result    string            `json:"result"`
	Expected  QuoteResponse     `json:"expected"`
	Transfer  *TransferResponse `json:"transfer,omitempty"`
}

// ToCheckResponse formats a check outcome for the wire.
func ToCheckResponse(o *domain.CheckOutcome) CheckResponse {
	resp := CheckResponse{
		SessionID: o.SessionID,
		Result:    string(o.Result),
		Expected:  ToQuoteResponse(o.Expected),
	}
	if o.Transfer != nil {
		resp.Transfer = &TransferResponse{
			Signature: o.Transfer.Signature,
			Sender:    o.Transfer.Sender,
			AmountSOL: o.Transfer.Amount.SOL().String(),
			BlockTime: o.Transfer.BlockTime.UTC().Format(time.RFC3339),
		}
	}
	return resp
}

// RegisterUserRequest registers a chat user, optionally with a referrer.
type RegisterUserRequest struct {
	UserID     int64  `json:"user_id" binding:"required,gt=0"`
	Username   string `json:"username" binding:"max=64"`
	ReferrerID *int64 `json:"referrer_id,omitempty" binding:"omitempty,gt=0"`
}

// PayoutWalletRequest sets where a referrer's commissions go.
type PayoutWalletRequest struct {
	Wallet string `json:"wallet" binding:"required,sol_wallet"`
}

// UserResponse is a referral program account.
type UserResponse struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username,omitempty"`
	ReferredBy   *int64 `json:"referred_by,omitempty"`
	PayoutWallet string `json:"payout_wallet,omitempty"`
	BonusCredits int    `json:"bonus_credits"`
}

// ToUserResponse formats an account for the wire.
func ToUserResponse(u *domain.UserAccount) UserResponse {
	return UserResponse{
		UserID:       u.UserID,
		Username:     u.Username,
		ReferredBy:   u.ReferredBy,
		PayoutWallet: u.PayoutWallet,
		BonusCredits: u.BonusCredits,
	}
}

// LoginRequest is the request body for operator login.
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=128"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// TransactionResponse is one ledger record.
type TransactionResponse struct {
	Signature    string             `json:"signature"`
	Sender       string             `json:"sender"`
	AmountSOL    string             `json:"amount_sol"`
	State        string             `json:"state"`
	Attempts     int                `json:"attempts"`
	SessionID    string             `json:"session_id,omitempty"`
	TokenAddress string             `json:"token_address,omitempty"`
	BlockTime    string             `json:"block_time"`
	UpdatedAt    string             `json:"updated_at"`
	Commissions  []CommissionRecord `json:"commissions,omitempty"`
}

// CommissionRecord is one commission line of a transaction.
type CommissionRecord struct {
	Type         string `json:"type"`
	ReferrerID   int64  `json:"referrer_id"`
	Amount       string `json:"amount"`
	Status       string `json:"status"`
	PayoutTxHash string `json:"payout_tx_hash,omitempty"`
}

// ToTransactionResponse formats a ledger record for the wire.
func ToTransactionResponse(r *domain.TransactionRecord) TransactionResponse {
	resp := TransactionResponse{
		Signature: r.Signature,
		Sender:    r.Sender,
		AmountSOL: r.Amount.SOL().String(),
		State:     string(r.State),
		Attempts:  r.Attempts,
		BlockTime: r.BlockTime.UTC().Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.Snapshot != nil {
		resp.SessionID = r.Snapshot.Draft.SessionID
	}
	if r.Result != nil {
		resp.TokenAddress = r.Result.TokenAddress
	}
	return resp
}

// ToCommissionRecords formats commission lines for the wire.
func ToCommissionRecords(recs []domain.CommissionRecord) []CommissionRecord {
	out := make([]CommissionRecord, 0, len(recs))
	for _, c := range recs {
		out = append(out, CommissionRecord{
			Type:         string(c.Type),
			ReferrerID:   c.ReferrerID,
			Amount:       c.Amount.String(),
			Status:       string(c.Status),
			PayoutTxHash: c.PayoutTxHash,
		})
	}
	return out
}

// TransactionListResponse wraps a ledger listing.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Count int                   `json:"count"`
	Limit int                   `json:"limit"`
}

// ReservationResponse is one wallet reservation.
type ReservationResponse struct {
	Wallet     string `json:"wallet"`
	SessionID  string `json:"session_id"`
	ReservedAt string `json:"reserved_at"`
	Stale      bool   `json:"stale"`
}

// SweepResponse reports how many stale reservations were freed.
type SweepResponse struct {
	Released int `json:"released"`
}

// ReleaseResponse reports whether a reservation was dropped.
type ReleaseResponse struct {
	Wallet   string `json:"wallet"`
	Released bool   `json:"released"`
}
