package domain

import "github.com/shopspring/decimal"

// PricingTable holds the static price list.
type PricingTable struct {
	BasePrice         decimal.Decimal
	SuffixPrices      map[int]decimal.Decimal // suffix length -> SOL
	BonusSuffixLength int                     // only this length may be paid with a bonus credit
}

// Quote is the priced breakdown of one draft.
type Quote struct {
	SuffixLength int             `json:"suffix_length"`
	Base         decimal.Decimal `json:"base"`
	CustomPrice  decimal.Decimal `json:"custom_price"` // list price of the suffix
	CustomPaid   decimal.Decimal `json:"custom_paid"`  // zero when a bonus credit covers it
	Total        decimal.Decimal `json:"total"`
	UsedBonus    bool            `json:"used_bonus"`
}

// TotalLamports returns the amount due in lamports.
func (q Quote) TotalLamports() Lamports {
	return LamportsFromSOL(q.Total)
}

// DraftSnapshot freezes a draft and its price at the moment a payment is
// accepted for it. It is stored with the transaction record.
type DraftSnapshot struct {
	Draft Draft `json:"draft"`
	Quote Quote `json:"quote"`
}
