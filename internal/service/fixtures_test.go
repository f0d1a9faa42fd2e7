package service

import (
	"testing"
	"time"

	"token-launch-gateway/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	walletA  = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	walletB  = "So11111111111111111111111111111111111111112"
	receiver = "11111111111111111111111111111111"
)

func testPricing(t *testing.T) *PricingServiceImpl {
	t.Helper()
	table, err := BuildPricingTable("0.09", map[string]string{
		"4": "0.03", "5": "0.10", "6": "0.20", "7": "0.35",
		"8": "0.50", "9": "0.75", "10": "1.00",
	}, 4)
	require.NoError(t, err)
	return NewPricingService(table)
}

func testDraft(sessionID, wallet string) domain.Draft {
	return domain.Draft{
		SessionID: sessionID,
		UserID:    100,
		Username:  "alice",
		Token: domain.TokenMetadata{
			Name:    "Moon Cat",
			Symbol:  "mcat",
			Supply:  1_000_000,
			LogoRef: "https://example.com/cat.png",
		},
		SenderWallet: wallet,
		CustomSuffix: "pump",
	}
}

func testSnapshot(t *testing.T, draft domain.Draft, bonus bool) domain.DraftSnapshot {
	t.Helper()
	draft.Normalize()
	q, err := testPricing(t).Total(draft.SuffixLength(), bonus)
	require.NoError(t, err)
	return domain.DraftSnapshot{Draft: draft, Quote: q}
}

func sol(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func transfer(sig, sender, amount string, at time.Time) domain.Transfer {
	return domain.Transfer{
		Signature: sig,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    domain.LamportsFromSOL(sol(amount)),
		BlockTime: at,
	}
}
