package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports/mocks"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type matcherTestDeps struct {
	svc    *MatcherServiceImpl
	source *mocks.MockTransferSource
	ledger *LedgerServiceImpl
	now    time.Time
	quotes []domain.Quote
}

func setupMatcher(t *testing.T) *matcherTestDeps {
	ctrl := gomock.NewController(t)
	d := &matcherTestDeps{
		source: mocks.NewMockTransferSource(ctrl),
		ledger: newTestLedger(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	d.svc = NewMatcherService(d.source, d.ledger, MatcherConfig{
		Receiver:     receiver,
		Lookback:     30 * time.Minute,
		Epsilon:      sol("0.0001"),
		QueryTimeout: time.Second,
	}, zerolog.Nop())
	d.svc.now = func() time.Time { return d.now }
	q, err := testPricing(t).Total(4, false)
	require.NoError(t, err)
	d.quotes = []domain.Quote{q}
	return d
}

func TestMatcherService_NoTransfers(t *testing.T) {
	d := setupMatcher(t)
	ctx := context.Background()
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, d.now.Add(-30*time.Minute)).Return(nil, nil)

	m, err := d.svc.FindTransfer(ctx, MatchRequest{Sender: walletA, Quotes: d.quotes})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMatcherService_FiltersSenderAmountAndWindow(t *testing.T) {
	d := setupMatcher(t)
	ctx := context.Background()
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{
		transfer("other-sender", walletB, "0.12", d.now.Add(-time.Minute)),
		transfer("wrong-amount", walletA, "0.11", d.now.Add(-time.Minute)),
		transfer("too-old", walletA, "0.12", d.now.Add(-time.Hour)),
		transfer("within-epsilon", walletA, "0.12005", d.now.Add(-2*time.Minute)),
	}, nil)

	m, err := d.svc.FindTransfer(ctx, MatchRequest{Sender: walletA, Quotes: d.quotes})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "within-epsilon", m.Transfer.Signature)
	assert.Equal(t, domain.ClassUnknown, m.Class)
	assert.True(t, m.Quote.Total.Equal(sol("0.12")))
}

func TestMatcherService_NewestUnusedWins(t *testing.T) {
	d := setupMatcher(t)
	ctx := context.Background()
	older := transfer("older", walletA, "0.12", d.now.Add(-10*time.Minute))
	newer := transfer("newer", walletA, "0.12", d.now.Add(-time.Minute))

	require.NoError(t, d.ledger.MarkInProcess(ctx, newer, domain.DraftSnapshot{}))
	require.NoError(t, d.ledger.MarkCreated(ctx, "newer", domain.MintResult{}))

	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{older, newer}, nil)

	m, err := d.svc.FindTransfer(ctx, MatchRequest{Sender: walletA, Quotes: d.quotes})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "older", m.Transfer.Signature)
	assert.Equal(t, domain.ClassUnknown, m.Class)
}

func TestMatcherService_AllUsedReturnsNewestCreated(t *testing.T) {
	d := setupMatcher(t)
	ctx := context.Background()
	older := transfer("older", walletA, "0.12", d.now.Add(-10*time.Minute))
	newer := transfer("newer", walletA, "0.12", d.now.Add(-time.Minute))
	for _, tr := range []domain.Transfer{older, newer} {
		require.NoError(t, d.ledger.MarkInProcess(ctx, tr, domain.DraftSnapshot{}))
		require.NoError(t, d.ledger.MarkCreated(ctx, tr.Signature, domain.MintResult{}))
	}

	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{older, newer}, nil)

	m, err := d.svc.FindTransfer(ctx, MatchRequest{Sender: walletA, Quotes: d.quotes})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "newer", m.Transfer.Signature)
	assert.Equal(t, domain.ClassCreated, m.Class)
}

func TestMatcherService_InProcessReported(t *testing.T) {
	d := setupMatcher(t)
	ctx := context.Background()
	tr := transfer("sig", walletA, "0.12", d.now.Add(-time.Minute))
	require.NoError(t, d.ledger.MarkInProcess(ctx, tr, domain.DraftSnapshot{}))

	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{tr}, nil)

	m, err := d.svc.FindTransfer(ctx, MatchRequest{Sender: walletA, Quotes: d.quotes})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, domain.ClassInProcess, m.Class)
}

func TestMatcherService_BonusQuoteAcceptsFullPrice(t *testing.T) {
	d := setupMatcher(t)
	ctx := context.Background()
	pricing := testPricing(t)
	bonus, err := pricing.Total(4, true)
	require.NoError(t, err)

	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{
		transfer("full", walletA, "0.12", d.now.Add(-time.Minute)),
	}, nil)

	m, err := d.svc.FindTransfer(ctx, MatchRequest{Sender: walletA, Quotes: pricing.Variants(bonus)})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.False(t, m.Quote.UsedBonus, "full payment keeps the credit")
}

func TestMatcherService_SourceFailure(t *testing.T) {
	d := setupMatcher(t)
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return(nil, errors.New("rpc timeout"))

	_, err := d.svc.FindTransfer(context.Background(), MatchRequest{Sender: walletA, Quotes: d.quotes})
	assert.True(t, apperror.HasCode(err, "CHAIN_001"))
}
