package badgerdb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(sig, sender string, created time.Time) *domain.TransactionRecord {
	return domain.NewTransactionRecord(domain.Transfer{
		Signature: sig,
		Sender:    sender,
		Receiver:  "11111111111111111111111111111111",
		Amount:    120_000_000,
		BlockTime: created,
	}, created)
}

func TestLedgerRepo_Lifecycle(t *testing.T) {
	repo := NewLedgerRepo(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	got, err := repo.Get(ctx, "sig1")
	require.NoError(t, err)
	assert.Nil(t, got)

	inserted, err := repo.InsertIfAbsent(ctx, testRecord("sig1", "walletA", now))
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = repo.InsertIfAbsent(ctx, testRecord("sig1", "walletA", now))
	require.NoError(t, err)
	assert.False(t, inserted)

	snap := &domain.DraftSnapshot{Draft: domain.Draft{SessionID: "s1"}}
	require.NoError(t, repo.Transition(ctx, ports.Transition{Signature: "sig1", From: domain.TxStateNew, To: domain.TxStateInProcess, Snapshot: snap, At: now}))
	err = repo.Transition(ctx, ports.Transition{Signature: "sig1", From: domain.TxStateNew, To: domain.TxStateInProcess, At: now})
	assert.ErrorIs(t, err, ports.ErrStateConflict)

	require.NoError(t, repo.Transition(ctx, ports.Transition{Signature: "sig1", From: domain.TxStateInProcess, To: domain.TxStateCreated,
		Result: &domain.MintResult{TokenAddress: "mint"}, At: now}))

	got, err = repo.Get(ctx, "sig1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.TxStateCreated, got.State)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "s1", got.Snapshot.Draft.SessionID)
	assert.Equal(t, "mint", got.Result.TokenAddress)

	err = repo.Transition(ctx, ports.Transition{Signature: "sig1", From: domain.TxStateCreated, To: domain.TxStateNew, At: now})
	assert.ErrorIs(t, err, ports.ErrStateConflict, "created is terminal")
}

func TestLedgerRepo_ConcurrentClaimHasOneWinner(t *testing.T) {
	repo := NewLedgerRepo(openTestDB(t))
	ctx := context.Background()
	_, err := repo.InsertIfAbsent(ctx, testRecord("sig1", "walletA", time.Now()))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Transition(ctx, ports.Transition{Signature: "sig1", From: domain.TxStateNew, To: domain.TxStateInProcess, At: time.Now()})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestLedgerRepo_List(t *testing.T) {
	repo := NewLedgerRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := repo.InsertIfAbsent(ctx, testRecord(fmt.Sprintf("sig%d", i), "walletA", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := repo.InsertIfAbsent(ctx, testRecord("other", "walletB", base))
	require.NoError(t, err)

	out, err := repo.List(ctx, domain.TxFilter{Sender: "walletA", Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "sig2", out[0].Signature, "newest first")
	assert.Equal(t, "sig1", out[1].Signature)
}

func TestCommissionRepo_ClaimOnce(t *testing.T) {
	repo := NewCommissionRepo(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()
	recs := []domain.CommissionRecord{
		{Signature: "sig1", Type: domain.PaymentTypeBase, ReferrerID: 7, Amount: decimal.RequireFromString("0.009"), Status: domain.CommissionStatusPending, CreatedAt: now},
		{Signature: "sig1", Type: domain.PaymentTypeCustom, ReferrerID: 7, Amount: decimal.RequireFromString("0.015"), Status: domain.CommissionStatusPending, CreatedAt: now},
	}
	require.NoError(t, repo.Claim(ctx, recs))
	assert.ErrorIs(t, repo.Claim(ctx, recs[:1]), ports.ErrDuplicate)

	require.NoError(t, repo.UpdateStatus(ctx, "sig1", domain.CommissionStatusPaid, "hash", now))
	got, err := repo.ListBySignature(ctx, "sig1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, domain.CommissionStatusPaid, r.Status)
		assert.Equal(t, "hash", r.PayoutTxHash)
	}

	byRef, err := repo.ListByReferrer(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, byRef, 2)
	byRef, err = repo.ListByReferrer(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, byRef)
}

func TestUserRepo(t *testing.T) {
	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, &domain.UserAccount{UserID: 100, BonusCredits: 1})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = repo.Create(ctx, &domain.UserAccount{UserID: 100, BonusCredits: 9})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, repo.SetPayoutWallet(ctx, 100, "walletB"))
	assert.Error(t, repo.SetPayoutWallet(ctx, 999, "walletB"))

	ok, err := repo.ConsumeBonus(ctx, 100, "sig1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ConsumeBonus(ctx, 100, "sig1")
	require.NoError(t, err)
	assert.False(t, ok, "once per signature")
	ok, err = repo.ConsumeBonus(ctx, 100, "sig2")
	require.NoError(t, err)
	assert.False(t, ok, "never below zero")

	u, err := repo.Get(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, u.BonusCredits)
	assert.Equal(t, "walletB", u.PayoutWallet)
}

func TestDB_Health(t *testing.T) {
	db, err := Open("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "badger", db.Name())
	assert.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(context.Background()))
}
