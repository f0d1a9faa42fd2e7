package postgres

import (
	"context"
	"testing"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommissions(now time.Time) []domain.CommissionRecord {
	return []domain.CommissionRecord{
		{Signature: "5sig", Type: domain.PaymentTypeBase, ReferrerID: 7, ReferredUserID: 100,
			Amount: decimal.RequireFromString("0.009"), Status: domain.CommissionStatusPending, CreatedAt: now, UpdatedAt: now},
		{Signature: "5sig", Type: domain.PaymentTypeCustom, ReferrerID: 7, ReferredUserID: 100,
			Amount: decimal.RequireFromString("0.015"), Status: domain.CommissionStatusPending, CreatedAt: now, UpdatedAt: now},
	}
}

func TestCommissionRepo_Claim(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	now := time.Now().UTC()
	recs := testCommissions(now)

	mock.ExpectBegin()
	for _, rec := range recs {
		mock.ExpectExec("INSERT INTO commissions").
			WithArgs(rec.Signature, string(rec.Type), rec.ReferrerID, rec.ReferredUserID,
				rec.Amount.String(), "pending", "", now, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.Claim(context.Background(), recs))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_Claim_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	recs := testCommissions(time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO commissions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	err = repo.Claim(context.Background(), recs)
	assert.ErrorIs(t, err, ports.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	at := time.Now().UTC()
	mock.ExpectExec("UPDATE commissions SET status").
		WithArgs("paid", "payout-hash", at, "5sig").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, repo.UpdateStatus(context.Background(), "5sig", domain.CommissionStatusPaid, "payout-hash", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommissionRepo_ListByReferrer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewCommissionRepo(mock)
	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"signature", "payment_type", "referrer_id", "referred_user_id",
		"amount", "status", "payout_tx_hash", "created_at", "updated_at"}).
		AddRow("5sig", "base", int64(7), int64(100), "0.009000000", "paid", "payout-hash", now, now)

	mock.ExpectQuery("SELECT .+ FROM commissions WHERE referrer_id").
		WithArgs(int64(7)).
		WillReturnRows(rows)

	out, err := repo.ListByReferrer(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.PaymentTypeBase, out[0].Type)
	assert.Equal(t, domain.CommissionStatusPaid, out[0].Status)
	assert.True(t, out[0].Amount.Equal(decimal.RequireFromString("0.009")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
