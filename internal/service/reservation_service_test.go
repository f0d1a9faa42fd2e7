package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-launch-gateway/internal/adapter/storage/memory"
	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports/mocks"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stubInProcess map[string]bool

func (s stubInProcess) HasInProcess(_ context.Context, sender string) (bool, error) {
	return s[sender], nil
}

func TestReservationService_Exclusive(t *testing.T) {
	ctx := context.Background()
	svc := NewReservationService(memory.NewReservationStore(), stubInProcess{}, time.Minute, zerolog.Nop())

	ok, err := svc.Reserve(ctx, walletA, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Reserve(ctx, walletA, "s2")
	require.NoError(t, err)
	assert.False(t, ok)

	released, err := svc.Release(ctx, walletA, "s2")
	require.NoError(t, err)
	assert.False(t, released, "only the holder releases")

	holder, err := svc.Holder(ctx, walletA)
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, "s1", holder.SessionID)

	released, err = svc.Release(ctx, walletA, "s1")
	require.NoError(t, err)
	assert.True(t, released)

	ok, err = svc.Reserve(ctx, walletA, "s2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReservationService_SweepSkipsInProcessWallets(t *testing.T) {
	ctx := context.Background()
	store := memory.NewReservationStore()
	svc := NewReservationService(store, stubInProcess{walletB: true}, time.Minute, zerolog.Nop())
	start := time.Now()
	svc.now = func() time.Time { return start }

	_, err := svc.Reserve(ctx, walletA, "s1")
	require.NoError(t, err)
	_, err = svc.Reserve(ctx, walletB, "s2")
	require.NoError(t, err)

	svc.now = func() time.Time { return start.Add(2 * time.Minute) }
	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, walletB, list[0].Wallet)
}

func TestReservationService_SweepKeepsFresh(t *testing.T) {
	ctx := context.Background()
	svc := NewReservationService(memory.NewReservationStore(), stubInProcess{}, time.Hour, zerolog.Nop())
	_, err := svc.Reserve(ctx, walletA, "s1")
	require.NoError(t, err)

	n, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReservationService_StoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockReservationStore(ctrl)
	svc := NewReservationService(store, stubInProcess{}, time.Minute, zerolog.Nop())
	ctx := context.Background()

	store.EXPECT().Acquire(ctx, gomock.Any(), 4*time.Minute).Return(false, errors.New("redis down"))
	_, err := svc.Reserve(ctx, walletA, "s1")
	assert.True(t, apperror.HasCode(err, "SYS_001"))

	store.EXPECT().List(ctx).Return(nil, errors.New("redis down"))
	_, err = svc.Sweep(ctx)
	assert.Error(t, err)
}

func TestReservationService_RunSweeperStopsOnCancel(t *testing.T) {
	svc := NewReservationService(memory.NewReservationStore(), stubInProcess{}, time.Minute, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestWalletReservationExpiry(t *testing.T) {
	now := time.Now()
	r := domain.WalletReservation{ReservedAt: now.Add(-2 * time.Minute)}
	assert.True(t, r.Expired(now, time.Minute))
	assert.False(t, r.Expired(now, 0))
}
