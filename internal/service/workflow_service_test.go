package service

import (
	"context"
	"sync"
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

// recordingNotifier keeps every message in submission order.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) kinds() []domain.MessageKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.MessageKind, 0, len(n.msgs))
	for _, m := range n.msgs {
		out = append(out, m.Kind)
	}
	return out
}

type workflowTestDeps struct {
	svc          *WorkflowServiceImpl
	source       *mocks.MockTransferSource
	minter       *mocks.MockMinter
	payout       *mocks.MockPayoutSender
	ledger       *LedgerServiceImpl
	reservations *ReservationServiceImpl
	users        *memory.UserRepository
	notifier     *recordingNotifier
}

func setupWorkflow(t *testing.T) *workflowTestDeps {
	ctrl := gomock.NewController(t)
	d := &workflowTestDeps{
		source:   mocks.NewMockTransferSource(ctrl),
		minter:   mocks.NewMockMinter(ctrl),
		payout:   mocks.NewMockPayoutSender(ctrl),
		ledger:   newTestLedger(),
		users:    memory.NewUserRepository(),
		notifier: &recordingNotifier{},
	}
	log := zerolog.Nop()
	policy := NewAccessPolicy([]int64{666}, nil)
	d.reservations = NewReservationService(memory.NewReservationStore(), d.ledger, 10*time.Minute, log)
	matcher := NewMatcherService(d.source, d.ledger, MatcherConfig{
		Receiver: receiver,
		Lookback: 30 * time.Minute,
		Epsilon:  sol("0.0001"),
	}, log)
	mint := NewMintService(d.minter, d.ledger, d.reservations, d.users, MintConfig{MaxConcurrent: 1, Network: "devnet"}, log)
	commissions := NewCommissionService(d.ledger, d.users, memory.NewCommissionRepository(), d.payout, policy,
		domain.CommissionRates{Token: sol("0.10"), Custom: sol("0.50")}, log)
	d.svc = NewWorkflowService(WorkflowDeps{
		Pricing:      testPricing(t),
		Reservations: d.reservations,
		Matcher:      matcher,
		Ledger:       d.ledger,
		Minter:       mint,
		Commissions:  commissions,
		Users:        d.users,
		Notifier:     d.notifier,
		Policy:       policy,
	}, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.svc.Shutdown(ctx)
	})
	return d
}

func (d *workflowTestDeps) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.svc.Shutdown(ctx))
}

func TestWorkflow_DraftReadyReservesWallet(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()

	sess, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)
	assert.Equal(t, domain.SessionWaitingPayment, sess.Status)
	assert.Equal(t, receiver, sess.Receiver)
	assert.True(t, sess.Quote.Total.Equal(sol("0.12")))
	assert.Equal(t, "MCAT", sess.Draft.Token.Symbol)
	assert.Equal(t, "Moon Cat Meme Coin", sess.Draft.Token.Description)

	_, err = d.svc.OnDraftReady(ctx, testDraft("s2", walletA))
	assert.True(t, apperror.HasCode(err, "RSV_001"))

	require.NoError(t, d.svc.Cancel(ctx, "s1"))
	_, err = d.svc.OnDraftReady(ctx, testDraft("s2", walletA))
	require.NoError(t, err)
}

func TestWorkflow_DraftReadyRejections(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()

	excluded := testDraft("s1", walletA)
	excluded.UserID = 666
	_, err := d.svc.OnDraftReady(ctx, excluded)
	assert.True(t, apperror.HasCode(err, "VAL_003"))

	bad := testDraft("s1", "nope")
	_, err = d.svc.OnDraftReady(ctx, bad)
	assert.True(t, apperror.HasCode(err, "VAL_001"))

	unpriced := testDraft("s1", walletA)
	unpriced.CustomSuffix = "abc"
	_, err = d.svc.OnDraftReady(ctx, unpriced)
	assert.True(t, apperror.HasCode(err, "VAL_002"))

	bonus := testDraft("s1", walletA)
	bonus.UseBonus = true
	_, err = d.svc.OnDraftReady(ctx, bonus)
	assert.True(t, apperror.HasCode(err, "VAL_001"), "no credits")
}

func TestWorkflow_DraftReadyWithBonus(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	_, err := d.users.Create(ctx, &domain.UserAccount{UserID: 100, BonusCredits: 1})
	require.NoError(t, err)

	draft := testDraft("s1", walletA)
	draft.UseBonus = true
	sess, err := d.svc.OnDraftReady(ctx, draft)
	require.NoError(t, err)
	assert.True(t, sess.Quote.UsedBonus)
	assert.True(t, sess.Quote.Total.Equal(sol("0.09")))
}

func TestWorkflow_PaymentNotFound(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	_, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return(nil, nil)
	out, err := d.svc.OnPaymentCheckRequested(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckNotFound, out.Result)

	_, err = d.svc.OnPaymentCheckRequested(ctx, "missing")
	assert.True(t, apperror.HasCode(err, "VAL_004"))
}

func TestWorkflow_FullCreation(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	ref := int64(7)
	_, err := d.users.Create(ctx, &domain.UserAccount{UserID: 7, PayoutWallet: walletB})
	require.NoError(t, err)
	_, err = d.users.Create(ctx, &domain.UserAccount{UserID: 100, ReferredBy: &ref})
	require.NoError(t, err)

	_, err = d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	tr := transfer("sig1", walletA, "0.12", time.Now().Add(-time.Minute))
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{tr}, nil)
	d.minter.EXPECT().Mint(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.MintParams, onLine func(string)) (*domain.MintResult, error) {
			onLine("Creating token...")
			onLine("Token created successfully")
			return &domain.MintResult{TokenAddress: "MintPump"}, nil
		})
	d.payout.EXPECT().Send(gomock.Any(), walletB, gomock.Any(), gomock.Any()).Return("hash", nil)

	out, err := d.svc.OnPaymentCheckRequested(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckStarted, out.Result)
	assert.Equal(t, "sig1", out.Transfer.Signature)

	d.wait(t)

	assert.Equal(t, []domain.MessageKind{
		domain.MessageProgress,
		domain.MessageProgress,
		domain.MessageTokenCreated,
		domain.MessageCommissionPaid,
	}, d.notifier.kinds())

	class, err := d.ledger.Classify(ctx, "sig1")
	require.NoError(t, err)
	assert.Equal(t, domain.ClassCreated, class)

	_, err = d.svc.GetSession(ctx, "s1")
	assert.True(t, apperror.HasCode(err, "VAL_004"), "session discarded after success")

	holder, err := d.reservations.Holder(ctx, walletA)
	require.NoError(t, err)
	assert.Nil(t, holder)
}

func TestWorkflow_UsedPaymentIsNotReminted(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	tr := transfer("sig1", walletA, "0.12", time.Now().Add(-time.Minute))
	require.NoError(t, d.ledger.MarkInProcess(ctx, tr, domain.DraftSnapshot{}))
	require.NoError(t, d.ledger.MarkCreated(ctx, "sig1", domain.MintResult{}))

	_, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{tr}, nil)
	out, err := d.svc.OnPaymentCheckRequested(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckAlreadyUsed, out.Result)
}

func TestWorkflow_MintFailureReopensSession(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	_, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	tr := transfer("sig1", walletA, "0.12", time.Now().Add(-time.Minute))
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{tr}, nil)
	d.minter.EXPECT().Mint(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, assert.AnError)

	out, err := d.svc.OnPaymentCheckRequested(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckStarted, out.Result)
	d.wait(t)

	assert.Equal(t, []domain.MessageKind{domain.MessageCreationFailed}, d.notifier.kinds())

	sess, err := d.svc.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionWaitingPayment, sess.Status)

	holder, err := d.reservations.Holder(ctx, walletA)
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, "s1", holder.SessionID)

	class, err := d.ledger.Classify(ctx, "sig1")
	require.NoError(t, err)
	assert.Equal(t, domain.ClassNew, class, "payment can be retried")
}

func TestWorkflow_CheckWhileCreating(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	_, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	release := make(chan struct{})
	tr := transfer("sig1", walletA, "0.12", time.Now().Add(-time.Minute))
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{tr}, nil)
	d.minter.EXPECT().Mint(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domain.MintParams, func(string)) (*domain.MintResult, error) {
			<-release
			return &domain.MintResult{TokenAddress: "m"}, nil
		})

	out, err := d.svc.OnPaymentCheckRequested(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, domain.CheckStarted, out.Result)

	out, err = d.svc.OnPaymentCheckRequested(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckCreating, out.Result)

	err = d.svc.Cancel(ctx, "s1")
	assert.True(t, apperror.HasCode(err, "CHK_002"))

	close(release)
	d.wait(t)
}

func TestWorkflow_ShutdownRejectsNewWork(t *testing.T) {
	d := setupWorkflow(t)
	d.wait(t)
	_, err := d.svc.OnDraftReady(context.Background(), testDraft("s1", walletA))
	assert.True(t, apperror.HasCode(err, "SYS_002"))
}

// hookedGuard runs onReserve before each reservation.
type hookedGuard struct {
	*ReservationServiceImpl
	onReserve func(wallet string)
}

func (g *hookedGuard) Reserve(ctx context.Context, wallet, sessionID string) (bool, error) {
	if g.onReserve != nil {
		g.onReserve(wallet)
	}
	return g.ReservationServiceImpl.Reserve(ctx, wallet, sessionID)
}

// hookedLedger runs afterClaim once a payment is in process.
type hookedLedger struct {
	*LedgerServiceImpl
	afterClaim func()
}

func (l *hookedLedger) MarkInProcess(ctx context.Context, t domain.Transfer, snap domain.DraftSnapshot) error {
	if err := l.LedgerServiceImpl.MarkInProcess(ctx, t, snap); err != nil {
		return err
	}
	l.afterClaim()
	return nil
}

func TestWorkflow_RedraftWhileCreatingIsRejected(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	_, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	release := make(chan struct{})
	tr := transfer("sig1", walletA, "0.12", time.Now().Add(-time.Minute))
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{tr}, nil)
	d.minter.EXPECT().Mint(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domain.MintParams, func(string)) (*domain.MintResult, error) {
			<-release
			return &domain.MintResult{TokenAddress: "m"}, nil
		})

	out, err := d.svc.OnPaymentCheckRequested(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, domain.CheckStarted, out.Result)

	_, err = d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	assert.True(t, apperror.HasCode(err, "CHK_002"))
	_, err = d.svc.OnDraftReady(ctx, testDraft("s1", walletB))
	assert.True(t, apperror.HasCode(err, "CHK_002"))

	sess, err := d.svc.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCreating, sess.Status)
	assert.Equal(t, "sig1", sess.Signature)

	holder, err := d.reservations.Holder(ctx, walletB)
	require.NoError(t, err)
	assert.Nil(t, holder, "rejected draft holds no wallet")

	close(release)
	d.wait(t)
}

func TestWorkflow_RedraftDuringCheckIsRejected(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	_, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	var redraftErr error
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).DoAndReturn(
		func(context.Context, string, time.Time) ([]domain.Transfer, error) {
			_, redraftErr = d.svc.OnDraftReady(ctx, testDraft("s1", walletB))
			return nil, nil
		})

	out, err := d.svc.OnPaymentCheckRequested(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckNotFound, out.Result)
	assert.True(t, apperror.HasCode(redraftErr, "CHK_001"))

	sess, err := d.svc.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, walletA, sess.Draft.SenderWallet)
}

func TestWorkflow_RedraftLosesToCheckStartedDuringReserve(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	_, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	d.svc.reservations = &hookedGuard{
		ReservationServiceImpl: d.reservations,
		onReserve: func(wallet string) {
			if wallet != walletB {
				return
			}
			d.svc.mu.Lock()
			d.svc.sessions["s1"].session.Status = domain.SessionCreating
			d.svc.mu.Unlock()
		},
	}

	_, err = d.svc.OnDraftReady(ctx, testDraft("s1", walletB))
	assert.True(t, apperror.HasCode(err, "CHK_002"))

	sess, err := d.svc.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCreating, sess.Status, "running session kept")
	assert.Equal(t, walletA, sess.Draft.SenderWallet)

	holder, err := d.reservations.Holder(ctx, walletB)
	require.NoError(t, err)
	assert.Nil(t, holder, "fresh hold released")
	holder, err = d.reservations.Holder(ctx, walletA)
	require.NoError(t, err)
	require.NotNil(t, holder, "running session keeps its wallet")
	assert.Equal(t, "s1", holder.SessionID)
}

func TestWorkflow_ShutdownAfterClaimHandsPaymentBack(t *testing.T) {
	d := setupWorkflow(t)
	ctx := context.Background()
	_, err := d.svc.OnDraftReady(ctx, testDraft("s1", walletA))
	require.NoError(t, err)

	d.svc.ledger = &hookedLedger{
		LedgerServiceImpl: d.ledger,
		afterClaim:        func() { require.NoError(t, d.svc.Shutdown(ctx)) },
	}
	tr := transfer("sig1", walletA, "0.12", time.Now().Add(-time.Minute))
	d.source.EXPECT().RecentTransfers(gomock.Any(), receiver, gomock.Any()).Return([]domain.Transfer{tr}, nil)

	_, err = d.svc.OnPaymentCheckRequested(ctx, "s1")
	assert.True(t, apperror.HasCode(err, "SYS_002"))

	class, err := d.ledger.Classify(ctx, "sig1")
	require.NoError(t, err)
	assert.Equal(t, domain.ClassNew, class, "payment can be claimed after restart")

	holder, err := d.reservations.Holder(ctx, walletA)
	require.NoError(t, err)
	assert.Nil(t, holder)
}
