package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/internal/observability"
	"token-launch-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Collaborators of the workflow, narrowed to what it calls.
type (
	quoter interface {
		Total(suffixLength int, bonusAvailable bool) (domain.Quote, error)
		Variants(q domain.Quote) []domain.Quote
	}
	walletGuard interface {
		Reserve(ctx context.Context, wallet, sessionID string) (bool, error)
		Release(ctx context.Context, wallet, sessionID string) (bool, error)
		TTL() time.Duration
	}
	transferFinder interface {
		FindTransfer(ctx context.Context, req MatchRequest) (*Match, error)
		Receiver() string
	}
	paymentClaimer interface {
		MarkInProcess(ctx context.Context, t domain.Transfer, snap domain.DraftSnapshot) error
		MarkFailed(ctx context.Context, signature string) error
	}
	tokenCreator interface {
		Create(ctx context.Context, req MintRequest, sink ports.ProgressSink) (*domain.MintResult, error)
	}
	settler interface {
		Settle(ctx context.Context, req SettleRequest) (*domain.CommissionResult, error)
	}
)

type sessionState struct {
	session  domain.Session
	checking bool
}

// WorkflowServiceImpl drives chat sessions from a confirmed draft to a
// created token. Sessions live in memory; everything that must survive a
// restart is in the ledger.
type WorkflowServiceImpl struct {
	pricing      quoter
	reservations walletGuard
	matcher      transferFinder
	ledger       paymentClaimer
	minter       tokenCreator
	commissions  settler
	users        ports.UserRepository
	notifier     ports.Notifier
	policy       *AccessPolicy
	now          func() time.Time
	log          zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionState
	closing  bool
	running  sync.WaitGroup
}

// WorkflowDeps groups the collaborators of NewWorkflowService.
type WorkflowDeps struct {
	Pricing      quoter
	Reservations walletGuard
	Matcher      transferFinder
	Ledger       paymentClaimer
	Minter       tokenCreator
	Commissions  settler
	Users        ports.UserRepository
	Notifier     ports.Notifier
	Policy       *AccessPolicy
}

// NewWorkflowService creates a new WorkflowServiceImpl.
func NewWorkflowService(deps WorkflowDeps, log zerolog.Logger) *WorkflowServiceImpl {
	return &WorkflowServiceImpl{
		pricing:      deps.Pricing,
		reservations: deps.Reservations,
		matcher:      deps.Matcher,
		ledger:       deps.Ledger,
		minter:       deps.Minter,
		commissions:  deps.Commissions,
		users:        deps.Users,
		notifier:     deps.Notifier,
		policy:       deps.Policy,
		now:          time.Now,
		log:          log,
		sessions:     make(map[string]*sessionState),
	}
}

// OnDraftReady prices a confirmed draft, reserves its sender wallet and
// opens a session waiting for payment. Confirming again for the same
// session replaces the draft unless a check or creation is running.
func (s *WorkflowServiceImpl) OnDraftReady(ctx context.Context, draft domain.Draft) (*domain.Session, error) {
	if s.isClosing() {
		return nil, apperror.ErrShuttingDown()
	}
	if s.policy.IsExcluded(draft.UserID) {
		return nil, apperror.ErrUserExcluded()
	}
	if draft.SessionID == "" {
		draft.SessionID = uuid.NewString()
	}
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	bonusAvailable := false
	if draft.UseBonus {
		user, err := s.users.Get(ctx, draft.UserID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if user == nil || user.BonusCredits <= 0 {
			return nil, apperror.Validation("use_bonus: no bonus credits left")
		}
		bonusAvailable = true
	}
	quote, err := s.pricing.Total(draft.SuffixLength(), bonusAvailable)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	err = replaceable(s.sessions[draft.SessionID])
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	ok, err := s.reservations.Reserve(ctx, draft.SenderWallet, draft.SessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrWalletReserved()
	}

	now := s.now().UTC()
	sess := domain.Session{
		ID:        draft.SessionID,
		Draft:     draft,
		Quote:     quote,
		Status:    domain.SessionWaitingPayment,
		Receiver:  s.matcher.Receiver(),
		ExpiresAt: now.Add(s.reservations.TTL()),
		CreatedAt: now,
	}
	// A check may have claimed a payment while the wallet was reserved.
	s.mu.Lock()
	prev := s.sessions[sess.ID]
	if err := replaceable(prev); err != nil {
		s.mu.Unlock()
		if prev.session.Draft.SenderWallet != draft.SenderWallet {
			s.releaseWallet(ctx, draft.SenderWallet, draft.SessionID)
		}
		return nil, err
	}
	s.sessions[sess.ID] = &sessionState{session: sess}
	s.mu.Unlock()
	if prev != nil && prev.session.Draft.SenderWallet != draft.SenderWallet {
		s.releaseWallet(ctx, prev.session.Draft.SenderWallet, draft.SessionID)
	}

	s.log.Info().
		Str("session_id", sess.ID).
		Int64("user_id", draft.UserID).
		Str("wallet", draft.SenderWallet).
		Str("total", quote.Total.String()).
		Bool("bonus", quote.UsedBonus).
		Msg("session waiting for payment")
	return &sess, nil
}

// OnPaymentCheckRequested looks for the session's payment and, when an
// unused one is found, claims it and starts token creation in the
// background. Only one check per session runs at a time.
func (s *WorkflowServiceImpl) OnPaymentCheckRequested(ctx context.Context, sessionID string) (*domain.CheckOutcome, error) {
	if s.isClosing() {
		return nil, apperror.ErrShuttingDown()
	}

	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil {
		s.mu.Unlock()
		return nil, apperror.ErrNotFound("Session")
	}
	sess := st.session
	switch {
	case sess.Status == domain.SessionCreating:
		s.mu.Unlock()
		return s.outcome(sess, domain.CheckCreating, nil), nil
	case st.checking:
		s.mu.Unlock()
		return s.outcome(sess, domain.CheckAlreadyChecking, nil), nil
	}
	st.checking = true
	s.mu.Unlock()
	defer s.endCheck(sessionID)

	draft := sess.Draft
	// Refresh the hold; a sweep may have released it while the user paid.
	ok, err := s.reservations.Reserve(ctx, draft.SenderWallet, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrWalletReserved()
	}

	match, err := s.matcher.FindTransfer(ctx, MatchRequest{
		Sender: draft.SenderWallet,
		Quotes: s.pricing.Variants(sess.Quote),
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		return s.outcome(sess, domain.CheckNotFound, nil), nil
	}
	switch match.Class {
	case domain.ClassCreated:
		return s.outcome(sess, domain.CheckAlreadyUsed, &match.Transfer), nil
	case domain.ClassInProcess:
		return s.outcome(sess, domain.CheckInProcess, &match.Transfer), nil
	}

	snap := domain.DraftSnapshot{Draft: draft, Quote: match.Quote}
	if err := s.ledger.MarkInProcess(ctx, match.Transfer, snap); err != nil {
		switch {
		case apperror.HasCode(err, apperror.ErrAlreadyCreated().Code):
			return s.outcome(sess, domain.CheckAlreadyUsed, &match.Transfer), nil
		case apperror.HasCode(err, apperror.ErrAlreadyInProcess().Code):
			return s.outcome(sess, domain.CheckInProcess, &match.Transfer), nil
		}
		return nil, err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		s.abandonClaim(ctx, sessionID, match.Transfer.Signature, draft.SenderWallet)
		return nil, apperror.ErrShuttingDown()
	}
	if cur := s.sessions[sessionID]; cur != nil {
		cur.session.Status = domain.SessionCreating
		cur.session.Signature = match.Transfer.Signature
		cur.session.Quote = match.Quote
		sess = cur.session
	}
	s.running.Add(1)
	s.mu.Unlock()

	go s.create(sessionID, match.Transfer.Signature, snap)

	return s.outcome(sess, domain.CheckStarted, &match.Transfer), nil
}

// create runs one token creation to completion. It is not tied to any
// request context.
func (s *WorkflowServiceImpl) create(sessionID, signature string, snap domain.DraftSnapshot) {
	defer s.running.Done()
	ctx := context.Background()
	log := s.log.With().Str("session_id", sessionID).Str("signature", signature).Logger()
	userID := snap.Draft.UserID

	sink := func(ev domain.ProgressEvent) {
		s.notify(ctx, domain.Message{
			SessionID: sessionID,
			UserID:    userID,
			Kind:      domain.MessageProgress,
			Signature: signature,
			Milestone: ev.Milestone,
		})
	}

	result, err := s.minter.Create(ctx, MintRequest{Signature: signature, Snapshot: snap}, sink)
	if err != nil {
		s.notify(ctx, domain.Message{
			SessionID: sessionID,
			UserID:    userID,
			Kind:      domain.MessageCreationFailed,
			Signature: signature,
			Error:     errorMessage(err),
		})
		s.reopen(ctx, sessionID, log)
		return
	}

	s.notify(ctx, domain.Message{
		SessionID: sessionID,
		UserID:    userID,
		Kind:      domain.MessageTokenCreated,
		Signature: signature,
		Result:    result,
	})

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	settled, err := s.commissions.Settle(ctx, SettleRequest{Signature: signature, UserID: userID, Snapshot: snap})
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("commission not settled")
	case settled.Warning != "":
		s.notify(ctx, domain.Message{
			SessionID: sessionID,
			UserID:    settled.ReferrerID,
			Kind:      domain.MessageCommissionWarning,
			Signature: signature,
			Error:     settled.Warning,
		})
	case settled.Settled:
		s.notify(ctx, domain.Message{
			SessionID: sessionID,
			UserID:    settled.ReferrerID,
			Kind:      domain.MessageCommissionPaid,
			Signature: signature,
		})
	}
}

// abandonClaim hands a claimed payment back to new when no creation will
// run for it.
func (s *WorkflowServiceImpl) abandonClaim(ctx context.Context, sessionID, signature, wallet string) {
	if err := s.ledger.MarkFailed(ctx, signature); err != nil {
		s.log.Error().Err(err).Str("signature", signature).Msg("could not return payment to new")
	}
	s.releaseWallet(ctx, wallet, sessionID)
	s.log.Warn().Str("session_id", sessionID).Str("signature", signature).Msg("payment claim abandoned, shutting down")
}

// reopen returns a session to waiting_payment after a failed creation so
// the user can check again. The orchestrator released the wallet; if
// another session took it meanwhile the session is dropped.
func (s *WorkflowServiceImpl) reopen(ctx context.Context, sessionID string, log zerolog.Logger) {
	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil {
		s.mu.Unlock()
		return
	}
	st.session.Status = domain.SessionWaitingPayment
	st.session.Signature = ""
	wallet := st.session.Draft.SenderWallet
	s.mu.Unlock()

	ok, err := s.reservations.Reserve(ctx, wallet, sessionID)
	if err == nil && ok {
		s.mu.Lock()
		if cur := s.sessions[sessionID]; cur != nil {
			cur.session.ExpiresAt = s.now().UTC().Add(s.reservations.TTL())
		}
		s.mu.Unlock()
		log.Info().Msg("session reopened for retry")
		return
	}
	log.Warn().Err(err).Str("wallet", wallet).Msg("wallet taken after failed creation, session dropped")
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Cancel drops a session and frees its wallet. A session whose token is
// being created cannot be cancelled.
func (s *WorkflowServiceImpl) Cancel(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil {
		s.mu.Unlock()
		return apperror.ErrNotFound("Session")
	}
	if st.session.Status == domain.SessionCreating {
		s.mu.Unlock()
		return apperror.ErrCreationRunning()
	}
	delete(s.sessions, sessionID)
	wallet := st.session.Draft.SenderWallet
	s.mu.Unlock()

	s.releaseWallet(ctx, wallet, sessionID)
	s.log.Info().Str("session_id", sessionID).Msg("session cancelled")
	return nil
}

// GetSession returns a copy of the session.
func (s *WorkflowServiceImpl) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.sessions[sessionID]
	if st == nil {
		return nil, apperror.ErrNotFound("Session")
	}
	sess := st.session
	return &sess, nil
}

// Shutdown stops accepting work and waits for running creations.
func (s *WorkflowServiceImpl) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replaceable rejects replacing a session whose payment is being checked
// or minted.
func replaceable(st *sessionState) error {
	switch {
	case st == nil:
		return nil
	case st.session.Status == domain.SessionCreating:
		return apperror.ErrCreationRunning()
	case st.checking:
		return apperror.ErrCheckInProgress()
	}
	return nil
}

func (s *WorkflowServiceImpl) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *WorkflowServiceImpl) endCheck(sessionID string) {
	s.mu.Lock()
	if st := s.sessions[sessionID]; st != nil {
		st.checking = false
	}
	s.mu.Unlock()
}

func (s *WorkflowServiceImpl) outcome(sess domain.Session, result domain.CheckResult, t *domain.Transfer) *domain.CheckOutcome {
	observability.Gateway().RecordCheck(string(result))
	s.log.Info().Str("session_id", sess.ID).Str("result", string(result)).Msg("payment check")
	return &domain.CheckOutcome{
		SessionID: sess.ID,
		Result:    result,
		Transfer:  t,
		Expected:  sess.Quote,
	}
}

func (s *WorkflowServiceImpl) releaseWallet(ctx context.Context, wallet, sessionID string) {
	if _, err := s.reservations.Release(ctx, wallet, sessionID); err != nil {
		s.log.Warn().Err(err).Str("wallet", wallet).Str("session_id", sessionID).Msg("wallet release failed")
	}
}

func (s *WorkflowServiceImpl) notify(ctx context.Context, msg domain.Message) {
	msg.Timestamp = s.now().UTC()
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("session_id", msg.SessionID).Str("kind", string(msg.Kind)).Msg("notification not queued")
	}
}

func errorMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}
