package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/internal/observability"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// stageMarkers maps output fragments of the minting process to milestones.
// The first matching fragment wins.
var stageMarkers = []struct {
	fragment  string
	milestone domain.Milestone
}{
	{"=== STARTING FULL TOKEN CREATION PROCESS ===", domain.MilestoneStarted},
	{"Checking user payment", domain.MilestoneCheckingPayment},
	{"Payment confirmed", domain.MilestonePaymentVerified},
	{"Creating token...", domain.MilestoneCreatingToken},
	{"Token created successfully", domain.MilestoneTokenCreated},
	{"Uploading metadata to IPFS", domain.MilestoneUploadingMetadata},
	{"Metadata uploaded to IPFS", domain.MilestoneMetadataUploaded},
	{"Setting token metadata", domain.MilestoneSettingMetadata},
	{"Revoking token authorities", domain.MilestoneRevokingAuthorities},
	{"Tokens successfully minted", domain.MilestoneTokensMinted},
	{"tokens successfully sent to user", domain.MilestoneTokensSent},
	{"creation script executed successfully", domain.MilestoneCompleted},
}

// ParseMilestone maps one output line to a milestone.
func ParseMilestone(line string) (domain.Milestone, bool) {
	for _, m := range stageMarkers {
		if strings.Contains(line, m.fragment) {
			return m.milestone, true
		}
	}
	return "", false
}

// mintLedger is the part of the ledger the orchestrator drives.
type mintLedger interface {
	Get(ctx context.Context, signature string) (*domain.TransactionRecord, error)
	MarkCreated(ctx context.Context, signature string, result domain.MintResult) error
	MarkFailed(ctx context.Context, signature string) error
}

// walletReleaser frees a wallet reservation.
type walletReleaser interface {
	Release(ctx context.Context, wallet, sessionID string) (bool, error)
}

// MintRequest identifies an accepted payment and its frozen draft.
type MintRequest struct {
	Signature string
	Snapshot  domain.DraftSnapshot
}

// MintConfig tunes the orchestrator.
type MintConfig struct {
	MaxConcurrent int
	Network       string
	LogoDir       string // only logo files inside this directory are deleted
}

// MintServiceImpl runs the external minting process for payments the
// ledger has moved to in_process.
type MintServiceImpl struct {
	minter       ports.Minter
	ledger       mintLedger
	reservations walletReleaser
	users        ports.UserRepository
	slots        chan struct{}
	cfg          MintConfig
	log          zerolog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewMintService creates a new MintServiceImpl.
func NewMintService(
	minter ports.Minter,
	ledger mintLedger,
	reservations walletReleaser,
	users ports.UserRepository,
	cfg MintConfig,
	log zerolog.Logger,
) *MintServiceImpl {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &MintServiceImpl{
		minter:       minter,
		ledger:       ledger,
		reservations: reservations,
		users:        users,
		slots:        make(chan struct{}, cfg.MaxConcurrent),
		cfg:          cfg,
		log:          log,
		active:       make(map[string]struct{}),
	}
}

// Running reports whether this process is minting for signature.
func (s *MintServiceImpl) Running(signature string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[signature]
	return ok
}

// Create mints the token for an in_process payment and relays milestones
// to sink in arrival order. Caller cancellation does not stop a run once it
// has started. On failure the payment returns to new, the reservation is
// released and no retry is attempted.
func (s *MintServiceImpl) Create(ctx context.Context, req MintRequest, sink ports.ProgressSink) (*domain.MintResult, error) {
	ctx = context.WithoutCancel(ctx)
	draft := req.Snapshot.Draft
	log := s.log.With().Str("signature", req.Signature).Str("session_id", draft.SessionID).Logger()
	defer s.cleanupLogo(draft.Token, log)

	rec, err := s.ledger.Get(ctx, req.Signature)
	if err != nil {
		// MarkFailed only moves in_process records and cannot undo created.
		log.Error().Err(err).Msg("mint refused, payment record unreadable")
		if ferr := s.ledger.MarkFailed(ctx, req.Signature); ferr != nil {
			log.Error().Err(ferr).Msg("could not return payment to new")
		}
		s.release(ctx, draft, log)
		return nil, err
	}
	if rec == nil || rec.State != domain.TxStateInProcess {
		state := "unknown"
		if rec != nil {
			state = string(rec.State)
		}
		log.Error().Str("state", state).Msg("mint refused, payment not in process")
		s.release(ctx, draft, log)
		return nil, apperror.ErrInvalidTransition(state, string(domain.TxStateCreated))
	}

	s.mu.Lock()
	s.active[req.Signature] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, req.Signature)
		s.mu.Unlock()
	}()

	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	start := time.Now()
	last := domain.Milestone("")
	onLine := func(line string) {
		m, ok := ParseMilestone(line)
		if !ok || m == last {
			return
		}
		last = m
		log.Info().Str("milestone", string(m)).Msg("mint progress")
		if sink != nil {
			sink(domain.ProgressEvent{Signature: req.Signature, Milestone: m, Line: line})
		}
	}

	params := domain.MintParamsFrom(req.Signature, req.Snapshot)
	params.Network = s.cfg.Network
	log.Info().Str("symbol", params.Symbol).Msg("starting token creation")
	result, err := s.minter.Mint(ctx, params, onLine)
	if err == nil && result == nil {
		err = errors.New("minting process returned no result")
	}
	if err != nil {
		observability.Gateway().RecordMint("failed", time.Since(start))
		log.Error().Err(err).Msg("token creation failed")
		if ferr := s.ledger.MarkFailed(ctx, req.Signature); ferr != nil {
			log.Error().Err(ferr).Msg("could not return payment to new")
		}
		s.release(ctx, draft, log)
		return nil, apperror.ErrMintFailed(err)
	}
	observability.Gateway().RecordMint("created", time.Since(start))
	if result.Network == "" {
		result.Network = s.cfg.Network
	}

	// The token exists on chain now. A ledger failure leaves the record
	// in_process, which still blocks a second mint.
	if err := s.ledger.MarkCreated(ctx, req.Signature, *result); err != nil {
		log.Error().Err(err).Str("token", result.TokenAddress).Msg("token created but ledger not finalized")
	}

	if req.Snapshot.Quote.UsedBonus {
		consumed, err := s.users.ConsumeBonus(ctx, draft.UserID, req.Signature)
		switch {
		case err != nil:
			log.Error().Err(err).Int64("user_id", draft.UserID).Msg("bonus credit not consumed")
		case !consumed:
			log.Warn().Int64("user_id", draft.UserID).Msg("bonus credit already consumed or exhausted")
		default:
			log.Info().Int64("user_id", draft.UserID).Msg("bonus credit consumed")
		}
	}

	s.release(ctx, draft, log)
	log.Info().Str("token", result.TokenAddress).Msg("token created")
	return result, nil
}

func (s *MintServiceImpl) release(ctx context.Context, draft domain.Draft, log zerolog.Logger) {
	if _, err := s.reservations.Release(ctx, draft.SenderWallet, draft.SessionID); err != nil {
		log.Warn().Err(err).Str("wallet", draft.SenderWallet).Msg("wallet release failed")
	}
}

func (s *MintServiceImpl) cleanupLogo(token domain.TokenMetadata, log zerolog.Logger) {
	if token.LogoKind != domain.LogoKindFile || token.LogoRef == "" || s.cfg.LogoDir == "" {
		return
	}
	rel, err := filepath.Rel(s.cfg.LogoDir, token.LogoRef)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		log.Warn().Str("path", token.LogoRef).Msg("logo outside upload directory, not removed")
		return
	}
	if err := os.Remove(token.LogoRef); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", token.LogoRef).Msg("logo cleanup failed")
	}
}
