package service

import (
	"context"
	"sort"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"
	"token-launch-gateway/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// classifier reports the ledger state of a signature.
type classifier interface {
	Classify(ctx context.Context, signature string) (domain.Classification, error)
}

// MatcherConfig tunes payment matching.
type MatcherConfig struct {
	Receiver     string
	Lookback     time.Duration
	Epsilon      decimal.Decimal // SOL
	QueryTimeout time.Duration
}

// MatchRequest describes the payment a session is waiting for.
type MatchRequest struct {
	Sender string
	Quotes []domain.Quote // accepted totals
}

// Match is a transfer that satisfies a MatchRequest.
type Match struct {
	Transfer domain.Transfer
	Quote    domain.Quote // the quote whose total the transfer paid
	Class    domain.Classification
}

// MatcherServiceImpl finds the on-chain transfer for a waiting session.
type MatcherServiceImpl struct {
	source ports.TransferSource
	ledger classifier
	cfg    MatcherConfig
	now    func() time.Time
	log    zerolog.Logger
}

// NewMatcherService creates a new MatcherServiceImpl.
func NewMatcherService(source ports.TransferSource, ledger classifier, cfg MatcherConfig, log zerolog.Logger) *MatcherServiceImpl {
	return &MatcherServiceImpl{
		source: source,
		ledger: ledger,
		cfg:    cfg,
		now:    time.Now,
		log:    log,
	}
}

// Receiver returns the address payments are sent to.
func (s *MatcherServiceImpl) Receiver() string {
	return s.cfg.Receiver
}

// FindTransfer returns zero or one matching transfer with its ledger
// classification. Among several matches the newest one not yet used for a
// token wins; if all were used, the newest used one is returned.
func (s *MatcherServiceImpl) FindTransfer(ctx context.Context, req MatchRequest) (*Match, error) {
	since := s.now().Add(-s.cfg.Lookback)

	qctx := ctx
	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	transfers, err := s.source.RecentTransfers(qctx, s.cfg.Receiver, since)
	if err != nil {
		s.log.Warn().Err(err).Str("sender", req.Sender).Msg("transfer query failed")
		return nil, apperror.ErrChainUnavailable(err)
	}

	candidates := make([]Match, 0, 2)
	for _, t := range transfers {
		if t.Sender != req.Sender || t.BlockTime.Before(since) {
			continue
		}
		if s.cfg.Receiver != "" && t.Receiver != "" && t.Receiver != s.cfg.Receiver {
			continue
		}
		q, ok := s.quoteFor(t.Amount, req.Quotes)
		if !ok {
			continue
		}
		candidates = append(candidates, Match{Transfer: t, Quote: q})
	}
	if len(candidates) == 0 {
		s.log.Info().Str("sender", req.Sender).Int("scanned", len(transfers)).Msg("no matching transfer")
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Transfer.BlockTime.After(candidates[j].Transfer.BlockTime)
	})

	var used *Match
	for i := range candidates {
		c := &candidates[i]
		class, err := s.ledger.Classify(ctx, c.Transfer.Signature)
		if err != nil {
			return nil, err
		}
		c.Class = class
		if class != domain.ClassCreated {
			s.logMatch(c)
			return c, nil
		}
		if used == nil {
			used = c
		}
	}
	s.logMatch(used)
	return used, nil
}

// quoteFor returns the first quote whose total equals amount within epsilon.
func (s *MatcherServiceImpl) quoteFor(amount domain.Lamports, quotes []domain.Quote) (domain.Quote, bool) {
	paid := amount.SOL()
	for _, q := range quotes {
		if paid.Sub(q.Total).Abs().LessThanOrEqual(s.cfg.Epsilon) {
			return q, true
		}
	}
	return domain.Quote{}, false
}

func (s *MatcherServiceImpl) logMatch(m *Match) {
	s.log.Info().
		Str("signature", m.Transfer.Signature).
		Str("sender", m.Transfer.Sender).
		Str("amount", m.Transfer.Amount.SOL().String()).
		Str("class", string(m.Class)).
		Msg("transfer matched")
}
