package service

import (
	"context"
	"sync"
	"time"

	"token-launch-gateway/internal/core/domain"
	"token-launch-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const auditQueueSize = 256

// AuditServiceImpl records operator actions. Entries are always logged and,
// when a repository is configured, persisted by a single background worker.
type AuditServiceImpl struct {
	repo  ports.AuditRepository
	log   zerolog.Logger
	queue chan *domain.AuditLog
	done  chan struct{}
	once  sync.Once
}

// NewAuditService creates a new audit service.
// If repo is nil, audit logs are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	s := &AuditServiceImpl{
		repo:  repo,
		log:   log,
		queue: make(chan *domain.AuditLog, auditQueueSize),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Log records an entry without blocking the caller. When the queue is full
// the entry is logged but not persisted.
func (s *AuditServiceImpl) Log(_ context.Context, entry *domain.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.log.Info().
		Str("operator", entry.Operator).
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("ip", entry.IPAddress).
		Msg("audit")

	if s.repo == nil {
		return
	}
	select {
	case s.queue <- entry:
	default:
		s.log.Warn().Str("action", string(entry.Action)).Msg("audit queue full, entry not persisted")
	}
}

// Close stops the worker after persisting queued entries.
func (s *AuditServiceImpl) Close() {
	s.once.Do(func() { close(s.queue) })
	<-s.done
}

func (s *AuditServiceImpl) run() {
	defer close(s.done)
	for entry := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
		}
		cancel()
	}
}
