package service

import (
	"context"
	"log/slog"

	"chatd/internal/domain"
)

// AuditService records server events. A nil repository turns recording into
// logging only.
type AuditService struct {
	repo domain.AuditRepository
	log  *slog.Logger
}

func NewAuditService(repo domain.AuditRepository, log *slog.Logger) *AuditService {
	if log == nil {
		log = slog.Default()
	}
	return &AuditService{repo: repo, log: log.With("component", "audit")}
}

// Record logs the event and stores it. Storage failures are logged, never
// returned: auditing must not fail the operation being audited.
func (s *AuditService) Record(ctx context.Context, actor, action, detail string) {
	if s == nil {
		return
	}
	s.log.Info(action, "actor", actor, "detail", detail)
	if s.repo == nil {
		return
	}
	if err := s.repo.Record(ctx, domain.AuditEvent{Actor: actor, Action: action, Detail: detail}); err != nil {
		s.log.Warn("store audit event", "action", action, "err", err)
	}
}

func (s *AuditService) Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if s == nil || s.repo == nil {
		return nil, nil
	}
	return s.repo.Recent(ctx, limit)
}
