package service

import (
	"context"
	"time"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/repository"
	"classroom_chat/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actor *domain.User, groupID *int64, eventType string, payload map[string]interface{}) error
}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actor *domain.User, groupID *int64, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	auditLog := &domain.AuditLog{
		EventTime:   time.Now(),
		ActorUserID: actor.ID,
		ActorRole:   actor.Role,
		GroupID:     groupID,
		EventType:   eventType,
		Payload:     payload,
	}

	return s.auditRepo.CreateLog(ctx, auditLog)
}
