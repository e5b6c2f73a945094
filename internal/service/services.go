package service

import (
	"classroom_chat/internal/config"
	"classroom_chat/internal/repository"
	"classroom_chat/pkg/logger"
)

type Services struct {
	Gate      SessionGate
	Presence  *PresenceRegistry
	Group     GroupService
	Chat      ChatService
	Signal    SignalService
	RateLimit RateLimitService
	Audit     AuditService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	var verifier TokenVerifier
	if cfg.Auth.ServiceURL != "" {
		log.Info("Using external auth service for token verification", "url", cfg.Auth.ServiceURL)
		verifier = NewAuthServiceClient(cfg.Auth.ServiceURL, cfg.Messaging.LookupTimeout)
	} else {
		verifier = NewJWTVerifier(cfg.JWT.AccessSecret)
	}

	presence := NewPresenceRegistry(repos.Presence, log.With("component", "presence"))
	locks := NewKeyedMutex()
	audit := NewAuditService(repos.Audit, log)
	signals := NewSignalService(repos.Group, repos.ReadReceipt, presence, log)

	return &Services{
		Gate:     NewSessionGate(verifier, repos.User, cfg.Messaging.LookupTimeout, log),
		Presence: presence,
		Group: NewGroupService(repos.Group, repos.User, repos.Enrollment, audit, presence, locks,
			cfg.Messaging.LookupTimeout, log),
		Chat:      NewChatService(repos.Chat, repos.Group, repos.User, signals, presence, locks, log),
		Signal:    signals,
		RateLimit: NewRateLimitService(repos.RateLimit, log),
		Audit:     audit,
	}
}
