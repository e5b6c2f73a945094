package repository

import (
	"classroom_chat/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Repositories struct {
	User        UserRepository
	Enrollment  EnrollmentRepository
	Group       GroupRepository
	Chat        ChatRepository
	ReadReceipt ReadReceiptRepository
	Audit       AuditRepository
	RateLimit   RateLimitRepository
	Presence    PresenceCache
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		User:        NewUserRepository(db, log),
		Enrollment:  NewEnrollmentRepository(db, log),
		Group:       NewGroupRepository(db, log),
		Chat:        NewChatRepository(db, log),
		ReadReceipt: NewReadReceiptRepository(db, log),
		Audit:       NewAuditRepository(db, log),
		RateLimit:   NewRateLimitRepository(redis, log),
		Presence:    NewPresenceCache(redis, log),
	}

	log.Info("Repositories initialized")

	return repos
}
