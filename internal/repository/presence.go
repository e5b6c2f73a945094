package repository

import (
	"context"

	"classroom_chat/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const onlineUsersKey = "chat:online:users"

// PresenceCache - зеркало онлайн-множества в Redis для дашбордов и других процессов.
// Источник истины - реестр соединений в памяти процесса
type PresenceCache interface {
	SetOnline(ctx context.Context, userID int64) error
	SetOffline(ctx context.Context, userID int64) error
	Reset(ctx context.Context) error
}

type presenceCache struct {
	rdb *redis.Client
	log logger.Logger
}

func NewPresenceCache(rdb *redis.Client, log logger.Logger) PresenceCache {
	return &presenceCache{rdb: rdb, log: log}
}

func (c *presenceCache) SetOnline(ctx context.Context, userID int64) error {
	if err := c.rdb.SAdd(ctx, onlineUsersKey, userID).Err(); err != nil {
		c.log.Warn("Failed to mark user online in Redis", "error", err, "user_id", userID)
		return err
	}
	return nil
}

func (c *presenceCache) SetOffline(ctx context.Context, userID int64) error {
	if err := c.rdb.SRem(ctx, onlineUsersKey, userID).Err(); err != nil {
		c.log.Warn("Failed to mark user offline in Redis", "error", err, "user_id", userID)
		return err
	}
	return nil
}

// Reset очищает зеркало при старте процесса: соединений прошлого запуска уже нет
func (c *presenceCache) Reset(ctx context.Context) error {
	return c.rdb.Del(ctx, onlineUsersKey).Err()
}
