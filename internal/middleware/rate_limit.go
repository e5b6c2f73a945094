package middleware

import (
	"strconv"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/service"
	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RateLimitMiddleware struct {
	rateLimitService service.RateLimitService
	log              logger.Logger
}

func NewRateLimitMiddleware(rateLimitService service.RateLimitService, log logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		log:              log,
	}
}

// Limit ограничивает число запросов с одного IP за окно правила. Если Redis недоступен, запрос пропускается
func (m *RateLimitMiddleware) Limit(action string, rule domain.RateLimitRule) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rule.Key(action, c.ClientIP())

		allowed, err := m.rateLimitService.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			m.log.Warn("Rate limit check failed", "error", err, "key", key)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			_ = c.Error(apperrors.ErrRateLimited)
			c.Abort()
			return
		}

		c.Next()
	}
}
