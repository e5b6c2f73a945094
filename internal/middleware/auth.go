package middleware

import (
	"strings"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/service"
	"classroom_chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserKey   = "user"
	ContextUserIDKey = "user_id"
)

type AuthMiddleware struct {
	gate service.SessionGate
	log  logger.Logger
}

func NewAuthMiddleware(gate service.SessionGate, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		gate: gate,
		log:  log,
	}
}

// RequireAuth пропускает запрос только после допуска через SessionGate.
// Для WebSocket это происходит до upgrade, поэтому отказ - обычный HTTP 401
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := m.gate.Admit(c.Request.Context(), Credential(c))
		if err != nil {
			m.log.Debug("Request not admitted", "error", err, "path", c.Request.URL.Path)
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Next()
	}
}

// Credential берет токен из "Authorization: Bearer ..." или из ?token= (браузерный WebSocket не умеет заголовки)
func Credential(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// CurrentUser возвращает пользователя, допущенного RequireAuth
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*domain.User)
	return user, ok && user != nil
}
