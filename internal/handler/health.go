package handler

import (
	"net/http"

	"classroom_chat/internal/service"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	presence *service.PresenceRegistry
}

func NewHealthHandler(presence *service.PresenceRegistry) *HealthHandler {
	return &HealthHandler{presence: presence}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"service":      "classroom-chat",
		"online_users": len(h.presence.Snapshot()),
	})
}
