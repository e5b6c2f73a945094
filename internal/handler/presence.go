package handler

import (
	"net/http"

	"classroom_chat/internal/service"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presence *service.PresenceRegistry
}

func NewPresenceHandler(presence *service.PresenceRegistry) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

func (h *PresenceHandler) Online(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"onlineUserIds": h.presence.Snapshot()})
}
