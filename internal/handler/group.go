package handler

import (
	"net/http"

	"classroom_chat/internal/service"
	"classroom_chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	groupService service.GroupService
	log          logger.Logger
}

func NewGroupHandler(groupService service.GroupService, log logger.Logger) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		log:          log,
	}
}

// List возвращает группы текущего пользователя с составом
func (h *GroupHandler) List(c *gin.Context) {
	user, ok := userFrom(c)
	if !ok {
		return
	}

	groups, err := h.groupService.GetUserGroups(c.Request.Context(), user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}
