package handler

import (
	"fmt"
	"net/http"

	"classroom_chat/internal/protocol"
	"classroom_chat/internal/service"
	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	chatService service.ChatService
	validator   *protocol.Validator
	log         logger.Logger
}

func NewChatHandler(chatService service.ChatService, validator *protocol.Validator, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		validator:   validator,
		log:         log,
	}
}

// GetMessages - та же история, что get_messages, для первичной загрузки экрана
// GET /api/v1/messages?type=direct&recipientId=9 | ?type=group&groupId=3
func (h *ChatHandler) GetMessages(c *gin.Context) {
	user, ok := userFrom(c)
	if !ok {
		return
	}

	var req protocol.GetMessages
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(fmt.Errorf("%w: %v", apperrors.ErrValidation, err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		_ = c.Error(err)
		return
	}

	messages, err := h.chatService.History(c.Request.Context(), user, req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, protocol.MessageHistory{
		Type:        req.Type,
		RecipientID: req.RecipientID,
		GroupID:     req.GroupID,
		Messages:    messages,
	})
}
