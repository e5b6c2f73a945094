package handler

import (
	"classroom_chat/internal/config"
	"classroom_chat/internal/protocol"
	"classroom_chat/internal/service"
	"classroom_chat/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Chat      *ChatHandler
	Group     *GroupHandler
	Presence  *PresenceHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, log logger.Logger) *Handlers {
	validator := protocol.NewValidator(cfg.Messaging.MaxMessageLength)

	return &Handlers{
		Health:    NewHealthHandler(services.Presence),
		Chat:      NewChatHandler(services.Chat, validator, log),
		Group:     NewGroupHandler(services.Group, log),
		Presence:  NewPresenceHandler(services.Presence),
		WebSocket: NewWebSocketHandler(services, validator, cfg, log.With("component", "websocket")),
	}
}
