package handler

import (
	"context"
	"fmt"
	"net/http"

	"classroom_chat/internal/config"
	"classroom_chat/internal/domain"
	"classroom_chat/internal/middleware"
	"classroom_chat/internal/protocol"
	"classroom_chat/internal/service"
	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	upgrader  websocket.Upgrader
	validator *protocol.Validator
	presence  *service.PresenceRegistry
	groups    service.GroupService
	chat      service.ChatService
	signals   service.SignalService
	cfg       config.MessagingConfig
	log       logger.Logger
}

func NewWebSocketHandler(services *service.Services, validator *protocol.Validator, cfg *config.Config, log logger.Logger) *WebSocketHandler {
	allowed := make(map[string]struct{}, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = struct{}{}
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(allowed, origin)
			},
		},
		validator: validator,
		presence:  services.Presence,
		groups:    services.Group,
		chat:      services.Chat,
		signals:   services.Signal,
		cfg:       cfg.Messaging,
		log:       log,
	}
}

// HandleConnect вызывается после допуска в RequireAuth: ошибки до upgrade остаются обычными HTTP-ответами
func (h *WebSocketHandler) HandleConnect(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	groups, err := h.groups.GetUserGroups(c.Request.Context(), user.ID)
	if err != nil {
		h.log.Error("Failed to load groups for connection", "error", err, "user_id", user.ID)
		_ = c.Error(err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err, "user_id", user.ID)
		return
	}

	client := newWSClient(conn, user, h.cfg, h.log)
	go client.writePump()

	h.presence.Attach(client, func(online []int64) {
		client.sendEvent(protocol.Connected{UserID: user.ID, Groups: groups, OnlineUserIDs: online})
	})
	client.log.Info("WebSocket connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.disconnect(client)
	}()

	h.catchUpGroups(ctx, client, groups)

	client.readPump(func(frame []byte) {
		h.handleFrame(ctx, client, frame)
	})
}

// catchUpGroups досылает изменения состава, закоммиченные между загрузкой групп и Attach:
// их group_joined/group_left не нашли соединение в реестре
func (h *WebSocketHandler) catchUpGroups(ctx context.Context, client *wsClient, greeted []*domain.ChatGroup) {
	current, err := h.groups.GetUserGroups(ctx, client.user.ID)
	if err != nil {
		client.log.Warn("Failed to reload groups after connect", "error", err)
		return
	}

	known := make(map[int64]struct{}, len(greeted))
	for _, g := range greeted {
		known[g.ID] = struct{}{}
	}
	for _, g := range current {
		if _, ok := known[g.ID]; ok {
			delete(known, g.ID)
			continue
		}
		client.sendEvent(protocol.GroupJoined{ChatGroup: *g})
	}
	for _, g := range greeted {
		if _, gone := known[g.ID]; gone {
			client.sendEvent(protocol.GroupLeft{GroupID: g.ID})
		}
	}
}

// disconnect вызывается ровно один раз на соединение, из горутины чтения
func (h *WebSocketHandler) disconnect(client *wsClient) {
	client.close()
	if h.presence.Unregister(client) {
		h.signals.ForgetUser(client.user.ID)
	}
	client.log.Info("WebSocket disconnected")
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, client *wsClient, frame []byte) {
	intent, err := h.validator.DecodeIntent(frame)
	if err != nil {
		client.log.Debug("Malformed intent", "error", err)
		client.sendEvent(protocol.NewError(err))
		return
	}

	if err := h.dispatch(ctx, client, intent); err != nil {
		if apperrors.Code(err) == apperrors.CodeInternal {
			client.log.Error("Intent failed", "intent", intent.IntentType(), "error", err)
		} else {
			client.log.Debug("Intent rejected", "intent", intent.IntentType(), "error", err)
		}
		client.sendEvent(protocol.NewError(err))
	}
}

// dispatch - исчерпывающий разбор закрытого набора намерений
func (h *WebSocketHandler) dispatch(ctx context.Context, client *wsClient, intent protocol.Intent) error {
	user := client.user

	switch in := intent.(type) {
	case protocol.DirectMessage:
		_, err := h.chat.Send(ctx, user, protocol.Target{RecipientID: &in.RecipientID}, in.Content)
		return err

	case protocol.GroupMessage:
		_, err := h.chat.Send(ctx, user, protocol.Target{GroupID: &in.GroupID}, in.Content)
		return err

	case protocol.CreateGroup:
		_, err := h.groups.CreateGroup(ctx, user, in)
		return err

	case protocol.AddGroupMembers:
		_, err := h.groups.AddMembers(ctx, user, in.GroupID, in.MemberIDs)
		return err

	case protocol.RemoveGroupMembers:
		_, err := h.groups.RemoveMembers(ctx, user, in.GroupID, in.MemberIDs)
		return err

	case protocol.AddCourseStudents:
		_, err := h.groups.SyncCourseRoster(ctx, user, in.GroupID, in.CourseID)
		return err

	case protocol.GetMessages:
		messages, err := h.chat.History(ctx, user, in)
		if err != nil {
			return err
		}
		client.sendEvent(protocol.MessageHistory{
			Type:        in.Type,
			RecipientID: in.RecipientID,
			GroupID:     in.GroupID,
			Messages:    messages,
		})
		return nil

	case protocol.TypingStart:
		return h.signals.StartTyping(ctx, user, in.Target)

	case protocol.TypingStop:
		return h.signals.StopTyping(ctx, user, in.Target)

	case protocol.MarkRead:
		_, err := h.signals.MarkRead(ctx, user, in)
		return err

	case protocol.Ping:
		client.sendEvent(protocol.Pong{})
		return nil

	default:
		return fmt.Errorf("%w: unsupported intent %q", apperrors.ErrValidation, intent.IntentType())
	}
}

// userFrom нужен REST-обработчикам
func userFrom(c *gin.Context) (*domain.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
	}
	return user, ok
}
