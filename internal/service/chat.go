package service

import (
	"context"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/protocol"
	"classroom_chat/internal/repository"
	"classroom_chat/pkg/logger"
)

// ChatService - маршрутизатор сообщений: сохраняет и раздает сообщение живым соединениям аудитории
type ChatService interface {
	Send(ctx context.Context, sender *domain.User, target protocol.Target, content string) (*domain.ChatMessage, error)
	History(ctx context.Context, requester *domain.User, req protocol.GetMessages) ([]*domain.ChatMessage, error)
}

type chatService struct {
	chatRepo  repository.ChatRepository
	groupRepo repository.GroupRepository
	userRepo  repository.UserRepository
	signals   SignalService
	notifier  Notifier
	locks     *KeyedMutex
	log       logger.Logger
}

func NewChatService(
	chatRepo repository.ChatRepository,
	groupRepo repository.GroupRepository,
	userRepo repository.UserRepository,
	signals SignalService,
	notifier Notifier,
	locks *KeyedMutex,
	log logger.Logger,
) ChatService {
	return &chatService{
		chatRepo:  chatRepo,
		groupRepo: groupRepo,
		userRepo:  userRepo,
		signals:   signals,
		notifier:  notifier,
		locks:     locks,
		log:       log,
	}
}

func (s *chatService) Send(ctx context.Context, sender *domain.User, target protocol.Target, content string) (*domain.ChatMessage, error) {
	message := &domain.ChatMessage{
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    content,
	}

	var audience []int64
	switch {
	case target.RecipientID != nil:
		recipientID := *target.RecipientID
		if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
			return nil, internalError("load recipient", err)
		}

		message.Type = domain.MessageTypeDirect
		message.RecipientID = &recipientID
		audience = uniqueIDs([]int64{sender.ID, recipientID})

		// порядок диалога - порядок сохранения; раздача под той же блокировкой
		unlock := s.locks.Lock(directKey(sender.ID, recipientID))
		defer unlock()

	case target.GroupID != nil:
		groupID := *target.GroupID

		// ключ группы общий с изменениями состава: удаленный участник не проскочит
		unlock := s.locks.Lock(groupKey(groupID))
		defer unlock()

		group, err := s.groupRepo.GetByID(ctx, groupID)
		if err != nil {
			return nil, internalError("load group", err)
		}
		if !group.HasMember(sender.ID) {
			return nil, forbiddenError("user %d is not a member of group %d", sender.ID, groupID)
		}

		message.Type = domain.MessageTypeGroup
		message.GroupID = &groupID
		audience = group.MemberIDs()

	default:
		return nil, validationError("message target is missing")
	}

	if err := s.chatRepo.CreateMessage(ctx, message); err != nil {
		return nil, internalError("save message", err)
	}

	s.notifier.Notify(audience, protocol.NewMessage{ChatMessage: *message})
	s.signals.Supersede(sender, target, audience)

	s.log.Debug("Message routed", "message_id", message.ID, "sender_id", sender.ID, "type", message.Type, "audience", len(audience))
	return message, nil
}

func (s *chatService) History(ctx context.Context, requester *domain.User, req protocol.GetMessages) ([]*domain.ChatMessage, error) {
	var (
		messages []*domain.ChatMessage
		err      error
	)

	switch req.Type {
	case domain.MessageTypeDirect:
		if req.RecipientID == nil {
			return nil, validationError("direct history needs recipientId")
		}
		peerID := *req.RecipientID
		if _, err := s.userRepo.GetByID(ctx, peerID); err != nil {
			return nil, internalError("load peer", err)
		}
		messages, err = s.chatRepo.ListDirect(ctx, requester.ID, peerID)

	case domain.MessageTypeGroup:
		if req.GroupID == nil {
			return nil, validationError("group history needs groupId")
		}
		group, gerr := s.groupRepo.GetByID(ctx, *req.GroupID)
		if gerr != nil {
			return nil, internalError("load group", gerr)
		}
		if !group.HasMember(requester.ID) {
			return nil, forbiddenError("user %d is not a member of group %d", requester.ID, group.ID)
		}
		messages, err = s.chatRepo.ListGroup(ctx, group.ID)

	default:
		return nil, validationError("unknown conversation type %q", req.Type)
	}

	if err != nil {
		return nil, internalError("load history", err)
	}
	if messages == nil {
		messages = []*domain.ChatMessage{}
	}
	return messages, nil
}
