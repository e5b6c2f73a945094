package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/protocol"
	"classroom_chat/internal/repository"
	"classroom_chat/pkg/logger"
)

// SignalService - эфемерные сигналы (набор текста) и отметки о прочтении
type SignalService interface {
	StartTyping(ctx context.Context, user *domain.User, target protocol.Target) error
	StopTyping(ctx context.Context, user *domain.User, target protocol.Target) error
	// Supersede гасит набор текста после отправки сообщения в тот же адресат
	Supersede(user *domain.User, target protocol.Target, audience []int64)
	// ForgetUser молча сбрасывает состояние набора ушедшего пользователя
	ForgetUser(userID int64)
	MarkRead(ctx context.Context, reader *domain.User, req protocol.MarkRead) ([]domain.ReadReceipt, error)
}

type typingKey struct {
	userID int64
	target string
}

type signalService struct {
	groupRepo       repository.GroupRepository
	readReceiptRepo repository.ReadReceiptRepository
	notifier        Notifier
	log             logger.Logger

	mu     sync.Mutex
	typing map[typingKey]struct{}
}

func NewSignalService(groupRepo repository.GroupRepository, readReceiptRepo repository.ReadReceiptRepository, notifier Notifier, log logger.Logger) SignalService {
	return &signalService{
		groupRepo:       groupRepo,
		readReceiptRepo: readReceiptRepo,
		notifier:        notifier,
		log:             log,
		typing:          make(map[typingKey]struct{}),
	}
}

func (s *signalService) StartTyping(ctx context.Context, user *domain.User, target protocol.Target) error {
	audience, err := s.typingAudience(ctx, user, target)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.typing[typingKey{userID: user.ID, target: targetKey(target)}] = struct{}{}
	s.mu.Unlock()

	s.notifier.Notify(audience, protocol.UserTyping{UserID: user.ID, UserName: user.Name, GroupID: target.GroupID})
	return nil
}

func (s *signalService) StopTyping(ctx context.Context, user *domain.User, target protocol.Target) error {
	audience, err := s.typingAudience(ctx, user, target)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.typing, typingKey{userID: user.ID, target: targetKey(target)})
	s.mu.Unlock()

	s.notifier.Notify(audience, protocol.UserStoppedTyping{UserID: user.ID, GroupID: target.GroupID})
	return nil
}

func (s *signalService) Supersede(user *domain.User, target protocol.Target, audience []int64) {
	key := typingKey{userID: user.ID, target: targetKey(target)}

	s.mu.Lock()
	_, wasTyping := s.typing[key]
	delete(s.typing, key)
	s.mu.Unlock()

	if wasTyping {
		s.notifier.Notify(without(audience, user.ID), protocol.UserStoppedTyping{UserID: user.ID, GroupID: target.GroupID})
	}
}

func (s *signalService) ForgetUser(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.typing {
		if key.userID == userID {
			delete(s.typing, key)
		}
	}
}

func (s *signalService) MarkRead(ctx context.Context, reader *domain.User, req protocol.MarkRead) ([]domain.ReadReceipt, error) {
	if len(req.MessageIDs) == 0 {
		return nil, validationError("messageIds is required")
	}
	if req.GroupID != nil {
		member, err := s.groupRepo.IsMember(ctx, *req.GroupID, reader.ID)
		if err != nil {
			return nil, internalError("check membership", err)
		}
		if !member {
			return nil, forbiddenError("user %d is not a member of group %d", reader.ID, *req.GroupID)
		}
	}

	scope := domain.ReadScope{SenderID: req.SenderID, GroupID: req.GroupID}
	receipts, err := s.readReceiptRepo.MarkRead(ctx, reader.ID, uniqueIDs(req.MessageIDs), scope, time.Now().UTC())
	if err != nil {
		return nil, internalError("mark messages read", err)
	}

	s.notifySenders(reader.ID, receipts)
	return receipts, nil
}

// notifySenders группирует новые отметки по (отправитель, группа), читателю ничего не уходит
func (s *signalService) notifySenders(readerID int64, receipts []domain.ReadReceipt) {
	type bucketKey struct {
		senderID int64
		groupID  int64
	}

	var order []bucketKey
	buckets := make(map[bucketKey]*protocol.ReadReceipt)
	for _, r := range receipts {
		if r.SenderID == readerID {
			continue
		}
		key := bucketKey{senderID: r.SenderID}
		if r.GroupID != nil {
			key.groupID = *r.GroupID
		}
		ev, ok := buckets[key]
		if !ok {
			ev = &protocol.ReadReceipt{ReaderID: readerID, GroupID: r.GroupID, ReadAt: r.ReadAt}
			buckets[key] = ev
			order = append(order, key)
		}
		ev.MessageIDs = append(ev.MessageIDs, r.MessageID)
	}

	for _, key := range order {
		s.notifier.Notify([]int64{key.senderID}, *buckets[key])
	}
}

// typingAudience - та же аудитория, что у сообщения в этот адресат, без самого пользователя
func (s *signalService) typingAudience(ctx context.Context, user *domain.User, target protocol.Target) ([]int64, error) {
	switch {
	case target.RecipientID != nil:
		return without([]int64{*target.RecipientID}, user.ID), nil
	case target.GroupID == nil:
		return nil, validationError("typing target is missing")
	}

	group, err := s.groupRepo.GetByID(ctx, *target.GroupID)
	if err != nil {
		return nil, internalError("load group", err)
	}
	if !group.HasMember(user.ID) {
		return nil, forbiddenError("user %d is not a member of group %d", user.ID, group.ID)
	}
	return without(group.MemberIDs(), user.ID), nil
}

func targetKey(t protocol.Target) string {
	if t.GroupID != nil {
		return fmt.Sprintf("g:%d", *t.GroupID)
	}
	if t.RecipientID != nil {
		return fmt.Sprintf("d:%d", *t.RecipientID)
	}
	return ""
}
