package handler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"classroom_chat/internal/domain"
	apperrors "classroom_chat/pkg/errors"
)

type memUsers map[int64]*domain.User

func (m memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", apperrors.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByIDs(ctx context.Context, ids []int64) ([]*domain.User, error) {
	var out []*domain.User
	for _, id := range ids {
		if u, err := m.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

type memGroups struct {
	mu     sync.Mutex
	groups []*domain.ChatGroup
}

func (m *memGroups) Create(_ context.Context, g *domain.ChatGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = int64(len(m.groups) + 1)
	cp := *g
	m.groups = append(m.groups, &cp)
	return nil
}

func (m *memGroups) GetByID(_ context.Context, id int64) (*domain.ChatGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || id > int64(len(m.groups)) {
		return nil, fmt.Errorf("%w: group %d", apperrors.ErrNotFound, id)
	}
	cp := *m.groups[id-1]
	cp.Members = append([]domain.GroupMember(nil), cp.Members...)
	return &cp, nil
}

func (m *memGroups) ListByUser(_ context.Context, userID int64) ([]*domain.ChatGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ChatGroup
	for _, g := range m.groups {
		if g.HasMember(userID) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memGroups) AddMembers(_ context.Context, groupID int64, members []domain.GroupMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.groups[groupID-1]
	g.Members = append(append([]domain.GroupMember(nil), g.Members...), members...)
	return nil
}

func (m *memGroups) RemoveMembers(_ context.Context, groupID int64, userIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.groups[groupID-1]
	var kept []domain.GroupMember
	for _, mem := range g.Members {
		drop := false
		for _, id := range userIDs {
			drop = drop || mem.UserID == id
		}
		if !drop {
			kept = append(kept, mem)
		}
	}
	g.Members = kept
	return nil
}

func (m *memGroups) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	g, err := m.GetByID(ctx, groupID)
	if err != nil {
		return false, nil
	}
	return g.HasMember(userID), nil
}

type memChat struct {
	mu       sync.Mutex
	messages []*domain.ChatMessage
}

func (m *memChat) CreateMessage(_ context.Context, msg *domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.messages) + 1)
	msg.Timestamp = time.Now().UTC()
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *memChat) ListDirect(_ context.Context, userID, peerID int64) ([]*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ChatMessage
	for _, msg := range m.messages {
		if msg.RecipientID == nil {
			continue
		}
		if (msg.SenderID == userID && *msg.RecipientID == peerID) || (msg.SenderID == peerID && *msg.RecipientID == userID) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memChat) ListGroup(_ context.Context, groupID int64) ([]*domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.ChatMessage
	for _, msg := range m.messages {
		if msg.GroupID != nil && *msg.GroupID == groupID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type noReads struct{}

func (noReads) MarkRead(context.Context, int64, []int64, domain.ReadScope, time.Time) ([]domain.ReadReceipt, error) {
	return nil, nil
}

type noEnrollments struct{}

func (noEnrollments) ListCourseStudents(context.Context, int64) ([]int64, error) {
	return nil, nil
}

type noAudit struct{}

func (noAudit) CreateLog(context.Context, *domain.AuditLog) error { return nil }

type memRateLimit struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *memRateLimit) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[key]++
	return m.counts[key], nil
}
