package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"classroom_chat/internal/domain"
	"classroom_chat/internal/protocol"
	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/logger"

	"github.com/stretchr/testify/require"
)

type mockUserRepo struct {
	users map[int64]*domain.User
}

func newMockUserRepo(users ...*domain.User) *mockUserRepo {
	r := &mockUserRepo{users: make(map[int64]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *mockUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", apperrors.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (r *mockUserRepo) GetByIDs(_ context.Context, ids []int64) ([]*domain.User, error) {
	var out []*domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockEnrollmentRepo struct {
	courses map[int64][]int64
	delay   time.Duration
}

func (r *mockEnrollmentRepo) ListCourseStudents(ctx context.Context, courseID int64) ([]int64, error) {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return append([]int64(nil), r.courses[courseID]...), nil
}

type mockGroupRepo struct {
	mu     sync.Mutex
	nextID int64
	groups map[int64]*domain.ChatGroup
}

func newMockGroupRepo() *mockGroupRepo {
	return &mockGroupRepo{groups: make(map[int64]*domain.ChatGroup)}
}

func copyGroup(g *domain.ChatGroup) *domain.ChatGroup {
	cp := *g
	cp.Members = append([]domain.GroupMember(nil), g.Members...)
	return &cp
}

func (r *mockGroupRepo) Create(_ context.Context, group *domain.ChatGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	group.ID = r.nextID
	r.groups[group.ID] = copyGroup(group)
	return nil
}

func (r *mockGroupRepo) GetByID(_ context.Context, id int64) (*domain.ChatGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: group %d", apperrors.ErrNotFound, id)
	}
	return copyGroup(g), nil
}

func (r *mockGroupRepo) ListByUser(_ context.Context, userID int64) ([]*domain.ChatGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ChatGroup
	for _, g := range r.groups {
		if g.HasMember(userID) {
			out = append(out, copyGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockGroupRepo) AddMembers(_ context.Context, groupID int64, members []domain.GroupMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.groups[groupID]
	for _, m := range members {
		if !g.HasMember(m.UserID) {
			g.Members = append(g.Members, m)
		}
	}
	return nil
}

func (r *mockGroupRepo) RemoveMembers(_ context.Context, groupID int64, userIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.groups[groupID]
	drop := make(map[int64]bool)
	for _, id := range userIDs {
		drop[id] = true
	}
	var kept []domain.GroupMember
	for _, m := range g.Members {
		if !drop[m.UserID] {
			kept = append(kept, m)
		}
	}
	g.Members = kept
	return nil
}

func (r *mockGroupRepo) IsMember(_ context.Context, groupID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	return ok && g.HasMember(userID), nil
}

func (r *mockGroupRepo) rosterOf(id int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedIDs(r.groups[id].MemberIDs())
}

type mockChatRepo struct {
	mu       sync.Mutex
	messages []*domain.ChatMessage
}

func (r *mockChatRepo) CreateMessage(_ context.Context, m *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = int64(len(r.messages) + 1)
	m.Timestamp = time.Now().UTC()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *mockChatRepo) ListDirect(_ context.Context, userID, peerID int64) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ChatMessage
	for _, m := range r.messages {
		if m.Type != domain.MessageTypeDirect {
			continue
		}
		if (m.SenderID == userID && *m.RecipientID == peerID) || (m.SenderID == peerID && *m.RecipientID == userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *mockChatRepo) ListGroup(_ context.Context, groupID int64) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ChatMessage
	for _, m := range r.messages {
		if m.GroupID != nil && *m.GroupID == groupID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *mockChatRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type mockReadReceiptRepo struct {
	mu    sync.Mutex
	chat  *mockChatRepo
	reads map[[2]int64]time.Time
}

func (r *mockReadReceiptRepo) MarkRead(_ context.Context, readerID int64, ids []int64, scope domain.ReadScope, readAt time.Time) ([]domain.ReadReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ReadReceipt
	for _, id := range ids {
		if id > int64(len(r.chat.messages)) {
			continue
		}
		m := r.chat.messages[id-1]
		if m.SenderID == readerID || !inScope(m, readerID, scope) {
			continue
		}
		key := [2]int64{id, readerID}
		if _, seen := r.reads[key]; seen {
			continue
		}
		r.reads[key] = readAt
		out = append(out, domain.ReadReceipt{MessageID: id, ReaderID: readerID, SenderID: m.SenderID, GroupID: m.GroupID, ReadAt: readAt})
	}
	return out, nil
}

func inScope(m *domain.ChatMessage, readerID int64, scope domain.ReadScope) bool {
	if scope.SenderID != nil {
		return m.SenderID == *scope.SenderID && m.RecipientID != nil && *m.RecipientID == readerID
	}
	if scope.GroupID != nil {
		return m.GroupID != nil && *m.GroupID == *scope.GroupID
	}
	return true
}

type mockAuditRepo struct {
	mu   sync.Mutex
	logs []*domain.AuditLog
}

func (r *mockAuditRepo) CreateLog(_ context.Context, l *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

type mockRateLimitRepo struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (r *mockRateLimitRepo) Hit(_ context.Context, key string, _ time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	return r.counts[key], nil
}

// recordingConn запоминает все кадры, отданные соединению
type recordingConn struct {
	id     string
	userID int64
	closed bool

	mu     sync.Mutex
	frames [][]byte
}

func newConn(id string, userID int64) *recordingConn {
	return &recordingConn{id: id, userID: userID}
}

func (c *recordingConn) ID() string    { return c.id }
func (c *recordingConn) UserID() int64 { return c.userID }

func (c *recordingConn) Enqueue(frame []byte) bool {
	if c.closed {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return true
}

func (c *recordingConn) events(t *testing.T) []protocol.Event {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Event, 0, len(c.frames))
	for _, f := range c.frames {
		ev, err := protocol.DecodeEvent(f)
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func (c *recordingConn) types(t *testing.T) []string {
	var out []string
	for _, ev := range c.events(t) {
		out = append(out, ev.EventType())
	}
	return out
}

func (c *recordingConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// testEnv собирает сервисы поверх in-memory репозиториев
type testEnv struct {
	users       *mockUserRepo
	enrollments *mockEnrollmentRepo
	groups      *mockGroupRepo
	chat        *mockChatRepo
	reads       *mockReadReceiptRepo
	audit       *mockAuditRepo

	presence *PresenceRegistry
	groupSvc GroupService
	chatSvc  ChatService
	signals  SignalService
}

var (
	admin    = &domain.User{ID: 1, Name: "Admin", Role: domain.RoleAdmin}
	teacher  = &domain.User{ID: 2, Name: "Teacher", Role: domain.RoleTeacher}
	student3 = &domain.User{ID: 3, Name: "Student Three", Role: domain.RoleStudent}
	student4 = &domain.User{ID: 4, Name: "Student Four", Role: domain.RoleStudent}
	student5 = &domain.User{ID: 5, Name: "Student Five", Role: domain.RoleStudent}
	alice    = &domain.User{ID: 7, Name: "Alice", Role: domain.RoleStudent}
	bob      = &domain.User{ID: 9, Name: "Bob", Role: domain.RoleParent}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.Nop()
	env := &testEnv{
		users:       newMockUserRepo(admin, teacher, student3, student4, student5, alice, bob),
		enrollments: &mockEnrollmentRepo{courses: map[int64][]int64{42: {3, 4}}},
		groups:      newMockGroupRepo(),
		chat:        &mockChatRepo{},
		audit:       &mockAuditRepo{},
	}
	env.reads = &mockReadReceiptRepo{chat: env.chat, reads: make(map[[2]int64]time.Time)}

	env.presence = NewPresenceRegistry(nil, log)
	locks := NewKeyedMutex()
	env.signals = NewSignalService(env.groups, env.reads, env.presence, log)
	env.groupSvc = NewGroupService(env.groups, env.users, env.enrollments, NewAuditService(env.audit, log),
		env.presence, locks, time.Second, log)
	env.chatSvc = NewChatService(env.chat, env.groups, env.users, env.signals, env.presence, locks, log)

	return env
}

// connect регистрирует соединение в реестре присутствия
func (e *testEnv) connect(id string, userID int64) *recordingConn {
	c := newConn(id, userID)
	e.presence.Register(c)
	return c
}

func int64Ptr(v int64) *int64 { return &v }
