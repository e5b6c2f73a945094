package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"classroom_chat/internal/protocol"
	"classroom_chat/internal/repository"
	"classroom_chat/pkg/logger"
)

// Conn - одно живое соединение. Адресат доставки - соединение, а не пользователь
type Conn interface {
	ID() string
	UserID() int64
	// Enqueue не блокирует; false значит, что соединение не приняло кадр
	Enqueue(frame []byte) bool
}

// Notifier доставляет событие во все живые соединения указанных пользователей
type Notifier interface {
	Notify(userIDs []int64, ev protocol.Event)
}

type presenceTransition struct {
	userID int64
	online bool
}

// PresenceRegistry - реестр живых соединений со счетчиком ссылок на пользователя.
// Пользователь онлайн, пока у него открыто хотя бы одно соединение
type PresenceRegistry struct {
	mu    sync.RWMutex
	conns map[int64]map[string]Conn

	cache  repository.PresenceCache
	mirror chan presenceTransition
	done   chan struct{}
	wg     sync.WaitGroup
	log    logger.Logger
}

func NewPresenceRegistry(cache repository.PresenceCache, log logger.Logger) *PresenceRegistry {
	p := &PresenceRegistry{
		conns: make(map[int64]map[string]Conn),
		cache: cache,
		log:   log,
	}

	if cache != nil {
		p.mirror = make(chan presenceTransition, 1024)
		p.done = make(chan struct{})
		p.wg.Add(1)
		go p.mirrorLoop()
	}

	return p
}

// Register добавляет соединение. first=true, если это первое соединение пользователя:
// тогда остальным подключенным уходит user_online
func (p *PresenceRegistry) Register(c Conn) (first bool) {
	return p.Attach(c, nil)
}

// Attach - Register, который под той же блокировкой передает greet снимок онлайн-пользователей.
// Все, что greet положит в соединение, придет раньше любых других событий
func (p *PresenceRegistry) Attach(c Conn, greet func(online []int64)) (first bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userConns, ok := p.conns[c.UserID()]
	if !ok {
		userConns = make(map[string]Conn)
		p.conns[c.UserID()] = userConns
	}
	userConns[c.ID()] = c
	first = len(userConns) == 1

	if first {
		p.broadcastLocked(protocol.UserOnline{UserID: c.UserID()}, c.UserID())
		p.enqueueMirror(c.UserID(), true)
	}

	if greet != nil {
		greet(p.snapshotLocked())
	}

	p.log.Debug("Connection registered", "user_id", c.UserID(), "conn_id", c.ID(), "user_connections", len(userConns))
	return first
}

// Unregister удаляет соединение. Повторный вызов для того же соединения ничего не делает.
// last=true, если закрылось последнее соединение пользователя: всем уходит user_offline
func (p *PresenceRegistry) Unregister(c Conn) (last bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userConns, ok := p.conns[c.UserID()]
	if !ok {
		return false
	}
	if _, ok := userConns[c.ID()]; !ok {
		return false
	}

	delete(userConns, c.ID())
	if len(userConns) > 0 {
		p.log.Debug("Connection unregistered", "user_id", c.UserID(), "conn_id", c.ID(), "user_connections", len(userConns))
		return false
	}

	delete(p.conns, c.UserID())
	p.broadcastLocked(protocol.UserOffline{UserID: c.UserID()}, c.UserID())
	p.enqueueMirror(c.UserID(), false)

	p.log.Debug("User went offline", "user_id", c.UserID())
	return true
}

// Snapshot возвращает отсортированный список онлайн-пользователей
func (p *PresenceRegistry) Snapshot() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *PresenceRegistry) snapshotLocked() []int64 {
	ids := make([]int64, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *PresenceRegistry) IsOnline(userID int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.conns[userID]
	return ok
}

func (p *PresenceRegistry) ConnectionCount(userID int64) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID])
}

// Notify кодирует событие один раз и раскладывает по соединениям без блокировок
func (p *PresenceRegistry) Notify(userIDs []int64, ev protocol.Event) {
	if len(userIDs) == 0 {
		return
	}

	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		p.log.Error("Failed to encode event", "error", err, "event", ev.EventType())
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[int64]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		p.deliverLocked(id, frame, ev)
	}
}

func (p *PresenceRegistry) broadcastLocked(ev protocol.Event, exceptUserID int64) {
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		p.log.Error("Failed to encode event", "error", err, "event", ev.EventType())
		return
	}
	for id := range p.conns {
		if id == exceptUserID {
			continue
		}
		p.deliverLocked(id, frame, ev)
	}
}

func (p *PresenceRegistry) deliverLocked(userID int64, frame []byte, ev protocol.Event) {
	for _, c := range p.conns[userID] {
		if !c.Enqueue(frame) {
			p.log.Debug("Dropped event for connection", "user_id", userID, "conn_id", c.ID(), "event", ev.EventType())
		}
	}
}

func (p *PresenceRegistry) enqueueMirror(userID int64, online bool) {
	if p.mirror == nil {
		return
	}
	select {
	case p.mirror <- presenceTransition{userID: userID, online: online}:
	default:
		p.log.Warn("Presence mirror queue is full, dropping transition", "user_id", userID, "online", online)
	}
}

// mirrorLoop применяет переходы в Redis строго в порядке их возникновения
func (p *PresenceRegistry) mirrorLoop() {
	defer p.wg.Done()

	for {
		select {
		case t := <-p.mirror:
			p.applyMirror(t)
		case <-p.done:
			for {
				select {
				case t := <-p.mirror:
					p.applyMirror(t)
				default:
					return
				}
			}
		}
	}
}

func (p *PresenceRegistry) applyMirror(t presenceTransition) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if t.online {
		_ = p.cache.SetOnline(ctx, t.userID)
	} else {
		_ = p.cache.SetOffline(ctx, t.userID)
	}
}

// Close останавливает зеркалирование в Redis, дописав накопленные переходы
func (p *PresenceRegistry) Close() {
	if p.done == nil {
		return
	}
	close(p.done)
	p.wg.Wait()
}
