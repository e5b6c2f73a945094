package client

import (
	"sort"
	"sync"

	"classroom_chat/internal/protocol"
)

// Handler получает каждое входящее событие своей категории
type Handler func(ev protocol.Event)

// Registry - подписки на категории событий. Каждая подписка снимается независимо
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string]map[uint64]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]map[uint64]Handler)}
}

// On подписывает h на категорию (тип события, например "new_message").
// Возвращенная функция снимает ровно эту подписку; повторный вызов ничего не делает
func (r *Registry) On(category string, h Handler) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	if r.handlers[category] == nil {
		r.handlers[category] = make(map[uint64]Handler)
	}
	r.handlers[category][id] = h
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.handlers[category], id)
			if len(r.handlers[category]) == 0 {
				delete(r.handlers, category)
			}
		})
	}
}

// Emit вызывает подписчиков в порядке подписки. Обработчики вызываются без блокировки,
// поэтому могут сами подписываться и отписываться
func (r *Registry) Emit(ev protocol.Event) {
	category := ev.EventType()

	r.mu.RLock()
	ids := make([]uint64, 0, len(r.handlers[category]))
	for id := range r.handlers[category] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, r.handlers[category][id])
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Count - число активных подписок на категорию
func (r *Registry) Count(category string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[category])
}
