package domain

import (
	"time"
)

// RateLimitRule - лимит попыток в скользящем окне для одного ключа области
type RateLimitRule struct {
	Scope  string
	Limit  int
	Window time.Duration
}

const RateLimitScopeIP = "ip"

// Key строит ключ счетчика: область, действие и идентификатор (IP или id пользователя)
func (r RateLimitRule) Key(action, subject string) string {
	return r.Scope + ":" + action + ":" + subject
}
