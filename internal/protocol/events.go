package protocol

import (
	"time"

	"classroom_chat/internal/domain"
)

// Event - исходящее событие сервера. Набор реализаций закрыт
type Event interface {
	EventType() string
	isEvent()
}

const (
	EventConnected         = "connected"
	EventNewMessage        = "new_message"
	EventMessageHistory    = "message_history"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventGroupJoined       = "group_joined"
	EventGroupCreated      = "group_created"
	EventGroupUpdated      = "group_updated"
	EventGroupLeft         = "group_left"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventReadReceipt       = "read_receipt"
	EventError             = "error"
	EventPong              = "pong"
)

type Connected struct {
	UserID        int64               `json:"userId"`
	Groups        []*domain.ChatGroup `json:"groups"`
	OnlineUserIDs []int64             `json:"onlineUserIds"`
}

type NewMessage struct {
	domain.ChatMessage
}

type MessageHistory struct {
	Type        string                `json:"type"`
	RecipientID *int64                `json:"recipientId,omitempty"`
	GroupID     *int64                `json:"groupId,omitempty"`
	Messages    []*domain.ChatMessage `json:"messages"`
}

type UserTyping struct {
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	GroupID  *int64 `json:"groupId,omitempty"`
}

type UserStoppedTyping struct {
	UserID  int64  `json:"userId"`
	GroupID *int64 `json:"groupId,omitempty"`
}

type GroupJoined struct {
	domain.ChatGroup
}

type GroupCreated struct {
	domain.ChatGroup
}

type GroupUpdated struct {
	domain.ChatGroup
}

type GroupLeft struct {
	GroupID int64 `json:"groupId"`
}

type UserOnline struct {
	UserID int64 `json:"userId"`
}

type UserOffline struct {
	UserID int64 `json:"userId"`
}

type ReadReceipt struct {
	ReaderID   int64     `json:"readerId"`
	MessageIDs []int64   `json:"messageIds"`
	GroupID    *int64    `json:"groupId,omitempty"`
	ReadAt     time.Time `json:"readAt"`
}

type Error struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

type Pong struct{}

func (Connected) EventType() string         { return EventConnected }
func (NewMessage) EventType() string        { return EventNewMessage }
func (MessageHistory) EventType() string    { return EventMessageHistory }
func (UserTyping) EventType() string        { return EventUserTyping }
func (UserStoppedTyping) EventType() string { return EventUserStoppedTyping }
func (GroupJoined) EventType() string       { return EventGroupJoined }
func (GroupCreated) EventType() string      { return EventGroupCreated }
func (GroupUpdated) EventType() string      { return EventGroupUpdated }
func (GroupLeft) EventType() string         { return EventGroupLeft }
func (UserOnline) EventType() string        { return EventUserOnline }
func (UserOffline) EventType() string       { return EventUserOffline }
func (ReadReceipt) EventType() string       { return EventReadReceipt }
func (Error) EventType() string             { return EventError }
func (Pong) EventType() string              { return EventPong }

func (Connected) isEvent()         {}
func (NewMessage) isEvent()        {}
func (MessageHistory) isEvent()    {}
func (UserTyping) isEvent()        {}
func (UserStoppedTyping) isEvent() {}
func (GroupJoined) isEvent()       {}
func (GroupCreated) isEvent()      {}
func (GroupUpdated) isEvent()      {}
func (GroupLeft) isEvent()         {}
func (UserOnline) isEvent()        {}
func (UserOffline) isEvent()       {}
func (ReadReceipt) isEvent()       {}
func (Error) isEvent()             {}
func (Pong) isEvent()              {}
