package domain

import (
	"time"
)

type ChatMessage struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	GroupID     *int64    `json:"groupId,omitempty"`
	RecipientID *int64    `json:"recipientId,omitempty"`
	Type        string    `json:"type"`
}

const (
	MessageTypeDirect = "direct"
	MessageTypeGroup  = "group"
)

type ChatGroup struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	CourseID  *int64        `json:"courseId,omitempty"`
	CreatedBy int64         `json:"createdBy"`
	CreatedAt time.Time     `json:"createdAt"`
	Members   []GroupMember `json:"members"`
}

type GroupMember struct {
	UserID   int64  `json:"userId"`
	Role     string `json:"role"`
	UserName string `json:"userName"`
}

const (
	GroupTypeCourse  = "course"
	GroupTypeSection = "section"
	GroupTypeClass   = "class"
	GroupTypeCustom  = "custom"
)

const (
	GroupRoleOwner  = "owner"
	GroupRoleMember = "member"
)

// RosterDerived - состав таких групп берется из зачислений на курс
func RosterDerived(t string) bool {
	return t == GroupTypeCourse || t == GroupTypeSection || t == GroupTypeClass
}

func (g *ChatGroup) HasMember(userID int64) bool {
	for _, m := range g.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (g *ChatGroup) MemberIDs() []int64 {
	ids := make([]int64, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// CanManage - менять состав может создатель группы или администратор
func (g *ChatGroup) CanManage(u *User) bool {
	return u != nil && (g.CreatedBy == u.ID || u.IsAdmin())
}

// ReadScope сужает отметку о прочтении до одного диалога: личного с SenderID или группы GroupID.
// Пустой scope - любые видимые читателю сообщения
type ReadScope struct {
	SenderID *int64
	GroupID  *int64
}

type ReadReceipt struct {
	MessageID int64     `json:"messageId"`
	ReaderID  int64     `json:"readerId"`
	SenderID  int64     `json:"senderId"`
	GroupID   *int64    `json:"groupId,omitempty"`
	ReadAt    time.Time `json:"readAt"`
}
