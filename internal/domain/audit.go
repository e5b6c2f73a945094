package domain

import (
	"time"
)

type AuditLog struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID int64                  `json:"actor_user_id"`
	ActorRole   string                 `json:"actor_role"`
	GroupID     *int64                 `json:"group_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	EventTypeGroupCreated   = "GROUP_CREATED"
	EventTypeMembersAdded   = "GROUP_MEMBERS_ADDED"
	EventTypeMembersRemoved = "GROUP_MEMBERS_REMOVED"
	EventTypeRosterSynced   = "GROUP_ROSTER_SYNCED"
)
