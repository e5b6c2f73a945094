package protocol

// Intent - входящее намерение клиента. Набор реализаций закрыт: isIntent не экспортируется
type Intent interface {
	IntentType() string
	isIntent()
}

const (
	IntentDirectMessage      = "direct_message"
	IntentGroupMessage       = "group_message"
	IntentCreateGroup        = "create_group"
	IntentAddGroupMembers    = "add_group_members"
	IntentRemoveGroupMembers = "remove_group_members"
	IntentAddCourseStudents  = "add_course_students"
	IntentGetMessages        = "get_messages"
	IntentTypingStart        = "typing_start"
	IntentTypingStop         = "typing_stop"
	IntentMarkRead           = "mark_read"
	IntentPing               = "ping"
)

type DirectMessage struct {
	RecipientID int64  `json:"recipientId" validate:"gt=0"`
	Content     string `json:"content" validate:"content"`
}

type GroupMessage struct {
	GroupID int64  `json:"groupId" validate:"gt=0"`
	Content string `json:"content" validate:"content"`
}

// CreateGroup - courseId обязателен для course, section и class
type CreateGroup struct {
	Name      string  `json:"name" validate:"notblank,max=100"`
	Type      string  `json:"type" validate:"oneof=course section class custom"`
	CourseID  *int64  `json:"courseId,omitempty" validate:"omitempty,gt=0"`
	MemberIDs []int64 `json:"memberIds" validate:"dive,gt=0"`
}

type AddGroupMembers struct {
	GroupID   int64   `json:"groupId" validate:"gt=0"`
	MemberIDs []int64 `json:"memberIds" validate:"dive,gt=0"`
}

type RemoveGroupMembers struct {
	GroupID   int64   `json:"groupId" validate:"gt=0"`
	MemberIDs []int64 `json:"memberIds" validate:"dive,gt=0"`
}

type AddCourseStudents struct {
	GroupID  int64 `json:"groupId" validate:"gt=0"`
	CourseID int64 `json:"courseId" validate:"gt=0"`
}

// GetMessages разбирается и из кадра, и из query-строки REST
type GetMessages struct {
	Type        string `json:"type" form:"type" validate:"oneof=direct group"`
	RecipientID *int64 `json:"recipientId,omitempty" form:"recipientId" validate:"omitempty,gt=0"`
	GroupID     *int64 `json:"groupId,omitempty" form:"groupId" validate:"omitempty,gt=0"`
}

// Target - адресат сообщения или сигнала: ровно одно из полей
type Target struct {
	RecipientID *int64 `json:"recipientId,omitempty" validate:"omitempty,gt=0"`
	GroupID     *int64 `json:"groupId,omitempty" validate:"omitempty,gt=0"`
}

type TypingStart struct {
	Target
}

type TypingStop struct {
	Target
}

// MarkRead: senderId сужает отметку до личного диалога с отправителем, groupId - до группы
type MarkRead struct {
	MessageIDs []int64 `json:"messageIds" validate:"min=1,dive,gt=0"`
	SenderID   *int64  `json:"senderId,omitempty" validate:"omitempty,gt=0"`
	GroupID    *int64  `json:"groupId,omitempty" validate:"omitempty,gt=0"`
}

type Ping struct{}

func (DirectMessage) IntentType() string      { return IntentDirectMessage }
func (GroupMessage) IntentType() string       { return IntentGroupMessage }
func (CreateGroup) IntentType() string        { return IntentCreateGroup }
func (AddGroupMembers) IntentType() string    { return IntentAddGroupMembers }
func (RemoveGroupMembers) IntentType() string { return IntentRemoveGroupMembers }
func (AddCourseStudents) IntentType() string  { return IntentAddCourseStudents }
func (GetMessages) IntentType() string        { return IntentGetMessages }
func (TypingStart) IntentType() string        { return IntentTypingStart }
func (TypingStop) IntentType() string         { return IntentTypingStop }
func (MarkRead) IntentType() string           { return IntentMarkRead }
func (Ping) IntentType() string               { return IntentPing }

func (DirectMessage) isIntent()      {}
func (GroupMessage) isIntent()       {}
func (CreateGroup) isIntent()        {}
func (AddGroupMembers) isIntent()    {}
func (RemoveGroupMembers) isIntent() {}
func (AddCourseStudents) isIntent()  {}
func (GetMessages) isIntent()        {}
func (TypingStart) isIntent()        {}
func (TypingStop) isIntent()         {}
func (MarkRead) isIntent()           {}
func (Ping) isIntent()               {}
