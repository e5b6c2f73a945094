package domain

// User - проекция пользователя из внешнего хранилища, мессенджер ее не изменяет
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
	RoleStudent = "student"
)

// IsAdmin - роль с правами администратора групп
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// CanCreateCourseGroups - группы курса/секции/класса создают только админы и преподаватели
func (u *User) CanCreateCourseGroups() bool {
	return u != nil && (u.Role == RoleAdmin || u.Role == RoleTeacher)
}
