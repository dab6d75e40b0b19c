package model

import "time"

// GlobalRole — роль пользователя на уровне платформы. Чат её только читает:
// управление пользователями принадлежит подсистеме авторизации.
type GlobalRole string

const (
	GlobalRoleParticipant GlobalRole = "participant"
	GlobalRoleEditor      GlobalRole = "editor"
	GlobalRoleAdvertiser  GlobalRole = "advertiser"
	GlobalRoleAdmin       GlobalRole = "admin"
	GlobalRoleSuperAdmin  GlobalRole = "super_admin"
)

type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      GlobalRole `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// UserPublic — поля пользователя, которые можно отдавать другим участникам.
type UserPublic struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Role     GlobalRole `json:"role"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}
