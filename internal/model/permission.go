package model

// PermissionType — необязательное переопределение прав записи для пары
// (room, user). Отсутствие записи означает базовый read-only доступ,
// который может расширяться ролью участника.
type PermissionType string

const (
	// PermissionNone is the implied value when no override row exists.
	PermissionNone      PermissionType = ""
	PermissionReadWrite PermissionType = "read_write"
	PermissionAdmin     PermissionType = "admin"
)
