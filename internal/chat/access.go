package chat

import (
	"context"
	"errors"

	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/repository"
)

// Access — результат разрешения доступа пользователя к комнате.
type Access struct {
	Role       model.ParticipantRole
	Permission model.PermissionType
}

// CanWrite — единственное правило записи в системе. Обе транспортные
// поверхности (REST и WebSocket) обязаны проходить через него.
func (a Access) CanWrite() bool {
	if a.Role == model.ParticipantRoleOwner || a.Role == model.ParticipantRoleAdmin {
		return true
	}
	return a.Permission == model.PermissionReadWrite || a.Permission == model.PermissionAdmin
}

// CanModerate разрешает действия над чужими сообщениями и участниками.
func (a Access) CanModerate() bool {
	return a.Role == model.ParticipantRoleOwner || a.Role == model.ParticipantRoleAdmin
}

// Resolver определяет роль и переопределение прав пользователя в комнате.
type Resolver struct {
	participants ParticipantStore
	permissions  PermissionStore
}

func NewResolver(participants ParticipantStore, permissions PermissionStore) *Resolver {
	return &Resolver{participants: participants, permissions: permissions}
}

// Resolve возвращает ErrAccessDenied, если у пользователя нет строки участника.
func (r *Resolver) Resolve(ctx context.Context, roomID, userID int64) (Access, error) {
	p, err := r.participants.Get(ctx, roomID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return Access{}, ErrAccessDenied
	}
	if err != nil {
		return Access{}, err
	}
	perm, err := r.permissions.Get(ctx, roomID, userID)
	if err != nil {
		return Access{}, err
	}
	return Access{Role: p.Role, Permission: perm}, nil
}
