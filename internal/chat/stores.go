package chat

import (
	"context"
	"time"

	"github.com/roomchat/internal/model"
)

// Интерфейсы хранилища. Реализуются пакетом repository (Postgres);
// тесты подставляют in-memory реализации из internal/testutil.
// Ошибки отсутствия строк — repository.ErrNotFound и родственные sentinel'ы.

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type RoomStore interface {
	Create(ctx context.Context, room *model.Room) error
	GetActive(ctx context.Context, id int64) (*model.Room, error)
	ListForUser(ctx context.Context, userID int64) ([]model.Room, error)
	Deactivate(ctx context.Context, id int64) error
}

type ParticipantStore interface {
	Join(ctx context.Context, roomID, userID int64, role model.ParticipantRole) error
	Get(ctx context.Context, roomID, userID int64) (*model.Participant, error)
	ListByRoom(ctx context.Context, roomID int64) ([]model.Participant, error)
	Remove(ctx context.Context, roomID, userID int64) error
	SetOnline(ctx context.Context, roomID, userID int64, online bool) error
	SetAllOffline(ctx context.Context, userID int64) error
}

type PermissionStore interface {
	Get(ctx context.Context, roomID, userID int64) (model.PermissionType, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	ListByRoom(ctx context.Context, roomID int64, limit, offset int) ([]model.Message, error)
	UpdateContent(ctx context.Context, id int64, content string, updatedAt time.Time) error
	SoftDelete(ctx context.Context, id int64, deletedAt time.Time) error
}
