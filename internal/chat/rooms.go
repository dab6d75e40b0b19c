package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/repository"
)

const defaultMaxParticipants = 50

// RoomService — жизненный цикл комнат и участников: вход, выход,
// вместимость, назначение ролей, удаление участников, присутствие.
type RoomService struct {
	rooms           RoomStore
	participants    ParticipantStore
	users           UserStore
	defaultCapacity int
}

func NewRoomService(rooms RoomStore, participants ParticipantStore, users UserStore, defaultCapacity int) *RoomService {
	if defaultCapacity <= 0 {
		defaultCapacity = defaultMaxParticipants
	}
	return &RoomService{rooms: rooms, participants: participants, users: users, defaultCapacity: defaultCapacity}
}

// RoomDetail — комната вместе с полным составом участников.
type RoomDetail struct {
	Room         model.Room          `json:"room"`
	Participants []model.Participant `json:"participants"`
}

// CreateRoomInput — параметры создания комнаты.
type CreateRoomInput struct {
	Name            string
	Description     string
	RoomType        model.RoomType
	MaxParticipants int
}

// CreateRoom создаёт активную комнату, создатель получает роль owner.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID int64, in CreateRoomInput) (*model.Room, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrValidation
	}
	roomType := in.RoomType
	if roomType == "" {
		roomType = model.RoomTypeGroup
	}
	maxParticipants := in.MaxParticipants
	if maxParticipants <= 0 {
		maxParticipants = s.defaultCapacity
	}

	room := &model.Room{
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		RoomType:        roomType,
		IsActive:        true,
		MaxParticipants: maxParticipants,
		CreatedBy:       creatorID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}
	if err := s.participants.Join(ctx, room.ID, creatorID, model.ParticipantRoleOwner); err != nil {
		return nil, err
	}
	logger.Infof("room %d created by user %d", room.ID, creatorID)
	return room, nil
}

// ListRooms returns the caller's active rooms, most recently active first.
func (s *RoomService) ListRooms(ctx context.Context, userID int64) ([]model.Room, error) {
	return s.rooms.ListForUser(ctx, userID)
}

// GetRoomDetail returns the room and its roster. As an observable side effect
// the caller is marked online with a refreshed last_seen.
func (s *RoomService) GetRoomDetail(ctx context.Context, roomID, userID int64) (*RoomDetail, error) {
	if _, err := s.participants.Get(ctx, roomID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}
	room, err := s.rooms.GetActive(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if err := s.participants.SetOnline(ctx, roomID, userID, true); err != nil {
		return nil, err
	}
	roster, err := s.participants.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &RoomDetail{Room: *room, Participants: roster}, nil
}

// JoinRoom вставляет строку участника. Роль в комнате выводится из глобальной
// роли пользователя по фиксированной таблице (model.ParticipantRoleFor).
// Проверка вместимости и вставка атомарны на уровне хранилища.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID int64) (*model.Participant, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}

	role := model.ParticipantRoleFor(user.Role)
	err = s.participants.Join(ctx, roomID, userID, role)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrRoomNotFound
	case errors.Is(err, repository.ErrRoomFull):
		return nil, ErrRoomFull
	case errors.Is(err, repository.ErrAlreadyJoined):
		return nil, ErrAlreadyJoined
	case err != nil:
		return nil, err
	}

	p, err := s.participants.Get(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	pub := user.ToPublic()
	p.User = &pub
	logger.Infof("user %d joined room %d as %s", userID, roomID, role)
	return p, nil
}

// LeaveRoom удаляет строку участника. Владелец покинуть комнату не может,
// пока держит роль owner.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID int64) error {
	p, err := s.participants.Get(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotParticipant
		}
		return err
	}
	if p.Role == model.ParticipantRoleOwner {
		return ErrOwnerCannotLeave
	}
	return s.participants.Remove(ctx, roomID, userID)
}

// RemoveParticipant удаляет участника по инициативе admin/owner комнаты.
func (s *RoomService) RemoveParticipant(ctx context.Context, roomID, actorID, targetID int64) error {
	actor, err := s.participants.Get(ctx, roomID, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotAuthorized
		}
		return err
	}
	if actor.Role != model.ParticipantRoleOwner && actor.Role != model.ParticipantRoleAdmin {
		return ErrNotAuthorized
	}

	target, err := s.participants.Get(ctx, roomID, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}
	if target.Role == model.ParticipantRoleOwner {
		return ErrCannotRemoveOwner
	}
	if err := s.participants.Remove(ctx, roomID, targetID); err != nil {
		return err
	}
	logger.Infof("user %d removed from room %d by user %d", targetID, roomID, actorID)
	return nil
}

// DeactivateRoom скрывает комнату из списков; история сообщений сохраняется.
func (s *RoomService) DeactivateRoom(ctx context.Context, roomID, actorID int64) error {
	p, err := s.participants.Get(ctx, roomID, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotAuthorized
		}
		return err
	}
	if p.Role != model.ParticipantRoleOwner {
		return ErrNotAuthorized
	}
	return s.rooms.Deactivate(ctx, roomID)
}

// Participant возвращает строку участника с публичными полями пользователя.
// Используется realtime-каналом при подписке на комнату.
func (s *RoomService) Participant(ctx context.Context, roomID, userID int64) (*model.Participant, error) {
	p, err := s.participants.Get(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err == nil {
		pub := user.ToPublic()
		p.User = &pub
	}
	return p, nil
}

// Roster возвращает состав комнаты (для push-рассылки оффлайн-участникам).
func (s *RoomService) Roster(ctx context.Context, roomID int64) ([]model.Participant, error) {
	return s.participants.ListByRoom(ctx, roomID)
}

// SetPresence обновляет присутствие пользователя в одной комнате.
func (s *RoomService) SetPresence(ctx context.Context, roomID, userID int64, online bool) error {
	return s.participants.SetOnline(ctx, roomID, userID, online)
}

// MarkAllOffline вызывается при разрыве соединения: присутствие снимается
// во всех комнатах пользователя, не только в подписанных.
func (s *RoomService) MarkAllOffline(ctx context.Context, userID int64) error {
	return s.participants.SetAllOffline(ctx, userID)
}
