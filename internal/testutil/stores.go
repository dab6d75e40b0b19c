// Package testutil содержит in-memory реализации хранилищ для unit-тестов
// сервисного слоя и хаба: семантика повторяет pgx-репозитории, включая
// sentinel-ошибки и побочный touch rooms.updated_at при вставке сообщения.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/repository"
)

type pairKey struct {
	roomID int64
	userID int64
}

// DB — общее состояние всех фейковых хранилищ. Один мьютекс на всё:
// операции атомарны, как транзакции в настоящих репозиториях.
type DB struct {
	mu           sync.Mutex
	users        map[int64]*model.User
	rooms        map[int64]*model.Room
	participants map[pairKey]*model.Participant
	permissions  map[pairKey]model.PermissionType
	messages     map[int64]*model.Message
	nextRoomID   int64
	nextMsgID    int64
}

func NewDB() *DB {
	return &DB{
		users:        make(map[int64]*model.User),
		rooms:        make(map[int64]*model.Room),
		participants: make(map[pairKey]*model.Participant),
		permissions:  make(map[pairKey]model.PermissionType),
		messages:     make(map[int64]*model.Message),
	}
}

// AddUser регистрирует пользователя (чат-ядро пользователей не создаёт).
func (d *DB) AddUser(id int64, username string, role model.GlobalRole) *model.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := &model.User{ID: id, Username: username, Email: username + "@example.com", Role: role, CreatedAt: time.Now().UTC()}
	d.users[id] = u
	return u
}

// GrantPermission задаёт переопределение прав для пары (room, user).
func (d *DB) GrantPermission(roomID, userID int64, p model.PermissionType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.permissions[pairKey{roomID, userID}] = p
}

func (d *DB) Users() *UserStore               { return &UserStore{d} }
func (d *DB) Rooms() *RoomStore               { return &RoomStore{d} }
func (d *DB) Participants() *ParticipantStore { return &ParticipantStore{d} }
func (d *DB) Permissions() *PermissionStore   { return &PermissionStore{d} }
func (d *DB) Messages() *MessageStore         { return &MessageStore{d} }

type UserStore struct{ db *DB }

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

type RoomStore struct{ db *DB }

func (s *RoomStore) Create(ctx context.Context, room *model.Room) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextRoomID++
	room.ID = s.db.nextRoomID
	room.UpdatedAt = room.CreatedAt
	cp := *room
	s.db.rooms[room.ID] = &cp
	return nil
}

func (s *RoomStore) GetActive(ctx context.Context, id int64) (*model.Room, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rooms[id]
	if !ok || !r.IsActive {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *RoomStore) ListForUser(ctx context.Context, userID int64) ([]model.Room, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Room
	for key, p := range s.db.participants {
		if p.UserID != userID {
			continue
		}
		r, ok := s.db.rooms[key.roomID]
		if !ok || !r.IsActive {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *RoomStore) Deactivate(ctx context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	r, ok := s.db.rooms[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.IsActive = false
	return nil
}

type ParticipantStore struct{ db *DB }

func (s *ParticipantStore) Join(ctx context.Context, roomID, userID int64, role model.ParticipantRole) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	room, ok := s.db.rooms[roomID]
	if !ok || !room.IsActive {
		return repository.ErrNotFound
	}
	if _, exists := s.db.participants[pairKey{roomID, userID}]; exists {
		return repository.ErrAlreadyJoined
	}
	count := 0
	for key := range s.db.participants {
		if key.roomID == roomID {
			count++
		}
	}
	if count >= room.MaxParticipants {
		return repository.ErrRoomFull
	}
	now := time.Now().UTC()
	s.db.participants[pairKey{roomID, userID}] = &model.Participant{
		RoomID:   roomID,
		UserID:   userID,
		Role:     role,
		IsOnline: true,
		JoinedAt: now,
		LastSeen: now,
	}
	return nil
}

func (s *ParticipantStore) Get(ctx context.Context, roomID, userID int64) (*model.Participant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.participants[pairKey{roomID, userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *ParticipantStore) ListByRoom(ctx context.Context, roomID int64) ([]model.Participant, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Participant
	for key, p := range s.db.participants {
		if key.roomID != roomID {
			continue
		}
		cp := *p
		if u, ok := s.db.users[p.UserID]; ok {
			pub := u.ToPublic()
			cp.User = &pub
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *ParticipantStore) Remove(ctx context.Context, roomID, userID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	delete(s.db.participants, pairKey{roomID, userID})
	return nil
}

func (s *ParticipantStore) SetOnline(ctx context.Context, roomID, userID int64, online bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.participants[pairKey{roomID, userID}]
	if !ok {
		return nil
	}
	p.IsOnline = online
	p.LastSeen = time.Now().UTC()
	return nil
}

func (s *ParticipantStore) SetAllOffline(ctx context.Context, userID int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	now := time.Now().UTC()
	for _, p := range s.db.participants {
		if p.UserID == userID && p.IsOnline {
			p.IsOnline = false
			p.LastSeen = now
		}
	}
	return nil
}

type PermissionStore struct{ db *DB }

func (s *PermissionStore) Get(ctx context.Context, roomID, userID int64) (model.PermissionType, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.permissions[pairKey{roomID, userID}], nil
}

type MessageStore struct{ db *DB }

func (s *MessageStore) Create(ctx context.Context, m *model.Message) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.nextMsgID++
	m.ID = s.db.nextMsgID
	m.UpdatedAt = m.CreatedAt
	cp := *m
	s.db.messages[m.ID] = &cp
	if room, ok := s.db.rooms[m.RoomID]; ok {
		room.UpdatedAt = m.CreatedAt
	}
	return nil
}

func (s *MessageStore) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := s.enrich(m)
	return &cp, nil
}

func (s *MessageStore) ListByRoom(ctx context.Context, roomID int64, limit, offset int) ([]model.Message, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []*model.Message
	for _, m := range s.db.messages {
		if m.RoomID == roomID && !m.IsDeleted {
			all = append(all, m)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	out := make([]model.Message, 0, len(all))
	for _, m := range all {
		out = append(out, s.enrich(m))
	}
	return out, nil
}

func (s *MessageStore) UpdateContent(ctx context.Context, id int64, content string, updatedAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.messages[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.Content = content
	m.IsEdited = true
	m.UpdatedAt = updatedAt
	return nil
}

func (s *MessageStore) SoftDelete(ctx context.Context, id int64, deletedAt time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.messages[id]
	if !ok || m.IsDeleted {
		return nil
	}
	m.IsDeleted = true
	m.UpdatedAt = deletedAt
	return nil
}

// enrich повторяет JOIN'ы репозитория: отправитель и превью цитаты.
// Вызывается под мьютексом.
func (s *MessageStore) enrich(m *model.Message) model.Message {
	cp := *m
	if u, ok := s.db.users[m.SenderID]; ok {
		pub := u.ToPublic()
		cp.Sender = &pub
	}
	if m.ReplyToID != nil {
		if rm, ok := s.db.messages[*m.ReplyToID]; ok {
			preview := model.ReplyPreview{ID: rm.ID, SenderID: rm.SenderID, Content: rm.Content}
			if ru, ok := s.db.users[rm.SenderID]; ok {
				preview.SenderName = ru.Username
			}
			cp.ReplyTo = &preview
		}
	}
	return cp
}
