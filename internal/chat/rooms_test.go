package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/testutil"
)

func newRoomFixture(t *testing.T) (*testutil.DB, *RoomService) {
	t.Helper()
	db := testutil.NewDB()
	return db, NewRoomService(db.Rooms(), db.Participants(), db.Users(), 0)
}

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "alice", model.GlobalRoleParticipant)

	room, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "  general  ", RoomType: model.RoomTypeProject})
	require.NoError(t, err)
	assert.Equal(t, "general", room.Name)
	assert.Equal(t, model.RoomTypeProject, room.RoomType)
	assert.True(t, room.IsActive)
	assert.Equal(t, 50, room.MaxParticipants)

	// Создатель сразу участник с ролью owner.
	p, err := svc.Participant(ctx, room.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipantRoleOwner, p.Role)

	_, err = svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "   "})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJoinRoom_RoleMapping(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "owner", model.GlobalRoleParticipant)
	db.AddUser(2, "editor", model.GlobalRoleEditor)
	db.AddUser(3, "advertiser", model.GlobalRoleAdvertiser)
	db.AddUser(4, "platform-admin", model.GlobalRoleSuperAdmin)
	db.AddUser(5, "regular", model.GlobalRoleParticipant)

	room, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "general"})
	require.NoError(t, err)

	expect := map[int64]model.ParticipantRole{
		2: model.ParticipantRoleEditor,
		3: model.ParticipantRoleAdvertiser,
		4: model.ParticipantRoleAdmin,
		5: model.ParticipantRoleParticipant,
	}
	for userID, wantRole := range expect {
		p, err := svc.JoinRoom(ctx, room.ID, userID)
		require.NoError(t, err)
		assert.Equal(t, wantRole, p.Role)
		assert.True(t, p.IsOnline)
		require.NotNil(t, p.User)
		assert.Equal(t, userID, p.User.ID)
	}
}

func TestJoinRoom_Errors(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "owner", model.GlobalRoleParticipant)
	db.AddUser(2, "bob", model.GlobalRoleParticipant)
	db.AddUser(3, "carol", model.GlobalRoleParticipant)

	room, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "tiny", MaxParticipants: 2})
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, room.ID, 2)
	require.NoError(t, err)

	_, err = svc.JoinRoom(ctx, room.ID, 2)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	_, err = svc.JoinRoom(ctx, room.ID, 3)
	assert.ErrorIs(t, err, ErrRoomFull)

	_, err = svc.JoinRoom(ctx, 999, 3)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	require.NoError(t, svc.DeactivateRoom(ctx, room.ID, 1))
	_, err = svc.JoinRoom(ctx, room.ID, 3)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

// Гонка за последнее место: при вместимости N из N+k конкурентных попыток
// входа успешны ровно N-1 (одно место занято владельцем).
func TestJoinRoom_ConcurrentCapacity(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "owner", model.GlobalRoleParticipant)

	const capacity = 5
	const contenders = 20
	for i := int64(2); i < 2+contenders; i++ {
		db.AddUser(i, "user", model.GlobalRoleParticipant)
	}

	room, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "busy", MaxParticipants: capacity})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.JoinRoom(ctx, room.ID, int64(2+i))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrRoomFull)
		}
	}
	assert.Equal(t, capacity-1, succeeded)

	roster, err := svc.Roster(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, roster, capacity)
}

func TestGetRoomDetail(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "owner", model.GlobalRoleParticipant)
	db.AddUser(2, "bob", model.GlobalRoleParticipant)
	db.AddUser(3, "outsider", model.GlobalRoleParticipant)

	room, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "general"})
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 2)
	require.NoError(t, err)

	// Не участник — запрещено даже смотреть.
	_, err = svc.GetRoomDetail(ctx, room.ID, 3)
	assert.ErrorIs(t, err, ErrAccessDenied)

	require.NoError(t, svc.SetPresence(ctx, room.ID, 2, false))

	detail, err := svc.GetRoomDetail(ctx, room.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, room.ID, detail.Room.ID)
	require.Len(t, detail.Participants, 2)
	// Состав в порядке вступления; просмотр пометил вызывающего онлайн.
	assert.Equal(t, int64(1), detail.Participants[0].UserID)
	assert.Equal(t, int64(2), detail.Participants[1].UserID)
	assert.True(t, detail.Participants[1].IsOnline)
	require.NotNil(t, detail.Participants[0].User)
	assert.Equal(t, "owner", detail.Participants[0].User.Username)
}

func TestLeaveRoom(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "owner", model.GlobalRoleParticipant)
	db.AddUser(2, "bob", model.GlobalRoleParticipant)

	room, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "general"})
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.LeaveRoom(ctx, room.ID, 1), ErrOwnerCannotLeave)
	assert.ErrorIs(t, svc.LeaveRoom(ctx, room.ID, 99), ErrNotParticipant)

	require.NoError(t, svc.LeaveRoom(ctx, room.ID, 2))
	_, err = svc.Participant(ctx, room.ID, 2)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestRemoveParticipant(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "owner", model.GlobalRoleParticipant)
	db.AddUser(2, "room-admin", model.GlobalRoleAdmin)
	db.AddUser(3, "bob", model.GlobalRoleParticipant)
	db.AddUser(4, "carol", model.GlobalRoleParticipant)

	room, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "general"})
	require.NoError(t, err)
	for _, id := range []int64{2, 3, 4} {
		_, err = svc.JoinRoom(ctx, room.ID, id)
		require.NoError(t, err)
	}

	// Рядовой участник удалять не может.
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, room.ID, 3, 4), ErrNotAuthorized)
	// Владельца не удалить никому.
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, room.ID, 2, 1), ErrCannotRemoveOwner)
	assert.ErrorIs(t, svc.RemoveParticipant(ctx, room.ID, 1, 99), ErrParticipantNotFound)

	require.NoError(t, svc.RemoveParticipant(ctx, room.ID, 2, 3))
	_, err = svc.Participant(ctx, room.ID, 3)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestDeactivateRoom(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "owner", model.GlobalRoleParticipant)
	db.AddUser(2, "room-admin", model.GlobalRoleAdmin)

	room, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "general"})
	require.NoError(t, err)
	_, err = svc.JoinRoom(ctx, room.ID, 2)
	require.NoError(t, err)

	// Даже admin комнаты не может её закрыть — только владелец.
	assert.ErrorIs(t, svc.DeactivateRoom(ctx, room.ID, 2), ErrNotAuthorized)
	require.NoError(t, svc.DeactivateRoom(ctx, room.ID, 1))

	rooms, err := svc.ListRooms(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestListRooms_OrderedByActivity(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "alice", model.GlobalRoleParticipant)

	first, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "first"})
	require.NoError(t, err)
	second, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "second"})
	require.NoError(t, err)

	resolver := NewResolver(db.Participants(), db.Permissions())
	msgs := NewMessageService(db.Messages(), resolver)

	// Сообщение в первой комнате поднимает её наверх.
	_, err = msgs.Send(ctx, SendInput{RoomID: first.ID, SenderID: 1, Content: "bump"})
	require.NoError(t, err)

	rooms, err := svc.ListRooms(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, first.ID, rooms[0].ID)
	assert.Equal(t, second.ID, rooms[1].ID)
}

func TestPresence(t *testing.T) {
	ctx := context.Background()
	db, svc := newRoomFixture(t)
	db.AddUser(1, "alice", model.GlobalRoleParticipant)

	a, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "a"})
	require.NoError(t, err)
	b, err := svc.CreateRoom(ctx, 1, CreateRoomInput{Name: "b"})
	require.NoError(t, err)

	require.NoError(t, svc.SetPresence(ctx, a.ID, 1, true))
	require.NoError(t, svc.SetPresence(ctx, b.ID, 1, true))

	// Разрыв соединения гасит присутствие во всех комнатах пользователя.
	require.NoError(t, svc.MarkAllOffline(ctx, 1))
	for _, roomID := range []int64{a.ID, b.ID} {
		p, err := svc.Participant(ctx, roomID, 1)
		require.NoError(t, err)
		assert.False(t, p.IsOnline)
	}
}
