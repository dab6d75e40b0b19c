package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/middleware"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/storage/memory"
	"github.com/roomchat/internal/testutil"
	"github.com/roomchat/internal/ws"
)

// apiFixture — роутер с боевыми маршрутами над in-memory хранилищем.
// Аутентификация подменена: пользователь задаётся заголовком X-Test-User,
// сам BearerAuth проверяется в пакете middleware.
type apiFixture struct {
	db     *testutil.DB
	router chi.Router
	rooms  *chat.RoomService
	store  *memory.Client
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	db := testutil.NewDB()
	db.AddUser(1, "owner", model.GlobalRoleParticipant)
	db.AddUser(2, "bob", model.GlobalRoleParticipant)
	db.AddUser(3, "carol", model.GlobalRoleParticipant)

	roomSvc := chat.NewRoomService(db.Rooms(), db.Participants(), db.Users(), 0)
	resolver := chat.NewResolver(db.Participants(), db.Permissions())
	msgSvc := chat.NewMessageService(db.Messages(), resolver)
	hub := ws.NewHub(roomSvc, msgSvc, 0, nil)
	store := memory.New()

	roomH := NewRoomHandler(roomSvc)
	msgH := NewMessageHandler(msgSvc, hub)
	tokenH := NewTokenHandler(store)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var id middleware.Identity
			if _, err := fmt.Sscan(req.Header.Get("X-Test-User"), &id.UserID); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			id.TokenID = req.Header.Get("X-Test-JTI")
			next.ServeHTTP(w, req.WithContext(middleware.WithIdentity(req.Context(), id)))
		})
	})
	r.Get("/api/rooms", roomH.List)
	r.Post("/api/rooms", roomH.Create)
	r.Get("/api/rooms/{roomId}", roomH.Detail)
	r.Post("/api/rooms/{roomId}/join", roomH.Join)
	r.Post("/api/rooms/{roomId}/leave", roomH.Leave)
	r.Post("/api/rooms/{roomId}/deactivate", roomH.Deactivate)
	r.Post("/api/rooms/{roomId}/participants/{userId}/remove", roomH.RemoveParticipant)
	r.Get("/api/messages/{roomId}", msgH.List)
	r.Post("/api/messages", msgH.Send)
	r.Put("/api/messages/{messageId}", msgH.Edit)
	r.Delete("/api/messages/{messageId}", msgH.Delete)
	r.Post("/api/auth/logout", tokenH.Logout)

	return &apiFixture{db: db, router: r, rooms: roomSvc, store: store}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *apiFixture) do(t *testing.T, userID int64, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Test-User", fmt.Sprint(userID))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

// createRoom создаёт комнату от имени owner (user 1) напрямую через сервис.
func (f *apiFixture) createRoom(t *testing.T, in chat.CreateRoomInput) *model.Room {
	t.Helper()
	room, err := f.rooms.CreateRoom(context.Background(), 1, in)
	require.NoError(t, err)
	return room
}

func TestRooms_Create(t *testing.T) {
	f := newAPIFixture(t)

	code, env := f.do(t, 1, http.MethodPost, "/api/rooms", CreateRoomRequest{
		Name:     "  general  ",
		RoomType: model.RoomTypeGroup,
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "success", env.Status)

	var room model.Room
	require.NoError(t, json.Unmarshal(env.Data, &room))
	assert.Equal(t, "general", room.Name)
	assert.Equal(t, 50, room.MaxParticipants)
	assert.True(t, room.IsActive)

	// Пустое имя — 400 с конвертом ошибки.
	code, env = f.do(t, 1, http.MethodPost, "/api/rooms", CreateRoomRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", env.Status)
	assert.NotEmpty(t, env.Message)

	// Битое тело.
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewBufferString("{nope"))
	req.Header.Set("X-Test-User", "1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRooms_JoinStatuses(t *testing.T) {
	f := newAPIFixture(t)
	room := f.createRoom(t, chat.CreateRoomInput{Name: "general", MaxParticipants: 2})
	path := fmt.Sprintf("/api/rooms/%d/join", room.ID)

	code, env := f.do(t, 2, http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, code)
	var p model.Participant
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, int64(2), p.UserID)

	// Повторное вступление — конфликт.
	code, env = f.do(t, 2, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "error", env.Status)

	// Комната заполнена (owner + bob при вместимости 2).
	code, _ = f.do(t, 3, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusConflict, code)

	// Несуществующая комната.
	code, _ = f.do(t, 2, http.MethodPost, "/api/rooms/9999/join", nil)
	assert.Equal(t, http.StatusNotFound, code)

	// Кривой id.
	code, _ = f.do(t, 2, http.MethodPost, "/api/rooms/abc/join", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRooms_DetailAccess(t *testing.T) {
	f := newAPIFixture(t)
	room := f.createRoom(t, chat.CreateRoomInput{Name: "private"})
	path := fmt.Sprintf("/api/rooms/%d", room.ID)

	code, env := f.do(t, 1, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, code)
	var detail chat.RoomDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, room.ID, detail.Room.ID)
	require.Len(t, detail.Participants, 1)

	// Не участник — 403, состав комнаты не раскрывается.
	code, env = f.do(t, 2, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "error", env.Status)
	assert.Empty(t, env.Data)
}

func TestRooms_LeaveAndRemove(t *testing.T) {
	f := newAPIFixture(t)
	room := f.createRoom(t, chat.CreateRoomInput{Name: "general"})
	_, err := f.rooms.JoinRoom(context.Background(), room.ID, 2)
	require.NoError(t, err)

	// Владелец выйти не может.
	code, _ := f.do(t, 1, http.MethodPost, fmt.Sprintf("/api/rooms/%d/leave", room.ID), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	// Рядовой участник не может удалять других.
	code, _ = f.do(t, 2, http.MethodPost, fmt.Sprintf("/api/rooms/%d/participants/1/remove", room.ID), nil)
	assert.Equal(t, http.StatusForbidden, code)

	// Владелец удаляет участника.
	code, _ = f.do(t, 1, http.MethodPost, fmt.Sprintf("/api/rooms/%d/participants/2/remove", room.ID), nil)
	assert.Equal(t, http.StatusOK, code)

	// Удалённого больше нет — повторное удаление 404.
	code, _ = f.do(t, 1, http.MethodPost, fmt.Sprintf("/api/rooms/%d/participants/2/remove", room.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRooms_Deactivate(t *testing.T) {
	f := newAPIFixture(t)
	room := f.createRoom(t, chat.CreateRoomInput{Name: "old"})
	_, err := f.rooms.JoinRoom(context.Background(), room.ID, 2)
	require.NoError(t, err)

	// Не владелец — 403.
	code, _ := f.do(t, 2, http.MethodPost, fmt.Sprintf("/api/rooms/%d/deactivate", room.ID), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = f.do(t, 1, http.MethodPost, fmt.Sprintf("/api/rooms/%d/deactivate", room.ID), nil)
	require.Equal(t, http.StatusOK, code)

	// Закрытая комната исчезает из списка и не принимает вступления.
	code, env := f.do(t, 1, http.MethodGet, "/api/rooms", nil)
	require.Equal(t, http.StatusOK, code)
	var rooms []model.Room
	require.NoError(t, json.Unmarshal(env.Data, &rooms))
	assert.Empty(t, rooms)

	code, _ = f.do(t, 3, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", room.ID), nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuth_Logout(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("X-Test-User", "1")
	req.Header.Set("X-Test-JTI", "tok-7")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	revoked, err := f.store.IsTokenRevoked(context.Background(), "tok-7")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Токен без jti отозвать нечем.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("X-Test-User", "1")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
