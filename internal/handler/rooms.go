package handler

import (
	"encoding/json"
	"net/http"

	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/middleware"
	"github.com/roomchat/internal/model"
)

type RoomHandler struct {
	rooms *chat.RoomService
}

func NewRoomHandler(rooms *chat.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// List возвращает комнаты пользователя, свежие (по updated_at) первыми.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	rooms, err := h.rooms.ListRooms(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rooms)
}

// Detail возвращает комнату с составом участников. Доступ только участникам;
// как побочный эффект помечает пользователя онлайн в этой комнате.
func (h *RoomHandler) Detail(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := urlParamInt64(r, "roomId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	detail, err := h.rooms.GetRoomDetail(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, detail)
}

type CreateRoomRequest struct {
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	RoomType        model.RoomType `json:"room_type"`
	MaxParticipants int            `json:"max_participants"`
}

// Create создаёт комнату; создатель становится участником-владельцем.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	room, err := h.rooms.CreateRoom(r.Context(), userID, chat.CreateRoomInput{
		Name:            req.Name,
		Description:     req.Description,
		RoomType:        req.RoomType,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, room)
}

// Join вступает в комнату. Вместимость проверяется атомарно:
// при гонке за последнее место ровно один запрос получает 409 room full.
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := urlParamInt64(r, "roomId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	p, err := h.rooms.JoinRoom(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, p)
}

// Leave выходит из комнаты. Владелец выйти не может (только деактивация).
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := urlParamInt64(r, "roomId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	if err := h.rooms.LeaveRoom(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// RemoveParticipant удаляет участника (только owner/admin; владельца удалить нельзя).
func (h *RoomHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	roomID, ok := urlParamInt64(r, "roomId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	targetID, ok := urlParamInt64(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if err := h.rooms.RemoveParticipant(r.Context(), roomID, actorID, targetID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// Deactivate закрывает комнату (только владелец). История сохраняется.
func (h *RoomHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actorID := middleware.GetUserID(r.Context())
	roomID, ok := urlParamInt64(r, "roomId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	if err := h.rooms.DeactivateRoom(r.Context(), roomID, actorID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}
