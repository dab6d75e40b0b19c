package handler

import (
	"encoding/json"
	"net/http"

	"github.com/roomchat/internal/chat"
	"github.com/roomchat/internal/middleware"
	"github.com/roomchat/internal/model"
	"github.com/roomchat/internal/ws"
)

type MessageHandler struct {
	messages *chat.MessageService
	hub      *ws.Hub
}

func NewMessageHandler(messages *chat.MessageService, hub *ws.Hub) *MessageHandler {
	return &MessageHandler{messages: messages, hub: hub}
}

// List возвращает страницу истории в хронологическом порядке.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := urlParamInt64(r, "roomId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return
	}
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)
	msgs, err := h.messages.List(r.Context(), roomID, userID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, msgs)
}

type SendMessageRequest struct {
	RoomID           int64             `json:"room_id"`
	MessageContent   string            `json:"message_content"`
	MessageType      model.MessageType `json:"message_type"`
	ReplyToMessageID *int64            `json:"reply_to_message_id"`
	FileURL          string            `json:"file_url"`
	FileName         string            `json:"file_name"`
	FileSize         int64             `json:"file_size"`
	FileType         string            `json:"file_type"`
}

// Send сохраняет сообщение и рассылает его подписчикам комнаты —
// те же побочные эффекты, что и у socket-события send_message.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	m, err := h.messages.Send(r.Context(), chat.SendInput{
		RoomID:   req.RoomID,
		SenderID: userID,
		Content:  req.MessageContent,
		Type:     req.MessageType,
		FileURL:  req.FileURL,
		FileName: req.FileName,
		FileSize: req.FileSize,
		FileType: req.FileType,
		ReplyTo:  req.ReplyToMessageID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.hub.BroadcastMessage(r.Context(), m)
	writeSuccess(w, http.StatusCreated, m)
}

type EditMessageRequest struct {
	MessageContent string `json:"message_content"`
}

// Edit меняет текст сообщения (автор или модератор комнаты).
// Удалённые сообщения не редактируются.
func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := urlParamInt64(r, "messageId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	m, err := h.messages.Edit(r.Context(), messageID, userID, req.MessageContent)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, m)
}

// Delete помечает сообщение удалённым (мягкое удаление, идемпотентно).
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	messageID, ok := urlParamInt64(r, "messageId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid message id")
		return
	}
	if err := h.messages.Delete(r.Context(), messageID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}
