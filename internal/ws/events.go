package ws

import "github.com/roomchat/internal/model"

type EventType string

// Client → server.
const (
	EventJoinRoom    EventType = "join_room"
	EventLeaveRoom   EventType = "leave_room"
	EventSendMessage EventType = "send_message"
	EventTyping      EventType = "typing"
	EventStopTyping  EventType = "stop_typing"
)

// Server → client.
const (
	EventUserJoined        EventType = "user_joined"
	EventUserLeft          EventType = "user_left"
	EventReceiveMessage    EventType = "receive_message"
	EventUserTyping        EventType = "user_typing"
	EventUserStoppedTyping EventType = "user_stopped_typing"
	EventError             EventType = "error"
)

// IncomingEvent is what the client sends to the server.
type IncomingEvent struct {
	Type   EventType `json:"type"`
	RoomID int64     `json:"roomId,omitempty"`

	// For send_message
	MessageContent   string            `json:"messageContent,omitempty"`
	MessageType      model.MessageType `json:"messageType,omitempty"`
	ReplyToMessageID *int64            `json:"replyToMessageId,omitempty"`
	FileURL          string            `json:"fileUrl,omitempty"`
	FileName         string            `json:"fileName,omitempty"`
	FileSize         int64             `json:"fileSize,omitempty"`
	FileType         string            `json:"fileType,omitempty"`
}

// OutgoingEvent is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingEvent struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// UserJoinedPayload уходит всем подписчикам комнаты, кроме вошедшего.
type UserJoinedPayload struct {
	RoomID int64             `json:"roomId"`
	UserID int64             `json:"userId"`
	User   *model.UserPublic `json:"user,omitempty"`
}

// UserLeftPayload уходит всем подписчикам комнаты, кроме ушедшего.
type UserLeftPayload struct {
	RoomID int64 `json:"roomId"`
	UserID int64 `json:"userId"`
}

// TypingPayload is broadcast to the room's other subscribers only.
type TypingPayload struct {
	RoomID   int64  `json:"roomId"`
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
}

// StoppedTypingPayload mirrors TypingPayload without the display name.
type StoppedTypingPayload struct {
	RoomID int64 `json:"roomId"`
	UserID int64 `json:"userId"`
}

// ErrorPayload доставляется только инициатору; соединение не разрывается.
type ErrorPayload struct {
	Message string `json:"message"`
}
