package model

import "time"

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
	MessageTypeVoice MessageType = "voice"
)

// Message is soft-deleted only: IsDeleted hides it, content is retained.
// ReplyToID must reference a message in the same room (enforced at write time).
type Message struct {
	ID        int64       `json:"id"`
	RoomID    int64       `json:"room_id"`
	SenderID  int64       `json:"sender_id"`
	Type      MessageType `json:"message_type"`
	Content   string      `json:"message_content"`
	FileURL   string      `json:"file_url,omitempty"`
	FileName  string      `json:"file_name,omitempty"`
	FileSize  int64       `json:"file_size,omitempty"`
	FileType  string      `json:"file_type,omitempty"`
	IsEdited  bool        `json:"is_edited"`
	IsDeleted bool        `json:"is_deleted"`
	ReplyToID *int64      `json:"reply_to_message_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Sender  *UserPublic   `json:"sender,omitempty"`
	ReplyTo *ReplyPreview `json:"reply_to,omitempty"`
}

// ReplyPreview — краткая карточка цитируемого сообщения для отображения
// в ленте (полное сообщение клиенту не нужно).
type ReplyPreview struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"message_content"`
}
