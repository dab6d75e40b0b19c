package model

import "time"

type RoomType string

const (
	RoomTypeGroup   RoomType = "group"
	RoomTypeProject RoomType = "project"
	RoomTypeSupport RoomType = "support"
)

// Room is never physically deleted; it is deactivated via IsActive.
// UpdatedAt is refreshed by every message insert and is the room-list sort key.
type Room struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	RoomType        RoomType  `json:"room_type"`
	IsActive        bool      `json:"is_active"`
	MaxParticipants int       `json:"max_participants"`
	CreatedBy       int64     `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
