package model

import "time"

// ParticipantRole — роль внутри конкретной комнаты (не равна GlobalRole).
type ParticipantRole string

const (
	ParticipantRoleOwner       ParticipantRole = "owner"
	ParticipantRoleAdmin       ParticipantRole = "admin"
	ParticipantRoleEditor      ParticipantRole = "editor"
	ParticipantRoleAdvertiser  ParticipantRole = "advertiser"
	ParticipantRoleParticipant ParticipantRole = "participant"
)

// ParticipantRoleFor maps a platform role to the room role assigned on join.
func ParticipantRoleFor(g GlobalRole) ParticipantRole {
	switch g {
	case GlobalRoleAdvertiser:
		return ParticipantRoleAdvertiser
	case GlobalRoleEditor:
		return ParticipantRoleEditor
	case GlobalRoleAdmin, GlobalRoleSuperAdmin:
		return ParticipantRoleAdmin
	default:
		return ParticipantRoleParticipant
	}
}

// Participant is the (room, user) membership row. One row per pair.
type Participant struct {
	RoomID   int64           `json:"room_id"`
	UserID   int64           `json:"user_id"`
	Role     ParticipantRole `json:"role"`
	IsOnline bool            `json:"is_online"`
	JoinedAt time.Time       `json:"joined_at"`
	LastSeen time.Time       `json:"last_seen"`
	User     *UserPublic     `json:"user,omitempty"`
}
