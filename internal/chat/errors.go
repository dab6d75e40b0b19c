// Package chat содержит общую бизнес-логику комнат и сообщений.
// REST-обработчики и WebSocket-хаб — тонкие адаптеры над этим пакетом:
// авторизация и побочные эффекты не должны различаться между транспортами.
package chat

import "errors"

var (
	ErrValidation          = errors.New("invalid input")
	ErrAccessDenied        = errors.New("access denied")
	ErrNotAuthorized       = errors.New("not authorized")
	ErrRoomNotFound        = errors.New("room not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotParticipant      = errors.New("not a participant")
	ErrRoomFull            = errors.New("room is full")
	ErrAlreadyJoined       = errors.New("already joined")
	ErrOwnerCannotLeave    = errors.New("owner cannot leave the room")
	ErrCannotRemoveOwner   = errors.New("cannot remove the room owner")
)
