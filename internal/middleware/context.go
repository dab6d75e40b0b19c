package middleware

import (
	"context"

	"github.com/roomchat/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity — аутентифицированный пользователь запроса (устанавливается BearerAuth).
type Identity struct {
	UserID   int64
	Username string
	Role     model.GlobalRole
	TokenID  string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// GetUserID возвращает user_id из контекста; 0 — не аутентифицирован.
func GetUserID(ctx context.Context) int64 {
	id, _ := ctx.Value(identityKey).(Identity)
	return id.UserID
}
