package storage

import (
	"context"
	"time"
)

// Store — хранилище отозванных токенов и push-подписок.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
type Store interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	AddPushSubscription(ctx context.Context, userID int64, endpoint, subscription string) error
	GetPushSubscriptions(ctx context.Context, userID int64) ([]string, error)
	RemovePushSubscription(ctx context.Context, userID int64, endpoint string) error
	Close() error
}
