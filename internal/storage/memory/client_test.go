package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	c := New()

	revoked, err := c.IsTokenRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, c.RevokeToken(ctx, "tok-1", time.Hour))
	revoked, err = c.IsTokenRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Другой jti не задет.
	revoked, err = c.IsTokenRevoked(ctx, "tok-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeToken_TTLClamp(t *testing.T) {
	ctx := context.Background()
	c := New()

	// Нулевой и отрицательный TTL поднимаются до максимума, запись живёт.
	require.NoError(t, c.RevokeToken(ctx, "tok-zero", 0))
	require.NoError(t, c.RevokeToken(ctx, "tok-neg", -time.Minute))
	for _, jti := range []string{"tok-zero", "tok-neg"} {
		revoked, err := c.IsTokenRevoked(ctx, jti)
		require.NoError(t, err)
		assert.True(t, revoked, jti)
	}
}

func TestRevokeToken_Expiry(t *testing.T) {
	ctx := context.Background()
	c := New()

	require.NoError(t, c.RevokeToken(ctx, "tok-1", time.Hour))
	// Запись просрочена: подменяем срок напрямую, часы в тестах не крутим.
	c.mu.Lock()
	c.revoked["tok-1"] = time.Now().Add(-time.Second)
	c.mu.Unlock()

	revoked, err := c.IsTokenRevoked(ctx, "tok-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Ленивая очистка удалила запись.
	c.mu.RLock()
	_, ok := c.revoked["tok-1"]
	c.mu.RUnlock()
	assert.False(t, ok)
}

func TestPushSubscriptions(t *testing.T) {
	ctx := context.Background()
	c := New()

	subs, err := c.GetPushSubscriptions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, c.AddPushSubscription(ctx, 1, "ep-a", `{"endpoint":"ep-a"}`))
	require.NoError(t, c.AddPushSubscription(ctx, 1, "ep-b", `{"endpoint":"ep-b"}`))
	// Повторная подписка на тот же endpoint перезаписывает, а не дублирует.
	require.NoError(t, c.AddPushSubscription(ctx, 1, "ep-a", `{"endpoint":"ep-a","v":2}`))

	subs, err = c.GetPushSubscriptions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.Contains(t, subs, `{"endpoint":"ep-a","v":2}`)

	// Подписки другого пользователя изолированы.
	subs, err = c.GetPushSubscriptions(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, subs)

	require.NoError(t, c.RemovePushSubscription(ctx, 1, "ep-a"))
	subs, err = c.GetPushSubscriptions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, `{"endpoint":"ep-b"}`, subs[0])

	// Удаление несуществующего — no-op.
	require.NoError(t, c.RemovePushSubscription(ctx, 1, "ep-x"))
	require.NoError(t, c.RemovePushSubscription(ctx, 5, "ep-x"))
}
