package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Подписка живёт 30 дней без продления; каждое обновление подписки сдвигает TTL хэша.
const (
	pushSubscriptionTTL = 30 * 24 * time.Hour
	// Верхняя граница на случай токена без exp.
	maxRevokeTTL = 30 * 24 * time.Hour
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// RevokeToken помечает jti отозванным до истечения срока действия токена.
// Хранить дольше exp бессмысленно — просроченный токен и так не пройдёт проверку подписи по времени.
func (c *Client) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 || ttl > maxRevokeTTL {
		ttl = maxRevokeTTL
	}
	return c.cli.Set(ctx, "revoked:"+jti, "1", ttl).Err()
}

func (c *Client) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := c.cli.Get(ctx, "revoked:"+jti).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddPushSubscription сохраняет подписку в хэше push:subs:{userID} по ключу endpoint
// (браузер может иметь несколько подписок — по одной на устройство).
func (c *Client) AddPushSubscription(ctx context.Context, userID int64, endpoint, subscription string) error {
	key := pushKey(userID)
	if err := c.cli.HSet(ctx, key, endpoint, subscription).Err(); err != nil {
		return err
	}
	return c.cli.Expire(ctx, key, pushSubscriptionTTL).Err()
}

func (c *Client) GetPushSubscriptions(ctx context.Context, userID int64) ([]string, error) {
	vals, err := c.cli.HVals(ctx, pushKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return vals, err
}

func (c *Client) RemovePushSubscription(ctx context.Context, userID int64, endpoint string) error {
	return c.cli.HDel(ctx, pushKey(userID), endpoint).Err()
}

// FlushDB очищает текущую БД Redis (для сброса состояния при тестах/перезапуске).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}

func pushKey(userID int64) string {
	return "push:subs:" + strconv.FormatInt(userID, 10)
}
