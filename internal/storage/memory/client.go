package memory

import (
	"context"
	"sync"
	"time"
)

const (
	pushSubscriptionTTL = 30 * 24 * time.Hour
	maxRevokeTTL        = 30 * 24 * time.Hour
)

type item struct {
	val string
	exp time.Time
}

type Client struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	subs    map[int64]map[string]item
}

func New() *Client {
	return &Client{
		revoked: make(map[string]time.Time),
		subs:    make(map[int64]map[string]item),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 || ttl > maxRevokeTTL {
		ttl = maxRevokeTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked[jti] = time.Now().Add(ttl)
	return nil
}

func (c *Client) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	c.mu.RLock()
	exp, ok := c.revoked[jti]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		c.mu.Lock()
		delete(c.revoked, jti)
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (c *Client) AddPushSubscription(ctx context.Context, userID int64, endpoint, subscription string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[userID]; !ok {
		c.subs[userID] = make(map[string]item)
	}
	c.subs[userID][endpoint] = item{val: subscription, exp: time.Now().Add(pushSubscriptionTTL)}
	return nil
}

func (c *Client) GetPushSubscriptions(ctx context.Context, userID int64) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byEndpoint, ok := c.subs[userID]
	if !ok {
		return nil, nil
	}
	now := time.Now()
	out := make([]string, 0, len(byEndpoint))
	for _, v := range byEndpoint {
		if now.After(v.exp) {
			continue
		}
		out = append(out, v.val)
	}
	return out, nil
}

func (c *Client) RemovePushSubscription(ctx context.Context, userID int64, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if byEndpoint, ok := c.subs[userID]; ok {
		delete(byEndpoint, endpoint)
		if len(byEndpoint) == 0 {
			delete(c.subs, userID)
		}
	}
	return nil
}
