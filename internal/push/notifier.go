package push

import (
	"context"
	"encoding/json"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/roomchat/internal/logger"
	"github.com/roomchat/internal/storage"
)

// Subscription — подписка из браузера (PushSubscription.toJSON()).
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// Notifier шлёт Web Push напрямую (без отдельного микросервиса).
// Если VAPID-ключи не заданы — все методы no-op.
type Notifier struct {
	store storage.Store
	vapid *webpush.Options
}

func NewNotifier(store storage.Store, keys *VAPIDKeys) *Notifier {
	n := &Notifier{store: store}
	if keys != nil && keys.PublicKey != "" && keys.PrivateKey != "" {
		n.vapid = &webpush.Options{
			Subscriber:      "roomchat-push",
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		}
	}
	return n
}

// Enabled сообщает, настроены ли VAPID-ключи.
func (n *Notifier) Enabled() bool { return n != nil && n.vapid != nil }

// Subscribe сохраняет подписку пользователя.
func (n *Notifier) Subscribe(ctx context.Context, userID int64, sub Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return n.store.AddPushSubscription(ctx, userID, sub.Endpoint, string(raw))
}

// Unsubscribe удаляет подписку по endpoint.
func (n *Notifier) Unsubscribe(ctx context.Context, userID int64, endpoint string) error {
	return n.store.RemovePushSubscription(ctx, userID, endpoint)
}

// Notify отправляет уведомление на все подписки пользователя.
// Мёртвые подписки (410/404 от push-сервиса) удаляются.
func (n *Notifier) Notify(ctx context.Context, userID int64, title, body string, data map[string]string) {
	if n.vapid == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	list, err := n.store.GetPushSubscriptions(ctx, userID)
	if err != nil {
		logger.Errorf("push get subscriptions user=%d: %v", userID, err)
		return
	}
	if len(list) == 0 {
		return
	}

	payload := map[string]any{"title": title, "body": body, "data": data}
	payloadBytes, _ := json.Marshal(payload)

	for _, item := range list {
		var sub Subscription
		if json.Unmarshal([]byte(item), &sub) != nil || sub.Endpoint == "" {
			continue
		}
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payloadBytes, wpSub, n.vapid)
		if err != nil {
			logger.Errorf("push send user=%d endpoint=%s: %v", userID, truncate(sub.Endpoint, 50), err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			if err := n.store.RemovePushSubscription(ctx, userID, sub.Endpoint); err != nil {
				logger.Errorf("push remove dead subscription user=%d: %v", userID, err)
			}
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
