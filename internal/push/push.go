package push

import (
	"encoding/json"
	"errors"
	"log/slog"

	"sphere/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

type subscriptionStore interface {
	GetSubscription(userID string) (models.PushSubscription, error)
}

// Service delivers best-effort web pushes to users with a registered
// subscription. Disabled entirely when no VAPID key pair is configured.
type Service struct {
	store      subscriptionStore
	subscriber string
	publicKey  string
	privateKey string
}

func New(store subscriptionStore, subscriber, publicKey, privateKey string) *Service {
	return &Service{
		store:      store,
		subscriber: subscriber,
		publicKey:  publicKey,
		privateKey: privateKey,
	}
}

func (s *Service) Enabled() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// Notify pushes a notification to the user's endpoint. Fire-and-forget:
// failures are logged, never retried, never surfaced to the caller.
func (s *Service) Notify(userID string, n models.Notification) {
	if !s.Enabled() {
		return
	}

	sub, err := s.store.GetSubscription(userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			slog.Error("push subscription lookup failed", "user_id", userID, "error", err)
		}
		return
	}

	payload, err := json.Marshal(map[string]string{
		"senderName": n.Sender,
		"type":       string(n.Type),
	})
	if err != nil {
		slog.Error("push payload marshal failed", "error", err)
		return
	}

	resp, err := webpush.SendNotification(payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
	})
	if err != nil {
		slog.Error("push delivery failed", "user_id", userID, "error", err)
		return
	}
	_ = resp.Body.Close()
}
