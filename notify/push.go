package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushSender delivers notifications through the browser push
// services (FCM, Mozilla autopush, APNs web push) using VAPID keys.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string // mailto: contact required by the VAPID spec
	ttl        int
}

// NewWebPushSender creates a sender from a VAPID key pair.
func NewWebPushSender(publicKey, privateKey, subscriber string) *WebPushSender {
	return &WebPushSender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		ttl:        3600,
	}
}

// SendPush posts the payload to the subscription's push endpoint.
func (w *WebPushSender) SendPush(ctx context.Context, subscriptionJSON string, p PushPayload) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(subscriptionJSON), &sub); err != nil {
		return fmt.Errorf("notify: decode subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return fmt.Errorf("notify: subscription has no endpoint")
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &sub, &webpush.Options{
		Subscriber:      w.subscriber,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             w.ttl,
	})
	if err != nil {
		return fmt.Errorf("notify: webpush: %w", err)
	}
	defer resp.Body.Close()

	// 404/410 mean the subscription is gone; the caller's log is the
	// signal to drop it on the next profile update.
	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: webpush: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
