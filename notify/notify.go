// Package notify delivers price alert notifications over email and Web
// Push. Senders are interfaces so the alert engine tests with fakes;
// the concrete implementations wrap SendGrid and VAPID Web Push.
package notify

import (
	"context"
	"log/slog"
	"strconv"
)

// Notification is everything needed to tell one user about one price.
type Notification struct {
	UserName         string
	Email            string // empty = no email channel
	PushSubscription string // Web Push subscription JSON, empty = no push channel
	MedicationID     string
	MedicationName   string
	PharmacyName     string
	Chain            string
	CurrentPrice     int // CLP
	TargetPrice      int // CLP
}

// EmailSender delivers a price alert email.
type EmailSender interface {
	SendPriceAlert(ctx context.Context, n Notification) error
}

// PushPayload is the JSON body the service worker renders.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// PushSender delivers one Web Push message to a subscription.
type PushSender interface {
	SendPush(ctx context.Context, subscriptionJSON string, p PushPayload) error
}

// Dispatcher fans a notification out to every channel the user has.
// Channels fail independently: a dead push subscription never blocks
// the email and vice versa.
type Dispatcher struct {
	email   EmailSender
	push    PushSender
	baseURL string
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. Either sender may be nil to
// disable that channel.
func NewDispatcher(email EmailSender, push PushSender, baseURL string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{email: email, push: push, baseURL: baseURL, logger: logger}
}

// Dispatch attempts every available channel and reports failures as
// logs only. Delivery is best-effort: the caller's bookkeeping must not
// depend on whether a third-party provider was up.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	if d.email != nil && n.Email != "" {
		if err := d.email.SendPriceAlert(ctx, n); err != nil {
			d.logger.Error("notify: email delivery failed",
				"email", n.Email, "medication", n.MedicationName, "error", err)
		}
	}
	if d.push != nil && n.PushSubscription != "" {
		payload := PushPayload{
			Title: "💊 " + n.MedicationName + " bajó de precio",
			Body:  "Ahora a " + FormatCLP(n.CurrentPrice) + " en " + n.PharmacyName,
			URL:   d.baseURL + "/medications/" + n.MedicationID,
		}
		if err := d.push.SendPush(ctx, n.PushSubscription, payload); err != nil {
			d.logger.Error("notify: push delivery failed",
				"medication", n.MedicationName, "error", err)
		}
	}
}

// FormatCLP renders integer pesos in the local convention: $1.290.
func FormatCLP(amount int) string {
	s := strconv.Itoa(amount)
	neg := false
	if amount < 0 {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	if neg {
		return "-$" + string(out)
	}
	return "$" + string(out)
}
