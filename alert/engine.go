// Package alert matches active price alerts against the collected price
// history and triggers notifications, rate-limited per alert.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pharmacheck/pricewatch/notify"
	"github.com/pharmacheck/pricewatch/store"
)

// Cooldown is the minimum gap between notifications for one alert.
const Cooldown = 24 * time.Hour

// Notifier is the delivery side the engine hands matches to.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification)
}

// Report summarizes one check pass.
type Report struct {
	Fired int `json:"fired"`
	Total int `json:"total"`
}

// Engine evaluates alerts against stored prices.
type Engine struct {
	store    *store.Store
	notifier Notifier
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewEngine creates an Engine with the default cooldown.
func NewEngine(st *store.Store, notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    st,
		notifier: notifier,
		cooldown: Cooldown,
		now:      time.Now,
		logger:   logger,
	}
}

// Check evaluates every active alert once. An alert fires when the
// cheapest stored price at or under its target exists (respecting its
// chain restriction) and the alert is past its cooldown.
//
// Firing stamps last_notified regardless of delivery outcome: the
// cooldown protects users from repeat notifications, and a provider
// outage must not turn into a notification storm once the provider
// recovers.
func (e *Engine) Check(ctx context.Context) (Report, error) {
	alerts, err := e.store.ActiveAlerts(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("alert: check: %w", err)
	}
	rep := Report{Total: len(alerts)}

	for _, a := range alerts {
		quote, err := e.store.LowestPriceAt(ctx, a.MedicationID, a.Chain, a.TargetPrice)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("alert: check: %w", err)
		}

		now := e.now()
		if a.LastNotified != nil && now.Sub(*a.LastNotified) < e.cooldown {
			continue
		}

		e.notifier.Dispatch(ctx, notify.Notification{
			UserName:         a.UserName,
			Email:            a.UserEmail,
			PushSubscription: a.PushSubscription,
			MedicationID:     a.MedicationID,
			MedicationName:   a.MedicationName,
			PharmacyName:     quote.PharmacyName,
			Chain:            string(quote.Chain),
			CurrentPrice:     quote.Amount,
			TargetPrice:      a.TargetPrice,
		})

		if err := e.store.StampNotified(ctx, a.ID, now); err != nil {
			e.logger.Error("alert: stamp failed", "alert_id", a.ID, "error", err)
		}
		rep.Fired++

		e.logger.Info("alert: fired",
			"alert_id", a.ID, "medication", a.MedicationName,
			"price", quote.Amount, "target", a.TargetPrice, "pharmacy", quote.PharmacyName)
	}

	return rep, nil
}
