package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pharmacheck/pricewatch/scrape"
)

// User is the minimal projection the alert engine needs. User accounts
// themselves are managed by the external app surface.
type User struct {
	ID               string
	Email            string
	Name             string
	PushSubscription string // Web Push subscription JSON, empty = none
}

// CreateUser inserts a user row, assigning its ID.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	u.ID = newUserID()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, push_subscription, created_at)
		VALUES (?,?,?,?,?)`,
		u.ID, u.Email, u.Name, u.PushSubscription, nowMilli())
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}

// Alert is a user-defined price threshold. LastNotified is the
// anti-spam cooldown state.
type Alert struct {
	ID           string
	UserID       string
	MedicationID string
	TargetPrice  int
	Chain        scrape.Chain // "" = any chain
	Active       bool
	LastNotified *time.Time
	CreatedAt    time.Time
}

// CreateAlert inserts an alert, assigning its ID.
func (s *Store) CreateAlert(ctx context.Context, a *Alert) error {
	a.ID = newAlertID()
	a.CreatedAt = time.Now()
	var last any
	if a.LastNotified != nil {
		last = a.LastNotified.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_alerts (id, user_id, medication_id, target_price, chain, active, last_notified, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.UserID, a.MedicationID, a.TargetPrice, string(a.Chain), a.Active, last,
		a.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: create alert: %w", err)
	}
	return nil
}

// ActiveAlert is an alert joined with the user contact details and
// medication display name the notification engine renders.
type ActiveAlert struct {
	Alert
	UserEmail        string
	UserName         string
	PushSubscription string
	MedicationName   string
}

// ActiveAlerts returns every active alert with its notification context.
func (s *Store) ActiveAlerts(ctx context.Context) ([]ActiveAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, a.medication_id, a.target_price, a.chain, a.last_notified,
		       u.email, u.name, u.push_subscription,
		       CASE WHEN m.commercial_name != '' THEN m.commercial_name ELSE m.generic_name END
		FROM price_alerts a
		JOIN users u ON u.id = a.user_id
		JOIN medications m ON m.id = a.medication_id
		WHERE a.active = 1`)
	if err != nil {
		return nil, fmt.Errorf("store: active alerts: %w", err)
	}
	defer rows.Close()

	var out []ActiveAlert
	for rows.Next() {
		var a ActiveAlert
		var last sql.NullInt64
		if err := rows.Scan(&a.ID, &a.UserID, &a.MedicationID, &a.TargetPrice, &a.Chain, &last,
			&a.UserEmail, &a.UserName, &a.PushSubscription, &a.MedicationName); err != nil {
			return nil, fmt.Errorf("store: scan alert: %w", err)
		}
		a.Active = true
		if last.Valid {
			t := millisToTime(last.Int64)
			a.LastNotified = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// StampNotified advances the cooldown timestamp for one alert.
func (s *Store) StampNotified(ctx context.Context, alertID string, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE price_alerts SET last_notified = ? WHERE id = ?`,
		t.UnixMilli(), alertID)
	if err != nil {
		return fmt.Errorf("store: stamp notified: %w", err)
	}
	return nil
}
