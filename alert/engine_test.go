package alert

import (
	"context"
	"testing"
	"time"

	"github.com/pharmacheck/pricewatch/notify"
	"github.com/pharmacheck/pricewatch/scrape"
	"github.com/pharmacheck/pricewatch/store"
)

type fakeNotifier struct {
	sent []notify.Notification
}

func (f *fakeNotifier) Dispatch(ctx context.Context, n notify.Notification) {
	f.sent = append(f.sent, n)
}

type fixture struct {
	st       *store.Store
	notifier *fakeNotifier
	engine   *Engine
	userID   string
	medID    string
}

// seed builds a user, a medication with one price row, and returns the
// fixture. The price is 1200 at Cruz Verde Providencia.
func seed(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.New(store.OpenMemory(t))

	u := &store.User{Email: "ana@example.com", Name: "Ana"}
	if err := st.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	m := &store.Medication{GenericName: "Paracetamol", CommercialName: "Paracetamol 500mg", Concentration: "500mg"}
	if err := st.CreateMedication(ctx, m); err != nil {
		t.Fatalf("CreateMedication: %v", err)
	}
	phID, err := st.EnsurePharmacy(ctx, store.Pharmacy{
		Chain: scrape.ChainCruzVerde, Name: "Cruz Verde Providencia", ExternalID: "cv-123",
	})
	if err != nil {
		t.Fatalf("EnsurePharmacy: %v", err)
	}
	if err := st.InsertPrice(ctx, &store.Price{MedicationID: m.ID, PharmacyID: phID, Amount: 1200}); err != nil {
		t.Fatalf("InsertPrice: %v", err)
	}

	notifier := &fakeNotifier{}
	return &fixture{
		st:       st,
		notifier: notifier,
		engine:   NewEngine(st, notifier, nil),
		userID:   u.ID,
		medID:    m.ID,
	}
}

func (f *fixture) addAlert(t *testing.T, target int, lastNotified *time.Time) string {
	t.Helper()
	a := &store.Alert{
		UserID: f.userID, MedicationID: f.medID,
		TargetPrice: target, Active: true, LastNotified: lastNotified,
	}
	if err := f.st.CreateAlert(context.Background(), a); err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	return a.ID
}

// WHAT: a price at or under the target fires the alert with the full
// notification context.
func TestCheckFiresOnMatch(t *testing.T) {
	f := seed(t)
	f.addAlert(t, 1500, nil)

	rep, err := f.engine.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rep.Fired != 1 || rep.Total != 1 {
		t.Fatalf("report = %+v, want fired=1 total=1", rep)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.CurrentPrice != 1200 || n.TargetPrice != 1500 {
		t.Fatalf("prices = (%d, %d), want (1200, 1500)", n.CurrentPrice, n.TargetPrice)
	}
	if n.MedicationName != "Paracetamol 500mg" || n.PharmacyName != "Cruz Verde Providencia" {
		t.Fatalf("context = (%q, %q)", n.MedicationName, n.PharmacyName)
	}
}

// WHAT: a target below every stored price never fires.
func TestCheckNoMatchBelowAllPrices(t *testing.T) {
	f := seed(t)
	f.addAlert(t, 1000, nil)

	rep, err := f.engine.Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rep.Fired != 0 || rep.Total != 1 {
		t.Fatalf("report = %+v, want fired=0 total=1", rep)
	}
}

// WHAT: the 24h cooldown suppresses a match notified 23h ago and lets
// through one notified 25h ago.
// WHY: the boundary matters — cooldown compares elapsed time strictly
// against the window.
func TestCheckCooldownBoundary(t *testing.T) {
	cases := []struct {
		name      string
		age       time.Duration
		wantFired int
	}{
		{"inside window", 23 * time.Hour, 0},
		{"outside window", 25 * time.Hour, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := seed(t)
			now := time.Now()
			f.engine.now = func() time.Time { return now }
			last := now.Add(-c.age)
			f.addAlert(t, 1500, &last)

			rep, err := f.engine.Check(context.Background())
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if rep.Fired != c.wantFired {
				t.Fatalf("fired = %d, want %d", rep.Fired, c.wantFired)
			}
		})
	}
}

// WHAT: firing stamps last_notified, so an immediate second pass is
// silent.
// WHY: without the stamp every cron tick would re-notify.
func TestCheckStampsAndSuppressesRepeat(t *testing.T) {
	f := seed(t)
	f.addAlert(t, 1500, nil)
	ctx := context.Background()

	if rep, _ := f.engine.Check(ctx); rep.Fired != 1 {
		t.Fatalf("first pass fired = %d, want 1", rep.Fired)
	}
	if rep, _ := f.engine.Check(ctx); rep.Fired != 0 {
		t.Fatalf("second pass fired = %d, want 0", rep.Fired)
	}

	alerts, err := f.st.ActiveAlerts(ctx)
	if err != nil || len(alerts) != 1 {
		t.Fatalf("ActiveAlerts = %v, %v", alerts, err)
	}
	if alerts[0].LastNotified == nil {
		t.Fatal("last_notified not stamped")
	}
}

// WHAT: an alert restricted to a chain with no qualifying price stays
// quiet even when another chain qualifies.
func TestCheckChainRestriction(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	a := &store.Alert{
		UserID: f.userID, MedicationID: f.medID,
		TargetPrice: 1500, Chain: scrape.ChainAhumada, Active: true,
	}
	if err := f.st.CreateAlert(ctx, a); err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}

	rep, err := f.engine.Check(ctx)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rep.Fired != 0 {
		t.Fatalf("fired = %d, want 0", rep.Fired)
	}
}
