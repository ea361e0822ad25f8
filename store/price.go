package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pharmacheck/pricewatch/scrape"
)

// Price is one immutable observation in the price history. Rows are
// cumulative: every collection pass appends, even at an unchanged
// amount, so the series carries "still this price at time t".
type Price struct {
	ID           string
	MedicationID string
	PharmacyID   string
	Amount       int
	InStock      *bool // nil = unknown
	ObservedAt   time.Time
}

// InsertPrice appends a price row. There is no update or delete path.
func (s *Store) InsertPrice(ctx context.Context, p *Price) error {
	p.ID = newPriceID()
	if p.ObservedAt.IsZero() {
		p.ObservedAt = time.Now()
	}
	var stock any
	if p.InStock != nil {
		stock = *p.InStock
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prices (id, medication_id, pharmacy_id, price, in_stock, observed_at)
		VALUES (?,?,?,?,?,?)`,
		p.ID, p.MedicationID, p.PharmacyID, p.Amount, stock, p.ObservedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: insert price: %w", err)
	}
	return nil
}

// CountPrices returns the number of price rows for a medication.
func (s *Store) CountPrices(ctx context.Context, medicationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prices WHERE medication_id = ?`, medicationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count prices: %w", err)
	}
	return n, nil
}

// Quote is the cheapest qualifying offer found for an alert.
type Quote struct {
	Amount       int
	PharmacyName string
	Chain        scrape.Chain
	ObservedAt   time.Time
}

// LowestPriceAt returns the minimum recorded price for a medication at
// or under maxPrice, optionally restricted to one chain ("" = any).
// Returns ErrNotFound when no offer qualifies.
func (s *Store) LowestPriceAt(ctx context.Context, medicationID string, chain scrape.Chain, maxPrice int) (*Quote, error) {
	query := `
		SELECT p.price, ph.name, ph.chain, p.observed_at
		FROM prices p
		JOIN pharmacies ph ON ph.id = p.pharmacy_id
		WHERE p.medication_id = ? AND p.price <= ?`
	args := []any{medicationID, maxPrice}
	if chain != "" {
		query += ` AND ph.chain = ?`
		args = append(args, string(chain))
	}
	query += ` ORDER BY p.price ASC LIMIT 1`

	var q Quote
	var observed int64
	err := s.db.QueryRowContext(ctx, query, args...).
		Scan(&q.Amount, &q.PharmacyName, &q.Chain, &observed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: lowest price: %w", err)
	}
	q.ObservedAt = millisToTime(observed)
	return &q, nil
}
