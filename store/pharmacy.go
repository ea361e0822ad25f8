package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pharmacheck/pricewatch/scrape"
)

// Pharmacy is one retail branch of a chain. Identity is
// (chain, external_id) when the branch code is known.
type Pharmacy struct {
	ID         string
	Chain      scrape.Chain
	Name       string
	Address    string
	Commune    string
	Region     string
	ExternalID string
	CreatedAt  time.Time
}

// FindPharmacy looks up a branch by its (chain, external_id) key.
func (s *Store) FindPharmacy(ctx context.Context, chain scrape.Chain, externalID string) (*Pharmacy, error) {
	var p Pharmacy
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chain, name, address, commune, region, external_id, created_at
		FROM pharmacies WHERE chain = ? AND external_id = ?`,
		string(chain), externalID,
	).Scan(&p.ID, &p.Chain, &p.Name, &p.Address, &p.Commune, &p.Region, &p.ExternalID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find pharmacy: %w", err)
	}
	p.CreatedAt = millisToTime(created)
	return &p, nil
}

// CreatePharmacy inserts a branch, assigning its ID.
func (s *Store) CreatePharmacy(ctx context.Context, p *Pharmacy) error {
	p.ID = newPharmacyID()
	p.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pharmacies (id, chain, name, address, commune, region, external_id, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, string(p.Chain), p.Name, p.Address, p.Commune, p.Region, p.ExternalID,
		p.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: create pharmacy: %w", err)
	}
	return nil
}

// EnsurePharmacy finds a branch by (chain, external_id) and creates it
// when absent, returning the branch ID either way.
//
// When a chain does not expose a stable branch code this creates
// duplicate rows across runs; that gap is acknowledged and deliberately
// not auto-corrected here.
func (s *Store) EnsurePharmacy(ctx context.Context, p Pharmacy) (string, error) {
	existing, err := s.FindPharmacy(ctx, p.Chain, p.ExternalID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	if err := s.CreatePharmacy(ctx, &p); err != nil {
		return "", err
	}
	return p.ID, nil
}
