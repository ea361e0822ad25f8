package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pharmacheck/pricewatch/normalize"
)

// Medication is a canonical catalog record. Rows are created lazily on
// first unmatched observation and never field-mutated afterwards.
type Medication struct {
	ID              string
	GenericName     string
	CommercialName  string
	ActivePrinciple string
	Laboratory      string
	Concentration   string
	Presentation    string
	Quantity        string
	EAN             string
	CreatedAt       time.Time
}

const medicationCols = `id, generic_name, commercial_name, active_principle,
	laboratory, concentration, presentation, quantity, ean, created_at`

func scanMedication(row *sql.Row) (*Medication, error) {
	var m Medication
	var created int64
	err := row.Scan(&m.ID, &m.GenericName, &m.CommercialName, &m.ActivePrinciple,
		&m.Laboratory, &m.Concentration, &m.Presentation, &m.Quantity, &m.EAN, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan medication: %w", err)
	}
	m.CreatedAt = millisToTime(created)
	return &m, nil
}

// FindMedicationByEAN looks up a medication by barcode.
func (s *Store) FindMedicationByEAN(ctx context.Context, ean string) (*Medication, error) {
	return scanMedication(s.db.QueryRowContext(ctx,
		`SELECT `+medicationCols+` FROM medications WHERE ean = ? LIMIT 1`, ean))
}

// FindMedicationByCommercialName looks up a medication by the exact
// commercial name stored at creation time.
func (s *Store) FindMedicationByCommercialName(ctx context.Context, name string) (*Medication, error) {
	return scanMedication(s.db.QueryRowContext(ctx,
		`SELECT `+medicationCols+` FROM medications WHERE commercial_name = ? LIMIT 1`, name))
}

// GetMedication fetches a medication by ID.
func (s *Store) GetMedication(ctx context.Context, id string) (*Medication, error) {
	return scanMedication(s.db.QueryRowContext(ctx,
		`SELECT `+medicationCols+` FROM medications WHERE id = ?`, id))
}

// CreateMedication inserts a catalog record, assigning its ID.
func (s *Store) CreateMedication(ctx context.Context, m *Medication) error {
	m.ID = newMedicationID()
	m.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO medications (id, generic_name, commercial_name, active_principle,
			laboratory, concentration, presentation, quantity, ean, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ID, m.GenericName, m.CommercialName, m.ActivePrinciple,
		m.Laboratory, m.Concentration, m.Presentation, m.Quantity, m.EAN,
		m.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("store: create medication: %w", err)
	}
	return nil
}

// ResolveMedication maps a raw observed product to a catalog ID. The
// resolution order is fixed: exact EAN match, then exact canonical
// commercial name, else a new record built through the normalizer. No
// uniqueness is enforced beyond these two checks.
func (s *Store) ResolveMedication(ctx context.Context, raw normalize.Raw) (string, error) {
	if raw.EAN != "" {
		m, err := s.FindMedicationByEAN(ctx, raw.EAN)
		if err == nil {
			return m.ID, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	canon := normalize.Canonicalize(raw)

	if canon.CommercialName != "" {
		m, err := s.FindMedicationByCommercialName(ctx, canon.CommercialName)
		if err == nil {
			return m.ID, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	created := &Medication{
		GenericName:     canon.GenericName,
		CommercialName:  canon.CommercialName,
		ActivePrinciple: canon.ActivePrinciple,
		Laboratory:      canon.Laboratory,
		Concentration:   canon.Concentration,
		Presentation:    canon.Presentation,
		Quantity:        canon.Quantity,
		EAN:             canon.EAN,
	}
	if err := s.CreateMedication(ctx, created); err != nil {
		return "", err
	}
	return created.ID, nil
}
