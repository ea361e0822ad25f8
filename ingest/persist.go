// Package ingest turns collected observations into durable rows and
// owns the per-chain run lifecycle. It sits between the scrape
// collectors and the store, so both sides stay testable with fakes.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pharmacheck/pricewatch/normalize"
	"github.com/pharmacheck/pricewatch/scrape"
	"github.com/pharmacheck/pricewatch/store"
)

// Persister writes observation batches with per-record fault isolation:
// a corrupt record costs one skipped row, never the batch. The batch is
// deliberately not wrapped in a transaction — rows persisted before a
// crash stay persisted.
type Persister struct {
	store  *store.Store
	logger *slog.Logger
}

// NewPersister creates a Persister.
func NewPersister(st *store.Store, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{store: st, logger: logger}
}

// Persist resolves and appends every observation, returning how many
// rows were inserted and how many records failed.
func (p *Persister) Persist(ctx context.Context, observations []scrape.Observation) (inserted, failed int) {
	for _, obs := range observations {
		if err := p.persistOne(ctx, obs); err != nil {
			p.logger.Warn("ingest: observation skipped",
				"chain", obs.Chain, "product", obs.ProductName, "error", err)
			failed++
			continue
		}
		inserted++
	}
	return inserted, failed
}

func (p *Persister) persistOne(ctx context.Context, obs scrape.Observation) error {
	if obs.ProductName == "" {
		return fmt.Errorf("ingest: observation without product name")
	}
	if obs.Price <= 0 {
		return fmt.Errorf("ingest: non-positive price %d", obs.Price)
	}

	pharmacyID, err := p.store.EnsurePharmacy(ctx, store.Pharmacy{
		Chain:      obs.Chain,
		Name:       obs.StoreName,
		Address:    obs.StoreAddr,
		Commune:    obs.Commune,
		Region:     obs.Region,
		ExternalID: obs.StoreID,
	})
	if err != nil {
		return err
	}

	medicationID, err := p.store.ResolveMedication(ctx, normalize.Raw{
		ProductName: obs.ProductName,
		EAN:         obs.EAN,
	})
	if err != nil {
		return err
	}

	return p.store.InsertPrice(ctx, &store.Price{
		MedicationID: medicationID,
		PharmacyID:   pharmacyID,
		Amount:       obs.Price,
		InStock:      obs.InStock,
	})
}
