package minsal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pharmacheck/pricewatch/scrape"
)

// TuFarmacia queries the ministry's public medication price comparator.
// Unlike the chain collectors it needs no browser: the service is a
// plain JSON API.
type TuFarmacia struct {
	client *http.Client
	apiURL string
	logger *slog.Logger
}

// NewTuFarmacia creates a client for the given search endpoint.
func NewTuFarmacia(apiURL string, logger *slog.Logger) *TuFarmacia {
	if logger == nil {
		logger = slog.Default()
	}
	return &TuFarmacia{
		client: &http.Client{Timeout: 30 * time.Second},
		apiURL: apiURL,
		logger: logger,
	}
}

// TFMedication is one catalog entry with its per-pharmacy offers.
type TFMedication struct {
	Code            string    `json:"codigo"`
	ProductName     string    `json:"nombre_producto"`
	ActivePrinciple string    `json:"principio_activo"`
	Laboratory      string    `json:"laboratorio"`
	Concentration   string    `json:"concentracion"`
	Presentation    string    `json:"forma_farmaceutica"`
	Quantity        string    `json:"cantidad"`
	Offers          []TFOffer `json:"precios"`
}

// TFOffer is one pharmacy's price for a catalog entry.
type TFOffer struct {
	PharmacyName string `json:"nombre_local"`
	ChainName    string `json:"cadena"`
	Price        int    `json:"precio"`
	Address      string `json:"direccion"`
	Commune      string `json:"comuna"`
	BranchCode   string `json:"codigo_local"`
}

// Search queries the catalog for a medication name.
func (t *TuFarmacia) Search(ctx context.Context, query string) ([]TFMedication, error) {
	u := t.apiURL + "?nombre=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("minsal: tufarmacia request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("minsal: tufarmacia fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("minsal: tufarmacia status %d: %s", resp.StatusCode, msg)
	}

	var out []TFMedication
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("minsal: tufarmacia decode: %w", err)
	}
	return out, nil
}

// Observations flattens catalog entries into price observations for
// offers belonging to supported chains. Offers from independent
// pharmacies are dropped.
func (t *TuFarmacia) Observations(meds []TFMedication) []scrape.Observation {
	var out []scrape.Observation
	for _, m := range meds {
		if m.ProductName == "" {
			continue
		}
		for _, o := range m.Offers {
			chain, ok := matchChain(o.ChainName)
			if !ok || o.Price <= 0 {
				continue
			}
			storeID := o.BranchCode
			if storeID == "" {
				storeID = "tufarmacia"
			}
			out = append(out, scrape.Observation{
				ProductName: m.ProductName,
				Price:       o.Price,
				StoreID:     storeID,
				StoreName:   o.PharmacyName,
				StoreAddr:   o.Address,
				Commune:     o.Commune,
				Chain:       chain,
			})
		}
	}
	return out
}

// SyncCatalog walks the catalog alphabetically and hands each letter's
// entries to fn. A failed letter is logged and skipped so one bad page
// never aborts a full sync.
func (t *TuFarmacia) SyncCatalog(ctx context.Context, fn func([]TFMedication) error) error {
	for c := 'a'; c <= 'z'; c++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("minsal: sync catalog: %w", err)
		}
		letter := string(c)
		meds, err := t.Search(ctx, letter)
		if err != nil {
			t.logger.Warn("minsal: catalog letter skipped", "letter", letter, "error", err)
			continue
		}
		if len(meds) == 0 {
			continue
		}
		if err := fn(meds); err != nil {
			t.logger.Warn("minsal: catalog letter not persisted", "letter", letter, "error", err)
		}
	}
	return nil
}
